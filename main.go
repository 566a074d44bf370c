package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/arnadler/category-draft-coach/catalog"
	"github.com/arnadler/category-draft-coach/metrics"
	"github.com/arnadler/category-draft-coach/models"
	"github.com/arnadler/category-draft-coach/simulation"
)

type Server struct {
	db         *pgxpool.Pool
	rdb        *redis.Client
	router     *mux.Router
	httpServer *http.Server
	config     *Config
	engine     *simulation.Engine
	catalog    *catalog.Catalog
	stop       context.CancelFunc
}

type Config struct {
	Port           string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	Workers        int
	Iterations     int
	Seed           uint64
	NoiseScale     float64
	RedisURL       string
	CacheTTL       time.Duration
	Retention      time.Duration
	AllowedOrigins []string
	MCPEnabled     bool
	CatalogPath    string
	LogLevel       string
	LogFormat      string
}

func NewConfig() *Config {
	workers := runtime.NumCPU()
	if envWorkers := os.Getenv("WORKERS"); envWorkers != "" {
		fmt.Sscanf(envWorkers, "%d", &workers)
	}

	iterations := simulation.DefaultIterations
	if envRuns := os.Getenv("SIMULATION_ITERATIONS"); envRuns != "" {
		fmt.Sscanf(envRuns, "%d", &iterations)
	}

	seed := uint64(simulation.DefaultSeed)
	if envSeed := os.Getenv("SIMULATION_SEED"); envSeed != "" {
		if v, err := strconv.ParseUint(envSeed, 10, 64); err == nil {
			seed = v
		}
	}

	noise := simulation.DefaultNoiseScale
	if envNoise := os.Getenv("SIMULATION_NOISE"); envNoise != "" {
		if v, err := strconv.ParseFloat(envNoise, 64); err == nil {
			noise = v
		}
	}

	ttl := 6 * time.Hour
	if envTTL := os.Getenv("CACHE_TTL"); envTTL != "" {
		if v, err := time.ParseDuration(envTTL); err == nil {
			ttl = v
		}
	}

	retention := 30 * 24 * time.Hour
	if envRetention := os.Getenv("DISTRIBUTION_RETENTION"); envRetention != "" {
		if v, err := time.ParseDuration(envRetention); err == nil {
			retention = v
		}
	}

	return &Config{
		Port:           getEnv("PORT", "8081"),
		DBHost:         getEnv("DB_HOST", ""),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "draft_user"),
		DBPassword:     getEnv("DB_PASSWORD", "draft_pass"),
		DBName:         getEnv("DB_NAME", "draft_coach"),
		Workers:        workers,
		Iterations:     iterations,
		Seed:           seed,
		NoiseScale:     noise,
		RedisURL:       getEnv("REDIS_URL", ""),
		CacheTTL:       ttl,
		Retention:      retention,
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		MCPEnabled:     getEnv("MCP_ENABLED", "true") != "false",
		CatalogPath:    getEnv("CATALOG_PATH", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}
}

// SimulationOptions returns the engine defaults from config
func (c *Config) SimulationOptions() simulation.Options {
	return simulation.Options{
		Iterations: c.Iterations,
		Seed:       c.Seed,
		NoiseScale: c.NoiseScale,
		Workers:    c.Workers,
	}
}

func configureLogging(config *Config) {
	level, err := log.ParseLevel(config.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if config.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func NewServer(config *Config) (*Server, error) {
	var (
		db    *pgxpool.Pool
		rdb   *redis.Client
		store simulation.Store
	)
	caches := simulation.TieredCache{simulation.NewMemoryCache(config.CacheTTL)}

	var redisOpt *redis.Options
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		redisOpt = opt
	}

	if config.DBHost != "" {
		dbURL := fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
			config.DBUser, config.DBPassword, config.DBHost, config.DBPort, config.DBName)

		dbConfig, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse db config: %w", err)
		}

		dbConfig.MaxConns = int32(config.Workers*2 + 2)
		dbConfig.MinConns = int32(config.Workers / 2)
		dbConfig.MaxConnLifetime = time.Hour
		dbConfig.MaxConnIdleTime = time.Minute * 30

		db, err = pgxpool.NewWithConfig(context.Background(), dbConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := db.Ping(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		pgStore := simulation.NewPostgresStore(db)
		if err := pgStore.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, err
		}
		store = pgStore
		log.Printf("Distribution store connected to %s/%s", config.DBHost, config.DBName)
	} else {
		log.Printf("No DB_HOST configured, distributions are kept in memory only")
	}

	if redisOpt != nil {
		rdb = redis.NewClient(redisOpt)
		caches = append(caches, simulation.NewRedisCache(rdb, config.CacheTTL))
		log.Printf("Redis distribution cache enabled")
	}

	// A missing catalog is not fatal; db stays open for the distribution
	// store and is closed by Shutdown.
	cat, err := loadCatalog(config, db)
	if err != nil {
		log.WithError(err).Warn("Starting without a player catalog; requests must supply players")
	}

	engine := simulation.NewEngine(store, caches, config.Workers, config.SimulationOptions())
	s := newServer(config, engine, cat)
	s.db = db
	s.rdb = rdb

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	engine.StartCleanup(ctx, 10*time.Minute, time.Hour, config.Retention)
	if cat.Len() > 0 {
		s.warmDistributions(ctx)
	}

	return s, nil
}

// newServer wires routes around an engine and catalog
func newServer(config *Config, engine *simulation.Engine, cat *catalog.Catalog) *Server {
	s := &Server{
		config:  config,
		router:  mux.NewRouter(),
		engine:  engine,
		catalog: cat,
	}
	s.setupRoutes()
	return s
}

func loadCatalog(config *Config, db *pgxpool.Pool) (*catalog.Catalog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case config.CatalogPath != "":
		return catalog.Load(ctx, catalog.FileSource{Path: config.CatalogPath})
	case db != nil:
		src := catalog.NewPostgresSource(db)
		if err := src.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return catalog.Load(ctx, src)
	default:
		return nil, catalog.ErrEmptyCatalog
	}
}

// warmDistributions restores persisted distributions for the default league
// or, failing that, starts computing them.
func (s *Server) warmDistributions(ctx context.Context) {
	settings := models.DefaultSettings()
	players := s.catalog.Players()

	restoreCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.engine.Restore(restoreCtx, players, settings); err == nil {
		log.Printf("Restored default league distributions")
		return
	}
	runID := s.engine.Recompute(players, settings, simulation.Options{})
	log.WithField("run_id", runID).Info("Computing default league distributions")
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/distributions", s.recomputeHandler).Methods("POST")
	api.HandleFunc("/distributions/latest", s.latestDistributionsHandler).Methods("GET")
	api.HandleFunc("/distributions/{id}/status", s.distributionStatusHandler).Methods("GET")
	api.HandleFunc("/recommendations", s.recommendationsHandler).Methods("POST")
	api.HandleFunc("/roster/evaluate", s.evaluateRosterHandler).Methods("POST")
	api.HandleFunc("/catalog", s.catalogHandler).Methods("GET")

	if s.config.MCPEnabled {
		s.router.PathPrefix("/mcp").Handler(s.mcpHandler())
	}

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(metrics.Middleware)
}

// handler is the full middleware chain served by Start
func (s *Server) handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	})
	return c.Handler(handlers.CompressHandler(s.router))
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting draft coach on port %s with %d workers", s.config.Port, s.config.Workers)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down draft coach...")

	if s.stop != nil {
		s.stop()
	}
	s.engine.Shutdown()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return err
}

// Middleware
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		log.WithFields(log.Fields{
			"method":   r.Method,
			"uri":      r.RequestURI,
			"status":   lrw.statusCode,
			"duration": time.Since(start),
		}).Info("request")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Errorf("Panic recovered: %v", err)
				writeError(w, "Internal server error", "internal", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// APIError is the JSON error body
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, message, code string, status int) {
	writeJSONStatus(w, status, APIError{Error: message, Code: code})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	config := NewConfig()
	configureLogging(config)

	server, err := NewServer(config)
	if err != nil {
		log.Fatal("Failed to create server: ", err)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatal("Server shutdown failed: ", err)
		}
		log.Println("Server shutdown complete")
	}()

	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Server failed to start: ", err)
	}
}
