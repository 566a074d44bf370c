// Package catalog loads and normalizes the draftable player pool.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/arnadler/category-draft-coach/models"
)

var (
	ErrEmptyCatalog  = errors.New("catalog has no usable players")
	ErrInvalidPlayer = errors.New("invalid player record")
)

// Source supplies raw player records
type Source interface {
	Players(ctx context.Context) ([]*models.Player, error)
}

// Catalog is an immutable, normalized player pool
type Catalog struct {
	players  []*models.Player
	byID     map[string]*models.Player
	warnings []string
}

// New normalizes players into a catalog
func New(players []*models.Player) *Catalog {
	normalized, warnings := Normalize(players)
	c := &Catalog{
		players:  normalized,
		byID:     make(map[string]*models.Player, len(normalized)),
		warnings: warnings,
	}
	for _, p := range normalized {
		c.byID[p.ID] = p
	}
	return c
}

// Load reads every player from src and builds a catalog
func Load(ctx context.Context, src Source) (*Catalog, error) {
	players, err := src.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	c := New(players)
	if c.Len() == 0 {
		return nil, ErrEmptyCatalog
	}
	for _, w := range c.warnings {
		log.WithField("warning", w).Debug("Catalog normalization")
	}
	log.WithFields(log.Fields{
		"players":  c.Len(),
		"warnings": len(c.warnings),
	}).Info("Player catalog loaded")
	return c, nil
}

// Players returns the normalized pool in id order
func (c *Catalog) Players() []*models.Player {
	if c == nil {
		return nil
	}
	return c.players
}

// Len returns the number of usable players
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.players)
}

// Warnings lists the fixes and drops made during normalization
func (c *Catalog) Warnings() []string {
	if c == nil {
		return nil
	}
	return c.warnings
}

// Get looks up a player by id
func (c *Catalog) Get(id string) (*models.Player, bool) {
	if c == nil {
		return nil, false
	}
	p, ok := c.byID[id]
	return p, ok
}

// Lookup resolves ids to players, returning any ids not in the catalog
func (c *Catalog) Lookup(ids []string) ([]*models.Player, []string) {
	var found []*models.Player
	var missing []string
	for _, id := range ids {
		if p, ok := c.Get(id); ok {
			found = append(found, p)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing
}

// Available returns the pool minus the excluded ids
func (c *Catalog) Available(excluded map[string]bool) []*models.Player {
	out := make([]*models.Player, 0, c.Len())
	for _, p := range c.Players() {
		if !excluded[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// Normalize applies the upstream fixes the valuation core relies on: risk is
// clamped to [0,1], the role tag is derived from positions when they
// disagree, and records without an id or positions are dropped. Duplicate
// ids keep the first record. The result is sorted by id.
func Normalize(players []*models.Player) ([]*models.Player, []string) {
	var warnings []string
	seen := make(map[string]bool, len(players))
	out := make([]*models.Player, 0, len(players))

	for _, p := range players {
		if p == nil {
			continue
		}
		if p.ID == "" {
			warnings = append(warnings, fmt.Sprintf("dropped %q: %v: missing id", p.Name, ErrInvalidPlayer))
			continue
		}
		if len(p.Positions) == 0 {
			warnings = append(warnings, fmt.Sprintf("dropped %s: %v: no positions", p.ID, ErrInvalidPlayer))
			continue
		}
		if seen[p.ID] {
			warnings = append(warnings, fmt.Sprintf("dropped duplicate %s", p.ID))
			continue
		}
		seen[p.ID] = true

		fixed := *p
		if want := models.RoleForPositions(p.Positions); fixed.Role != want {
			if fixed.Role != "" {
				warnings = append(warnings, fmt.Sprintf("%s: role %q changed to %q to match %v", p.ID, fixed.Role, want, p.Positions))
			}
			fixed.Role = want
		}
		if p.Risk != nil {
			r := p.RiskValue()
			if r != *p.Risk {
				warnings = append(warnings, fmt.Sprintf("%s: risk %v clamped to %v", p.ID, *p.Risk, r))
			}
			fixed.Risk = models.Float(r)
		}
		if err := fixed.Validate(); err != nil {
			warnings = append(warnings, fmt.Sprintf("dropped %s: %v: %v", p.ID, ErrInvalidPlayer, err))
			continue
		}
		out = append(out, &fixed)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, warnings
}

// record is the loose JSON shape of an upstream catalog row. Numbers may
// arrive as strings, so projections are decoded through projectionFromStats.
type record struct {
	ID          string                 `json:"player_id"`
	Name        string                 `json:"name"`
	Team        string                 `json:"team"`
	Positions   []string               `json:"positions"`
	Role        string                 `json:"role"`
	Projection  map[string]interface{} `json:"projection"`
	ADP         interface{}            `json:"adp"`
	OverallRank interface{}            `json:"overall_rank"`
	Risk        interface{}            `json:"risk"`
}

func (r record) player() *models.Player {
	return &models.Player{
		ID:          r.ID,
		Name:        r.Name,
		Team:        r.Team,
		Positions:   r.Positions,
		Role:        models.Role(r.Role),
		Projection:  projectionFromStats(r.Projection),
		ADP:         optionalFloat(r.ADP),
		OverallRank: optionalFloat(r.OverallRank),
		Risk:        optionalFloat(r.Risk),
	}
}

// Decode reads a JSON array of player records
func Decode(r io.Reader) ([]*models.Player, error) {
	var records []record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	players := make([]*models.Player, len(records))
	for i, rec := range records {
		players[i] = rec.player()
	}
	return players, nil
}

// FileSource reads a JSON catalog from disk
type FileSource struct {
	Path string
}

// Players implements Source
func (f FileSource) Players(_ context.Context) ([]*models.Player, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer file.Close()
	return Decode(file)
}

// projectionFromStats keeps every numeric-looking stat and discards the rest
func projectionFromStats(stats map[string]interface{}) models.Projection {
	proj := make(models.Projection, len(stats))
	for key := range stats {
		if v, ok := floatFromStats(stats, key); ok {
			proj[key] = v
		}
	}
	return proj
}

func floatFromStats(stats map[string]interface{}, key string) (float64, bool) {
	val, exists := stats[key]
	if !exists {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func optionalFloat(val interface{}) *float64 {
	if val == nil {
		return nil
	}
	if v, ok := floatFromStats(map[string]interface{}{"v": val}, "v"); ok {
		return models.Float(v)
	}
	return nil
}
