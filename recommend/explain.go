package recommend

import (
	"fmt"
	"sort"
	"strings"
)

const (
	maxImproved      = 3
	maxCanWait       = 2
	improvedMinDelta = 0.01
	canWaitMargin    = 0.9
)

// Explain summarizes a candidate's category impact in one or two sentences
func Explain(impacts []CategoryImpact, threshold float64) string {
	var improved []CategoryImpact
	for _, imp := range impacts {
		if imp.ZDelta > improvedMinDelta {
			improved = append(improved, imp)
		}
	}
	sort.SliceStable(improved, func(i, j int) bool { return improved[i].ZDelta > improved[j].ZDelta })
	if len(improved) > maxImproved {
		improved = improved[:maxImproved]
	}

	var canWait []CategoryImpact
	for _, imp := range impacts {
		if imp.ZBefore > threshold+canWaitMargin {
			canWait = append(canWait, imp)
		}
	}
	sort.SliceStable(canWait, func(i, j int) bool { return canWait[i].ZBefore > canWait[j].ZBefore })
	if len(canWait) > maxCanWait {
		canWait = canWait[:maxCanWait]
	}

	var b strings.Builder
	if len(improved) == 0 {
		b.WriteString("Minimal category impact.")
	} else {
		parts := make([]string, len(improved))
		var weak []string
		for i, imp := range improved {
			parts[i] = fmt.Sprintf("%s (+%.2f z)", imp.Label, imp.ZDelta)
			if imp.ZBefore < threshold {
				weak = append(weak, imp.Label)
			}
		}
		fmt.Fprintf(&b, "Improves %s.", strings.Join(parts, ", "))
		if len(weak) > 0 {
			fmt.Fprintf(&b, " Shores up weak spots: %s.", strings.Join(weak, ", "))
		}
	}

	if len(canWait) > 0 {
		labels := make([]string, len(canWait))
		for i, imp := range canWait {
			labels[i] = imp.Label
		}
		fmt.Fprintf(&b, " Already strong in %s, those can wait.", strings.Join(labels, ", "))
	}

	return b.String()
}
