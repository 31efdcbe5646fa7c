package graph

import (
	"log/slog"

	"github.com/stella-ai/tracegraph/internal/metrics"
	"github.com/stella-ai/tracegraph/pkg/schema"
)

type edgeKey struct {
	from, to string
}

// Consolidate collapses multiple raw edges between the same ordered node
// pair into one, preserving the union of their executed/active flags and
// an audit count. Output order follows first occurrence of each pair.
//
// A self-check recomputes the distinct pair set before and after; a pair
// present before and missing after is a build defect. It is logged and
// counted, never swallowed into a failed request.
func Consolidate(edges []schema.Edge, logger *slog.Logger) []schema.Edge {
	if logger == nil {
		logger = slog.Default()
	}

	grouped := make(map[edgeKey][]schema.Edge, len(edges))
	var order []edgeKey
	for _, e := range edges {
		k := edgeKey{e.From, e.To}
		if _, seen := grouped[k]; !seen {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], e)
	}

	out := make([]schema.Edge, 0, len(order))
	for _, k := range order {
		group := grouped[k]
		if len(group) == 1 {
			e := group[0]
			e.IsConsolidated = false
			e.OriginalCount = 1
			out = append(out, e)
			continue
		}
		out = append(out, mergeGroup(group))
	}

	// Integrity self-check: no connection may be lost.
	after := make(map[edgeKey]struct{}, len(out))
	for _, e := range out {
		after[edgeKey{e.From, e.To}] = struct{}{}
	}
	for _, k := range order {
		if _, ok := after[k]; !ok {
			logger.Error("edge consolidation lost a connection",
				"from", k.from, "to", k.to)
			metrics.ConsolidationDefect()
		}
	}

	return out
}

// mergeGroup folds a group of same-pair edges into one consolidated edge.
// The condition string of an executed member wins over the first member's.
func mergeGroup(group []schema.Edge) schema.Edge {
	merged := schema.Edge{
		From:           group[0].From,
		To:             group[0].To,
		Condition:      group[0].Condition,
		IsUnused:       true,
		IsConsolidated: true,
		OriginalCount:  len(group),
	}
	for _, e := range group {
		merged.IsExecuted = merged.IsExecuted || e.IsExecuted
		merged.IsActive = merged.IsActive || e.IsActive
		merged.IsUnused = merged.IsUnused && e.IsUnused
	}
	for _, e := range group {
		if e.IsExecuted {
			merged.Condition = e.Condition
			break
		}
	}
	return merged
}
