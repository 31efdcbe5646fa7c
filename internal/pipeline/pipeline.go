// Package pipeline composes the full trace-to-graph transformation:
// normalize, topology, states, consolidation, content, layout, behind a
// memoizing cache. Render always returns a renderable graph; malformed
// input degrades to a minimal start/end placeholder instead of an error.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stella-ai/tracegraph/internal/content"
	"github.com/stella-ai/tracegraph/internal/graph"
	"github.com/stella-ai/tracegraph/internal/layout"
	"github.com/stella-ai/tracegraph/internal/logging"
	"github.com/stella-ai/tracegraph/internal/metrics"
	"github.com/stella-ai/tracegraph/internal/normalize"
	"github.com/stella-ai/tracegraph/internal/tracefetch"
	"github.com/stella-ai/tracegraph/pkg/schema"
)

// Graph sources reported in metadata.
const (
	SourceTrace    = "trace"
	SourceLegacy   = "legacy"
	SourceFallback = "fallback"
)

// Request describes one graph rendering request.
type Request struct {
	// Raw is the legacy tool-call input: a JSON-encoded array, a decoded
	// []any, or an already-canonical []schema.ToolInvocation. May be nil
	// when SessionID is set.
	Raw any
	// SessionID selects an external trace to fetch. When the fetch fails
	// or finds nothing, Raw is used as fallback input.
	SessionID string
	// CurrentStep is the animation cursor; graph.WholeRun (-1) renders
	// the completed run.
	CurrentStep int
	// Language is the display language (fr/en); it never changes topology
	// or layout.
	Language string
	// UserQuery optionally carries the user's question for agent-node
	// content.
	UserQuery string
	// DisableCache bypasses the memo table, e.g. when re-fetching a
	// just-completed run.
	DisableCache bool
}

// Pipeline is the transformer composition root.
type Pipeline struct {
	normalizer *normalize.Normalizer
	builder    *graph.Builder
	extractor  *content.Extractor
	fetcher    *tracefetch.Client
	cache      *Cache
	logger     *slog.Logger
}

// Config wires a Pipeline. Catalog, Routing and Cache fall back to
// defaults; Fetcher may be nil for purely local rendering.
type Config struct {
	Catalog *schema.StageCatalog
	Routing schema.RoutingTable
	Fetcher *tracefetch.Client
	Cache   *Cache
	Logger  *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Catalog == nil {
		cfg.Catalog = schema.DefaultStageCatalog()
	}
	if cfg.Routing == nil {
		cfg.Routing = schema.DefaultRouting()
	}
	if cfg.Cache == nil {
		cfg.Cache = NewCache(DefaultCacheSize, DefaultCacheTTL)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	normalizer, err := normalize.New()
	if err != nil {
		return nil, fmt.Errorf("pipeline: build normalizer: %w", err)
	}

	return &Pipeline{
		normalizer: normalizer,
		builder:    graph.NewBuilder(cfg.Catalog, cfg.Routing, cfg.Logger),
		extractor:  content.NewExtractor(cfg.Logger),
		fetcher:    cfg.Fetcher,
		cache:      cfg.Cache,
		logger:     cfg.Logger,
	}, nil
}

// Render runs the full pipeline for one request. It never returns an
// error or panics to the caller: malformed input yields the fallback
// placeholder graph, identified by metadata.Source.
func (p *Pipeline) Render(ctx context.Context, req Request) (out *schema.GraphData) {
	start := time.Now()
	lang := content.NormalizeLang(req.Language)
	ctx = logging.WithSessionID(ctx, req.SessionID)

	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "graph pipeline panicked, returning fallback graph",
				"panic", fmt.Sprint(r))
			out = p.fallbackGraph(lang, req.CurrentStep, "internal rendering failure")
		}
		metrics.GraphBuilt(out.Metadata.Source, time.Since(start))
	}()

	raw, source, fetchWarnings := p.resolveInput(ctx, req)

	res, err := p.normalizer.Normalize(raw)
	if err != nil {
		p.logger.WarnContext(ctx, "input rejected, returning fallback graph", "error", err)
		return p.fallbackGraph(lang, req.CurrentStep, err.Error())
	}
	warnings := append(fetchWarnings, res.Warnings...)

	sig := signature(res.Invocations, req.CurrentStep, lang, req.UserQuery)
	if !req.DisableCache {
		if cached, ok := p.cache.Get(sig); ok {
			metrics.CacheOp("hit")
			cached.Metadata.FromCache = true
			// Fetch warnings belong to this call, not the cached build.
			cached.Metadata.Warnings = append(cached.Metadata.Warnings, fetchWarnings...)
			return cached
		}
		metrics.CacheOp("miss")
	} else {
		metrics.CacheOp("bypass")
	}

	topo := p.builder.Build(res.Invocations, res.Structure)
	states := graph.ComputeStates(topo, res.Invocations, req.CurrentStep)
	topo.Edges = graph.Consolidate(topo.Edges, p.logger)
	p.extractor.Annotate(topo, res.Invocations, content.Options{
		Language:  lang,
		UserQuery: req.UserQuery,
	})
	canvas := layout.Apply(topo)

	g := &schema.GraphData{
		Nodes:      topo.Nodes,
		Edges:      topo.Edges,
		NodeStates: states,
		Canvas:     canvas,
		Metadata: schema.GraphMetadata{
			GraphID:     uuid.NewString(),
			ThreadID:    res.ThreadID,
			Source:      source,
			Language:    lang,
			CurrentStep: req.CurrentStep,
			NodeCount:   len(topo.Nodes),
			EdgeCount:   len(topo.Edges),
			Warnings:    warnings,
		},
	}

	p.cache.Add(sig, g)
	return g
}

// resolveInput picks the trace payload when a session is given and the
// fetch succeeds, otherwise the legacy raw input. Fetch failures are
// demoted to warnings; the pipeline always has something to normalize.
func (p *Pipeline) resolveInput(ctx context.Context, req Request) (any, string, []string) {
	if req.SessionID == "" || p.fetcher == nil {
		return req.Raw, SourceLegacy, nil
	}

	trace, err := p.fetcher.Fetch(ctx, req.SessionID)
	if err == nil {
		return trace, SourceTrace, nil
	}

	if err == tracefetch.ErrNoTrace {
		p.logger.DebugContext(ctx, "no trace for session, using legacy input")
		return req.Raw, SourceLegacy, nil
	}

	p.logger.WarnContext(ctx, "trace fetch failed, using legacy input", "error", err)
	return req.Raw, SourceLegacy, []string{fmt.Sprintf("trace fetch: %s", err.Error())}
}

// fallbackGraph is the minimal start/end graph returned for input the
// normalizer cannot accept: two nodes, one edge, explanatory placeholder
// content. The UI always has something to render.
func (p *Pipeline) fallbackGraph(lang string, currentStep int, reason string) *schema.GraphData {
	topo := graph.NewTopology()
	topo.AddNode(schema.Node{
		ID:         schema.StageStart,
		Kind:       schema.NodeKindStart,
		IsExecuted: true,
		IsActive:   true,
	})
	topo.AddNode(schema.Node{
		ID:         schema.StageEnd,
		Kind:       schema.NodeKindEnd,
		IsExecuted: true,
		IsActive:   true,
	})
	topo.Edges = []schema.Edge{{
		From:          schema.StageStart,
		To:            schema.StageEnd,
		Condition:     "fallback",
		IsExecuted:    true,
		IsActive:      true,
		OriginalCount: 1,
	}}
	p.extractor.Annotate(topo, nil, content.Options{Language: lang})
	canvas := layout.Apply(topo)

	return &schema.GraphData{
		Nodes: topo.Nodes,
		Edges: topo.Edges,
		NodeStates: schema.NodeStates{
			ExecutedNodes: []string{schema.StageEnd, schema.StageStart},
		},
		Canvas: canvas,
		Metadata: schema.GraphMetadata{
			GraphID:     uuid.NewString(),
			Source:      SourceFallback,
			Language:    lang,
			CurrentStep: currentStep,
			NodeCount:   len(topo.Nodes),
			EdgeCount:   len(topo.Edges),
			Warnings:    []string{reason},
		},
	}
}
