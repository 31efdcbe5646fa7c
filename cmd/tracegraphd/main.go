package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stella-ai/tracegraph/internal/logging"
	"github.com/stella-ai/tracegraph/internal/metrics"
	"github.com/stella-ai/tracegraph/internal/pipeline"
	"github.com/stella-ai/tracegraph/internal/tracefetch"
	"github.com/stella-ai/tracegraph/internal/transport/httpapi"
	"github.com/stella-ai/tracegraph/pkg/mcp"
)

func main() {
	var (
		addr         = flag.String("addr", ":8090", "HTTP listen address")
		traceURL     = flag.String("trace-url", "", "base URL of the tracing service (empty disables trace fetching)")
		fetchTimeout = flag.Duration("fetch-timeout", tracefetch.DefaultTimeout, "timeout for one trace fetch")
		cacheSize    = flag.Int("cache-size", pipeline.DefaultCacheSize, "graph cache capacity")
		cacheTTL     = flag.Duration("cache-ttl", pipeline.DefaultCacheTTL, "graph cache entry TTL")
		mcpMode      = flag.Bool("mcp", false, "serve MCP tools on stdio instead of HTTP")
	)
	flag.Parse()

	logger := logging.NewLogger()
	metrics.Init()

	var fetcher *tracefetch.Client
	if *traceURL != "" {
		fetcher = tracefetch.NewClient(*traceURL, *fetchTimeout, logger)
	}

	p, err := pipeline.New(pipeline.Config{
		Fetcher: fetcher,
		Cache:   pipeline.NewCache(*cacheSize, *cacheTTL),
		Logger:  logger,
	})
	if err != nil {
		logger.Error("pipeline init failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *mcpMode {
		logger.Info("serving MCP tools on stdio")
		srv := mcp.NewGraphServer(mcp.GraphServerDeps{Pipeline: p, Logger: logger})
		if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("mcp server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	api := httpapi.NewServer(p, logger)
	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("tracegraph listening", "addr", *addr, "trace_url", *traceURL)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
