package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otherjamesbrown/meetchat/client"
	"github.com/otherjamesbrown/meetchat/config"
	"github.com/otherjamesbrown/meetchat/pkg/buildinfo"
	"github.com/otherjamesbrown/meetchat/pkg/db"
	"github.com/otherjamesbrown/meetchat/pkg/images"
	"github.com/otherjamesbrown/meetchat/pkg/logging"
	"github.com/otherjamesbrown/meetchat/pkg/observability"
	"github.com/otherjamesbrown/meetchat/pkg/tools"
)

// Engine bundles the dispatcher with the connections it was built on.
type Engine struct {
	Dispatcher *tools.Dispatcher
	Metrics    *observability.Metrics
	Tracer     *observability.Tracer
	Registry   *prometheus.Registry

	closers []func() error
}

// Close releases every connection the engine opened.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newEngine wires a dispatcher for the opened meeting. Redis and the remote
// analysis service are used when configured; when the analysis service cannot
// be reached, sentiment falls back to the local classifier and image
// generation is disabled.
func newEngine(ctx context.Context, cfg *config.CLIConfig, m *OpenedMeeting, logger logging.Logger) (*Engine, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e := &Engine{
		Metrics:  observability.NewMetrics(reg),
		Tracer:   observability.NewTracer(),
		Registry: reg,
	}
	toolCfg := tools.Config{
		Meetings: m.Store,
		Logger:   logger,
		Metrics:  e.Metrics,
		Tracer:   e.Tracer,
	}

	if m.Pool != nil {
		if err := db.RegisterPoolStats(reg, m.Pool, "meetchat"); err != nil {
			logger.Warn("Failed to register pool metrics", logging.Err(err))
		}
	}

	if cfg.Redis.IsConfigured() {
		rdb, err := connectToRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, rdb.Close)
		toolCfg.Images = images.NewRedisStore(rdb, logger)
	}

	if cfg.Analysis.IsConfigured() {
		grpcClient, err := client.ConnectFromConfig(ctx, cfg, logger)
		if err != nil {
			logger.Warn("Analysis service unavailable, using local sentiment and disabling images",
				logging.F("address", cfg.Analysis.Address),
				logging.Err(err))
		} else {
			e.closers = append(e.closers, grpcClient.Close)
			toolCfg.Sentiment = client.NewSentimentClient(grpcClient)
			toolCfg.ImageGenerator = client.NewImageClient(grpcClient)
		}
	}

	d, err := tools.NewDispatcher(toolCfg)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	e.Dispatcher = d
	return e, nil
}

// metricsMux serves Prometheus metrics and build info.
func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/version", buildinfo.Handler(buildinfo.ServiceName))
	return mux
}

// startMetricsServer serves metricsMux on addr until the returned stop
// function is called.
func startMetricsServer(addr string, reg *prometheus.Registry, logger logging.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           metricsMux(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", logging.Err(err))
		}
	}()
	logger.Info("Serving metrics", logging.F("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
