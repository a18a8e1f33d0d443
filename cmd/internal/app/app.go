// Package app wires the consent server runtime: config, logging, the pairing
// driver, HTTP routes and the realtime gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/consent"
	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/pairing"
	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/proximity"
	"github.com/Jeshuah71/consent-proximity-vr/cmd/internal/realtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// App owns the server runtime and its dependencies.
type App struct {
	cfg Config
	log Logger

	space   *proximity.Space
	reg     *pairing.Registry
	driver  *pairing.Driver
	gw      *realtime.Gateway
	metrics *prometheus.Registry

	ready atomic.Bool
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	}

	a := &App{cfg: cfg, log: log, space: proximity.NewSpace()}

	var opts []pairing.Option
	if cfg.MetricsEnabled {
		a.metrics = prometheus.NewRegistry()
		a.metrics.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := pairing.NewMetrics(a.metrics)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, pairing.WithMetrics(m))
	}

	reg, err := pairing.New(log, cfg.Consent, consent.NewSystemClock(), a.space, opts...)
	if err != nil {
		return nil, err
	}
	a.reg = reg

	a.driver, err = pairing.NewDriver(reg, a.space, pairing.DriverConfig{
		Interval:         cfg.TickInterval,
		RetainTerminated: cfg.RetainTerminated,
		RetainIdle:       cfg.RetainIdle,
	})
	if err != nil {
		return nil, err
	}

	a.gw, err = realtime.NewGateway(log, cfg.Gateway, reg, a.space)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.registerHTTP(mux)
	return WithRecover(WithRequestLogging(mux, a.log), a.log)
}

// Run starts the HTTP server and the pairing driver and blocks until ctx is
// cancelled or either fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"ws_url", wsBaseURL(base)+"/ws",
		"max_range_m", a.cfg.Consent.MaxRangeMeters,
		"request_timeout", a.cfg.Consent.RequestTimeout,
		"metrics", a.metrics != nil)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.ready.Store(true)
		defer a.ready.Store(false)
		return a.driver.Run(gctx)
	})

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Hijacked websocket connections are not tracked by Shutdown.
		a.gw.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	err := g.Wait()
	a.log.Info("server.stopped")
	return err
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
