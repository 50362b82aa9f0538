package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"caredesk/internal/actor"
	beneficiaryhandler "caredesk/internal/beneficiary/handler"
	branchhandler "caredesk/internal/branch/handler"
	"caredesk/internal/platform/config"
	"caredesk/internal/platform/httpserver"
	"caredesk/internal/platform/logger"
	"caredesk/internal/platform/metrics"
	"caredesk/pkg/platform/httputil"
	"caredesk/pkg/platform/middleware/metadata"
	"caredesk/pkg/platform/middleware/request"
	"caredesk/pkg/platform/middleware/requesttime"
)

const shutdownGrace = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		slog.Error("caredesk stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	srv := httpserver.New(cfg.Addr, newRouter(cfg, log, deps))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, shutdownGrace, log)
	})
	if deps.consumer != nil {
		g.Go(func() error {
			log.Info("reciprocal consumer started", "topic", cfg.Kafka.Topic)
			if err := deps.consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func newRouter(cfg config.Server, log *slog.Logger, deps *dependencies) http.Handler {
	httpMetrics := metrics.New()

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(request.Timeout(cfg.RequestTimeout))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.ContentTypeJSON)
	r.Use(httpMetrics.Latency)

	r.Get("/health", deps.health)
	r.Handle("/metrics", metrics.Handler())

	var verifier actor.TokenVerifier
	if cfg.JWTSigningKey != "" {
		verifier = actor.NewVerifier(cfg.JWTSigningKey, cfg.JWTIssuer)
	}
	if cfg.ActorHeadersTrusted {
		log.Warn("actor headers are trusted; run only behind the gateway")
	}

	r.Group(func(r chi.Router) {
		r.Use(actor.Middleware(verifier,
			actor.WithTrustedHeaders(cfg.ActorHeadersTrusted),
			actor.WithLogger(log),
		))
		branchhandler.New(deps.branches, log).Register(r)
		beneficiaryhandler.New(deps.beneficiaries, log).Register(r)
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (d *dependencies) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK
	check := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			return
		}
		resp.Checks[name] = "ok"
	}
	if d.db != nil {
		check("postgres", d.db.PingContext)
	}
	if d.redis != nil {
		check("redis", d.redis.Health)
	}
	if d.kafka != nil {
		check("kafka", d.kafka.Producer.Ping)
	}
	httputil.WriteJSON(w, status, resp)
}
