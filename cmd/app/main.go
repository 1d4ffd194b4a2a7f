package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/pdftools/internal/config"
	"github.com/local/pdftools/internal/limiter"
	logpkg "github.com/local/pdftools/internal/logger"
	"github.com/local/pdftools/internal/metrics"
	"github.com/local/pdftools/internal/pdfops"
	"github.com/local/pdftools/internal/statuscheck"
	"github.com/local/pdftools/internal/storage"
	"github.com/local/pdftools/internal/tools"
	"github.com/local/pdftools/internal/web"
)

const (
	sweepEvery = 10 * time.Minute
	tempMaxAge = time.Hour
)

func main() {
	cfg := cfgpkg.Load()

	// Init logging
	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	lim, err := limiter.New(limiter.Options{
		RedisURL:      cfg.Limits.RedisURL,
		MaxInflight:   cfg.Limits.MaxConcurrentOps,
		RatePerMinute: cfg.Limits.RateLimitPerMinute,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init limiter")
	}
	defer lim.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Result links
	var results storage.Store
	if cfg.Results.Backend != "none" {
		results, err = storage.New(ctx, storage.Options{
			Backend:       cfg.Results.Backend,
			Dir:           cfg.Results.Dir,
			RedisURL:      cfg.Results.RedisURL,
			S3Bucket:      cfg.Results.S3Bucket,
			S3Prefix:      cfg.Results.S3Prefix,
			S3Region:      cfg.Results.S3Region,
			S3AccessKey:   cfg.Results.S3AccessKey,
			S3SecretKey:   cfg.Results.S3SecretKey,
			EncryptionKey: cfg.Results.EncryptionKey,
		})
		if err != nil {
			log.Fatal().Err(err).Str("backend", cfg.Results.Backend).Msg("failed to init results store")
		}
		defer results.Close()
		log.Info().Str("backend", results.Backend()).Dur("ttl", cfg.Results.TTL).Msg("result links enabled")
	}

	svc := tools.New(tools.Options{
		Limiter:        lim,
		Store:          results,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		MaxRenderPages: cfg.Limits.MaxRenderPages,
		DefaultDPI:     cfg.Limits.DefaultDPI,
		ResultTTL:      cfg.Results.TTL,
		TrustProxy:     cfg.Limits.TrustProxy,
	})

	pages, err := web.New(web.Options{
		TemplateDir:  cfg.Server.TemplateDir,
		Username:     cfg.Server.WebUsername,
		Password:     cfg.Server.WebPassword,
		SessionTTL:   cfg.Server.SessionTTL,
		SecureCookie: cfg.Server.SecureCookie,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load templates")
	}

	var redisPing statuscheck.Pinger
	if cfg.Limits.RedisURL != "" && cfg.Limits.RateLimitPerMinute > 0 {
		redisPing = lim
	}
	var resultsPing statuscheck.ResultStore
	if results != nil {
		resultsPing = results
	}
	checker := statuscheck.New(statuscheck.Options{Redis: redisPing, Results: resultsPing})

	api := http.NewServeMux()
	svc.RegisterRoutes(api)
	api.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		s := checker.Summary(r.Context())
		status := http.StatusOK
		if !s.OK {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, s)
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", pages.Protect(api))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())
	pages.RegisterRoutes(mux)

	go housekeeping(ctx, results, pages)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("shutdown complete")
}

// housekeeping expires local results, stale stamp images and login sessions
// until ctx is done.
func housekeeping(ctx context.Context, results storage.Store, pages *web.Web) {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if results != nil {
				storage.Sweep(ctx, results)
			}
			if n := pdfops.CleanupTemps("", tempMaxAge); n > 0 {
				log.Info().Int("removed", n).Msg("removed stale temp files")
			}
			if n := pages.PruneSessions(); n > 0 {
				log.Debug().Int("removed", n).Msg("pruned expired sessions")
			}
		}
	}
}
