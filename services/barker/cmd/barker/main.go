package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guttervoice/internal/ratelimit"
	"guttervoice/internal/servicetoken"
	"guttervoice/internal/util"
	"guttervoice/services/barker/internal/app"
	"guttervoice/services/barker/internal/config"
	"guttervoice/services/barker/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	util.InitLogger(cfg.LogLevel, "barker")

	appCore, err := app.New(app.Config{
		GenerationProvider:    cfg.GenerationProvider,
		GenerationBaseURL:     cfg.GenerationBaseURL,
		GenerationAPIKey:      cfg.GenerationAPIKey,
		GenerationModel:       cfg.GenerationModel,
		GenerationTemperature: cfg.GenerationTemperature,
		BarkPoolTarget:        cfg.BarkPoolTarget,
		BarkPoolLow:           cfg.BarkPoolLow,
		GraffitiPoolTarget:    cfg.GraffitiPoolTarget,
		GraffitiPoolLow:       cfg.GraffitiPoolLow,
		RefillTickSeconds:     cfg.RefillTickSeconds,
		DeathQuipTimeoutMS:    cfg.DeathQuipTimeoutMS,
		CommentaryTimeoutMS:   cfg.CommentaryTimeoutMS,
		RedisAddr:             cfg.RedisAddr,
		RedisPassword:         cfg.RedisPassword,
		DatabaseURL:           cfg.DatabaseURL,
		RabbitMQURL:           cfg.RabbitMQURL,
		MinioEndpoint:         cfg.MinioEndpoint,
		MinioAccessKey:        cfg.MinioAccessKey,
		MinioSecretKey:        cfg.MinioSecretKey,
		MinioBucket:           cfg.MinioBucket,
		MinioUseSSL:           cfg.MinioUseSSL,
		ExportCron:            cfg.ExportCron,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	var tokenVerifier *servicetoken.Verifier
	if cfg.ServiceTokenSecret != "" {
		tokenVerifier, err = servicetoken.NewVerifier("barker", cfg.ServiceTokenSecret, cfg.ServiceTokenIssuers, servicetoken.DefaultLeeway)
		if err != nil {
			util.Fatal("failed to init service token verifier", "err", err)
		}
	}

	var quipLimiter *ratelimit.FixedWindowLimiter
	if cfg.RateLimitPerMinute > 0 && appCore.Redis() != nil {
		quipLimiter, err = ratelimit.NewFixedWindowLimiter(appCore.Redis(), "barker:quips", cfg.RateLimitPerMinute, time.Minute)
		if err != nil {
			util.Fatal("failed to init rate limiter", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCore.Start(ctx)
	defer appCore.Stop()

	httpServer := server.New(server.Config{
		App:           appCore,
		TokenVerifier: tokenVerifier,
		AdminKeyHash:  cfg.AdminKeyHash,
		QuipLimiter:   quipLimiter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("barker server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "err", err)
	}
}
