package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appconfig "github.com/kmorozova/mealscan/internal/config"
	"github.com/kmorozova/mealscan/internal/database"
	"github.com/kmorozova/mealscan/internal/redis"
	"github.com/kmorozova/mealscan/internal/repository"
	"github.com/kmorozova/mealscan/internal/server"
	"github.com/kmorozova/mealscan/internal/storage"
	httpapi "github.com/kmorozova/mealscan/internal/transport/http"
	"github.com/kmorozova/mealscan/internal/vision"
)

func main() {
	cfg := appconfig.Load()
	slog.Info("starting mealscan", "addr", cfg.HTTPAddr)

	if cfg.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY is empty, scan requests will fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	storageService, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}
	slog.Info("storage initialized", "type", storage.StorageType(cfg))

	redisService, err := redis.New(cfg.RedisURL)
	if err != nil {
		slog.Error("failed to connect to Redis", "err", err)
		os.Exit(1)
	}
	defer redisService.Close()

	visionClient := vision.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	repo := repository.New(db)

	handlers := &httpapi.Handlers{
		Vision:  visionClient,
		Repo:    repo,
		Storage: storageService,
		Redis:   redisService,
		Config:  cfg,
	}
	r := server.NewRouter(handlers)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	slog.Info("shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
	cancel()
}
