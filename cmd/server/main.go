package main

import (
	"context"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/clipbingo/clip-bingo-backend/internal/config"
	"github.com/clipbingo/clip-bingo-backend/internal/httpapi"
	"github.com/clipbingo/clip-bingo-backend/internal/hub"
	"github.com/clipbingo/clip-bingo-backend/internal/room"
	"github.com/clipbingo/clip-bingo-backend/internal/store"
	"github.com/clipbingo/clip-bingo-backend/internal/tracks"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var st store.Store
	if cfg.DatabaseURL != "" {
		g, err := store.OpenGorm(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("open database", zap.Error(err))
		}
		st = g
	} else {
		logger.Info("no DATABASE_URL set, event state is in-memory only")
		st = store.NewMemory()
	}

	// The playback/catalog provider is an external collaborator; the
	// static one here serves local dev until a real integration is wired.
	provider := &tracks.Static{}

	ctx := context.Background()
	h := hub.NewHub(ctx, cfg.Room, room.Deps{
		Store:    st,
		Provider: provider,
		Logger:   logger,
	})

	handler := httpapi.SetupRoutes(h, logger)

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}
