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

	"github.com/MatusOllah/slogcolor"

	"github.com/pluralchat/pluralchat-server/pkg/auth"
	"github.com/pluralchat/pluralchat-server/pkg/avatar"
	"github.com/pluralchat/pluralchat-server/pkg/config"
	"github.com/pluralchat/pluralchat-server/pkg/pluralkit"
	"github.com/pluralchat/pluralchat-server/pkg/routes"
	"github.com/pluralchat/pluralchat-server/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("error loading configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.Log.Level)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		slog.Error("error creating data directory", "error", err, "path", cfg.DataDir)
		os.Exit(1)
	}

	systemDB, err := store.OpenSystem(cfg.SystemDBPath())
	if err != nil {
		slog.Error("error opening system database", "error", err)
		os.Exit(1)
	}
	defer systemDB.Close()

	appDB, err := store.OpenApp(cfg.AppDBPath())
	if err != nil {
		slog.Error("error opening app database", "error", err)
		os.Exit(1)
	}
	defer appDB.Close()

	stores := store.NewStores(systemDB, appDB)

	sealKey, err := auth.LoadOrCreateKey(cfg.KeyFile)
	if err != nil {
		slog.Error("error loading seal key", "error", err)
		os.Exit(1)
	}

	thumbs := avatar.NewThumbnailCache(30 * time.Minute)
	defer thumbs.Stop()
	pipeline := avatar.New(cfg.AvatarDir, stores.Members, thumbs)
	syncer := pluralkit.NewSyncer(stores.Members, stores.Tokens)

	router := &routes.WebRouter{}
	router.Initialize(*cfg, stores, pipeline, thumbs, syncer, sealKey)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router.Handler(),
	}

	go func() {
		slog.Info("server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	syncer.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := slogcolor.DefaultOptions
	opts.Level = lvl
	slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, opts)))
}
