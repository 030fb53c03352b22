package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MatusOllah/slogcolor"

	"github.com/pluralchat/pluralchat-server/pkg/avatar"
	"github.com/pluralchat/pluralchat-server/pkg/config"
	"github.com/pluralchat/pluralchat-server/pkg/store"
)

// avatarsync downloads and normalizes every member avatar that still
// points at a remote URL. Useful after a large import, without keeping
// the server running.
func main() {
	timeout := flag.Duration("timeout", 10*time.Minute, "Overall time budget for the batch")
	flag.Parse()

	slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, slogcolor.DefaultOptions)))

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	systemDB, err := store.OpenSystem(cfg.SystemDBPath())
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer systemDB.Close()

	members := store.NewMembers(systemDB)
	all, err := members.GetAll()
	if err != nil {
		fmt.Printf("Error loading members: %v\n", err)
		os.Exit(1)
	}

	thumbs := avatar.NewThumbnailCache(time.Minute)
	defer thumbs.Stop()
	pipeline := avatar.New(cfg.AvatarDir, members, thumbs)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report := pipeline.SyncAll(ctx, all, func(done, total int) {
		fmt.Printf("\r%d/%d avatars processed", done, total)
	})
	fmt.Println()

	fmt.Printf("Candidates: %d\n", report.Candidates)
	fmt.Printf("Downloaded: %d\n", report.Downloaded)
	fmt.Printf("Unchanged:  %d\n", report.Unchanged)
	fmt.Printf("Blocked:    %d\n", report.Blocked)
	fmt.Printf("Failed:     %d\n", report.Failed)

	if report.Failed > 0 {
		os.Exit(1)
	}
}
