package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ssd-technologies/medialink/internal/bot"
	"github.com/ssd-technologies/medialink/internal/config"
	"github.com/ssd-technologies/medialink/internal/download"
	"github.com/ssd-technologies/medialink/internal/pipeline"
	"github.com/ssd-technologies/medialink/internal/registry"
	"github.com/ssd-technologies/medialink/internal/storage"
	"github.com/ssd-technologies/medialink/internal/toolchain"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	tc := toolchain.NewFFmpeg()
	if err := tc.Check(); err != nil {
		log.Fatalf("toolchain: %v", err)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		log.Fatalf("work dir: %v", err)
	}

	db, err := storage.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	settings, err := config.LoadSettings(db)
	if err != nil {
		log.Fatalf("settings: %v", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram: %v", err)
	}
	log.Printf("authorized as @%s, %d admins", api.Self.UserName, len(cfg.AdminIDs))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b := bot.New(bot.Deps{
		API:      api,
		Username: api.Self.UserName,
		Token:    cfg.BotToken,
		Config:   cfg,
		Settings: settings,
		DB:       db,
		Registry: registry.New(db),
		Engine:   download.NewEngine(),
		Pipeline: pipeline.New(tc),
		Fallback: fallbackFetcher(cfg),
		WorkDir:  cfg.WorkDir,
	})

	// Leftovers from a previous crash.
	if _, err := b.SweepWorkDir(); err != nil {
		log.Printf("startup sweep: %v", err)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("metrics on %s", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Printf("metrics listener: %v", err)
		}
	}()

	b.Run(ctx)

	api.StopReceivingUpdates()
	if _, err := b.SweepWorkDir(); err != nil {
		log.Printf("shutdown sweep: %v", err)
	}
	log.Println("shut down")
}

// fallbackFetcher builds the large-file helper from FALLBACK_FETCH_CMD,
// or nil when none is configured.
func fallbackFetcher(cfg *config.Config) download.FallbackFetcher {
	if cfg.FallbackCommand == "" {
		return nil
	}
	fields := strings.Fields(cfg.FallbackCommand)
	return &download.ExecFetcher{Command: fields[0], Args: fields[1:]}
}
