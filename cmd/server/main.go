package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mr-valente/quacktuaries/internal/config"
	"github.com/mr-valente/quacktuaries/internal/database"
	"github.com/mr-valente/quacktuaries/internal/modules/history"
	historyhandlers "github.com/mr-valente/quacktuaries/internal/modules/history/handlers"
	"github.com/mr-valente/quacktuaries/internal/modules/session"
	sessionhandlers "github.com/mr-valente/quacktuaries/internal/modules/session/handlers"
	systemhandlers "github.com/mr-valente/quacktuaries/internal/modules/system/handlers"
	"github.com/mr-valente/quacktuaries/internal/scheduler"
	"github.com/mr-valente/quacktuaries/internal/server"
	"github.com/mr-valente/quacktuaries/pkg/logger"
)

func main() {
	startupTime := time.Now().UTC()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info"})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Msg("Starting Quacktuaries")

	// Initialize the game database (audit trail), ledger profile: the audit
	// trail is append-only and favors durability over write throughput.
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "game.db"),
		Profile: database.ProfileLedger,
		Name:    "game",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Wire the engine: audit repository and live hub -> session registry. The
	// hub's hook is installed per session at creation, so every session is
	// watched from the moment it becomes reachable.
	historyRepo := history.NewRepository(db, log)
	liveHub := sessionhandlers.NewLiveHub(log)
	registry := session.NewRegistry(session.RegistryOptions{
		Defaults:          cfg.Game.SessionConfig(),
		Presets:           config.DifficultyPresets,
		DefaultDifficulty: config.DefaultDifficulty,
		Recorder:          historyRepo,
		OnSessionChange:   liveHub.Notify,
		Log:               log,
	})

	// Background jobs: sweep expired sessions every 5 seconds so timed games
	// end even when nobody polls the timer.
	sched := scheduler.New(log)
	if err := sched.AddJob("@every 5s", scheduler.NewExpirySweepJob(registry, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register expiry sweep job")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP surface.
	srv := server.New(server.Config{
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
		Log:     log,
	},
		sessionhandlers.NewHandler(registry, liveHub, log),
		historyhandlers.NewHandler(historyRepo, registry, log),
		systemhandlers.NewHandler(db, registry, startupTime, log),
	)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Block until SIGINT or SIGTERM, then drain in-flight requests.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
