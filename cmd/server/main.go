package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/openmic/karaoke/internal/adapters/http"
	"github.com/openmic/karaoke/internal/app"
	"github.com/openmic/karaoke/internal/config"
	"github.com/openmic/karaoke/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	rooms := core.NewRoomRegistry(ctx, cfg.NoticeTTL, cfg.RoomIdleTTL)
	registry := app.NewRegistry()
	relay := app.NewRelay(registry)
	limiter := app.NewSubmitLimiter(cfg.SubmitLimit, cfg.SubmitInterval)

	orch, err := app.NewOrchestrator(registry, rooms, relay, limiter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire orchestrator")
	}

	r, err := router.SetupRouter(ctx, cfg, orch)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up router")
	}
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("karaoke server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	rooms.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
