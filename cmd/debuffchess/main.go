package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/justinabrahms/debuffchess/internal/config"
	"github.com/justinabrahms/debuffchess/internal/debuff"
	"github.com/justinabrahms/debuffchess/internal/game"
	"github.com/justinabrahms/debuffchess/internal/session"
	"github.com/justinabrahms/debuffchess/internal/transport"
	"github.com/justinabrahms/debuffchess/internal/web"
)

func main() {
	// Parse command line flags
	var (
		showHelp   bool
		configPath string
	)
	flag.BoolVar(&showHelp, "help", false, "Show help information")
	flag.BoolVar(&showHelp, "h", false, "Show help information")
	flag.StringVar(&configPath, "config", "", "Path to a config file")
	flag.Parse()

	if showHelp {
		showHelpMessage()
		return
	}

	// Setup logging
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load config
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Development.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid log level")
	}
	if cfg.Development.Debug {
		level = zerolog.DebugLevel
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.SetGlobalLevel(level)

	registry := debuff.Default()
	gameOpts := []game.Option{
		game.WithRegistry(registry),
		game.WithLogger(log.Logger.With().Str("component", "game").Logger()),
	}
	if cfg.Game.Seed != 0 {
		gameOpts = append(gameOpts, game.WithRand(rand.New(rand.NewSource(cfg.Game.Seed))))
	}

	factory, err := transport.NewFactory(cfg.Peer, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create transport")
	}

	synchronizer := session.New(game.New(gameOpts...), factory,
		session.WithLogger(log.Logger.With().Str("component", "session").Logger()),
		session.WithNegotiationTimeout(cfg.Peer.NegotiationTimeout),
	)
	hub := web.NewHub()
	synchronizer.SetHandler(hub.Broadcast)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go synchronizer.Run(ctx)
	go hub.Run(ctx)

	service := web.NewService(synchronizer, registry, cfg, hub)

	// Create server
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      service.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.Peer.NegotiationTimeout+5*time.Second > srv.WriteTimeout {
		// Offer and accept block until the handshake finishes
		srv.WriteTimeout = cfg.Peer.NegotiationTimeout + 5*time.Second
	}

	// Start server
	go func() {
		log.Info().Str("addr", srv.Addr).Str("transport", cfg.Peer.Transport).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stop()

	log.Info().Msg("Server exited")
}

func showHelpMessage() {
	fmt.Println(`Debuff Chess

DESCRIPTION:
    Two-player chess variant in which every move hands the opponent a
    debuff: a restriction on which pieces they may select or where those
    pieces may go on their next turn. Capturing the king wins.

    Players connect directly to each other. One player hosts and gets an
    offer string, the other pastes it in and gets an answer string, and the
    host pastes that back. The host plays white.

USAGE:
    debuffchess [OPTIONS]

OPTIONS:
    -h, --help       Show this help message
    -config PATH     Read configuration from PATH instead of ./config.yaml

CONFIGURATION:
    Settings come from config.yaml in ./ or ./config, then from
    DEBUFFCHESS_* environment variables (e.g. DEBUFFCHESS_SERVER_PORT).

    Example config.yaml:
        server:
          host: localhost
          port: 8080
          static_dir: ./web/static

        peer:
          transport: webrtc           # or websocket for LAN play
          ice_servers:
            - stun:stun.l.google.com:19302
          negotiation_timeout: 30s
          listen_addr: ":0"           # websocket transport only
          advertise_host: ""

        game:
          seed: 0                     # 0 seeds offers from the clock

        development:
          debug: false
          log_level: info

API ENDPOINTS:
    GET  /api/health               - Service health check
    GET  /api/state                - Current game and session state
    GET  /api/debuffs              - Debuff catalog
    GET  /api/history/{index}      - Board before history entry {index}
    POST /api/select               - Select or deselect a piece
    POST /api/deselect             - Drop the current selection
    POST /api/move                 - Move a piece
    POST /api/debuff               - Assign an offered debuff
    POST /api/reset                - Start a new match
    POST /api/leave                - Drop the connection
    POST /api/session/offer        - Host: create an offer
    POST /api/session/answer       - Join: answer an offer
    POST /api/session/accept       - Host: accept the answer
    GET  /ws                       - Live state updates

EXAMPLES:
    # Host a game
    curl -X POST http://localhost:8080/api/session/offer

    # Join with the host's offer
    curl -X POST http://localhost:8080/api/session/answer \
      -H "Content-Type: application/json" \
      -d '{"offer": "eyJ0eXBlIjoib2ZmZXIi..."}'

    # Play e2-e4
    curl -X POST http://localhost:8080/api/move \
      -H "Content-Type: application/json" \
      -d '{"from": [6,4], "to": [4,4]}'`)
}
