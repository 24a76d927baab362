package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"laughprop/config"
	"laughprop/dispatcher"
	"laughprop/log"
	"laughprop/obj"
	"laughprop/scripts"
	"laughprop/session"
	"laughprop/transport"
)

// Cmd is the server subcommand.
var Cmd = &cobra.Command{
	Use:   "server",
	Short: "Start the laughprop server",
	Long:  "Start the laughprop WebSocket session server.",
	Run:   runServer,
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	log.SetLevel(cfg.LogLevel)
	if cfg.DevMode {
		log.SetDebug(true)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Error("sentry init failed, not forwarding logs", "error", err)
		} else {
			log.EnableSentry()
		}
	}

	games, err := loadGames(cfg)
	if err != nil {
		log.Fatal("failed to load scripts", "error", err)
	}
	log.Info("loaded mini-games", "count", len(games))

	disp, err := dispatcher.New(dispatcher.Config{
		Addresses:      cfg.UpstreamAddrs,
		TextModel:      cfg.TextModel,
		DepthModel:     cfg.DepthModel,
		Sampler:        cfg.Sampler,
		PlaceholderDir: cfg.PlaceholderDir,
	})
	if err != nil {
		log.Fatal("failed to start dispatcher", "error", err)
	}
	defer disp.Close()

	router := session.NewRouter(games, disp)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", transport.NewHandler(router))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	log.Info("starting server", "addr", addr, "upstream_mode", cfg.UpstreamMode, "dev_mode", cfg.DevMode)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server stopped unexpectedly", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func loadGames(cfg *config.Config) (map[string]obj.Script, error) {
	if cfg.ScriptDir == "" {
		return scripts.DefaultScripts()
	}
	return scripts.LoadDir(cfg.ScriptDir)
}
