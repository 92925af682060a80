// gazed: eye-gaze interaction engine
// Serves the presentation session and accepts a browser tracker page over
// WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/click"
	"github.com/teslashibe/go-gaze/pkg/engine"
	"github.com/teslashibe/go-gaze/pkg/remote"
	"github.com/teslashibe/go-gaze/pkg/session"
	"github.com/teslashibe/go-gaze/pkg/web"
)

var (
	version    = "0.1.0"
	configPath = flag.String("config", "", "YAML config file (GAZE_CONFIG)")
	port       = flag.Int("port", 0, "HTTP server port, overrides config")
	debug      = flag.Bool("debug", false, "Enable debug logging and request logs")
	static     = flag.String("static", "", "Directory of presentation assets to serve")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *debug {
		cfg.Log.Level = "debug"
		cfg.Server.AccessLog = true
	}
	if *static != "" {
		cfg.Server.StaticDir = *static
	}

	log.Init(cfg.Log.Level, cfg.Log.Format)

	fmt.Println()
	fmt.Println("👁  gazed v" + version)
	fmt.Println("   Eye-gaze calibration and interaction")
	fmt.Println()

	tracker := remote.New(cfg.Remote, remote.WithLogger(log.Component("remote")))

	var srv *web.Server
	eng := engine.New(tracker, cfg.Engine,
		engine.WithLogger(log.Component("engine")),
		engine.WithOnState(func(s session.Snapshot) { srv.PublishState(s) }),
		engine.WithOnClick(func(ev click.Event) {
			log.Info("gaze click", "region", ev.RegionID, "id", ev.ID)
			srv.PublishClick(ev)
		}),
	)
	srv = web.NewServer(cfg.Server, eng, tracker,
		web.WithLogger(log.Component("web")),
		web.WithVersion(version),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engineDone := make(chan error, 1)
	go func() { engineDone <- eng.Run(ctx) }()

	go func() {
		log.Info("starting server",
			"session", fmt.Sprintf("ws://localhost:%d/ws/session", cfg.Server.Port),
			"tracker", fmt.Sprintf("ws://localhost:%d/ws/tracker", cfg.Server.Port),
			"health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port))
		if err := srv.Start(ctx); err != nil {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("shutting down")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", "error", err)
	}
	select {
	case err := <-engineDone:
		if err != nil {
			log.Error("engine error", "error", err)
		}
	case <-shutdownCtx.Done():
		log.Warn("engine did not stop in time")
	}
	log.Info("goodbye")
}
