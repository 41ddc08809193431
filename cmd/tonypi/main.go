// TonyPi voice control: wake phrase, spoken dialogue and tool calls that
// move the robot, look through its camera and search the web.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/teslashibe/go-tonypi/internal/config"
	"github.com/teslashibe/go-tonypi/internal/log"
	"github.com/teslashibe/go-tonypi/pkg/engine"
	"github.com/teslashibe/go-tonypi/pkg/tonypi"
	"github.com/teslashibe/go-tonypi/pkg/web"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("TONYPI_CONFIG"), "YAML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	dryRun := flag.Bool("dry-run", false, "Log robot actions instead of running them")
	dashboard := flag.Bool("web", false, "Serve the status dashboard")
	static := flag.String("web-static", "", "Directory served at / by the dashboard")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 2
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if *dryRun {
		cfg.Robot.DryRun = true
	}
	if *dashboard {
		cfg.Web.Enabled = true
	}

	var (
		srv   *web.Server
		extra []slog.Handler
	)
	if cfg.Web.Enabled {
		srv, err = web.New(web.Config{Port: cfg.Web.Port, StaticDir: *static})
		if err != nil {
			fmt.Fprintf(os.Stderr, "dashboard: %v\n", err)
			return 2
		}
		extra = append(extra, srv.LogHandler(slog.LevelInfo))
	}
	log.Init(cfg.LogLevel, extra...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := tonypi.New(cfg, tonypi.WithDashboard(srv), tonypi.WithLogger(log.L()))
	defer app.Shutdown()

	if err := app.Init(ctx); err != nil {
		if errors.Is(err, engine.ErrHardwareInit) {
			log.Error("hardware initialization failed", "error", err)
		} else {
			log.Error("initialization failed", "error", err)
		}
		return 1
	}

	go watchEnter(os.Stdin, app.CancelRecording)

	err = app.Run(ctx)
	switch {
	case errors.Is(err, engine.ErrGoodbye):
		log.Info("goodbye")
		return 0
	case ctx.Err() != nil:
		log.Info("interrupted")
		return 0
	case err != nil:
		log.Error("runtime error", "error", err)
		return 1
	}
	return 0
}

// watchEnter calls fn for every line read from r. Pressing Enter ends the
// recording in progress.
func watchEnter(r io.Reader, fn func()) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fn()
	}
}
