// Clinic interpreter - speaks with a Direct Line agent in the patient's language.
// Browser audio is recognized, translated to English, answered by the agent,
// translated back and spoken.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-interpreter/internal/config"
	"github.com/teslashibe/go-interpreter/internal/log"
	"github.com/teslashibe/go-interpreter/pkg/app"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	log.Init(cfg.Logging.Level, cfg.Logging.Format)

	a, err := app.New(cfg)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Init(ctx); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		a.Shutdown()
		os.Exit(1)
	}
}

// parseFlags loads the config file named by -config and applies flag
// overrides on top of the environment.
func parseFlags() (*config.Config, error) {
	path := flag.String("config", "", "Path to YAML config file")
	port := flag.String("port", "", "HTTP port (overrides PORT env var)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		return nil, err
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
