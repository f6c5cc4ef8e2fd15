package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/hookgate/internal/config"
	"github.com/mattjoyce/hookgate/internal/dispatch"
	"github.com/mattjoyce/hookgate/internal/events"
	"github.com/mattjoyce/hookgate/internal/lock"
	"github.com/mattjoyce/hookgate/internal/log"
	"github.com/mattjoyce/hookgate/internal/server"
	"github.com/mattjoyce/hookgate/internal/tui"
)

const version = "0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "serve":
		os.Exit(runServe(args))
	case "watch":
		os.Exit(runWatch(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "version":
		fmt.Printf("hookgate version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`hookgate - Encrypted callback webhook gateway

Usage:
  hookgate <command> [flags]

Commands:
  serve             Start the callback gateway in foreground
  watch             Live terminal monitor of a running gateway
  config lock       Authorize current config (update integrity hashes)
  config check      Validate config syntax, credentials, and integrity
  version           Show version information
  help              Show this help message
`)
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")

	if cfg.Service.PIDFile != "" {
		l, err := lock.Acquire(cfg.Service.PIDFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Startup error: %v\n", err)
			return 1
		}
		defer l.Release()
	}

	hub := events.NewHub(cfg.Service.ActivityBuffer)
	registry := dispatch.NewRegistry()

	srv, err := server.New(cfg, registry, hub)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("hookgate starting", "version", version, "config", *configPath)
	if err := srv.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("server exited", "error", err)
		return 1
	}

	logger.Info("hookgate stopped")
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	addr := fs.String("addr", "http://"+config.DefaultListen, "base URL of a running gateway")
	token := fs.String("token", "", "bearer token for a guarded /status endpoint")
	fs.Parse(args)

	if err := tui.Run(*addr, *token); err != nil {
		fmt.Fprintf(os.Stderr, "watch failed: %v\n", err)
		return 1
	}
	return 0
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: hookgate config <lock|check> [flags]")
		return 1
	}

	action := args[0]
	fs := flag.NewFlagSet("config "+action, flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to configuration file")
	fs.Parse(args[1:])

	switch action {
	case "lock":
		// Validate before pinning hashes; a lock over a broken config
		// would only freeze the breakage.
		if _, err := config.LoadUnverified(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			return 1
		}
		if err := config.Lock(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Lock failed: %v\n", err)
			return 1
		}
		fmt.Printf("Locked %s\n", *configPath)
		return 0

	case "check":
		if _, err := config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			return 1
		}
		fmt.Printf("OK %s\n", *configPath)
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}
