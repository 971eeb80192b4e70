// Package main is the entry point for the dip trading bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quanvu/dipbot/internal/alerting"
	"github.com/quanvu/dipbot/internal/compliance"
	"github.com/quanvu/dipbot/internal/config"
	"github.com/quanvu/dipbot/internal/engine"
	"github.com/quanvu/dipbot/internal/exchange"
	"github.com/quanvu/dipbot/internal/fillwait"
	"github.com/quanvu/dipbot/internal/ghost"
	"github.com/quanvu/dipbot/internal/metrics"
	"github.com/quanvu/dipbot/internal/reconcile"
	"github.com/quanvu/dipbot/internal/router"
)

// Version information (set by build flags).
var (
	Version   = "0.2.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "run":
		cmdRun(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Dip Bot - Execution-Safe Spot Order Pipeline

Usage:
  dipbot <command> [options]

Commands:
  run        Start the bot
  validate   Validate configuration file
  version    Show version information
  help       Show this help message

Examples:
  dipbot run --config config.yaml
  dipbot validate --config config.yaml

Use "dipbot <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("dipbot version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Exchange: %s (%d req/s)\n", cfg.Exchange.Type, cfg.Exchange.RateLimitPerSecond)
	fmt.Printf("  Symbols: %d\n", len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		fmt.Printf("    %s tick=%g step=%g min_notional=%g\n",
			s.Symbol, s.PriceTick, s.AmountStep, s.MinNotional)
	}
	fmt.Printf("  Fee buffer: %.4f\n", cfg.Compliance.FeeBuffer)
	fmt.Printf("  Reconcile interval: %s\n", cfg.ReconcileInterval())
	fmt.Printf("  Ghost TTL: %s\n", cfg.GhostTTL())
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Debug logging")
	fs.Parse(args)

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("dipbot starting",
		"version", Version,
		"exchange", cfg.Exchange.Type,
		"symbols", len(cfg.Symbols),
	)

	// Exchange. Only the paper venue is wired; live connectors plug in
	// behind the same interface.
	paper := exchange.NewPaper(cfg.MarketRules(), logger)
	ex := exchange.NewRateLimited(paper, cfg.Exchange.RateLimitPerSecond)

	ghosts, err := buildGhostStore(cfg)
	if err != nil {
		slog.Error("failed to open ghost store", "err", err)
		os.Exit(1)
	}
	defer ghosts.Close()

	alerter := buildAlerter(cfg, logger)

	eng := engine.New(
		engine.Config{
			OrderType:         exchange.OrderTypeLimit,
			ReconcileInterval: cfg.ReconcileInterval(),
		},
		ex,
		compliance.NewValidator(cfg.ToComplianceConfig(), logger),
		router.New(cfg.ToRouterConfig(), ex, logger),
		fillwait.New(cfg.ToFillWaitConfig(), ex, logger),
		reconcile.New(ex, logger),
		ghosts,
		alerter,
		logger,
	)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(metrics.ServerConfig{
			Port:        cfg.Metrics.Port,
			MetricsPath: cfg.Metrics.Path,
		}, logger)
		metricsServer.RegisterHealthCheck("exchange", func() metrics.Check {
			if _, err := ex.MarketRules(context.Background(), cfg.Symbols[0].Symbol); err != nil {
				return metrics.Check{Status: "unhealthy", Message: err.Error()}
			}
			return metrics.Check{Status: "healthy"}
		})
		metricsServer.Start()
	}

	if err := eng.Start(ctx); err != nil {
		slog.Error("failed to start engine", "err", err)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eng.Stop(shutdownCtx)
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown", "err", err)
		}
	}

	slog.Info("dipbot shutdown complete")
}

func buildGhostStore(cfg *config.Config) (ghost.Store, error) {
	if !cfg.Ghost.Enabled {
		return ghost.NewMemoryStore(cfg.GhostTTL()), nil
	}
	if cfg.Ghost.Path == "" {
		return ghost.NewMemoryStore(cfg.GhostTTL()), nil
	}
	return ghost.NewSQLiteStore(cfg.Ghost.Path, cfg.GhostTTL())
}

func buildAlerter(cfg *config.Config, logger *slog.Logger) alerting.Alerter {
	if !cfg.Alerting.Enabled {
		return alerting.NewConsoleAlerter(logger)
	}

	var alerters []alerting.Alerter
	for _, ch := range cfg.Alerting.Channels {
		switch ch.Type {
		case "console":
			alerters = append(alerters, alerting.NewConsoleAlerter(logger))
		case "telegram":
			alerters = append(alerters, alerting.NewTelegramAlerter(alerting.TelegramConfig{
				BotToken: ch.BotToken,
				ChatID:   ch.ChatID,
			}))
		}
	}
	if len(alerters) == 0 {
		return alerting.NewConsoleAlerter(logger)
	}
	return alerting.NewMultiAlerter(logger, alerters...)
}
