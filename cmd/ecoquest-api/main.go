// Package main provides the ecoquest-api binary entry point.
// EcoQuest serves Portuguese-language investigative RPG sessions about
// environmental crimes, narrated turn by turn by a Groq-hosted model.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/laredonunes/ecoquest-api/config"
	"github.com/laredonunes/ecoquest-api/engine"
	"github.com/laredonunes/ecoquest-api/events"
	"github.com/laredonunes/ecoquest-api/httpapi"
	"github.com/laredonunes/ecoquest-api/llm"
	"github.com/laredonunes/ecoquest-api/metrics"
	"github.com/laredonunes/ecoquest-api/ratelimit"
	"github.com/laredonunes/ecoquest-api/scenario"
)

const (
	Version   = httpapi.Version
	BuildTime = "dev"
	appName   = "ecoquest-api"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "ecoquest-api",
		Short: "Environmental crime RPG API",
		Long: `EcoQuest serves investigative RPG sessions about environmental
crimes in Brazilian biomes, narrated turn by turn by a Groq-hosted
model.

It provides:
- Three built-in scenarios (floresta, mangue, mar) plus YAML packs
- Stateless sessions carried by the client between turns
- Per-player and upstream rate limiting

Turn events are published to NATS when configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, addr, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	// Init command
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default " + config.ProjectConfigFile + " in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(config.ProjectConfigFile); err == nil {
				return fmt.Errorf("%s already exists", config.ProjectConfigFile)
			}
			if err := config.DefaultConfig().SaveToFile(config.ProjectConfigFile); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("Wrote %s\n", config.ProjectConfigFile)
			return nil
		},
	})

	return cmd
}

func run(configPath, addr, logLevel string) error {
	// Print banner
	printBanner()

	// Configure logging
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.NewLoader(logger).Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr != "" {
		cfg.Merge(&config.Config{Server: config.ServerConfig{Addr: addr}})
	}

	// The server still comes up without a key so docs and health stay
	// reachable, but every turn will fail upstream.
	if cfg.Groq.APIKey == "" {
		logger.Error("GROQ_API_KEY não configurada!")
	}

	// Assemble scenarios: builtins first, packs may override
	registry := scenario.NewRegistry(scenario.Builtin()...)
	if cfg.Scenarios.Dir != "" {
		packs, err := scenario.LoadDir(cfg.Scenarios.Dir)
		if err != nil {
			return fmt.Errorf("load scenario packs: %w", err)
		}
		for _, sc := range packs {
			if registry.Add(sc) {
				logger.Warn("Scenario pack overrides builtin", "id", sc.ID)
			}
		}
	}

	inbound := ratelimit.NewInbound(cfg.InboundLimit, ratelimit.WithInboundLogger(logger))
	upstream := ratelimit.NewUpstream(cfg.UpstreamLimit, ratelimit.WithUpstreamLogger(logger))
	metrics.RegisterLimiterGauges(inbound.Size, upstream.Used)

	client := llm.NewClient(cfg.Groq,
		llm.WithLimiter(upstream),
		llm.WithLogger(logger))

	// Turn events are observability, not gameplay: a NATS failure is
	// logged and the server runs without publishing.
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS.URL, logger, events.WithSubjectPrefix(cfg.NATS.SubjectPrefix))
		if err != nil {
			logger.Warn("Turn event publishing disabled", "error", err)
		} else {
			publisher = pub
		}
	}
	defer publisher.Close()

	eng := engine.New(cfg.Session, client,
		engine.WithLogger(logger),
		engine.WithPublisher(publisher))

	srv := httpapi.New(cfg.Server, eng, registry, inbound,
		httpapi.WithLogger(logger),
		httpapi.WithGroqConfigured(cfg.Groq.APIKey != ""))

	logger.Info("EcoQuest API ready",
		"version", Version,
		"addr", cfg.Server.Addr,
		"groq_configured", cfg.Groq.APIKey != "",
		"scenarios", registry.Len())
	for _, sc := range registry.List() {
		logger.Info("Scenario available",
			"id", sc.ID,
			"title", sc.Title,
			"endpoint", "POST /api/"+sc.ID)
	}

	// Setup signal handling
	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-signalCtx.Done():
	}
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping server", "error", err)
	}

	logger.Info("EcoQuest API shutdown complete")
	return nil
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║            EcoQuest API v" + Version + "                ║")
	fmt.Println("║    RPG investigativo de crimes ambientais     ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}
