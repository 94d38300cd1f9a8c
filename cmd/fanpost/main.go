// ABOUTME: Entry point for the fanpost channel bot
// ABOUTME: Loads config, opens the post store and runs the Telegram console until signalled

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/2389/fanpost/internal/config"
	"github.com/2389/fanpost/internal/console"
	"github.com/2389/fanpost/internal/dedupe"
	"github.com/2389/fanpost/internal/engagement"
	"github.com/2389/fanpost/internal/lifecycle"
	"github.com/2389/fanpost/internal/metrics"
	"github.com/2389/fanpost/internal/session"
	"github.com/2389/fanpost/internal/transport"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  __                             _
 / _| __ _ _ __  _ __   ___  ___| |_
| |_ / _' | '_ \| '_ \ / _ \/ __| __|
|  _| (_| | | | | |_) | (_) \__ \ |_
|_|  \__,_|_| |_| .__/ \___/|___/\__|
                |_|
`

const dedupeSize = 10000

// getConfigPath returns the config file to load, or "" when there is none.
// Priority: FANPOST_CONFIG env var > XDG_CONFIG_HOME/fanpost/config.yaml > ~/.config/fanpost/config.yaml
// Only an explicit FANPOST_CONFIG is required to exist.
func getConfigPath() string {
	if envPath := os.Getenv("FANPOST_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	path := filepath.Join(configDir, "fanpost", "config.yaml")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return path
}

func main() {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch command {
	case "serve":
		err = runServe(ctx)
	case "check":
		err = runCheck()
	case "stats":
		err = runStats(ctx)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: fanpost [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve   Run the bot (default)")
	fmt.Println("  check   Validate the configuration and print it")
	fmt.Println("  stats   Print post and like counts from storage")
}

func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)
	printSummary(cfg, configPath)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Path, reg, logger); err != nil {
				logger.Error("metrics endpoint stopped", "error", err)
			}
		}()
	}

	posts, err := openStore(ctx, cfg.Storage, m, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := posts.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}()

	bot, err := transport.NewTelegram(cfg.Telegram.Token, transport.TelegramOptions{
		RequestTimeout: cfg.Telegram.RequestTimeout,
		PollTimeout:    cfg.Telegram.PollTimeout,
	}, logger)
	if err != nil {
		return err
	}

	channels := make([]transport.Chat, 0, len(cfg.Telegram.Channels))
	for _, ch := range cfg.Telegram.Channels {
		channels = append(channels, transport.Chat(ch))
	}

	controller := lifecycle.New(posts, bot, lifecycle.Options{
		Channels:     channels,
		SubscribeURL: cfg.Telegram.SubscribeURL,
		FanoutLimit:  cfg.Console.FanoutLimit,
		Metrics:      m,
		Logger:       logger,
	})
	gate := engagement.New(posts, bot, engagement.Options{
		Channels:     channels,
		SubscribeURL: cfg.Telegram.SubscribeURL,
		FanoutLimit:  cfg.Console.FanoutLimit,
		Metrics:      m,
		Logger:       logger,
	})

	seen := dedupe.New(cfg.Console.DedupeTTL, dedupeSize)
	defer seen.Close()

	c := console.New(session.NewManager(), controller, gate, bot, console.Options{
		OperatorID:  cfg.Telegram.OperatorID,
		RecentLimit: cfg.Console.RecentLimit,
		Dedupe:      seen,
		Metrics:     m,
		Logger:      logger,
	})

	logger.Info("starting fanpost",
		"bot", bot.Username(),
		"operator_id", cfg.Telegram.OperatorID,
		"channels", len(channels),
		"posts", posts.Len(),
	)

	runErr := bot.Run(ctx, c.Handle)

	// Handlers have returned; persist whatever they left behind.
	if err := posts.Save(context.WithoutCancel(ctx)); err != nil {
		logger.Error("final save failed", "error", err)
	}
	logger.Info("fanpost stopped")
	return runErr
}

func printSummary(cfg *config.Config, configPath string) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	if configPath == "" {
		configPath = "(environment only)"
	}
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Operator:  %d\n", cfg.Telegram.OperatorID)
	green.Print("    ▶ ")
	fmt.Printf("Channels:  %v\n", cfg.Telegram.Channels)
	green.Print("    ▶ ")
	fmt.Printf("Storage:   %s (%s)\n", cfg.Storage.Path, cfg.Storage.Driver)
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   http://%s%s\n", cfg.Metrics.Addr, cfg.Metrics.Path)
	}
	if cfg.Telegram.SubscribeURL == "" {
		yellow.Println("    ! no @handle channel and no subscribe_url; posts will have no subscribe button")
	}
	fmt.Println()
}

func runCheck() error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	printSummary(cfg, configPath)
	color.New(color.FgGreen).Println("    configuration OK")
	return nil
}

func runStats(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	posts, err := openStore(ctx, cfg.Storage, nil, logger)
	if err != nil {
		return err
	}
	defer posts.Close()

	count, likes := posts.Stats()
	fmt.Printf("posts: %d\nlikes: %d\n", count, likes)
	return nil
}
