// Package main implements the hookstream server binary: the HTTP ingest and
// query surface plus the real-time event stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hookstream/hookstream/internal/app"
	"github.com/hookstream/hookstream/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		dbPath      string
		httpAddr    string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&dbPath, "db", "", "Path to the event database")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Hookstream - Agent Activity Event Stream\n\n")
		fmt.Fprintf(os.Stderr, "Usage: hookstream [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  hookstream --data-dir /data/hookstream\n")
		fmt.Fprintf(os.Stderr, "  hookstream --db ./events.db --http-addr :4000\n")
		fmt.Fprintf(os.Stderr, "  hookstream --config /etc/hookstream/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  HOOKSTREAM_DATA_DIR           Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  HOOKSTREAM_DB_PATH            Event database path\n")
		fmt.Fprintf(os.Stderr, "  HOOKSTREAM_HTTP_ADDR          HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  HOOKSTREAM_RETENTION_*        Retention defaults\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("hookstream version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}
	app.Version = version

	// Load a local .env if present; ignore when missing.
	_ = godotenv.Load()

	cfg, err := loadConfig(configFile, dataDir, dbPath, httpAddr)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	printBanner(cfg)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Printf("Received signal: %v", sig)

	if err := application.Stop(context.Background()); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, dbPath, httpAddr string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Command line flags take highest priority.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("╔═══════════════════════════════════════════════════════════╗")
	log.Printf("║                      HOOKSTREAM                           ║")
	log.Printf("║           Agent Activity Event Stream Server              ║")
	log.Printf("╚═══════════════════════════════════════════════════════════╝")
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  HTTP:     %s", cfg.HTTP.Addr)
	log.Printf("  Retention: priority %dh / regular %dh (limit %d)",
		cfg.Retention.PriorityRetentionHours,
		cfg.Retention.RegularRetentionHours,
		cfg.Retention.TotalLimit)
	log.Printf("")
}
