// Package main implements the hookstream-admin binary: offline schema and
// priority maintenance against an event database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/hookstream/hookstream/internal/store"
)

func main() {
	var dbPath string

	flag.StringVar(&dbPath, "db", "", "Path to the event database (or HOOKSTREAM_DB_PATH)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Hookstream Admin - event database maintenance\n\n")
		fmt.Fprintf(os.Stderr, "Usage: hookstream-admin --db <path> <command>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  migrate    Run the priority schema migration (idempotent)\n")
		fmt.Fprintf(os.Stderr, "  rollback   Snapshot and clear all priority classifications\n")
		fmt.Fprintf(os.Stderr, "  restore    Re-apply the classifications saved by rollback\n")
		fmt.Fprintf(os.Stderr, "  stats      Print retention-windowed event counts\n")
		fmt.Fprintf(os.Stderr, "  analyze    Refresh SQLite query planner statistics\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	_ = godotenv.Load()

	if dbPath == "" {
		dbPath = os.Getenv("HOOKSTREAM_DB_PATH")
	}
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "error: --db is required")
		flag.Usage()
		os.Exit(2)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	if err := run(dbPath, command); err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func run(dbPath, command string) error {
	ctx := context.Background()

	// Open runs the migration, so every command starts from a current schema.
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	switch command {
	case "migrate":
		return printJSON(s.MigrationStats())

	case "rollback":
		snapshot, err := s.Rollback(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("rolled back %d priority events (snapshot version %d)\n",
			len(snapshot.Entries), snapshot.Version)
		return nil

	case "restore":
		snapshot, err := s.LoadBackup(ctx)
		if err != nil {
			return err
		}
		if err := s.Restore(ctx, snapshot); err != nil {
			return err
		}
		fmt.Printf("restored %d priority events (snapshot version %d)\n",
			len(snapshot.Entries), snapshot.Version)
		return nil

	case "stats":
		stats, err := s.Stats(ctx, store.DefaultRetentionConfig())
		if err != nil {
			return err
		}
		return printJSON(stats)

	case "analyze":
		if err := s.RunAnalyze(ctx); err != nil {
			return err
		}
		fmt.Println("analyze complete")
		return nil

	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
