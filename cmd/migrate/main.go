package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cinelist/fetcher"
	"cinelist/storage"
)

var sources = []string{"imdb", "tmdb"}

func main() {
	var (
		dataPath  = flag.String("data", "./data", "Path to database directory")
		command   = flag.String("cmd", "up", "Command: up, down, status, version, reset, purge, stats")
		source    = flag.String("source", "all", "Cache to operate on: imdb, tmdb or all")
		olderThan = flag.Duration("older-than", fetcher.DefaultTTL, "purge: drop entries fetched longer ago than this")
	)
	flag.Parse()

	names, err := selectSources(*source)
	if err != nil {
		log.Fatal(err)
	}

	for _, name := range names {
		store := storage.NewSQLiteStorage(*dataPath, name)
		if err := store.Initialize(); err != nil {
			log.Fatalf("Failed to initialize %s storage: %v", name, err)
		}
		err := execute(store, *command, *olderThan)
		store.Close()
		if err != nil {
			log.Fatalf("%s: %v", name, err)
		}
	}
}

func selectSources(source string) ([]string, error) {
	if source == "all" {
		return sources, nil
	}
	for _, s := range sources {
		if s == source {
			return []string{s}, nil
		}
	}
	return nil, fmt.Errorf("unknown source %q, expected imdb, tmdb or all", source)
}

func execute(store *storage.SQLiteStorage, command string, olderThan time.Duration) error {
	name := store.Name()

	switch command {
	case "up":
		if err := store.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		fmt.Printf("%s: migrations completed successfully\n", name)

	case "down":
		if err := store.RollbackMigration(); err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		fmt.Printf("%s: migration rolled back successfully\n", name)

	case "status":
		migrationManager := store.GetMigrationManager()
		if err := migrationManager.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize migration manager: %w", err)
		}
		fmt.Printf("%s (%s):\n", name, store.Path())
		if err := migrationManager.Status(); err != nil {
			return err
		}

	case "version":
		version, err := store.GetDatabaseVersion()
		if err != nil {
			return err
		}
		fmt.Printf("%s: database version %d\n", name, version)

	case "reset":
		if err := store.ResetDatabase(); err != nil {
			return err
		}
		fmt.Printf("%s: database reset completed successfully\n", name)

	case "purge":
		n, err := store.PurgeExpired(time.Now().Add(-olderThan))
		if err != nil {
			return err
		}
		fmt.Printf("%s: purged %d entries older than %s\n", name, n, olderThan)

	case "stats":
		stats, err := store.GetStats()
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d entries, %d bytes\n", name, stats["entries"], stats["bytes"])

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Available commands: up, down, status, version, reset, purge, stats")
		os.Exit(1)
	}
	return nil
}
