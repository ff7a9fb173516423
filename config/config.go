// Package config reads runtime settings from the environment. A .env file in the working
// directory is loaded first when present.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

const (
	RunModeServer = "server"
	RunModeOnce   = "once"
)

type Config struct {
	DataPath      string
	ListenAddr    string
	RunMode       string
	TMDBAPIKey    string
	TMDBLanguage  string
	Location      *time.Location
	EnrichWorkers int
	WarmSchedule  string
	WarmLimit     int
	RunAtStartup  bool
}

// FromEnv builds a Config, falling back to defaults for unset or invalid values.
func FromEnv() Config {
	cfg := Config{
		DataPath:      getEnv("DATA_PATH", "./data"),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		RunMode:       strings.ToLower(getEnv("RUN_MODE", RunModeServer)),
		TMDBAPIKey:    strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBLanguage:  getEnv("TMDB_LANGUAGE", "pt-BR"),
		Location:      loadLocation(getEnv("APP_TIMEZONE", "America/Sao_Paulo")),
		EnrichWorkers: getInt("ENRICH_WORKERS", 4),
		WarmSchedule:  strings.TrimSpace(os.Getenv("WARM_SCHEDULE")),
		WarmLimit:     getInt("WARM_LIMIT", 20),
		RunAtStartup:  os.Getenv("RUN_AT_STARTUP") == "true",
	}

	if cfg.RunMode != RunModeServer && cfg.RunMode != RunModeOnce {
		log.Printf("[config] unknown RUN_MODE %q, using %s", cfg.RunMode, RunModeServer)
		cfg.RunMode = RunModeServer
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s %q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

// loadLocation falls back to UTC when the zone database does not know name.
func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("[config] unknown timezone %q, using UTC: %v", name, err)
		return time.UTC
	}
	return loc
}
