package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"cinelist/aggregator"
	"cinelist/config"
	"cinelist/fetcher"
	"cinelist/notifier"
	"cinelist/scheduler"
	"cinelist/scraper"
	"cinelist/server"
	"cinelist/storage"
	"cinelist/tmdb"
)

func main() {
	// Initialize logger with timestamp
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting Cinelist...")

	cfg := config.FromEnv()

	// Initialize one cache database per source
	imdbStore := openStore(cfg.DataPath, "imdb")
	defer imdbStore.Close()
	tmdbStore := openStore(cfg.DataPath, "tmdb")
	defer tmdbStore.Close()

	imdbFetcher := fetcher.New(imdbStore, fetcher.WithName("imdb"))
	tmdbFetcher := fetcher.New(tmdbStore, fetcher.WithName("tmdb"))

	// TMDb is only wired in when an API key is configured
	opts := []aggregator.Option{aggregator.WithEnrichWorkers(cfg.EnrichWorkers)}
	if db, ok := tmdb.New(cfg.TMDBAPIKey, tmdbFetcher, tmdb.WithLanguage(cfg.TMDBLanguage)); ok {
		opts = append(opts, aggregator.WithMovieDatabase(db))
		log.Printf("TMDb enabled (language %s)", cfg.TMDBLanguage)
	} else {
		log.Println("TMDB_API_KEY not set, TMDb listings and enrichment disabled")
	}
	movies := aggregator.New(scraper.NewIMDbScraper(imdbFetcher), opts...)

	warmJob := newWarmCacheJob(cfg, movies, imdbStore, tmdbStore)

	switch cfg.RunMode {
	case config.RunModeOnce:
		log.Println("Running in single execution mode")

		// Run it once with a timeout
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := warmJob.Run(ctx); err != nil {
			log.Printf("Error running job: %v", err)
		}
		displayCacheStats(imdbStore, tmdbStore)
		logFetcherStats(imdbFetcher, tmdbFetcher)

	default:
		// Set up signal handling for graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Warm the cache on WARM_SCHEDULE, or at 10am and 5pm by default
		sched := scheduler.NewScheduler(scheduler.WithLocation(cfg.Location))
		var err error
		if cfg.WarmSchedule != "" {
			err = sched.AddJob(warmJob, cfg.WarmSchedule)
		} else {
			err = sched.AddMorningEveningJob(warmJob)
		}
		if err != nil {
			log.Fatalf("Failed to schedule cache warm-up: %v", err)
		}
		sched.Start()
		defer sched.Stop()

		// Run the job once at startup if specified
		if cfg.RunAtStartup {
			go func() {
				if err := sched.RunJobNow(ctx, warmJob.Name()); err != nil {
					log.Printf("Error running initial warm-up: %v", err)
				}
			}()
		}

		displayCacheStats(imdbStore, tmdbStore)

		// Serve until SIGINT/SIGTERM
		srv := server.New(movies, server.WithLocation(cfg.Location))
		if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
			log.Printf("Server error: %v", err)
		}
		logFetcherStats(imdbFetcher, tmdbFetcher)
	}

	log.Println("Application exiting")
}

func openStore(dataPath, name string) *storage.SQLiteStorage {
	store := storage.NewSQLiteStorage(dataPath, name)
	if err := store.Initialize(); err != nil {
		log.Fatalf("Failed to initialize %s storage: %v", name, err)
	}
	return store
}

func newWarmCacheJob(cfg config.Config, movies *aggregator.Aggregator, stores ...*storage.SQLiteStorage) *scheduler.WarmCacheJob {
	purgers := make([]scheduler.Purger, len(stores))
	for i, s := range stores {
		purgers[i] = s
	}
	opts := []scheduler.WarmCacheOption{scheduler.WithPurge(fetcher.DefaultTTL, purgers...)}

	// Only create email notifier if SMTP host and recipient are configured
	emailConfig := notifier.GetEmailConfigFromEnv()
	if emailConfig.Enabled() {
		n, err := notifier.NewEmailNotifier(emailConfig)
		if err != nil {
			log.Printf("Failed to create email notifier: %v", err)
		} else {
			opts = append(opts, scheduler.WithDigester(n))
			log.Printf("Listing digests will be sent to: %s", emailConfig.RecipientEmail)
		}
	} else {
		log.Println("Email digests disabled: missing configuration")
	}

	return scheduler.NewWarmCacheJob(movies, cfg.WarmLimit, opts...)
}

func displayCacheStats(stores ...*storage.SQLiteStorage) {
	log.Println("Cache Statistics")
	for _, s := range stores {
		stats, err := s.GetStats()
		if err != nil {
			log.Printf("Error getting %s cache stats: %v", s.Name(), err)
			continue
		}
		log.Printf("%s: %d entries, %d bytes", s.Name(), stats["entries"], stats["bytes"])
	}
}

func logFetcherStats(fetchers ...*fetcher.Client) {
	for _, f := range fetchers {
		st := f.Stats()
		log.Printf("%s fetcher: %d cache hits, %d misses", f.Name(), st.Hits, st.Misses)
	}
}
