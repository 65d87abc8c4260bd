package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shelfstream/shelfstream/internal/acquire"
	"github.com/shelfstream/shelfstream/internal/catalog"
	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/downloader"
	"github.com/shelfstream/shelfstream/internal/enrich"
	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/notification"
	"github.com/shelfstream/shelfstream/internal/postprocess"
	"github.com/shelfstream/shelfstream/internal/provider"
	"github.com/shelfstream/shelfstream/internal/scheduler"
	"github.com/shelfstream/shelfstream/internal/search"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	runOnce := flag.Bool("once", false, "Run one search batch and one post-process pass, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Path:   cfg.Logging.Path,
	})
	defer log.Close()

	if err := run(cfg, log, *runOnce); err != nil {
		log.Fatal().Err(err).Msg("Shelfstream failed")
	}
}

func run(cfg *config.Config, log *logger.Logger, runOnce bool) error {
	store, err := catalog.OpenSQLite(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer store.Close()

	providers := provider.Enabled(cfg.Providers, log)
	if len(providers) == 0 {
		log.Warn().Msg("No search providers enabled")
	}

	var clients []downloader.Client
	for _, clientCfg := range cfg.Clients {
		if !clientCfg.Enabled {
			continue
		}
		client, err := downloader.NewClient(clientCfg)
		if err != nil {
			return fmt.Errorf("failed to configure download client %q: %w", clientCfg.Name, err)
		}
		clients = append(clients, client)
	}
	if len(clients) == 0 {
		log.Warn().Msg("No download clients enabled")
	}

	bus := notification.NewBus(log)
	for _, hookCfg := range cfg.Webhooks {
		if !hookCfg.Enabled {
			continue
		}
		bus.Subscribe(notification.NewWebhook(hookCfg, nil, log).Handler())
		log.Info().Str("webhook", hookCfg.Name).Msg("Webhook notifier enabled")
	}

	scorer := search.NewScorer(cfg.Matching)
	dispatcher := search.NewDispatcher(providers, cfg.Search, scorer, log)
	enricher := enrich.NewService(enrich.NewWorkpageSource(nil), 24*time.Hour, log)
	searchSvc := acquire.NewService(store, dispatcher, clients, bus, log)
	postSvc := postprocess.NewService(store, clients, enricher, bus, cfg, log)

	searchBatch := func(ctx context.Context) error {
		items, err := store.FindWantedItems(ctx, "", catalog.StatusWanted)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		outcomes := searchSvc.RunSearchBatch(ctx, items)
		log.Info().Int("items", len(items)).Int("outcomes", len(outcomes)).
			Msg("Search batch finished")
		return nil
	}
	postProcessPass := func(ctx context.Context) error {
		dirs := postSvc.DiscoverDirs(ctx)
		if len(dirs) == 0 {
			return nil
		}
		outcomes := postSvc.RunPass(ctx, dirs)
		log.Info().Int("dirs", len(dirs)).Int("outcomes", len(outcomes)).
			Msg("Post-process pass finished")
		return nil
	}

	if runOnce {
		ctx := context.Background()
		if err := searchBatch(ctx); err != nil {
			return err
		}
		return postProcessPass(ctx)
	}

	sched, err := scheduler.New(log)
	if err != nil {
		return err
	}
	if err := sched.RegisterTask(scheduler.TaskConfig{
		ID:         "search-batch",
		Name:       "Wanted item search",
		Interval:   cfg.Search.Interval,
		Func:       searchBatch,
		RunOnStart: true,
	}); err != nil {
		return err
	}
	if err := sched.RegisterTask(scheduler.TaskConfig{
		ID:         "postprocess-pass",
		Name:       "Completed download sweep",
		Interval:   cfg.PostProcess.Interval,
		Func:       postProcessPass,
		RunOnStart: true,
	}); err != nil {
		return err
	}

	sched.Start()
	log.Info().
		Dur("searchInterval", cfg.Search.Interval).
		Dur("postProcessInterval", cfg.PostProcess.Interval).
		Msg("Shelfstream started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	return sched.Stop()
}
