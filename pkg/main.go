package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	pkg "git.solsynth.dev/hypernet/feedsync/pkg/internal"
	"git.solsynth.dev/hypernet/feedsync/pkg/internal/cache"
	"git.solsynth.dev/hypernet/feedsync/pkg/internal/gap"
	"git.solsynth.dev/hypernet/feedsync/pkg/internal/http"
	"git.solsynth.dev/hypernet/feedsync/pkg/internal/http/api"
	"git.solsynth.dev/hypernet/feedsync/pkg/internal/metrics"
	"git.solsynth.dev/hypernet/feedsync/pkg/internal/services"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Booting screen
	fmt.Println(color.YellowString(" _____              _ ____                   \n|  ___|__  ___  __| / ___| _   _ _ __   ___ \n| |_ / _ \\/ _ \\/ _` \\___ \\| | | | '_ \\ / __|\n|  _|  __/  __/ (_| |___) | |_| | | | | (__ \n|_|  \\___|\\___|\\__,_|____/ \\__, |_| |_|\\___|\n                           |___/            "))
	fmt.Printf("%s v%s\n", color.New(color.FgHiYellow).Add(color.Bold).Sprintf("Hypernet.FeedSync"), pkg.AppVersion)
	fmt.Printf("The real-time feed engine in Hypernet\n")
	color.HiBlack("=====================================================\n")

	// Configure settings
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}

	if viper.GetBool("debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	config, err := services.ReadFeedConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("An error occurred when reading feed settings.")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	meter := metrics.NewMetrics(registry)

	// Projection cache
	cacheStore, err := cache.NewStore(viper.GetInt64("cache.num_counters"), viper.GetInt64("cache.max_cost"))
	if err != nil {
		log.Fatal().Err(err).Msg("An error occurred when initializing cache.")
	}

	// Feed engine
	client := gap.NewAPIClient(viper.GetString("api.endpoint"), viper.GetString("api.token"))
	store := services.NewFeedStore()
	scheduler := services.NewScheduler(store, client, services.SchedulerOptions{
		QueueSize: config.QueueSize,
		Metrics:   meter,
	})
	view := services.NewFilterView(store, cacheStore, services.Selector{Scope: config.Scope})
	actions := services.NewFeedActions(scheduler, client, services.LogNotifier{}, config.UserID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scheduler.LoadScope(ctx, config.Scope); err != nil {
		log.Error().Err(err).Msg("An error occurred when loading the initial feed, waiting for resync...")
	}

	// Connect to pusher
	pusher := gap.NewPusher(viper.GetString("pusher.endpoint"), viper.GetString("api.token"), scheduler.Push)
	if len(viper.GetString("pusher.endpoint")) > 0 {
		if err := pusher.Connect(ctx); err != nil {
			log.Error().Err(err).Msg("An error occurred when connecting to pusher, realtime updates will be disabled.")
		}
	}

	// Configure timed tasks
	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	if len(config.Resync) > 0 {
		if _, err := quartz.AddFunc(config.Resync, func() {
			if err := scheduler.Reload(ctx); err != nil && !errors.Is(err, services.ErrStaleScopeResult) {
				log.Error().Err(err).Msg("An error occurred when resyncing feed...")
			}
		}); err != nil {
			log.Error().Err(err).Str("schedule", config.Resync).Msg("An error occurred when scheduling feed resync.")
		}
	}
	quartz.Start()

	// Server
	server := http.NewServer(api.NewFeedController(scheduler, view, actions), registry)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return scheduler.Run(gctx)
	})
	group.Go(func() error {
		return server.Listen(viper.GetString("http.bind"))
	})
	group.Go(func() error {
		<-gctx.Done()
		<-quartz.Stop().Done()
		_ = pusher.Close()
		scheduler.Close()
		view.Close()
		return server.Shutdown()
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Feed engine stopped unexpectedly.")
	}
}
