package main

import (
	"context"
	"flag"
	stdlog "log"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cloudprefix/ipranges/pkg/api"
	"github.com/cloudprefix/ipranges/pkg/cache"
	"github.com/cloudprefix/ipranges/pkg/config"
	"github.com/cloudprefix/ipranges/pkg/events"
	"github.com/cloudprefix/ipranges/pkg/ipranges"
	"github.com/cloudprefix/ipranges/pkg/ratelimit"
	"github.com/cloudprefix/ipranges/pkg/syncer"
	"github.com/cloudprefix/ipranges/pkg/telemetry"
	"github.com/cloudprefix/ipranges/pkg/version"
)

func main() {
	debug := false
	configPath := ""
	flag.BoolVar(&debug, "debug", false, "enables debug mode")
	flag.StringVar(&configPath, "config", "", "path to the config file")
	flag.Parse()

	log := setupLogger(debug)
	log.With("version", version.Version).Info("Starting ipranges api")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading ipranges config: %v", err)
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid ipranges config: %v", err)
	}

	if debug {
		log.Infof("%#v", cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, shutdownTracing, err := telemetry.Init(ctx, telemetry.Options{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceVersion: version.Version,
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		Logger:         log,
	})
	if err != nil {
		log.Fatalf("Error initializing tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warnf("Error shutting down tracing: %v", err)
		}
	}()

	var durable cache.Tier
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		durable = cache.NewRedisTier(rdb, cache.WithKeyPrefix(cfg.Cache.KeyPrefix))
	} else {
		log.Warn("No Redis address configured, snapshots will not survive restarts")
	}

	store := cache.NewTieredStore(durable,
		config.Duration(cfg.Cache.MaxAge, cache.DefaultMaxAge), log)

	sink := newEventSink(cfg, log)
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warnf("Error closing event sink: %v", err)
		}
	}()

	fetcher := syncer.NewHTTPFetcher(cfg.Upstream.URL,
		config.Duration(cfg.Upstream.FetchTimeout, syncer.DefaultFetchTimeout))

	mode := syncer.ContinuousScheduling
	if cfg.Sync.Mode == "oneshot" {
		mode = syncer.OneShotOnInvoke
	}
	sync := syncer.New(store, fetcher, log,
		syncer.WithMode(mode),
		syncer.WithForceRefreshAge(config.Duration(cfg.Sync.ForceRefreshAge, syncer.DefaultForceRefreshAge)),
		syncer.WithEventSink(sink),
	)
	sync.Schedule(ctx, config.Duration(cfg.Sync.Interval, 0))

	limiter := ratelimit.New(ratelimit.Config{
		Window:            config.Duration(cfg.RateLimit.Window, 0),
		Max:               cfg.RateLimit.MaxRequests,
		SweepInterval:     config.Duration(cfg.RateLimit.SweepInterval, 0),
		ExcludeSuccessful: cfg.RateLimit.ExcludeSuccessful,
		Exempt:            ratelimit.DefaultExempt(cfg.RateLimit.InternalHosts, cfg.RateLimit.InternalAgents),
	})
	defer limiter.Stop()

	server := api.NewServer(log.Desugar(), cfg, debug)
	err = server.RegisterAll([]api.APIController{
		ipranges.NewController(log, store, sync, limiter),
	})
	if err != nil {
		log.Fatalf("Error registering ipranges controllers: %v", err)
	}

	server.Listen()
}

func newEventSink(cfg config.Config, log *zap.SugaredLogger) events.Sink {
	if !cfg.Events.Enabled {
		return events.NopSink{}
	}
	sink, err := events.NewKafkaSink(events.KafkaSinkConfig{
		Brokers: cfg.Events.Brokers,
		Topic:   cfg.Events.Topic,
	}, log)
	if err != nil {
		log.Fatalf("Error creating Kafka event sink: %v", err)
	}
	return sink
}

func setupLogger(debug bool) *zap.SugaredLogger {
	var zlog *zap.Logger
	var err error
	if debug {
		zlog, err = zap.NewDevelopment()
	} else {
		zlog, err = zap.NewProduction()
	}
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return zlog.Sugar()
}
