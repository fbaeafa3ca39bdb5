package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"backpropd/internal/config"
	"backpropd/internal/geo"
	"backpropd/internal/listener"
	"backpropd/internal/logging"
	"backpropd/internal/metrics"
	"backpropd/internal/ratelimit"
	"backpropd/internal/server"
)

var version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Config{
		Level:          cfg.Logging.Level,
		Output:         cfg.Logging.Output,
		FilePath:       cfg.Logging.File.Path,
		FileMaxSizeMB:  cfg.Logging.File.MaxSizeMB,
		FileMaxBackups: cfg.Logging.File.MaxBackups,
		FileMaxAgeDays: cfg.Logging.File.MaxAgeDays,
		FileCompress:   cfg.Logging.File.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()

	var resolver *geo.Resolver
	if cfg.GeoIP.Database != "" {
		resolver, err = geo.Open(cfg.GeoIP.Database)
		if err != nil {
			log.Warn("GeoIP database unavailable, log enrichment disabled", map[string]interface{}{
				"database": cfg.GeoIP.Database,
				"error":    err.Error(),
			})
		} else {
			defer resolver.Close()
		}
	}

	store := ratelimit.NewStore(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	store.StartJanitor(ctx, cfg.RateLimit.Window)

	var stats ratelimit.Recorder
	if cfg.RateLimit.Stats.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.Stats.RedisAddr,
			Password: cfg.RateLimit.Stats.Password,
			DB:       cfg.RateLimit.Stats.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			log.Warn("redis stats unreachable, falling back to in-process counters", map[string]interface{}{
				"addr":  cfg.RateLimit.Stats.RedisAddr,
				"error": err.Error(),
			})
			stats = ratelimit.NewMemoryStats()
		} else {
			stats = ratelimit.NewRedisStats(rdb,
				ratelimit.WithPrefix(cfg.RateLimit.Stats.Prefix),
				ratelimit.WithTTL(cfg.RateLimit.Stats.TTL),
			)
		}
	}

	srv := server.New(server.Config{
		Version:   version,
		Security:  cfg.Security,
		RateLimit: store,
		RateStats: stats,
		Fields:    cfg.Validation.Fields,
		MaxBody:   cfg.Validation.MaxBodyBytes,
		Logger:    log,
		Metrics:   m,
		Geo:       resolver,
	})

	manager := listener.NewManager(listener.ManagerConfig{
		PlainAddr: cfg.PlainAddr(),
		TLSAddr:   cfg.TLSAddr(),
		CertFile:  cfg.Server.TLS.CertFile,
		KeyFile:   cfg.Server.TLS.KeyFile,
		Handler:   srv,
		Logger:    log,
	})

	// The plain listener failing to bind is fatal; everything after this
	// point degrades gracefully instead.
	if err := manager.Start(ctx); err != nil {
		log.Error("startup failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	log.Info("server started", map[string]interface{}{
		"version":       version,
		"plain_addr":    manager.Plain().Addr(),
		"secure_active": manager.SecureActive(),
		"rate_limit":    cfg.RateLimit.MaxRequests,
		"rate_window":   cfg.RateLimit.Window.String(),
	})

	var secureErrs <-chan error
	if manager.Secure() != nil {
		secureErrs = manager.Secure().Errors()
	}

	select {
	case <-ctx.Done():
		log.Info("termination signal received, shutting down", nil)
	case err := <-manager.Plain().Errors():
		// Losing the plain transport means the service is down.
		log.Error("plain listener failed", map[string]interface{}{"error": err.Error()})
		shutdown(manager, cfg.Server.ShutdownGrace)
		os.Exit(1)
	case err := <-secureErrs:
		log.Warn("encrypted listener failed, continuing on plain transport", map[string]interface{}{
			"error": err.Error(),
		})
		<-ctx.Done()
		log.Info("termination signal received, shutting down", nil)
	}

	shutdown(manager, cfg.Server.ShutdownGrace)
	log.Info("shutdown complete", nil)
}

func shutdown(manager *listener.Manager, grace time.Duration) {
	if grace <= 0 {
		grace = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	manager.Shutdown(ctx)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
