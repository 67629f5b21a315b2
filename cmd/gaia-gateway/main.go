package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/Akansha-Mulchandani/GAIA/internal/cache"
	"github.com/Akansha-Mulchandani/GAIA/internal/client"
	"github.com/Akansha-Mulchandani/GAIA/internal/core"
	gaiagrpc "github.com/Akansha-Mulchandani/GAIA/internal/grpc"
	"github.com/Akansha-Mulchandani/GAIA/internal/metrics"
	"github.com/Akansha-Mulchandani/GAIA/internal/realtime"
	"github.com/Akansha-Mulchandani/GAIA/internal/scheduler"
	"github.com/Akansha-Mulchandani/GAIA/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := server.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Response cache
	durable, closeStore, err := buildCacheStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open cache store", "backend", cfg.CacheBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	responseCache := cache.New(durable, cache.WithLogger(logger))

	baseURL := cfg.ResolveBaseURL()
	apiClient := client.New(client.Config{
		BaseURL:        baseURL,
		Cache:          responseCache,
		CacheNamespace: cfg.CacheNamespace,
		Logger:         logger,
	})

	metrics.Init(core.Version, cfg.CacheBackend)
	logger.Info("backend client ready", "base_url", baseURL, "context", cfg.Context, "cache", cfg.CacheBackend)

	// Upstream realtime channel relayed through the in-memory broker
	broker := realtime.NewBroker()
	defer broker.Close()

	var events *realtime.Client
	if wsURL, err := cfg.ResolveRealtimeURL(); err != nil {
		logger.Warn("realtime channel disabled", "error", err)
	} else {
		events = realtime.New(realtime.Config{
			URL:               wsURL,
			ReconnectAttempts: cfg.ReconnectAttempts,
			ReconnectDelay:    cfg.ReconnectDelay,
			Logger:            logger,
		})
		events.On(realtime.AnyEvent, func(ev *core.Event) {
			_ = broker.Publish(ev)
		})
		if err := events.Connect(ctx); err != nil {
			logger.Warn("realtime connect failed", "error", err)
		}
		defer events.Disconnect()
		logger.Info("realtime channel connecting", "url", wsURL)
	}

	// gRPC health
	grpcServer := grpc.NewServer()
	health := gaiagrpc.Register(grpcServer)

	// Background cache warming and backend probing
	targets, err := scheduler.ParseWarmTargets(cfg.WarmEndpoints)
	if err != nil {
		logger.Error("invalid GAIA_WARM_ENDPOINTS", "error", err)
		os.Exit(1)
	}
	sched := scheduler.New(scheduler.Config{
		Refresher:   apiClient,
		Targets:     targets,
		WarmOnStart: cfg.WarmOnStart,
		Probe: func(ctx context.Context) error {
			return apiClient.Ping(ctx, client.DefaultTimeout)
		},
		ProbeInterval: cfg.ProbeInterval,
		OnProbe: func(up bool) {
			health.SetBackendUp(up)
			// The realtime loop gives up after its attempt budget; restart it
			// once the backend is reachable again.
			if up && events != nil && events.Status() == realtime.StatusDisconnected && ctx.Err() == nil {
				_ = events.Connect(ctx)
			}
		},
		Logger: logger,
	})
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	deps := server.Deps{Client: apiClient, Events: broker}
	if events != nil {
		deps.RealtimeStatus = func() string { return string(events.Status()) }
	}
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.NewRouter(deps, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("GAIA gateway listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return fmt.Errorf("listen for gRPC on %s: %w", cfg.GRPCPort, err)
		}
		logger.Info("GAIA gRPC health listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		sched.Stop()
		health.Shutdown()
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("gateway stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// buildCacheStore opens the durable cache tier selected by configuration.
// The memory backend has no durable tier.
func buildCacheStore(ctx context.Context, cfg server.Config, logger *slog.Logger) (cache.Store, func(), error) {
	switch cfg.CacheBackend {
	case server.CacheBadger:
		store, err := cache.OpenBadgerStore(cache.BadgerConfig{
			Path:   cfg.CacheDir,
			MaxAge: cfg.CacheMaxAge,
			Logger: logger,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("badger cache ready", "dir", cfg.CacheDir)
		return store, func() { _ = store.Close() }, nil

	case server.CacheDynamoDB:
		awsCfg, err := buildAWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("configure AWS: %w", err)
		}
		store := cache.NewDynamoDBStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, cfg.CacheMaxAge)
		if err := store.EnsureTable(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure DynamoDB table: %w", err)
		}
		logger.Info("DynamoDB cache ready", "table", cfg.DynamoDBTable, "region", cfg.AWSRegion)
		return store, func() {}, nil

	default:
		return nil, func() {}, nil
	}
}

func buildAWSConfig(ctx context.Context, cfg server.Config) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.AWSRegion),
	}

	// For LocalStack or custom endpoints
	if cfg.AWSEndpointURL != "" {
		opts = append(opts,
			config.WithBaseEndpoint(cfg.AWSEndpointURL),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "test")),
		)
	}

	return config.LoadDefaultConfig(ctx, opts...)
}
