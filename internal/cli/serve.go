package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/searcher/reader"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/posindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/resilience"
)

var (
	servePort  int
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve lookups over HTTP",
	Long: `Loads the index and answers lookups over HTTP until interrupted.

With Redis enabled, lookup results are cached. With Kafka enabled, the server
reloads the index whenever a construct run announces a new one; --watch does
the same by watching the construct directory.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (overrides server.port)")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "reload when the construct directory changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("watch") {
		cfg.Server.WatchIndex = serveWatch
	}

	var (
		lookupCache *cache.LookupCache
		redisClient *pkgredis.Client
	)
	if cfg.Redis.Enabled {
		var client *pkgredis.Client
		err := resilience.Retry(ctx, "connect redis", resilience.DefaultBackoff, func(ctx context.Context) error {
			var err error
			client, err = pkgredis.NewClient(ctx, cfg.Redis)
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, lookup caching disabled", "error", err)
		} else {
			defer client.Close()
			redisClient = client
			lookupCache = cache.New(client, cfg.Redis.CacheTTL, appMetrics)
			slog.Info("lookup cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	holder := reader.NewHolder(readerOptions())
	svc := searcher.NewService(holder, lookupCache, appMetrics)
	if err := svc.Reload(ctx); err != nil {
		slog.Warn("no index loaded, serving 503 until a rebuild is announced", "error", err)
	}

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, svc.HandleIndexBuilt)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index event consumer stopped", "error", err)
			}
		}()
		slog.Info("listening for index rebuilds", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	if cfg.Server.WatchIndex {
		go func() {
			if err := svc.Watch(ctx, cfg.Index.ConstructDir, cfg.Server.WatchDebounce); err != nil {
				slog.Error("index watcher stopped", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("index", health.Ping(svc.Ready, true))
	if cfg.Redis.Enabled {
		checker.Register("redis", health.Ping(func(ctx context.Context) error {
			if redisClient == nil {
				return errors.New("not connected")
			}
			return redisClient.Ping(ctx)
		}, false))
	}

	mux := http.NewServeMux()
	handler.New(svc).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		shutdownMetrics := appMetrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	} else {
		mux.Handle("GET /metrics", appMetrics.Handler())
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst)(chain)
	chain = middleware.Metrics(appMetrics)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("lookup server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	slog.Info("lookup server stopped")
	return nil
}
