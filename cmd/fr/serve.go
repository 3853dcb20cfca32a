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
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/fleetreplay/internal/checkpoint"
	"github.com/alfredjeanlab/fleetreplay/internal/config"
	"github.com/alfredjeanlab/fleetreplay/internal/events"
	"github.com/alfredjeanlab/fleetreplay/internal/server"
	"github.com/alfredjeanlab/fleetreplay/internal/session"
	"github.com/alfredjeanlab/fleetreplay/internal/source"
	"github.com/alfredjeanlab/fleetreplay/internal/store"
	"github.com/alfredjeanlab/fleetreplay/internal/store/memory"
	"github.com/alfredjeanlab/fleetreplay/internal/store/postgres"
	"github.com/alfredjeanlab/fleetreplay/internal/store/s3kv"
	"github.com/alfredjeanlab/fleetreplay/internal/store/sqlite"
	archive "github.com/alfredjeanlab/fleetreplay/internal/sync"
	"github.com/alfredjeanlab/fleetreplay/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the replay server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// No client connection; serve is the server.
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("error flushing traces", "err", err)
			}
		}()
		if cfg.OTelEndpoint != "" {
			logger.Info("tracing enabled", "endpoint", cfg.OTelEndpoint)
		}

		kv, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := kv.Close(); err != nil {
				logger.Error("error closing store", "err", err)
			}
		}()
		logger.Info("checkpoint store ready", "store", cfg.Store, "key", cfg.CheckpointKey)

		// Notifications go to SSE clients and, when configured, NATS.
		hub := server.NewHub(logger)
		publisher := events.Fanout{hub}
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return err
			}
			publisher = append(publisher, pub)
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("NATS events disabled (FLEETREPLAY_NATS_URL not set)")
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("error closing publisher", "err", err)
			}
		}()

		manager := session.New(session.Options{
			Source:       dataSource(cfg),
			Checkpoints:  checkpoint.New(kv, cfg.CheckpointKey, logger),
			Publisher:    publisher,
			Logger:       logger,
			TickInterval: cfg.TickInterval,
			TickStep:     cfg.TickStep,
		})
		if err := manager.Start(ctx); err != nil {
			return err
		}

		playbackServer := server.NewPlaybackServer(manager, hub, logger)
		grpcServer := server.NewGRPCServer(playbackServer, cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			_ = manager.Close(context.Background())
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           playbackServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startArchiveSync(ctx, cfg, manager, logger)

		if cfg.AuthToken == "" {
			logger.Warn("auth disabled (FLEETREPLAY_AUTH_TOKEN not set)")
		}
		logger.Info("fleetreplay server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"tick_interval", cfg.TickInterval,
			"tick_step", cfg.TickStep,
		)

		<-ctx.Done()
		logger.Info("received signal, shutting down")

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Stop the ticker and write the final checkpoint before the
		// transports go away.
		if err := manager.Close(shutdownCtx); err != nil {
			logger.Error("error closing session", "err", err)
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		logger.Info("shutdown complete")
		return nil
	},
}

// openStore connects the checkpoint backend selected by FLEETREPLAY_STORE.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var (
		kv  store.Store
		err error
	)
	switch cfg.Store {
	case config.StoreMemory:
		kv = memory.New()
	case config.StorePostgres:
		kv, err = postgres.New(ctx, cfg.DatabaseURL)
	case config.StoreSQLite:
		kv, err = sqlite.Open(cfg.SQLitePath)
	case config.StoreS3:
		kv, err = s3kv.New(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3Endpoint)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	return kv, nil
}

// dataSource picks the initial dataset source; the URL wins over the file.
func dataSource(cfg *config.Config) source.Source {
	if cfg.DataURL != "" {
		return source.NewHTTPSource(cfg.DataURL)
	}
	return source.FileSource{Path: cfg.DataFile}
}

// startArchiveSync starts the periodic session export when at least one
// destination is configured. It returns nil when sync is off.
func startArchiveSync(ctx context.Context, cfg *config.Config, manager *session.Manager, logger *slog.Logger) *archive.Scheduler {
	if !cfg.SyncEnabled() {
		return nil
	}

	var dests []archive.Destination
	if cfg.SyncS3Bucket != "" {
		dest, err := archive.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, archive.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	if len(dests) == 0 {
		return nil
	}

	scheduler := archive.NewScheduler(manager, dests, cfg.SyncInterval, logger)
	scheduler.Start(ctx)
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return scheduler
}

func init() {
	serveCmd.Flags().Bool("debug", false, "log at debug level")
}
