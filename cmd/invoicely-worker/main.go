// The worker drains the upload queue: it consumes change messages published
// by the server's sqlite backend and pushes each invoice revision to the
// remote Appwrite collection. A periodic sweep and a startup check recover
// rows whose messages were lost.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"invoicely/internal/amqp"
	"invoicely/internal/config"
	"invoicely/internal/gateway/appwrite"
	applog "invoicely/internal/log"
	"invoicely/internal/storage"
	"invoicely/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: "invoicely-worker",
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AppwriteProjectID == "" || cfg.AppwriteDatabaseID == "" || cfg.AppwriteCollection == "" {
		logger.Error("Worker needs an Appwrite destination; set APPWRITE_PROJECT_ID, APPWRITE_DATABASE_ID and APPWRITE_COLLECTION_ID")
		os.Exit(1)
	}

	logger.Info("Starting invoicely-worker")

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	uploader, err := appwrite.New(appwrite.Config{
		Endpoint:     cfg.AppwriteEndpoint,
		ProjectID:    cfg.AppwriteProjectID,
		APIKey:       cfg.AppwriteAPIKey,
		DatabaseID:   cfg.AppwriteDatabaseID,
		CollectionID: cfg.AppwriteCollection,
	})
	if err != nil {
		logger.Error("Failed to initialize Appwrite client", "error", err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	uploadWorker := worker.NewUploadWorker(repo, uploader, cfg.UploadBatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Recover rows whose messages were lost while the worker was down.
	logger.Info("Performing startup upload check...")
	if err := uploadWorker.StartupUploadCheck(ctx); err != nil {
		logger.Error("Startup upload check failed", "error", err)
		// Keep going; the periodic sweep retries.
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeInvoiceUploads(ctx, func(msg *amqp.InvoiceUploadMessage) error {
			return uploadWorker.HandleUploadMessage(ctx, msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.UploadInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := uploadWorker.ProcessPendingUploads(ctx); err != nil {
					logger.Error("Periodic upload sweep failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
