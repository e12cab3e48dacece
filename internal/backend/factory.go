package backend

import (
	"context"
	"fmt"
	"log/slog"

	"invoicely/internal/amqp"
	"invoicely/internal/gateway/appwrite"
	"invoicely/internal/gateway/memory"
	"invoicely/internal/services"
	"invoicely/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case AppwriteBackend:
		return f.createAppwriteBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createAppwriteBackend(config Config) (*Result, error) {
	cli, err := appwrite.New(appwrite.Config{
		Endpoint:     config.AppwriteEndpoint,
		ProjectID:    config.AppwriteProjectID,
		APIKey:       config.AppwriteAPIKey,
		DatabaseID:   config.AppwriteDatabaseID,
		CollectionID: config.AppwriteCollection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Appwrite client: %w", err)
	}

	f.logger.Info("Initialized Appwrite backend",
		"endpoint", config.AppwriteEndpoint,
		"project", config.AppwriteProjectID)

	// One client serves both roles: documents and accounts live in the
	// same Appwrite project.
	return &Result{
		Invoices: cli,
		Identity: cli,
		Cleanup:  nil,
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional; without it changes stay local until the worker's
	// startup sweep picks them up.
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without upload queue", "error", err)
			amqpClient = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	invoiceService := services.NewLocalInvoiceService(repo, amqpClient)
	identityStore := storage.NewIdentityStore(repo, config.JWTSecret)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil)

	return &Result{
		Invoices: invoiceService,
		Identity: identityStore,
		Cleanup:  invoiceService.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*Result, error) {
	store := memory.NewDemo()

	f.logger.Info("Initialized memory backend")

	return &Result{
		Invoices: store,
		Identity: store,
		Cleanup:  nil,
	}, nil
}
