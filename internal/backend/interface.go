package backend

import (
	"context"

	"invoicely/internal/gateway"
)

// CleanupFunc releases resources held by a backend
type CleanupFunc func() error

// Result bundles the two gateways a backend provides plus an optional
// cleanup function.
type Result struct {
	Invoices gateway.InvoiceGateway
	Identity gateway.IdentityGateway
	Cleanup  CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type Type

	// Appwrite specific
	AppwriteEndpoint   string
	AppwriteProjectID  string
	AppwriteAPIKey     string
	AppwriteDatabaseID string
	AppwriteCollection string

	// SQLite specific
	SQLiteDBPath string
	JWTSecret    string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// Type represents the kind of backend
type Type string

const (
	AppwriteBackend Type = "appwrite"
	SQLiteBackend   Type = "sqlite"
	MemoryBackend   Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case AppwriteBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
