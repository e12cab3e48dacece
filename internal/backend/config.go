package backend

import (
	"fmt"

	"invoicely/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := Type(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		AppwriteEndpoint:   appConfig.AppwriteEndpoint,
		AppwriteProjectID:  appConfig.AppwriteProjectID,
		AppwriteAPIKey:     appConfig.AppwriteAPIKey,
		AppwriteDatabaseID: appConfig.AppwriteDatabaseID,
		AppwriteCollection: appConfig.AppwriteCollection,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		JWTSecret:    appConfig.JWTSecret,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case AppwriteBackend:
		if c.AppwriteEndpoint == "" {
			return fmt.Errorf("Appwrite endpoint is required for appwrite backend")
		}
		if c.AppwriteProjectID == "" {
			return fmt.Errorf("Appwrite project ID is required for appwrite backend")
		}
		if c.AppwriteDatabaseID == "" || c.AppwriteCollection == "" {
			return fmt.Errorf("Appwrite database and collection IDs are required for appwrite backend")
		}

	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT secret is required for sqlite backend")
		}
		// AMQP is optional, so we don't validate it

	case MemoryBackend:
		// Memory backend doesn't require additional configuration
	}

	return nil
}

// Types returns all valid backend types
func Types() []Type {
	return []Type{AppwriteBackend, SQLiteBackend, MemoryBackend}
}
