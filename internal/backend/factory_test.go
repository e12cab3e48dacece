package backend

import (
	"context"
	"strings"
	"testing"

	"invoicely/internal/config"
)

func TestTypeIsValid(t *testing.T) {
	tests := []struct {
		name  string
		t     Type
		valid bool
	}{
		{"appwrite", AppwriteBackend, true},
		{"sqlite", SQLiteBackend, true},
		{"memory", MemoryBackend, true},
		{"empty", Type(""), false},
		{"unknown", Type("postgres"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.t.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	appCfg := &config.Config{
		DataBackend:  config.BackendSQLite,
		SQLiteDBPath: "/tmp/test.db",
		JWTSecret:    "secret",
		AMQPURL:      "amqp://localhost:5672/",
	}

	cfg, err := FromAppConfig(appCfg)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SQLiteBackend {
		t.Errorf("Type = %v, want %v", cfg.Type, SQLiteBackend)
	}
	if cfg.SQLiteDBPath != "/tmp/test.db" {
		t.Errorf("SQLiteDBPath = %q", cfg.SQLiteDBPath)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "bogus"}); err == nil {
		t.Error("expected error for invalid backend type")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "memory needs nothing",
			cfg:  Config{Type: MemoryBackend},
		},
		{
			name:    "sqlite without path",
			cfg:     Config{Type: SQLiteBackend, JWTSecret: "s"},
			wantErr: "database path",
		},
		{
			name:    "sqlite without jwt secret",
			cfg:     Config{Type: SQLiteBackend, SQLiteDBPath: "/tmp/x.db"},
			wantErr: "JWT secret",
		},
		{
			name:    "appwrite without project",
			cfg:     Config{Type: AppwriteBackend, AppwriteEndpoint: "https://cloud.appwrite.io/v1"},
			wantErr: "project ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	factory := NewFactory(nil)
	result, err := factory.CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if result.Invoices == nil || result.Identity == nil {
		t.Error("memory backend should provide both gateways")
	}
	if result.Cleanup != nil {
		t.Error("memory backend should not need cleanup")
	}
}
