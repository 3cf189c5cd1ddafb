package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "memory store, local blobs: valid",
			cfg:     Config{StoreDriver: "memory", BlobDriver: "local", WorkerConcurrency: 1},
			wantErr: false,
		},
		{
			name:    "postgres store without dsn: invalid",
			cfg:     Config{StoreDriver: "postgres", BlobDriver: "local", WorkerConcurrency: 1},
			wantErr: true,
		},
		{
			name: "postgres store with dsn: valid",
			cfg: Config{
				StoreDriver: "postgres", PostgresDSN: "postgres://localhost/db",
				BlobDriver: "local", WorkerConcurrency: 1,
			},
			wantErr: false,
		},
		{
			name:    "s3 blobs without bucket: invalid",
			cfg:     Config{StoreDriver: "memory", BlobDriver: "s3", WorkerConcurrency: 1},
			wantErr: true,
		},
		{
			name:    "unknown store driver: invalid",
			cfg:     Config{StoreDriver: "mongo", BlobDriver: "local", WorkerConcurrency: 1},
			wantErr: true,
		},
		{
			name:    "zero worker concurrency: invalid",
			cfg:     Config{StoreDriver: "memory", BlobDriver: "local", WorkerConcurrency: 0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "memory", cfg.StoreDriver)
	require.Equal(t, "local", cfg.BlobDriver)
	require.Equal(t, 10, cfg.WorkerConcurrency)
	require.Equal(t, 5*time.Minute, cfg.LeaseDuration)
	require.Equal(t, 8, cfg.WebhookConcurrency)
	require.Equal(t, 5, cfg.WebhookMaxAttempts)
}
