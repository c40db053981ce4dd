package storage

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentroll/internal/config"
)

func testStorageConfig() config.StorageConfig {
	return config.StorageConfig{
		Endpoint:        "storage.example.com:9000",
		AccessKey:       "access",
		SecretKey:       "secret",
		UseSSL:          true,
		UploadBucket:    "rentrolls",
		ProcessedBucket: "processed",
		URLExpiry:       24 * time.Hour,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.StorageConfig)
		wantErr string
	}{
		{"missing endpoint", func(c *config.StorageConfig) { c.Endpoint = "" }, "endpoint is required"},
		{"missing access key", func(c *config.StorageConfig) { c.AccessKey = "" }, "credentials are required"},
		{"missing secret key", func(c *config.StorageConfig) { c.SecretKey = "" }, "credentials are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testStorageConfig()
			tt.mutate(&cfg)

			_, err := NewClient(cfg, testLogger())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewClientAcceptsURLEndpoint(t *testing.T) {
	cfg := testStorageConfig()
	cfg.Endpoint = "https://storage.example.com:9000"

	client, err := NewClient(cfg, testLogger())
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestDownloadURLPresignsOffline(t *testing.T) {
	// Presigning is a local signature computation; no server round trip.
	client, err := NewClient(testStorageConfig(), testLogger())
	require.NoError(t, err)

	u, err := client.DownloadURL(context.Background(), "harbor_court.csv")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(u, "https://storage.example.com:9000/processed/harbor_court.csv"))
	assert.Contains(t, u, "X-Amz-Signature=")
	assert.Contains(t, u, "X-Amz-Expires=86400")
}
