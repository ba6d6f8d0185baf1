package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgemed/edgemed/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, models.ModeDemo, c.Mode)
	assert.Equal(t, "http://127.0.0.1:8080", c.CloudAPIURL)
	assert.Equal(t, "dev-local", c.DeviceID)
	assert.Equal(t, 30*time.Second, c.SyncInterval)
	assert.Equal(t, 300*time.Second, c.MaxSyncInterval)
	assert.Equal(t, 10, c.SyncBatchSize)
	assert.True(t, c.StoreRawNotes)
	assert.Equal(t, "127.0.0.1:8787", c.LocalAPIAddr)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg := LoadConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, models.ModeDemo, cfg.Mode)
	assert.Equal(t, "data/queue.db", cfg.DatabasePath)
	assert.Equal(t, "data/keyset.json", cfg.KeysetPath)
}
