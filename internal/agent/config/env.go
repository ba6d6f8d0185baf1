package config

import (
	"os"
	"strconv"
	"time"

	"github.com/edgemed/edgemed/internal/models"
)

// parseEnv overlays Config with EDGEMED_* environment variables. Unset
// variables leave the current value untouched; unparsable numeric values are
// ignored rather than fatal, so a bad deployment variable cannot brick the
// agent.
func parseEnv(cfg *Config) {
	if v := os.Getenv("EDGEMED_MODE"); v != "" {
		cfg.Mode = models.Mode(v)
	}
	if v := os.Getenv("EDGEMED_CLOUD_URL"); v != "" {
		cfg.CloudAPIURL = v
	}
	if v := os.Getenv("EDGEMED_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}
	if v := os.Getenv("EDGEMED_DEVICE_ID"); v != "" {
		cfg.DeviceID = v
	}
	if v := os.Getenv("EDGEMED_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("EDGEMED_KEYSET_PATH"); v != "" {
		cfg.KeysetPath = v
	}
	if v := os.Getenv("EDGEMED_KEYSET_PASSPHRASE"); v != "" {
		cfg.KeysetPassphrase = v
	}
	if v := os.Getenv("EDGEMED_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SyncInterval = d
		}
	}
	if v := os.Getenv("EDGEMED_SYNC_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SyncBatchSize = n
		}
	}
	if v := os.Getenv("EDGEMED_STORE_RAW_NOTES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.StoreRawNotes = b
		}
	}
	if v := os.Getenv("EDGEMED_LOCAL_ADDR"); v != "" {
		cfg.LocalAPIAddr = v
	}
}
