package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/edgemed/edgemed/internal/flagx"
	"github.com/edgemed/edgemed/internal/models"
	"github.com/edgemed/edgemed/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so intervals can be given as strings like "30s" or as
// integer nanoseconds. Only fields present in the file override the running
// config.
type JsonConfig struct {
	Mode            string          `json:"mode"`
	CloudAPIURL     string          `json:"cloud_api_url"`
	AuthToken       string          `json:"auth_token"`
	DeviceID        string          `json:"device_id"`
	DatabasePath    string          `json:"database_path"`
	KeysetPath      string          `json:"keyset_path"`
	SyncInterval    *timex.Duration `json:"sync_interval"`
	MaxSyncInterval *timex.Duration `json:"max_sync_interval"`
	SyncBatchSize   *int            `json:"sync_batch_size"`
	StoreRawNotes   *bool           `json:"store_raw_notes"`
	LocalAPIAddr    string          `json:"local_api_addr"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flags. Missing file path means no JSON is loaded. Read or
// unmarshal errors panic, matching the flag layer.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.Mode != "" {
		cfg.Mode = models.Mode(jc.Mode)
	}
	if jc.CloudAPIURL != "" {
		cfg.CloudAPIURL = jc.CloudAPIURL
	}
	if jc.AuthToken != "" {
		cfg.AuthToken = jc.AuthToken
	}
	if jc.DeviceID != "" {
		cfg.DeviceID = jc.DeviceID
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.KeysetPath != "" {
		cfg.KeysetPath = jc.KeysetPath
	}
	if jc.SyncInterval != nil {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.MaxSyncInterval != nil {
		cfg.MaxSyncInterval = time.Duration(jc.MaxSyncInterval.Duration)
	}
	if jc.SyncBatchSize != nil {
		cfg.SyncBatchSize = *jc.SyncBatchSize
	}
	if jc.StoreRawNotes != nil {
		cfg.StoreRawNotes = *jc.StoreRawNotes
	}
	if jc.LocalAPIAddr != "" {
		cfg.LocalAPIAddr = jc.LocalAPIAddr
	}
}
