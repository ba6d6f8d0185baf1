package config

import (
	"time"

	"github.com/edgemed/edgemed/internal/models"
)

// Config holds runtime settings for the edge agent.
//
// Fields:
//   - Mode: operating mode, "demo" or "prod". Demo never syncs raw note text.
//   - CloudAPIURL: base URL of the remote sync endpoint.
//   - AuthToken: bearer token sent with every remote request.
//   - DeviceID: stable identifier of this device, part of every idempotency key.
//   - DatabasePath: SQLite queue file. ":memory:" is accepted for tests.
//   - KeysetPath: encryption keyset file, created on first start.
//   - KeysetPassphrase: when set, the queue key is derived from it instead of
//     being stored in the keyset file.
//   - PromptPassphrase: read the passphrase from the terminal at startup.
//   - SyncInterval / MaxSyncInterval: worker cadence bounds.
//   - SyncBatchSize: max items drained per cycle.
//   - StoreRawNotes: keep original note text inside encrypted payloads.
//   - LocalAPIAddr: bind address of the local HTTP API.
type Config struct {
	Mode             models.Mode
	CloudAPIURL      string
	AuthToken        string
	DeviceID         string
	DatabasePath     string
	KeysetPath       string
	KeysetPassphrase string
	PromptPassphrase bool
	SyncInterval     time.Duration
	MaxSyncInterval  time.Duration
	SyncBatchSize    int
	StoreRawNotes    bool
	LocalAPIAddr     string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Mode = models.ModeDemo
	c.CloudAPIURL = "http://127.0.0.1:8080"
	c.DeviceID = "dev-local"
	c.DatabasePath = "data/queue.db"
	c.KeysetPath = "data/keyset.json"
	c.SyncInterval = 30 * time.Second
	c.MaxSyncInterval = 300 * time.Second
	c.SyncBatchSize = 10
	c.StoreRawNotes = true
	c.LocalAPIAddr = "127.0.0.1:8787"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, environment variables, and command-line flags.
// Later sources take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
