package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/edgemed/edgemed/internal/flagx"
	"github.com/edgemed/edgemed/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It uses
// timex.Duration so the token lifetime can be given as a string like "720h"
// or as integer nanoseconds.
type JsonConfig struct {
	EndpointAddr          string          `json:"endpoint_addr"`
	DatabaseDSN           string          `json:"database_dsn"`
	JWTSecret             string          `json:"jwt_secret"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration"`
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

	if jc.EndpointAddr != "" {
		cfg.EndpointAddr = jc.EndpointAddr
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.JWTSecret != "" {
		cfg.JWTSecret = jc.JWTSecret
	}
	if jc.TokenValidityDuration != nil {
		cfg.TokenValidityDuration = time.Duration(jc.TokenValidityDuration.Duration)
	}
}
