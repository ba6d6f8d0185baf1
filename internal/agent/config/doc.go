// Package config loads runtime configuration for the edge agent.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via the -c or -config flags.
//  3. EDGEMED_* environment variables.
//  4. Command-line flags, which override everything else.
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "30s" or integer nanoseconds:
//
//	{
//	  "mode": "prod",
//	  "cloud_api_url": "https://sync.example.com",
//	  "device_id": "clinic-7-tablet-2",
//	  "sync_interval": "30s",
//	  "sync_batch_size": 10
//	}
//
// The keyset passphrase is deliberately not accepted as a flag or JSON field:
// set EDGEMED_KEYSET_PASSPHRASE or use -P to type it at startup.
package config
