// Package common contains shared constants and sentinel errors used across
// edgemed components.
package common

// SchemaVersion is the wire schema version carried on every sync item.
const SchemaVersion = "1.0.0"

// AuthHeaderName is the HTTP header used to carry the bearer token on
// outbound sync requests.
const AuthHeaderName = "Authorization"
