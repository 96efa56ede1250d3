// Package config provides configuration management for droplet.
package config

// Default configuration values.
const (
	DefaultChunkSize   = "64MiB"
	DefaultTolerance   = "1MiB"
	DefaultReadBuffer  = "1MiB"
	DefaultDigest      = "sha256"
	DefaultFormat      = "json"
	DefaultCompression = "none"
	DefaultSevenZip    = "7z"

	// DefaultRetentionDays is how long generation history is kept.
	DefaultRetentionDays = 30
)

// DefaultComponentLevels are the per-component log levels written to a
// fresh config file.
var DefaultComponentLevels = map[string]string{
	"generator": "info",
	"source":    "info",
	"cache":     "warn",
	"history":   "info",
	"cli":       "info",
}
