// Package history keeps a record of generated manifests on disk.
package history

import (
	"time"

	"github.com/Drop-OSS/droplet/pkg/droplet/manifest"
)

// Entry is one recorded generation.
type Entry struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Source    string             `json:"source"`
	Backend   string             `json:"backend"`
	Digest    string             `json:"digest"`
	Output    string             `json:"output,omitempty"`
	Duration  time.Duration      `json:"duration"`
	Summary   manifest.Summary   `json:"summary"`
	Manifest  *manifest.Manifest `json:"manifest,omitempty"`
}

// Record describes a generation to store.
type Record struct {
	Source   string
	Backend  string
	Digest   string
	Output   string
	Duration time.Duration
	Manifest *manifest.Manifest
}
