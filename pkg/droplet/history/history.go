package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Drop-OSS/droplet/pkg/droplet/logging"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("history entry not found")

// History stores one JSON file per generated manifest.
type History struct {
	dir string
	mu  sync.Mutex
}

// New creates a History in dir. The directory is created on the first
// Record.
func New(dir string) (*History, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &History{dir: dir}, nil
}

// Dir returns the history directory.
func (h *History) Dir() string {
	return h.dir
}

// EnsureDir creates the history directory if it does not exist.
func (h *History) EnsureDir() error {
	return os.MkdirAll(h.dir, 0o755)
}

// Record persists a generation and returns the created entry.
func (h *History) Record(rec Record) (*Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now().UTC()
	entry := &Entry{
		ID:        generateID(now),
		Timestamp: now,
		Source:    rec.Source,
		Backend:   rec.Backend,
		Digest:    rec.Digest,
		Output:    rec.Output,
		Duration:  rec.Duration,
		Manifest:  rec.Manifest,
	}
	if rec.Manifest != nil {
		entry.Summary = rec.Manifest.Summarize()
	}

	if err := h.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to write history entry: %w", err)
	}

	logging.Get("history").Debug("recorded generation", "id", entry.ID, "source", entry.Source)
	return entry, nil
}

// writeEntry writes an entry atomically.
func (h *History) writeEntry(entry *Entry) error {
	if err := h.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	path := filepath.Join(h.dir, entry.ID+".json")

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// List returns entries newest first, without their manifests. A limit of
// 0 or less returns everything.
func (h *History) List(limit int) ([]Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.readAll()
	if err != nil {
		return nil, err
	}

	for i := range entries {
		entries[i].Manifest = nil
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get returns the entry with the given id, or the only entry whose id
// starts with it.
func (h *History) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if entry, err := h.readEntryFile(id + ".json"); err == nil {
		return entry, nil
	}

	entries, err := h.readAll()
	if err != nil {
		return nil, err
	}

	var match *Entry
	for i := range entries {
		if !strings.HasPrefix(entries[i].ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("ambiguous entry ID: %s", id)
		}
		match = &entries[i]
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}

// Cleanup removes entries recorded more than retentionDays ago and
// returns how many were removed.
func (h *History) Cleanup(retentionDays int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	entries, err := h.readAll()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(h.dir, entry.ID+".json")); err != nil {
			logging.Get("history").Warn("failed to remove entry", "id", entry.ID, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// readAll must be called with h.mu held.
func (h *History) readAll() ([]Entry, error) {
	files, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	entries := []Entry{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		entry, err := h.readEntryFile(f.Name())
		if err != nil {
			continue
		}
		entries = append(entries, *entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

func (h *History) readEntryFile(filename string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(h.dir, filename))
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}

// generateID creates an ID like "gen-2024-06-15T10-30-00-1a2b3c4d".
func generateID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("gen-%s-%s", now.Format("2006-01-02T15-04-05"), suffix)
}
