package history

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Drop-OSS/droplet/pkg/droplet/manifest"
)

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Version: manifest.Version,
		Size:    30,
		Chunks: map[string]manifest.ChunkRecord{
			"c1": {Files: []manifest.FileEntry{{Filename: "a", Length: 10}, {Filename: "b", Length: 20}}},
		},
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates history with valid directory", func(t *testing.T) {
		t.Parallel()

		h, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New() error = %v, want nil", err)
		}
		if h == nil {
			t.Fatal("New() returned nil")
		}
	})

	t.Run("returns error for empty directory", func(t *testing.T) {
		t.Parallel()

		if _, err := New(""); err == nil {
			t.Fatal("New() error = nil, want error for empty directory")
		}
	})
}

func TestHistory_EnsureDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "history")
	h, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := h.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("path is not a directory")
	}
}

func TestHistory_Record(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	h, _ := New(dir)

	entry, err := h.Record(Record{
		Source:   "/games/TheGame",
		Backend:  "directory",
		Digest:   "sha256",
		Output:   "/tmp/manifest.json",
		Duration: 2 * time.Second,
		Manifest: testManifest(),
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if !strings.HasPrefix(entry.ID, "gen-") {
		t.Errorf("ID = %q, want gen- prefix", entry.ID)
	}
	want := manifest.Summary{Chunks: 1, Files: 2, Bytes: 30}
	if entry.Summary != want {
		t.Errorf("Summary = %+v, want %+v", entry.Summary, want)
	}

	data, err := os.ReadFile(filepath.Join(dir, entry.ID+".json"))
	if err != nil {
		t.Fatalf("entry file not written: %v", err)
	}
	var onDisk Entry
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("entry file is not valid JSON: %v", err)
	}
	if onDisk.Source != "/games/TheGame" || onDisk.Manifest == nil {
		t.Errorf("unexpected entry on disk: %+v", onDisk)
	}
}

func TestHistory_RecordCreatesDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "data", "history")
	h, _ := New(dir)

	entry, err := h.Record(Record{Source: "/games/TheGame", Manifest: testManifest()})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, entry.ID+".json")); err != nil {
		t.Fatalf("entry file not written: %v", err)
	}

	entries, err := h.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("List() returned %d entries, want 1", len(entries))
	}
}

func TestHistory_ListAndGet(t *testing.T) {
	t.Parallel()

	h, _ := New(t.TempDir())

	first, err := h.Record(Record{Source: "first", Manifest: testManifest()})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	second, err := h.Record(Record{Source: "second", Manifest: testManifest()})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := h.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}
	if entries[0].ID != second.ID || entries[1].ID != first.ID {
		t.Errorf("List() order = [%s %s], want newest first", entries[0].ID, entries[1].ID)
	}
	for _, e := range entries {
		if e.Manifest != nil {
			t.Errorf("List() entry %s carries its manifest", e.ID)
		}
	}

	limited, _ := h.List(1)
	if len(limited) != 1 {
		t.Errorf("List(1) returned %d entries", len(limited))
	}

	got, err := h.Get(first.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Source != "first" || got.Manifest == nil {
		t.Errorf("Get() = %+v", got)
	}

	if _, err := h.Get("gen-1999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := h.Get("gen-"); err == nil {
		t.Error("Get(ambiguous prefix) error = nil")
	}
}

func TestHistory_ListMissingDir(t *testing.T) {
	t.Parallel()

	h, _ := New(filepath.Join(t.TempDir(), "missing"))
	entries, err := h.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("List() = %v, want empty slice", entries)
	}
}

func TestHistory_Cleanup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	h, _ := New(dir)

	old := &Entry{ID: "gen-old", Timestamp: time.Now().AddDate(0, 0, -40)}
	if err := h.writeEntry(old); err != nil {
		t.Fatalf("writeEntry() error = %v", err)
	}
	fresh, err := h.Record(Record{Source: "fresh"})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	removed, err := h.Cleanup(30)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}

	if _, err := os.Stat(filepath.Join(dir, "gen-old.json")); !os.IsNotExist(err) {
		t.Error("old entry still present")
	}
	if _, err := h.Get(fresh.ID); err != nil {
		t.Errorf("fresh entry removed: %v", err)
	}
}

func TestHistory_ConcurrentRecord(t *testing.T) {
	t.Parallel()

	h, _ := New(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Record(Record{Source: "concurrent"}); err != nil {
				t.Errorf("Record() error = %v", err)
			}
		}()
	}
	wg.Wait()

	entries, _ := h.List(0)
	if len(entries) != 10 {
		t.Errorf("List() returned %d entries, want 10", len(entries))
	}
}
