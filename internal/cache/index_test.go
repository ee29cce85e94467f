package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadIndexMissingFileIsEmpty(t *testing.T) {
	idx, err := LoadIndex(filepath.Join(t.TempDir(), IndexFileName))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if idx == nil || len(idx) != 0 {
		t.Fatalf("expected empty index, got %v", idx)
	}
}

func TestLoadIndexRejectsInvalidJSON(t *testing.T) {
	path := writeIndexFile(t, `{"file:///data/a.json": {`)
	if _, err := LoadIndex(path); !errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("expected ErrCorruptIndex, got %v", err)
	}
}

func TestLoadIndexRejectsIncompleteRecords(t *testing.T) {
	testCases := map[string]string{
		"missing url":       `{"u": {"path": "/tmp/x", "timestamp": 1, "ttl": 2}}`,
		"missing path":      `{"u": {"url": "u", "timestamp": 1, "ttl": 2}}`,
		"missing timestamp": `{"u": {"url": "u", "path": "/tmp/x", "ttl": 2}}`,
		"missing ttl":       `{"u": {"url": "u", "path": "/tmp/x", "timestamp": 1}}`,
		"url mismatch":      `{"u": {"url": "v", "path": "/tmp/x", "timestamp": 1, "ttl": 2}}`,
		"string timestamp":  `{"u": {"url": "u", "path": "/tmp/x", "timestamp": "1", "ttl": 2}}`,
		"not an object":     `["u"]`,
	}

	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			path := writeIndexFile(t, content)
			if _, err := LoadIndex(path); !errors.Is(err, ErrCorruptIndex) {
				t.Fatalf("expected ErrCorruptIndex, got %v", err)
			}
		})
	}
}

func TestSaveIndexWritesFlatRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexFileName)
	idx := Index{
		"file:///data/a.json": {URL: "file:///data/a.json", Path: "/cache/1", Timestamp: 1000, TTL: 60},
	}
	if err := SaveIndex(idx, path); err != nil {
		t.Fatalf("save error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("index should be JSON: %v", err)
	}
	record := raw["file:///data/a.json"]
	if record["url"] != "file:///data/a.json" || record["path"] != "/cache/1" {
		t.Fatalf("unexpected record: %v", record)
	}
	if record["timestamp"] != float64(1000) || record["ttl"] != float64(60) {
		t.Fatalf("unexpected numeric fields: %v", record)
	}
	if !strings.Contains(string(data), "\n    \"file:///data/a.json\"") {
		t.Fatalf("expected 4-space indentation, got:\n%s", string(data))
	}
}

func TestSaveIndexIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	idx := Index{
		"b": {URL: "b", Path: "/cache/b", Timestamp: 2, TTL: 20},
		"a": {URL: "a", Path: "/cache/a", Timestamp: 1, TTL: 10},
		"c": {URL: "c", Path: "/cache/c", Timestamp: 3, TTL: 30},
	}
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	if err := SaveIndex(idx, first); err != nil {
		t.Fatalf("save error: %v", err)
	}
	if err := SaveIndex(idx, second); err != nil {
		t.Fatalf("save error: %v", err)
	}
	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if string(a) != string(b) {
		t.Fatalf("serialization should be deterministic")
	}
}

func TestIndexRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexFileName)
	original := Index{
		"file:///data/a.json":       {URL: "file:///data/a.json", Path: "/cache/1", Timestamp: 1000, TTL: 60},
		"https://example.com/b.bz2": {URL: "https://example.com/b.bz2", Path: "/cache/2", Timestamp: 0, TTL: 0},
	}

	if err := SaveIndex(original, path); err != nil {
		t.Fatalf("save error: %v", err)
	}
	loaded, err := LoadIndex(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if err := SaveIndex(loaded, path); err != nil {
		t.Fatalf("second save error: %v", err)
	}
	reloaded, err := LoadIndex(path)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if !reflect.DeepEqual(original, reloaded) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", original, reloaded)
	}
}

func TestSaveIndexLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, IndexFileName)
	if err := SaveIndex(nil, path); err != nil {
		t.Fatalf("save error: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != IndexFileName {
		t.Fatalf("expected only the index file, got %v", entries)
	}
	loaded, err := LoadIndex(path)
	if err != nil || len(loaded) != 0 {
		t.Fatalf("expected empty index, got %v (%v)", loaded, err)
	}
}

func TestSaveIndexFailsWhenDirMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", IndexFileName)
	if err := SaveIndex(Index{}, path); err == nil {
		t.Fatalf("expected error when parent dir is missing")
	}
}

func writeIndexFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), IndexFileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write index error: %v", err)
	}
	return path
}
