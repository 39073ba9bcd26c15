package cache

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func openTestCache(t *testing.T, maxValueBytes int) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"), maxValueBytes)
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSetGetRoundtrip(t *testing.T) {
	c := openTestCache(t, 0)

	payload := json.RawMessage(`{"heroTitle":"Welcome home"}`)
	if err := c.Set("content", payload); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get("content")
	if !ok {
		t.Fatal("Expected cache hit")
	}
	if string(got) != string(payload) {
		t.Errorf("Expected %s, got %s", payload, got)
	}
}

func TestGetMissingKey(t *testing.T) {
	c := openTestCache(t, 0)

	if _, ok := c.Get("nope"); ok {
		t.Error("Expected miss for absent key")
	}
}

func TestSetOverwritesExisting(t *testing.T) {
	c := openTestCache(t, 0)

	if err := c.Set("design", json.RawMessage(`{"palette":"dark"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Set("design", json.RawMessage(`{"palette":"light"}`)); err != nil {
		t.Fatalf("Second set failed: %v", err)
	}

	got, ok := c.Get("design")
	if !ok {
		t.Fatal("Expected cache hit")
	}
	var doc map[string]string
	if err := json.Unmarshal(got, &doc); err != nil {
		t.Fatalf("Invalid JSON from cache: %v", err)
	}
	if doc["palette"] != "light" {
		t.Errorf("Expected overwritten value, got %q", doc["palette"])
	}
	if n := c.Len(); n != 1 {
		t.Errorf("Expected 1 entry after overwrite, got %d", n)
	}
}

func TestQuotaExceeded(t *testing.T) {
	c := openTestCache(t, 64)

	big := json.RawMessage(`{"blob":"` + strings.Repeat("x", 128) + `"}`)
	err := c.Set("images/huge", big)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}

	// Nothing partial should have been written
	if _, ok := c.Get("images/huge"); ok {
		t.Error("Expected no entry after quota rejection")
	}
}

func TestInvalidJSONTreatedAsAbsent(t *testing.T) {
	c := openTestCache(t, 0)

	// Bypass Set's validation by writing a corrupt row directly
	res := c.db.Exec("INSERT INTO cache_entries (key, value) VALUES (?, ?)", "content", "{not json")
	if res.Error != nil {
		t.Fatalf("Failed to plant corrupt row: %v", res.Error)
	}

	if _, ok := c.Get("content"); ok {
		t.Error("Expected corrupt entry to read as absent")
	}
}

func TestRemove(t *testing.T) {
	c := openTestCache(t, 0)

	if err := c.Set("properties/123", json.RawMessage(`{"price":450000}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Remove("properties/123"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := c.Get("properties/123"); ok {
		t.Error("Expected miss after remove")
	}

	// Removing an absent key is not an error
	if err := c.Remove("properties/123"); err != nil {
		t.Errorf("Remove of absent key failed: %v", err)
	}
}

func TestScanPrefix(t *testing.T) {
	c := openTestCache(t, 0)

	entries := map[string]string{
		"properties/a": `{"title":"Cottage"}`,
		"properties/b": `{"title":"Loft"}`,
		"images/a":     `{"url":"/img/a.jpg"}`,
	}
	for k, v := range entries {
		if err := c.Set(k, json.RawMessage(v)); err != nil {
			t.Fatalf("Set %s failed: %v", k, err)
		}
	}

	got := c.Scan("properties/")
	if len(got) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(got))
	}
	for _, k := range []string{"properties/a", "properties/b"} {
		if _, ok := got[k]; !ok {
			t.Errorf("Expected %s in scan result", k)
		}
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	if err := c.Set("content", json.RawMessage(`{"heroTitle":"Persisted"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	c2, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Failed to reopen cache: %v", err)
	}
	defer c2.Close()

	got, ok := c2.Get("content")
	if !ok {
		t.Fatal("Expected entry to survive reopen")
	}
	var doc map[string]string
	if err := json.Unmarshal(got, &doc); err != nil {
		t.Fatalf("Invalid JSON from cache: %v", err)
	}
	if doc["heroTitle"] != "Persisted" {
		t.Errorf("Expected persisted value, got %q", doc["heroTitle"])
	}
}
