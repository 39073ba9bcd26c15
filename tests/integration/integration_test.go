package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/estatepress/sitesync/internal/cache"
	"github.com/estatepress/sitesync/internal/config"
	"github.com/estatepress/sitesync/internal/database"
	"github.com/estatepress/sitesync/internal/handlers"
	"github.com/estatepress/sitesync/internal/reconcile"
	"github.com/estatepress/sitesync/internal/store"
	"github.com/estatepress/sitesync/internal/sync"
	"github.com/estatepress/sitesync/tests/helpers"
)

// TestWithContainers runs the service stack against real MariaDB and Redis
// containers.
func TestWithContainers(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc, err := helpers.CreateAllTestContainers(t)
	if err != nil {
		t.Fatalf("Failed to create test containers: %v", err)
	}
	defer tc.Terminate(t)

	cfg := &config.Config{
		DBType:            "mysql",
		DBHost:            tc.DBHost,
		DBPort:            tc.DBPort,
		DBDatabase:        "sitesync",
		DBUser:            "sitesync",
		DBPassword:        "sitesync",
		DBConnectionLimit: 5,
	}

	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Run("VersionControl", func(t *testing.T) {
		testVersionControl(t, db)
	})

	t.Run("SinglePointerUnderConcurrency", func(t *testing.T) {
		testSinglePointerUnderConcurrency(t, db)
	})

	t.Run("SaveEndpointEnvelope", func(t *testing.T) {
		testSaveEndpointEnvelope(t, db)
	})

	t.Run("BridgeRelay", func(t *testing.T) {
		testBridgeRelay(t, tc.RedisAddr)
	})
}

// testVersionControl tests optimistic locking against a real database
func testVersionControl(t *testing.T, db *gorm.DB) {
	st := store.New(db)

	helpers.CreateTestVersions(t, st, store.EntityContent, "", `{"heroTitle":"v1"}`)

	// Stale expected version fails
	stale := uint64(0)
	_, err := st.SaveVersion(context.Background(), store.SaveInput{
		EntityType:      store.EntityContent,
		Payload:         json.RawMessage(`{"heroTitle":"stale"}`),
		ExpectedVersion: &stale,
	})
	if err == nil {
		t.Error("Expected version conflict error")
	}

	// Correct expected version succeeds
	current := uint64(1)
	rec, err := st.SaveVersion(context.Background(), store.SaveInput{
		EntityType:      store.EntityContent,
		Payload:         json.RawMessage(`{"heroTitle":"v2"}`),
		ExpectedVersion: &current,
	})
	if err != nil {
		t.Fatalf("Failed to update with correct version: %v", err)
	}
	if rec.VersionNumber != 2 {
		t.Errorf("Expected version 2, got %d", rec.VersionNumber)
	}
}

// testSinglePointerUnderConcurrency hammers one entity from several
// goroutines and verifies the row locking keeps the history gapless with a
// single current pointer.
func testSinglePointerUnderConcurrency(t *testing.T, db *gorm.DB) {
	st := store.New(db)

	const writers = 8
	done := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			_, err := st.SaveVersion(context.Background(), store.SaveInput{
				EntityType: store.EntityDesign,
				Payload:    json.RawMessage(`{"palette":"contended"}`),
			})
			done <- err
		}()
	}
	for i := 0; i < writers; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Concurrent save failed: %v", err)
		}
	}

	recs, err := st.GetHistory(context.Background(), store.EntityDesign, "")
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(recs) != writers {
		t.Fatalf("Expected %d versions, got %d", writers, len(recs))
	}

	current := 0
	seen := map[uint64]bool{}
	for _, rec := range recs {
		if rec.IsCurrent {
			current++
		}
		if seen[rec.VersionNumber] {
			t.Errorf("Duplicate version number %d", rec.VersionNumber)
		}
		seen[rec.VersionNumber] = true
	}
	if current != 1 {
		t.Errorf("Expected exactly 1 current row, got %d", current)
	}
	for i := uint64(1); i <= uint64(writers); i++ {
		if !seen[i] {
			t.Errorf("Version %d missing, history has a gap", i)
		}
	}
}

// testSaveEndpointEnvelope exercises the HTTP surface against the real store
func testSaveEndpointEnvelope(t *testing.T, db *gorm.DB) {
	ca, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), 0)
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	defer ca.Close()

	st := store.New(db)
	rec := reconcile.New(st, ca, nil, "integration")

	app := fiber.New()
	handler := &handlers.ContentHandler{Reconciler: rec, Store: st}
	app.Post("/api/content/:entityType/item/:entityId", handler.Save)
	app.Get("/api/content/:entityType/item/:entityId", handler.GetItem)

	body, _ := json.Marshal(map[string]interface{}{
		"payload":    map[string]interface{}{"title": "Cottage", "price": 450000},
		"authorName": "Integration",
	})
	req := httptest.NewRequest("POST", "/api/content/properties/item/int-prop-1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, int(10*time.Second/time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	helpers.AssertStatus(t, resp, 200)

	var envelope map[string]interface{}
	helpers.ParseJSON(t, resp, &envelope)
	helpers.AssertEnvelopeOK(t, envelope)

	// Read back through the store path
	req = httptest.NewRequest("GET", "/api/content/properties/item/int-prop-1", nil)
	resp, err = app.Test(req, int(10*time.Second/time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	helpers.AssertStatus(t, resp, 200)

	var read map[string]interface{}
	helpers.ParseJSON(t, resp, &read)
	if read["source"] != "store" {
		t.Errorf("Expected store source, got %v", read["source"])
	}
}

// testBridgeRelay verifies two hub instances exchange events over redis
func testBridgeRelay(t *testing.T, redisAddr string) {
	received := make(chan sync.Event, 1)

	b1 := sync.NewBridge(redisAddr, "", "instance-1")
	defer b1.Close()
	b1.Start(context.Background(), func(sync.Event) {})

	b2 := sync.NewBridge(redisAddr, "", "instance-2")
	defer b2.Close()
	b2.Start(context.Background(), func(ev sync.Event) { received <- ev })

	b1.Publish(sync.Event{
		Type:     store.EntityContent,
		Action:   sync.ActionUpdate,
		Data:     json.RawMessage(`{"heroTitle":"Across instances"}`),
		OriginID: "session-1",
	})

	select {
	case ev := <-received:
		if ev.OriginID != "session-1" {
			t.Errorf("Expected origin preserved across the bridge, got %q", ev.OriginID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Event never crossed the bridge")
	}
}
