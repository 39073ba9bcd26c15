package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/estatepress/sitesync/internal/cache"
	"github.com/estatepress/sitesync/internal/models"
	"github.com/estatepress/sitesync/internal/store"
	"github.com/estatepress/sitesync/internal/sync"
)

// recordingHub captures broadcast events for assertions.
type recordingHub struct {
	events []sync.Event
}

func (r *recordingHub) Broadcast(ev sync.Event) {
	r.events = append(r.events, ev)
}

type fixture struct {
	store      *store.Store
	cache      *cache.Cache
	hub        *recordingHub
	reconciler *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ContentVersion{}))

	ca, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ca.Close() })

	hub := &recordingHub{}
	st := store.New(db)
	return &fixture{
		store:      st,
		cache:      ca,
		hub:        hub,
		reconciler: New(st, ca, hub, "server-1"),
	}
}

// newOfflineFixture builds a reconciler whose store of record is unreachable.
func newOfflineFixture(t *testing.T) *fixture {
	t.Helper()

	ca, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ca.Close() })

	hub := &recordingHub{}
	st := store.New(nil)
	return &fixture{
		store:      st,
		cache:      ca,
		hub:        hub,
		reconciler: New(st, ca, hub, "server-1"),
	}
}

func asMap(t *testing.T, raw json.RawMessage) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestLoadInitialFromSeed(t *testing.T) {
	f := newFixture(t)

	res := f.reconciler.LoadInitial(context.Background(), store.EntityContent, "")
	assert.Equal(t, SourceSeed, res.Source)
	require.True(t, json.Valid(res.Payload))
	assert.NotEmpty(t, asMap(t, res.Payload))
}

func TestLoadInitialFromStoreRefreshesCache(t *testing.T) {
	f := newFixture(t)

	_, err := f.reconciler.Save(context.Background(), SaveRequest{
		EntityType: store.EntityContent,
		Payload:    json.RawMessage(`{"heroTitle":"From store"}`),
	})
	require.NoError(t, err)

	res := f.reconciler.LoadInitial(context.Background(), store.EntityContent, "")
	assert.Equal(t, SourceStore, res.Source)
	assert.EqualValues(t, 1, res.VersionNumber)

	cached, ok := f.cache.Get("content")
	require.True(t, ok, "store read should refresh the cache")
	assert.Equal(t, "From store", asMap(t, cached)["heroTitle"])
}

func TestLoadInitialFallsBackToCache(t *testing.T) {
	f := newOfflineFixture(t)

	require.NoError(t, f.cache.Set("design", json.RawMessage(`{"palette":"cached"}`)))

	res := f.reconciler.LoadInitial(context.Background(), store.EntityDesign, "")
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, "cached", asMap(t, res.Payload)["palette"])
}

func TestSaveMergePreservesSiblings(t *testing.T) {
	f := newFixture(t)

	_, err := f.reconciler.Save(context.Background(), SaveRequest{
		EntityType: store.EntityContent,
		Payload:    json.RawMessage(`{"heroTitle":"Hello","aboutText":"Us"}`),
	})
	require.NoError(t, err)

	res, err := f.reconciler.Save(context.Background(), SaveRequest{
		EntityType: store.EntityContent,
		Payload:    json.RawMessage(`{"heroTitle":"Changed"}`),
	})
	require.NoError(t, err)

	doc := asMap(t, res.Payload)
	assert.Equal(t, "Changed", doc["heroTitle"])
	assert.Equal(t, "Us", doc["aboutText"], "untouched sibling must survive the merge")
}

func TestSaveRunsFullPipeline(t *testing.T) {
	f := newFixture(t)

	res, err := f.reconciler.Save(context.Background(), SaveRequest{
		EntityType: store.EntityProperties,
		EntityID:   "prop-1",
		Payload:    json.RawMessage(`{"title":"Cottage"}`),
		OriginID:   "session-a",
		OriginName: "Alice",
	})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.EqualValues(t, 1, res.VersionNumber)
	assert.NotEmpty(t, res.VersionID)

	// Cache mirrors the versioned state
	cached, ok := f.cache.Get("properties/prop-1")
	require.True(t, ok)
	assert.Equal(t, "Cottage", asMap(t, cached)["title"])

	// Broadcast carries the caller's origin
	require.Len(t, f.hub.events, 1)
	ev := f.hub.events[0]
	assert.Equal(t, store.EntityProperties, ev.Type)
	assert.Equal(t, sync.ActionUpdate, ev.Action)
	assert.Equal(t, "prop-1", ev.EntityID)
	assert.Equal(t, "session-a", ev.OriginID)
	assert.Equal(t, "Alice", ev.OriginName)
}

func TestSaveDegradedWhenStoreOffline(t *testing.T) {
	f := newOfflineFixture(t)

	res, err := f.reconciler.Save(context.Background(), SaveRequest{
		EntityType: store.EntityContent,
		Payload:    json.RawMessage(`{"heroTitle":"Offline edit"}`),
	})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.NotEmpty(t, res.Warning)
	assert.Zero(t, res.VersionNumber)

	// The edit still lands in the cache for subsequent reads
	cached, ok := f.cache.Get("content")
	require.True(t, ok)
	assert.Equal(t, "Offline edit", asMap(t, cached)["heroTitle"])

	// Degraded saves are not broadcast; peers would diverge from the store
	assert.Empty(t, f.hub.events)
}

func TestSaveCriticalTypeFailsHardOffline(t *testing.T) {
	f := newOfflineFixture(t)

	_, err := f.reconciler.Save(context.Background(), SaveRequest{
		EntityType: store.EntityProperties,
		EntityID:   "prop-1",
		Payload:    json.RawMessage(`{"title":"Cottage"}`),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrUnavailable))

	// No partial state anywhere
	_, ok := f.cache.Get("properties/prop-1")
	assert.False(t, ok)
	assert.Empty(t, f.hub.events)
}

func TestSaveVersionConflictAbortsBeforeCache(t *testing.T) {
	f := newFixture(t)

	_, err := f.reconciler.Save(context.Background(), SaveRequest{
		EntityType: store.EntityContent,
		Payload:    json.RawMessage(`{"heroTitle":"v1"}`),
	})
	require.NoError(t, err)
	_, err = f.reconciler.Save(context.Background(), SaveRequest{
		EntityType: store.EntityContent,
		Payload:    json.RawMessage(`{"heroTitle":"v2"}`),
	})
	require.NoError(t, err)

	stale := uint64(1)
	_, err = f.reconciler.Save(context.Background(), SaveRequest{
		EntityType:      store.EntityContent,
		Payload:         json.RawMessage(`{"heroTitle":"stale"}`),
		ExpectedVersion: &stale,
	})
	require.True(t, errors.Is(err, store.ErrVersionConflict))

	// Cache still holds the accepted state
	cached, ok := f.cache.Get("content")
	require.True(t, ok)
	assert.Equal(t, "v2", asMap(t, cached)["heroTitle"])
}

func TestSaveUnknownEntityType(t *testing.T) {
	f := newFixture(t)

	_, err := f.reconciler.Save(context.Background(), SaveRequest{
		EntityType: "bogus",
		Payload:    json.RawMessage(`{}`),
	})
	require.Error(t, err)
}

func TestDeleteWritesTombstoneAndBroadcasts(t *testing.T) {
	f := newFixture(t)

	_, err := f.reconciler.Save(context.Background(), SaveRequest{
		EntityType: store.EntityImages,
		EntityID:   "img-1",
		Payload:    json.RawMessage(`{"url":"/img/a.jpg"}`),
	})
	require.NoError(t, err)
	f.hub.events = nil

	res, err := f.reconciler.Delete(context.Background(), SaveRequest{
		EntityType: store.EntityImages,
		EntityID:   "img-1",
	})
	require.NoError(t, err)

	doc := asMap(t, res.Payload)
	assert.Equal(t, true, doc["deleted"])
	assert.Equal(t, "/img/a.jpg", doc["url"], "tombstone keeps the last state for history")

	_, ok := f.cache.Get("images/img-1")
	assert.False(t, ok, "cache entry must be dropped")

	require.Len(t, f.hub.events, 1)
	assert.Equal(t, sync.ActionDelete, f.hub.events[0].Action)

	// History survives the delete
	recs, err := f.store.GetHistory(context.Background(), store.EntityImages, "img-1")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestDeleteNeverDegrades(t *testing.T) {
	f := newOfflineFixture(t)

	_, err := f.reconciler.Delete(context.Background(), SaveRequest{
		EntityType: store.EntityImages,
		EntityID:   "img-1",
	})
	require.Error(t, err)
	assert.Empty(t, f.hub.events)
}

func TestRollbackRestoresAndRebroadcasts(t *testing.T) {
	f := newFixture(t)

	first, err := f.reconciler.Save(context.Background(), SaveRequest{
		EntityType: store.EntityContent,
		Payload:    json.RawMessage(`{"heroTitle":"Original"}`),
	})
	require.NoError(t, err)
	_, err = f.reconciler.Save(context.Background(), SaveRequest{
		EntityType: store.EntityContent,
		Payload:    json.RawMessage(`{"heroTitle":"Edited"}`),
	})
	require.NoError(t, err)
	f.hub.events = nil

	res, err := f.reconciler.Rollback(context.Background(), SaveRequest{
		EntityType: store.EntityContent,
	}, first.VersionID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.VersionNumber)
	assert.Equal(t, "Original", asMap(t, res.Payload)["heroTitle"])

	cached, ok := f.cache.Get("content")
	require.True(t, ok)
	assert.Equal(t, "Original", asMap(t, cached)["heroTitle"])

	require.Len(t, f.hub.events, 1)
	assert.Equal(t, sync.ActionUpdate, f.hub.events[0].Action)
}

func TestApplyRemoteMergesIntoCache(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.cache.Set("content", json.RawMessage(`{"heroTitle":"Local","aboutText":"Us"}`)))

	f.reconciler.ApplyRemote(sync.Event{
		Type:     store.EntityContent,
		Action:   sync.ActionUpdate,
		Data:     json.RawMessage(`{"heroTitle":"Remote"}`),
		OriginID: "server-2",
	})

	cached, ok := f.cache.Get("content")
	require.True(t, ok)
	doc := asMap(t, cached)
	assert.Equal(t, "Remote", doc["heroTitle"])
	assert.Equal(t, "Us", doc["aboutText"])

	// Remote events are applied, never re-broadcast
	assert.Empty(t, f.hub.events)
}

func TestApplyRemoteSkipsOwnEvents(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.cache.Set("content", json.RawMessage(`{"heroTitle":"Local"}`)))

	f.reconciler.ApplyRemote(sync.Event{
		Type:     store.EntityContent,
		Action:   sync.ActionUpdate,
		Data:     json.RawMessage(`{"heroTitle":"Echo"}`),
		OriginID: "server-1",
	})

	cached, _ := f.cache.Get("content")
	assert.Equal(t, "Local", asMap(t, cached)["heroTitle"])
}

func TestApplyRemoteDelete(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.cache.Set("properties/prop-1", json.RawMessage(`{"title":"Cottage"}`)))

	f.reconciler.ApplyRemote(sync.Event{
		Type:     store.EntityProperties,
		EntityID: "prop-1",
		Action:   sync.ActionDelete,
		OriginID: "server-2",
	})

	_, ok := f.cache.Get("properties/prop-1")
	assert.False(t, ok)
}

func TestMergeShallow(t *testing.T) {
	cases := []struct {
		name  string
		base  string
		patch string
		want  string
	}{
		{
			name:  "overlay object fields",
			base:  `{"a":1,"b":2}`,
			patch: `{"b":3}`,
			want:  `{"a":1,"b":3}`,
		},
		{
			name:  "nested objects replace whole",
			base:  `{"contact":{"phone":"1","email":"a@b.c"}}`,
			patch: `{"contact":{"phone":"2"}}`,
			want:  `{"contact":{"phone":"2"}}`,
		},
		{
			name:  "array payload replaces outright",
			base:  `{"a":1}`,
			patch: `[1,2,3]`,
			want:  `[1,2,3]`,
		},
		{
			name:  "empty patch keeps base",
			base:  `{"a":1}`,
			patch: ``,
			want:  `{"a":1}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mergeShallow(json.RawMessage(tc.base), json.RawMessage(tc.patch))
			var want, have interface{}
			require.NoError(t, json.Unmarshal([]byte(tc.want), &want))
			require.NoError(t, json.Unmarshal(got, &have))
			assert.Equal(t, want, have)
		})
	}
}
