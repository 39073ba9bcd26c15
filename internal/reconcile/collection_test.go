package reconcile

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatepress/sitesync/internal/store"
)

func TestLoadCollectionFromStore(t *testing.T) {
	f := newFixture(t)

	for _, p := range []struct{ id, title string }{
		{"prop-b", "Loft"},
		{"prop-a", "Cottage"},
	} {
		_, err := f.reconciler.Save(context.Background(), SaveRequest{
			EntityType: store.EntityProperties,
			EntityID:   p.id,
			Payload:    json.RawMessage(`{"title":"` + p.title + `"}`),
		})
		require.NoError(t, err)
	}

	res := f.reconciler.LoadCollection(context.Background(), store.EntityProperties)
	assert.Equal(t, SourceStore, res.Source)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "prop-a", res.Items[0].EntityID)
	assert.Equal(t, "prop-b", res.Items[1].EntityID)

	// The scan refreshed the cache for every member
	_, ok := f.cache.Get("properties/prop-a")
	assert.True(t, ok)
}

func TestLoadCollectionFiltersTombstones(t *testing.T) {
	f := newFixture(t)

	for _, id := range []string{"img-1", "img-2"} {
		_, err := f.reconciler.Save(context.Background(), SaveRequest{
			EntityType: store.EntityImages,
			EntityID:   id,
			Payload:    json.RawMessage(`{"url":"/img/` + id + `.jpg"}`),
		})
		require.NoError(t, err)
	}
	_, err := f.reconciler.Delete(context.Background(), SaveRequest{
		EntityType: store.EntityImages,
		EntityID:   "img-1",
	})
	require.NoError(t, err)

	res := f.reconciler.LoadCollection(context.Background(), store.EntityImages)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "img-2", res.Items[0].EntityID)
}

func TestLoadCollectionFallsBackToCacheScan(t *testing.T) {
	f := newOfflineFixture(t)

	require.NoError(t, f.cache.Set("properties/prop-a", json.RawMessage(`{"title":"Cottage"}`)))
	require.NoError(t, f.cache.Set("properties/prop-b", json.RawMessage(`{"title":"Loft"}`)))
	require.NoError(t, f.cache.Set("images/img-1", json.RawMessage(`{"url":"/a.jpg"}`)))

	res := f.reconciler.LoadCollection(context.Background(), store.EntityProperties)
	assert.Equal(t, SourceCache, res.Source)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "prop-a", res.Items[0].EntityID)
	assert.Equal(t, "prop-b", res.Items[1].EntityID)
}

func TestLoadCollectionEmptySeed(t *testing.T) {
	f := newOfflineFixture(t)

	res := f.reconciler.LoadCollection(context.Background(), store.EntityProperties)
	assert.Equal(t, SourceSeed, res.Source)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}
