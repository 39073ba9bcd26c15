package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"

	"github.com/estatepress/sitesync/internal/cache"
	"github.com/estatepress/sitesync/internal/store"
)

// CollectionItem is one member of a collection entity type.
type CollectionItem struct {
	EntityID      string          `json:"entityId"`
	Payload       json.RawMessage `json:"payload"`
	VersionNumber uint64          `json:"versionNumber,omitempty"`
}

// CollectionResult lists every live member of a collection entity type.
type CollectionResult struct {
	Items  []CollectionItem `json:"items"`
	Source string           `json:"source"`
}

// LoadCollection lists the current members of a collection entity type with
// the same fallback ladder as LoadInitial: store, then cache scan, then the
// seed (an empty catalog). Tombstoned members are filtered out.
func (r *Reconciler) LoadCollection(ctx context.Context, entityType string) CollectionResult {
	recs, err := r.store.ListCurrent(ctx, entityType)
	if err == nil {
		items := make([]CollectionItem, 0, len(recs))
		for _, rec := range recs {
			payload := json.RawMessage(rec.Payload.JSON)
			if isDeleted(payload) {
				continue
			}
			items = append(items, CollectionItem{
				EntityID:      rec.EntityID,
				Payload:       payload,
				VersionNumber: rec.VersionNumber,
			})
			key := CacheKey(entityType, rec.EntityID)
			if cerr := r.cache.Set(key, payload); cerr != nil && !errors.Is(cerr, cache.ErrQuotaExceeded) {
				log.Printf("reconcile: cache refresh for %s failed: %v", key, cerr)
			}
		}
		return CollectionResult{Items: items, Source: SourceStore}
	}
	if !errors.Is(err, store.ErrUnavailable) {
		log.Printf("reconcile: collection read for %s failed, falling back to cache: %v", entityType, err)
	}

	cached := r.cache.Scan(entityType + "/")
	if len(cached) > 0 {
		keys := make([]string, 0, len(cached))
		for k := range cached {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		items := make([]CollectionItem, 0, len(keys))
		prefixLen := len(entityType) + 1
		for _, k := range keys {
			payload := cached[k]
			if isDeleted(payload) {
				continue
			}
			items = append(items, CollectionItem{EntityID: k[prefixLen:], Payload: payload})
		}
		return CollectionResult{Items: items, Source: SourceCache}
	}

	return CollectionResult{Items: []CollectionItem{}, Source: SourceSeed}
}

func isDeleted(payload json.RawMessage) bool {
	var probe struct {
		Deleted bool `json:"deleted"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return false
	}
	return probe.Deleted
}
