// reconciler.go
//
// Real-time content versioning and sync service for the EstatePress admin back office
// Copyright (c) 2026 EstatePress <info@estatepress.dev>
//
// This file is part of sitesync.
// sitesync is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// sitesync is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with sitesync.
// If not, see <https://www.gnu.org/licenses/>.

// Package reconcile orchestrates every content mutation: version the
// snapshot, mirror it into the local cache, broadcast to peers, and degrade
// gracefully when the store of record is unreachable. Nothing in this
// package throws a storage failure past its boundary; callers get either a
// result with a warning or a typed error.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/estatepress/sitesync/internal/cache"
	"github.com/estatepress/sitesync/internal/store"
	"github.com/estatepress/sitesync/internal/sync"
)

// Broadcaster publishes a change event to the other sessions. Fire-and-forget.
type Broadcaster interface {
	Broadcast(ev sync.Event)
}

// Reconciler glues the versioning store, the local cache and the sync bus.
type Reconciler struct {
	store    *store.Store
	cache    *cache.Cache
	hub      Broadcaster // may be nil (no live sync)
	originID string      // this instance's identity, for self-echo suppression
}

// New constructs a reconciler. hub may be nil.
func New(st *store.Store, ca *cache.Cache, hub Broadcaster, originID string) *Reconciler {
	return &Reconciler{store: st, cache: ca, hub: hub, originID: originID}
}

// CacheKey maps an entity identity to its cache key.
func CacheKey(entityType, entityID string) string {
	if entityID == "" {
		return entityType
	}
	return entityType + "/" + entityID
}

// Load sources, in fallback order.
const (
	SourceStore = "store"
	SourceCache = "cache"
	SourceSeed  = "seed"
)

// LoadResult is the outcome of the three-tier read.
type LoadResult struct {
	Payload       json.RawMessage `json:"payload"`
	Source        string          `json:"source"`
	VersionNumber uint64          `json:"versionNumber,omitempty"`
}

// LoadInitial resolves the current state of an entity: store of record
// first (refreshing the cache), then the local cache, then the hard-coded
// seed. It always produces usable, non-empty state.
func (r *Reconciler) LoadInitial(ctx context.Context, entityType, entityID string) LoadResult {
	key := CacheKey(entityType, entityID)

	rec, err := r.store.GetCurrentRecord(ctx, entityType, entityID)
	if err == nil {
		payload := json.RawMessage(rec.Payload.JSON)
		if cerr := r.cache.Set(key, payload); cerr != nil && !errors.Is(cerr, cache.ErrQuotaExceeded) {
			log.Printf("reconcile: cache refresh for %s failed: %v", key, cerr)
		}
		return LoadResult{Payload: payload, Source: SourceStore, VersionNumber: rec.VersionNumber}
	}
	if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrUnavailable) {
		log.Printf("reconcile: store read for %s failed, falling back to cache: %v", key, err)
	}

	if cached, ok := r.cache.Get(key); ok {
		return LoadResult{Payload: cached, Source: SourceCache}
	}

	return LoadResult{Payload: store.Seed(entityType), Source: SourceSeed}
}

// SaveRequest describes one local mutation.
type SaveRequest struct {
	EntityType        string
	EntityID          string
	Payload           json.RawMessage // merged shallowly over the previous state
	ChangeDescription string
	AuthorName        string
	AuthorEmail       string
	ExpectedVersion   *uint64 // optional compare-and-swap
	Action            string  // create, update, delete; defaults to update
	OriginID          string  // session identity, for echo suppression
	OriginName        string
}

// SaveResult reports the merged state plus any degradation warnings.
type SaveResult struct {
	Payload       json.RawMessage `json:"payload"`
	VersionID     string          `json:"versionId,omitempty"`
	VersionNumber uint64          `json:"versionNumber,omitempty"`
	Degraded      bool            `json:"degraded,omitempty"`
	Warning       string          `json:"warning,omitempty"`
}

// Save runs the four-step sequence: version, cache, broadcast, refresh.
//
// The new payload is merged shallowly per top-level field over the previous
// state, so editing one field never clobbers its siblings. When the store
// is unreachable, non-critical entity types degrade to cache-only
// persistence (the edit stays visible locally and is re-versioned on the
// next save with connectivity); critical types fail hard with no partial
// state. A version conflict (ExpectedVersion set and stale) aborts before
// any cache write.
func (r *Reconciler) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	if !store.ValidEntityType(req.EntityType) {
		return nil, fmt.Errorf("unknown entity type %q", req.EntityType)
	}
	if req.Action == "" {
		req.Action = sync.ActionUpdate
	}

	prev := r.LoadInitial(ctx, req.EntityType, req.EntityID)
	merged := mergeShallow(prev.Payload, req.Payload)

	result := &SaveResult{Payload: merged}

	rec, err := r.store.SaveVersion(ctx, store.SaveInput{
		EntityType:        req.EntityType,
		EntityID:          req.EntityID,
		Payload:           merged,
		AuthorName:        req.AuthorName,
		AuthorEmail:       req.AuthorEmail,
		ChangeDescription: req.ChangeDescription,
		ExpectedVersion:   req.ExpectedVersion,
	})
	switch {
	case err == nil:
		result.VersionID = rec.VersionID
		result.VersionNumber = rec.VersionNumber
	case errors.Is(err, store.ErrVersionConflict):
		return nil, err
	case store.IsCritical(req.EntityType):
		return nil, err
	default:
		log.Printf("reconcile: store save for %s/%s failed, cache-only: %v", req.EntityType, req.EntityID, err)
		result.Degraded = true
		result.Warning = "change saved locally only; it will not be versioned or broadcast until the store is reachable"
	}

	key := CacheKey(req.EntityType, req.EntityID)
	if cerr := r.cache.Set(key, merged); cerr != nil {
		if errors.Is(cerr, cache.ErrQuotaExceeded) {
			result.Warning = "content too large for the local cache; use an asset URL instead of inlined data"
		} else {
			log.Printf("reconcile: cache write for %s failed: %v", key, cerr)
		}
	}

	if !result.Degraded {
		r.publish(req, merged)
	}

	return result, nil
}

// Delete appends a tombstone version, drops the cache entry and broadcasts
// a delete event. History stays intact.
func (r *Reconciler) Delete(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	if !store.ValidEntityType(req.EntityType) {
		return nil, fmt.Errorf("unknown entity type %q", req.EntityType)
	}

	prev := r.LoadInitial(ctx, req.EntityType, req.EntityID)
	tomb := mergeShallow(prev.Payload, json.RawMessage(`{"deleted":true}`))
	if req.ChangeDescription == "" {
		req.ChangeDescription = "Deleted"
	}

	rec, err := r.store.SaveVersion(ctx, store.SaveInput{
		EntityType:        req.EntityType,
		EntityID:          req.EntityID,
		Payload:           tomb,
		AuthorName:        req.AuthorName,
		AuthorEmail:       req.AuthorEmail,
		ChangeDescription: req.ChangeDescription,
		ExpectedVersion:   req.ExpectedVersion,
	})
	if err != nil {
		// Deletions are destructive; never degrade them silently.
		return nil, err
	}

	key := CacheKey(req.EntityType, req.EntityID)
	if cerr := r.cache.Remove(key); cerr != nil {
		log.Printf("reconcile: cache remove for %s failed: %v", key, cerr)
	}

	req.Action = sync.ActionDelete
	r.publish(req, tomb)

	return &SaveResult{Payload: tomb, VersionID: rec.VersionID, VersionNumber: rec.VersionNumber}, nil
}

// Rollback re-applies an older version as a new forward-moving version,
// then runs the same cache and broadcast steps as a normal edit.
func (r *Reconciler) Rollback(ctx context.Context, req SaveRequest, versionID string) (*SaveResult, error) {
	rec, err := r.store.RollbackToVersion(ctx, req.EntityType, req.EntityID, versionID, req.AuthorName, req.AuthorEmail)
	if err != nil {
		return nil, err
	}

	payload := json.RawMessage(rec.Payload.JSON)
	key := CacheKey(req.EntityType, req.EntityID)
	if cerr := r.cache.Set(key, payload); cerr != nil && !errors.Is(cerr, cache.ErrQuotaExceeded) {
		log.Printf("reconcile: cache write for %s failed: %v", key, cerr)
	}

	req.Action = sync.ActionUpdate
	r.publish(req, payload)

	return &SaveResult{Payload: payload, VersionID: rec.VersionID, VersionNumber: rec.VersionNumber}, nil
}

// ApplyRemote merges an event from another session into the local cache.
// Self-originated events are dropped (no echo) and nothing is re-broadcast.
func (r *Reconciler) ApplyRemote(ev sync.Event) {
	if ev.OriginID == r.originID {
		return
	}

	key := CacheKey(ev.Type, ev.EntityID)

	if ev.Action == sync.ActionDelete {
		if err := r.cache.Remove(key); err != nil {
			log.Printf("reconcile: remote delete for %s failed: %v", key, err)
		}
		return
	}

	base, _ := r.cache.Get(key)
	merged := mergeShallow(base, ev.Data)
	if err := r.cache.Set(key, merged); err != nil && !errors.Is(err, cache.ErrQuotaExceeded) {
		log.Printf("reconcile: remote apply for %s failed: %v", key, err)
	}
}

func (r *Reconciler) publish(req SaveRequest, payload json.RawMessage) {
	if r.hub == nil {
		return
	}

	originID := req.OriginID
	if originID == "" {
		originID = r.originID
	}

	r.hub.Broadcast(sync.Event{
		Type:       req.EntityType,
		Action:     req.Action,
		EntityID:   req.EntityID,
		Data:       payload,
		OriginID:   originID,
		OriginName: req.OriginName,
		Timestamp:  time.Now().UnixMilli(),
	})
}

// mergeShallow overlays patch on base per top-level field. Non-object
// payloads (arrays, scalars) replace base outright.
func mergeShallow(base, patch json.RawMessage) json.RawMessage {
	var baseMap map[string]json.RawMessage
	if err := json.Unmarshal(base, &baseMap); err != nil || baseMap == nil {
		if len(patch) == 0 {
			return base
		}
		return patch
	}

	var patchMap map[string]json.RawMessage
	if err := json.Unmarshal(patch, &patchMap); err != nil {
		if len(patch) == 0 {
			return base
		}
		return patch
	}

	for k, v := range patchMap {
		baseMap[k] = v
	}

	out, err := json.Marshal(baseMap)
	if err != nil {
		return patch
	}
	return out
}
