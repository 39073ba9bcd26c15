// cache.go
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

// Package cache is the local persistent fallback store. It holds the
// last-known-good snapshot of every content entity in an embedded sqlite
// file so reads keep working while the primary database is unreachable.
//
// The cache never evicts. Values are size-bounded: inlined binary assets
// should stay under the configured quota (default 100KB), larger assets
// must be referenced by URL.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrQuotaExceeded reports a write rejected because the payload is larger
// than the per-value quota. Callers warn the admin instead of failing the
// whole save.
var ErrQuotaExceeded = errors.New("cache: value exceeds size quota")

// DefaultMaxValueBytes bounds a single cached value when no quota is configured.
const DefaultMaxValueBytes = 100 * 1024

type entry struct {
	Key       string `gorm:"primaryKey;size:320"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (entry) TableName() string {
	return "cache_entries"
}

// Cache is a synchronous string-keyed JSON store backed by a sqlite file.
type Cache struct {
	db            *gorm.DB
	maxValueBytes int
}

// Open opens (or creates) the cache file at path. maxValueBytes <= 0 selects
// the default quota.
func Open(path string, maxValueBytes int) (*Cache, error) {
	if maxValueBytes <= 0 {
		maxValueBytes = DefaultMaxValueBytes
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file %s: %w", path, err)
	}

	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache schema: %w", err)
	}

	return &Cache{db: db, maxValueBytes: maxValueBytes}, nil
}

// Get returns the cached payload for key. A missing key or a value that is
// not valid JSON (a previous partial write) reports absent, never an error.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	var e entry
	if err := c.db.Where("key = ?", key).First(&e).Error; err != nil {
		return nil, false
	}

	if !json.Valid(e.Value) {
		return nil, false
	}

	return json.RawMessage(e.Value), true
}

// Set stores payload under key, replacing any previous value. Oversized
// payloads fail with ErrQuotaExceeded before anything is written.
func (c *Cache) Set(key string, payload json.RawMessage) error {
	if len(payload) > c.maxValueBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrQuotaExceeded, len(payload), c.maxValueBytes)
	}

	e := entry{Key: key, Value: []byte(payload), UpdatedAt: time.Now().UTC()}
	return c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}

// Remove deletes key from the cache. Removing a missing key is not an error.
func (c *Cache) Remove(key string) error {
	return c.db.Where("key = ?", key).Delete(&entry{}).Error
}

// Scan returns every valid cached payload whose key starts with prefix,
// keyed by full key. Used to reassemble collection listings while the
// primary store is down.
func (c *Cache) Scan(prefix string) map[string]json.RawMessage {
	var entries []entry
	if err := c.db.Where("key LIKE ?", prefix+"%").Order("key ASC").Find(&entries).Error; err != nil {
		return nil
	}

	out := make(map[string]json.RawMessage, len(entries))
	for _, e := range entries {
		if json.Valid(e.Value) {
			out[e.Key] = json.RawMessage(e.Value)
		}
	}
	return out
}

// Len returns the number of cached entries (health/status display only).
func (c *Cache) Len() int {
	var count int64
	c.db.Model(&entry{}).Count(&count)
	return int(count)
}

// Ping verifies the cache file is reachable.
func (c *Cache) Ping() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the underlying cache file.
func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
