// store.go
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

// Package store is the versioning store of record. Every mutation appends a
// new ContentVersion row; the is_current flag moves inside the same
// transaction, so version numbers stay gapless from 1 and exactly one row
// per entity identity is current at any time.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/hints"

	"github.com/estatepress/sitesync/internal/models"
)

var (
	// ErrNotFound reports no current version for the entity identity.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict reports a compare-and-swap failure: the current
	// version moved since the caller last read it. The token matches the
	// wire-level conflict code.
	ErrVersionConflict = errors.New("E_VERSION")
	// ErrUnavailable reports the store of record is not reachable.
	ErrUnavailable = errors.New("store unavailable")
	// ErrDuplicate reports a unique-constraint violation.
	ErrDuplicate = errors.New("duplicate")
)

// Store persists versioned content entities and registrations.
type Store struct {
	db *gorm.DB
}

// New wraps db. A nil db yields a store whose operations all fail with
// ErrUnavailable, which the reconciliation layer absorbs via the cache.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveInput describes one append to an entity's version history.
type SaveInput struct {
	EntityType        string
	EntityID          string
	Payload           json.RawMessage
	AuthorName        string
	AuthorEmail       string
	ChangeDescription string

	// ExpectedVersion, when set, makes the save conditional: if the current
	// version number differs, the save fails with ErrVersionConflict. When
	// nil the save is unconditional (last writer wins).
	ExpectedVersion *uint64
}

// currentHint steers mysql to the current-pointer index. The other dialects
// do not take USE INDEX.
func (s *Store) currentHint() []clause.Expression {
	if s.db.Dialector.Name() == "mysql" {
		return []clause.Expression{hints.UseIndex("idx_entity_current")}
	}
	return nil
}

// GetCurrent returns the payload of the is_current version for the entity
// identity, or ErrNotFound if the entity has never been saved.
func (s *Store) GetCurrent(ctx context.Context, entityType, entityID string) (json.RawMessage, error) {
	if s == nil || s.db == nil {
		return nil, ErrUnavailable
	}

	var rec models.ContentVersion
	err := s.db.WithContext(ctx).Clauses(s.currentHint()...).
		Where("entity_type = ? AND entity_id = ? AND is_current = ?", entityType, entityID, true).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return json.RawMessage(rec.Payload.JSON), nil
}

// GetCurrentRecord returns the full is_current row including version metadata.
func (s *Store) GetCurrentRecord(ctx context.Context, entityType, entityID string) (*models.ContentVersion, error) {
	if s == nil || s.db == nil {
		return nil, ErrUnavailable
	}

	var rec models.ContentVersion
	err := s.db.WithContext(ctx).Clauses(s.currentHint()...).
		Where("entity_type = ? AND entity_id = ? AND is_current = ?", entityType, entityID, true).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &rec, nil
}

// SaveVersion appends a new version with number previousMax+1 and moves the
// is_current flag, all in one transaction. A concurrent reader never sees
// two current rows for the same identity.
func (s *Store) SaveVersion(ctx context.Context, in SaveInput) (*models.ContentVersion, error) {
	if s == nil || s.db == nil {
		return nil, ErrUnavailable
	}
	if !json.Valid(in.Payload) {
		return nil, fmt.Errorf("invalid payload for %s/%s", in.EntityType, in.EntityID)
	}

	rec := &models.ContentVersion{
		VersionID:         uuid.NewString(),
		EntityType:        in.EntityType,
		EntityID:          in.EntityID,
		IsCurrent:         true,
		Payload:           models.JSON{JSON: datatypes.JSON(in.Payload)},
		AuthorName:        in.AuthorName,
		AuthorEmail:       in.AuthorEmail,
		ChangeDescription: in.ChangeDescription,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the current row so concurrent writers serialize on the
		// is_current pointer.
		var cur models.ContentVersion
		var prevNumber uint64

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("entity_type = ? AND entity_id = ? AND is_current = ?", in.EntityType, in.EntityID, true).
			First(&cur).Error
		switch {
		case err == nil:
			prevNumber = cur.VersionNumber
		case errors.Is(err, gorm.ErrRecordNotFound):
			prevNumber = 0
		default:
			return err
		}

		if in.ExpectedVersion != nil && *in.ExpectedVersion != prevNumber {
			return fmt.Errorf("%w: current is %d, expected %d", ErrVersionConflict, prevNumber, *in.ExpectedVersion)
		}

		if prevNumber > 0 {
			if err := tx.Model(&models.ContentVersion{}).
				Where("version_id = ?", cur.VersionID).
				Update("is_current", false).Error; err != nil {
				return err
			}
		}

		rec.VersionNumber = prevNumber + 1
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// GetHistory returns all versions for the entity identity, newest first.
func (s *Store) GetHistory(ctx context.Context, entityType, entityID string) ([]models.ContentVersion, error) {
	if s == nil || s.db == nil {
		return nil, ErrUnavailable
	}

	var recs []models.ContentVersion
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("version_number DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}

	return recs, nil
}

// RollbackToVersion appends a new version whose payload equals the target
// version's payload. History before the rollback is left untouched.
func (s *Store) RollbackToVersion(ctx context.Context, entityType, entityID, versionID, authorName, authorEmail string) (*models.ContentVersion, error) {
	if s == nil || s.db == nil {
		return nil, ErrUnavailable
	}

	var target models.ContentVersion
	err := s.db.WithContext(ctx).
		Where("version_id = ? AND entity_type = ? AND entity_id = ?", versionID, entityType, entityID).
		First(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.SaveVersion(ctx, SaveInput{
		EntityType:        entityType,
		EntityID:          entityID,
		Payload:           json.RawMessage(target.Payload.JSON),
		AuthorName:        authorName,
		AuthorEmail:       authorEmail,
		ChangeDescription: fmt.Sprintf("Rollback to version %d", target.VersionNumber),
	})
}

// ListCurrent returns the is_current row of every entity of the given type,
// ordered by entity id. Used to list the property catalog and image sets.
func (s *Store) ListCurrent(ctx context.Context, entityType string) ([]models.ContentVersion, error) {
	if s == nil || s.db == nil {
		return nil, ErrUnavailable
	}

	var recs []models.ContentVersion
	err := s.db.WithContext(ctx).Clauses(s.currentHint()...).
		Where("entity_type = ? AND is_current = ?", entityType, true).
		Order("entity_id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	return recs, nil
}

// Ping verifies store connectivity for health checks.
func (s *Store) Ping() error {
	if s == nil || s.db == nil {
		return ErrUnavailable
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
