package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/estatepress/sitesync/internal/models"
)

// CreateRegistration inserts a visitor registration. A unique-constraint hit
// on the email column surfaces as ErrDuplicate so the caller can answer with
// a user-facing message; nothing partial is written.
func (s *Store) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	if s == nil || s.db == nil {
		return ErrUnavailable
	}

	if reg.RegistrationID == "" {
		reg.RegistrationID = uuid.NewString()
	}

	err := s.db.WithContext(ctx).Create(reg).Error
	if err != nil {
		if isDuplicateErr(err) {
			return ErrDuplicate
		}
		return err
	}

	return nil
}

// ListRegistrations returns all registrations, newest first.
func (s *Store) ListRegistrations(ctx context.Context) ([]models.Registration, error) {
	if s == nil || s.db == nil {
		return nil, ErrUnavailable
	}

	var regs []models.Registration
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&regs).Error
	if err != nil {
		return nil, err
	}

	return regs, nil
}

// isDuplicateErr recognizes unique-constraint violations across the
// supported drivers. GORM's translated error covers most; the string checks
// catch drivers that report the vendor code untranslated.
func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || // mysql 1062
		strings.Contains(msg, "UNIQUE constraint") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres 23505
}
