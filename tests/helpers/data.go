// data.go
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

package helpers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/estatepress/sitesync/internal/models"
	"github.com/estatepress/sitesync/internal/store"
)

// CreateTestVersions appends the given payloads to the entity's history in
// order, leaving the last one current.
func CreateTestVersions(t *testing.T, st *store.Store, entityType, entityID string, payloads ...string) *models.ContentVersion {
	t.Helper()

	var rec *models.ContentVersion
	for _, p := range payloads {
		var err error
		rec, err = st.SaveVersion(context.Background(), store.SaveInput{
			EntityType: entityType,
			EntityID:   entityID,
			Payload:    json.RawMessage(p),
			AuthorName: "test",
		})
		if err != nil {
			t.Fatalf("Failed to seed version for %s/%s: %v", entityType, entityID, err)
		}
	}
	return rec
}

// CreateTestRegistration seeds one visitor registration
func CreateTestRegistration(t *testing.T, st *store.Store, name, email string) *models.Registration {
	t.Helper()

	reg := &models.Registration{Name: name, Email: email}
	if err := st.CreateRegistration(context.Background(), reg); err != nil {
		t.Fatalf("Failed to seed registration %s: %v", email, err)
	}
	return reg
}
