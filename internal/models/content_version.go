// content_version.go
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

package models

import (
	"time"
)

// ContentVersion is one snapshot of a content entity. Rows are append-only:
// every save creates a new row with the next version number and moves the
// is_current flag. Rollbacks append too, history is never rewritten.
type ContentVersion struct {
	VersionID         string    `gorm:"primaryKey;type:char(36)" json:"versionId"`
	EntityType        string    `gorm:"size:64;not null;index:idx_entity_version,unique,priority:1;index:idx_entity_current,priority:1" json:"entityType"`
	EntityID          string    `gorm:"size:255;not null;default:'';index:idx_entity_version,unique,priority:2;index:idx_entity_current,priority:2" json:"entityId,omitempty"`
	VersionNumber     uint64    `gorm:"not null;index:idx_entity_version,unique,priority:3" json:"versionNumber"`
	IsCurrent         bool      `gorm:"not null;default:false;index:idx_entity_current,priority:3" json:"isCurrent"`
	Payload           JSON      `gorm:"not null" json:"payload"`
	AuthorName        string    `gorm:"size:255;not null" json:"authorName"`
	AuthorEmail       string    `gorm:"size:255;not null" json:"authorEmail"`
	ChangeDescription string    `gorm:"size:1024" json:"changeDescription"`
	CreatedAt         time.Time `json:"createdAt"`
}

// TableName overrides the table name for ContentVersion
func (ContentVersion) TableName() string {
	return "content_versions"
}
