package models

import "time"

// Registration is a visitor registration captured by the marketing site.
// Email is unique; the store surfaces constraint violations as a duplicate
// error so handlers can answer with a user-facing message.
type Registration struct {
	RegistrationID string    `gorm:"primaryKey;type:char(36)" json:"registrationId"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Email          string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone          string    `gorm:"size:64" json:"phone,omitempty"`
	Message        string    `gorm:"size:2048" json:"message,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TableName overrides the table name for Registration
func (Registration) TableName() string {
	return "registrations"
}
