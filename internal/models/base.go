package models

import (
	"time"

	"github.com/zenpa1/budget-tracker/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for all tables
type Base struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Version   int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records and starts the
// record's version at 1.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	if b.Version == 0 {
		b.Version = 1
	}
	return nil
}

// GetID returns the record's primary key.
func (b Base) GetID() string { return b.ID }

// GetVersion returns the record's monotonic version.
func (b Base) GetVersion() int64 { return b.Version }

// Record is implemented by every synced entity.
type Record interface {
	GetID() string
	GetVersion() int64
	Collection() Collection
}
