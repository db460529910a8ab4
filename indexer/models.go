package indexer

import (
	"time"

	"gorm.io/gorm"
)

// EventRecord is one committed ledger event. Pool, Owner and Mint are copied
// out of the attributes so the common queries hit an index.
type EventRecord struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	Signature  string    `gorm:"size:88;not null;uniqueIndex:idx_event_position" json:"signature"`
	Position   int       `gorm:"not null;uniqueIndex:idx_event_position" json:"index"`
	Sequence   uint64    `gorm:"not null;index" json:"sequence"`
	Type       string    `gorm:"size:64;not null;index" json:"type"`
	Pool       string    `gorm:"size:44;index" json:"pool,omitempty"`
	Owner      string    `gorm:"size:44;index" json:"owner,omitempty"`
	Mint       string    `gorm:"size:44;index" json:"mint,omitempty"`
	Attributes string    `gorm:"type:text" json:"attributes"`
	ExecutedAt time.Time `gorm:"index" json:"executedAt"`
	CreatedAt  time.Time `json:"-"`
}

// TableName pins the table name independent of gorm's pluralisation rules.
func (EventRecord) TableName() string { return "ledger_events" }

// AutoMigrate creates or updates the indexer schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{})
}
