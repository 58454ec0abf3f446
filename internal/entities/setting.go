package entities

import (
	"time"
)

// Record is one key/value document when records are kept in SQLite.
type Record struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Path      string    `gorm:"uniqueIndex;size:512" json:"path"`
	Value     []byte    `gorm:"type:blob" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Record) TableName() string {
	return "records"
}

// Known record namespaces and concerns
const (
	RecordNamespace = "lectern-data"

	ConcernMetadata     = "metadata"
	ConcernAnnotations  = "annotations"
	ConcernReadingState = "persist"
	ConcernConversation = "ai-dialog"
	ConcernDocuments    = "documents"
	ConcernCovers       = "covers"

	// SettingsRecord is the global provider settings record.
	SettingsRecord = "setting"
)
