package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Document records one stored PDF of an invoice. Regenerating an invoice adds a new record.
type Document struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID      `gorm:"not null;index" json:"invoice_id"`
	FileName    string            `gorm:"size:255;not null" json:"file_name"`
	FilePath    string            `gorm:"size:512;not null;uniqueIndex" json:"file_path"`
	ContentType string            `gorm:"size:128;not null" json:"content_type"`
	SizeBytes   int64             `gorm:"not null" json:"size_bytes"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
}

func (Document) TableName() string { return "invoice_documents" }
