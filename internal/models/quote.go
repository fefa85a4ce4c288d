// Package models defines the database rows of the quote store.
package models

import (
	"time"
)

// Quote is the persisted quote header with its derived totals.
type Quote struct {
	ID      string `gorm:"type:varchar(36);primaryKey"`                  // UUID.
	QuoteNo string `gorm:"type:varchar(32);not null;uniqueIndex"`        // Business number, QT+date+seq.
	Status  string `gorm:"type:varchar(16);not null;index;default:draft"` // Lifecycle status.

	CustomerName    string `gorm:"type:varchar(200);not null;index"`
	ProjectName     string `gorm:"type:varchar(200)"`
	SalesName       string `gorm:"type:varchar(100)"`
	CustomerContact string `gorm:"type:varchar(100)"`
	CustomerEmail   string `gorm:"type:varchar(200)"`
	Remarks         string `gorm:"type:text"`
	Terms           string `gorm:"type:text"`
	Currency        string `gorm:"type:varchar(8);not null;default:CNY"`
	ValidUntil      *time.Time

	GlobalDiscountRate   Rate           `gorm:"not null"`
	GlobalDiscountRemark string          `gorm:"type:varchar(500)"`
	TotalOriginalAmount  Amount         `gorm:"not null"`
	TotalAmount          Amount         `gorm:"not null"`

	Version int `gorm:"not null;default:0"` // Last committed version number; the optimistic lock.

	CreatedBy string    `gorm:"type:varchar(100);index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Items    []QuoteItem    `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`
	Versions []QuoteVersion `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`
}

// QuoteItem is one persisted line item.
type QuoteItem struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	QuoteID   string `gorm:"type:varchar(36);not null;index"`
	SortOrder int    `gorm:"not null"`

	ProductCode   string `gorm:"type:varchar(100);not null"`
	ProductName   string `gorm:"type:varchar(200)"`
	Region        string `gorm:"type:varchar(50);not null"`
	RegionName    string `gorm:"type:varchar(100)"`
	Modality      string `gorm:"type:varchar(50)"`
	Capability    string `gorm:"type:varchar(50)"`
	ModelType     string `gorm:"type:varchar(50)"`
	ContextSpec   string `gorm:"type:varchar(50)"`
	InferenceMode string `gorm:"type:varchar(50)"`

	InputTokens  *int64
	OutputTokens *int64
	Units        *int64

	ThinkingModeRatio Ratio          `gorm:"not null"`
	BatchCallRatio    Ratio          `gorm:"not null"`

	BillingUnit    string          `gorm:"type:varchar(32);not null"`
	UnitPrice      Amount         `gorm:"not null"`
	OriginalPrice  Amount         `gorm:"not null"`
	DiscountRate   Rate           `gorm:"not null"`
	FinalPrice     Amount         `gorm:"not null"`
	Quantity       int             `gorm:"not null;default:1"`
	DurationMonths int             `gorm:"not null;default:1"`
	Subtotal       Amount         `gorm:"not null"`
}

// QuoteVersion is an append-only snapshot row.
type QuoteVersion struct {
	ID             string    `gorm:"type:varchar(36);primaryKey"`
	QuoteID        string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_quote_version"`
	VersionNumber  int       `gorm:"not null;uniqueIndex:idx_quote_version"`
	QuoteNo        string    `gorm:"type:varchar(32);not null;index"`
	ChangeType     string    `gorm:"type:varchar(32);not null"`
	ChangesSummary string    `gorm:"type:varchar(500)"`
	ContentHash    string    `gorm:"type:varchar(64);not null"`
	Snapshot       string    `gorm:"type:text;not null"` // Canonical JSON of the quote.
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName pins the table name.
func (QuoteItem) TableName() string { return "quote_items" }

// TableName pins the table name.
func (QuoteVersion) TableName() string { return "quote_versions" }

// QuoteSequence is the per-day quote number counter used without redis.
type QuoteSequence struct {
	Day   string `gorm:"type:varchar(8);primaryKey"` // YYYYMMDD.
	Value int64  `gorm:"not null"`
}

// TableName pins the table name.
func (QuoteSequence) TableName() string { return "quote_sequences" }
