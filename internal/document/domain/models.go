// Package domain contains persistence models for billing documents.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentType identifies the kind of billing document.
type DocumentType string

const (
	TypeProforma   DocumentType = "proforma"
	TypeInvoice    DocumentType = "invoice"
	TypeCreditNote DocumentType = "credit_note"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case TypeProforma, TypeInvoice, TypeCreditNote:
		return true
	default:
		return false
	}
}

// DerivesInto returns the type a document of type t derives into.
// A proforma spawns an invoice, an invoice spawns a credit note.
func (t DocumentType) DerivesInto() (DocumentType, bool) {
	switch t {
	case TypeProforma:
		return TypeInvoice, true
	case TypeInvoice:
		return TypeCreditNote, true
	default:
		return "", false
	}
}

// Document represents a billing document (proforma, invoice or credit
// note). SequenceNumber is assigned once on first successful
// persistence and never reassigned; soft deletion keeps it reserved.
type Document struct {
	ID   snowflake.ID `gorm:"primaryKey" json:"id"`
	Type DocumentType `gorm:"type:text;not null;uniqueIndex:ux_documents_type_number,priority:1" json:"type"`

	SequenceNumber *int64 `gorm:"uniqueIndex:ux_documents_type_number,priority:2" json:"sequence_number"`
	DisplayNumber  string `gorm:"type:text;not null;default:''" json:"display_number"`

	SourceDocumentID  *snowflake.ID `gorm:"index" json:"source_document_id"`
	DerivedDocumentID *snowflake.ID `gorm:"index" json:"derived_document_id"`

	CustomerName  string `gorm:"type:text;not null" json:"customer_name"`
	CustomerEmail string `gorm:"type:text;not null;default:''" json:"customer_email"`
	CompanyID     string `gorm:"type:text;not null;default:''" json:"company_id"`
	TaxID         string `gorm:"type:text;not null;default:''" json:"tax_id"`
	VATID         string `gorm:"type:text;not null;default:''" json:"vat_id"`
	Street        string `gorm:"type:text;not null;default:''" json:"street"`
	City          string `gorm:"type:text;not null;default:''" json:"city"`
	Zipcode       string `gorm:"type:text;not null;default:''" json:"zipcode"`
	Country       string `gorm:"type:text;not null;default:''" json:"country"`

	VariableSymbol string `gorm:"type:text;not null;default:''" json:"variable_symbol"`
	PaymentMethod  string `gorm:"type:text;not null;default:'sepa'" json:"payment_method"`
	Note           string `gorm:"type:text;not null;default:''" json:"note"`

	VATRate    decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"vat_rate"`
	NetTotal   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"net_total"`
	GrossTotal decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"gross_total"`

	// ContentFingerprint holds the fingerprint of the document state
	// as of the last successful render. ArtifactRef is only
	// trustworthy while it matches the live fingerprint.
	ContentFingerprint *string `gorm:"type:text" json:"content_fingerprint"`
	ArtifactRef        *string `gorm:"type:text" json:"artifact_ref"`

	NotificationLog datatypes.JSON `gorm:"type:json" json:"notification_log"`

	IssuedAt time.Time  `gorm:"not null" json:"issued_at"`
	DueAt    *time.Time `json:"due_at"`
	PaidAt   *time.Time `json:"paid_at"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName sets the database table name.
func (Document) TableName() string { return "documents" }

// Mutable reports whether the document may still be edited. Credit
// notes are frozen at derivation; an invoice freezes once paid.
func (d Document) Mutable() bool {
	if d.Type == TypeCreditNote {
		return false
	}
	if d.Type == TypeInvoice && d.PaidAt != nil {
		return false
	}
	return true
}

// LineItem is a single billed line. It belongs to exactly one document
// and Position fixes the display order.
type LineItem struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	DocumentID snowflake.ID `gorm:"not null;index" json:"document_id"`
	Position   int          `gorm:"not null" json:"position"`

	Description string           `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal  `gorm:"type:decimal(12,3);not null" json:"quantity"`
	VATRate     *decimal.Decimal `gorm:"type:decimal(6,4)" json:"vat_rate"`
	NetPrice    decimal.Decimal  `gorm:"type:decimal(14,2);not null" json:"net_price"`
	GrossPrice  decimal.Decimal  `gorm:"type:decimal(14,2);not null" json:"gross_price"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "line_items" }

// EffectiveVATRate returns the item rate, falling back to the document
// rate when the item carries no override.
func (i LineItem) EffectiveVATRate(documentRate decimal.Decimal) decimal.Decimal {
	if i.VATRate != nil {
		return *i.VATRate
	}
	return documentRate
}
