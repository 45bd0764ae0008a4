package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrDocumentNotFound = errors.New("document_not_found")
	ErrSourceNotFound   = errors.New("source_not_found")
	ErrEmptySource      = errors.New("empty_source")
	ErrInconsistentLink = errors.New("inconsistent_link")
	ErrImmutable        = errors.New("document_immutable")
	ErrInvalidType      = errors.New("invalid_document_type")
	ErrMissingPrice     = errors.New("missing_price")
	ErrInvalidRecipient = errors.New("invalid_recipient")

	// ErrNumberTaken surfaces a duplicate (type, sequence number) pair.
	// It only happens when the counter row was edited out of band.
	ErrNumberTaken = errors.New("number_taken")
)

type LineItemInput struct {
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	VATRate     *decimal.Decimal `json:"vat_rate"`
	NetPrice    *decimal.Decimal `json:"net_price"`
	GrossPrice  *decimal.Decimal `json:"gross_price"`
}

type CreateDocumentRequest struct {
	Type DocumentType `json:"type"`

	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CompanyID     string `json:"company_id"`
	TaxID         string `json:"tax_id"`
	VATID         string `json:"vat_id"`
	Street        string `json:"street"`
	City          string `json:"city"`
	Zipcode       string `json:"zipcode"`
	Country       string `json:"country"`

	VariableSymbol string           `json:"variable_symbol"`
	PaymentMethod  string           `json:"payment_method"`
	Note           string           `json:"note"`
	VATRate        *decimal.Decimal `json:"vat_rate"`
	IssuedAt       *time.Time       `json:"issued_at"`

	Items []LineItemInput `json:"items"`
}

type UpdateDocumentRequest struct {
	CustomerName  *string `json:"customer_name"`
	CustomerEmail *string `json:"customer_email"`
	CompanyID     *string `json:"company_id"`
	TaxID         *string `json:"tax_id"`
	VATID         *string `json:"vat_id"`
	Street        *string `json:"street"`
	City          *string `json:"city"`
	Zipcode       *string `json:"zipcode"`
	Country       *string `json:"country"`

	VariableSymbol *string          `json:"variable_symbol"`
	PaymentMethod  *string          `json:"payment_method"`
	Note           *string          `json:"note"`
	VATRate        *decimal.Decimal `json:"vat_rate"`
	PaidAt         *time.Time       `json:"paid_at"`

	// Items, when present, replaces the full line item list.
	Items []LineItemInput `json:"items"`
}

type ListDocumentsRequest struct {
	Type *DocumentType `json:"type"`
}

type ListDocumentsResponse struct {
	Documents []Document `json:"documents"`
}

type Service interface {
	Create(ctx context.Context, req CreateDocumentRequest) (Document, error)
	Update(ctx context.Context, id string, req UpdateDocumentRequest) (Document, error)
	GetByID(ctx context.Context, id string) (Document, error)
	ListItems(ctx context.Context, id string) ([]LineItem, error)
	List(ctx context.Context, req ListDocumentsRequest) (ListDocumentsResponse, error)
	Delete(ctx context.Context, id string) error

	// DeriveInvoice creates the invoice for a proforma, or returns the
	// existing one with created=false. DeriveCreditNote does the same
	// for an invoice's credit note.
	DeriveInvoice(ctx context.Context, proformaID string) (Document, bool, error)
	DeriveCreditNote(ctx context.Context, invoiceID string) (Document, bool, error)

	MarkNotified(ctx context.Context, id string, recipient string) error
	IsNotified(ctx context.Context, id string, recipient string) (bool, error)
}
