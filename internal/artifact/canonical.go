package artifact

import (
	"time"

	"github.com/smallbiznis/doklady/internal/config"
	"github.com/smallbiznis/doklady/internal/document/domain"
)

// CanonicalDocument is the stable data structure handed to the
// renderer. Amounts are preformatted strings so the renderer never
// does arithmetic.
type CanonicalDocument struct {
	Title          string
	Number         string
	VariableSymbol string
	PaymentMethod  string

	IssuedAt time.Time
	DueAt    *time.Time
	PaidAt   *time.Time

	Supplier config.Supplier
	Customer Party

	Items []CanonicalLineItem

	VATRate    string
	NetTotal   string
	GrossTotal string

	Note string
}

type Party struct {
	Name      string
	Email     string
	CompanyID string
	TaxID     string
	VATID     string
	Street    string
	City      string
	Zipcode   string
	Country   string
}

type CanonicalLineItem struct {
	Description string
	Quantity    string
	VATRate     string
	UnitNet     string
	UnitGross   string
	AmountNet   string
	AmountGross string
}

// Canonical builds the renderer input from a document and its items.
func Canonical(supplier config.Supplier, doc *domain.Document, items []domain.LineItem) CanonicalDocument {
	out := CanonicalDocument{
		Title:          typeTitle(doc.Type),
		Number:         doc.DisplayNumber,
		VariableSymbol: doc.VariableSymbol,
		PaymentMethod:  doc.PaymentMethod,
		IssuedAt:       doc.IssuedAt,
		DueAt:          doc.DueAt,
		PaidAt:         doc.PaidAt,
		Supplier:       supplier,
		Customer: Party{
			Name:      doc.CustomerName,
			Email:     doc.CustomerEmail,
			CompanyID: doc.CompanyID,
			TaxID:     doc.TaxID,
			VATID:     doc.VATID,
			Street:    doc.Street,
			City:      doc.City,
			Zipcode:   doc.Zipcode,
			Country:   doc.Country,
		},
		VATRate:    doc.VATRate.StringFixed(4),
		NetTotal:   doc.NetTotal.StringFixed(2),
		GrossTotal: doc.GrossTotal.StringFixed(2),
		Note:       doc.Note,
	}

	for _, item := range items {
		rate := item.EffectiveVATRate(doc.VATRate)
		out.Items = append(out.Items, CanonicalLineItem{
			Description: item.Description,
			Quantity:    item.Quantity.StringFixed(3),
			VATRate:     rate.StringFixed(4),
			UnitNet:     item.NetPrice.StringFixed(2),
			UnitGross:   item.GrossPrice.StringFixed(2),
			AmountNet:   item.NetPrice.Mul(item.Quantity).Round(2).StringFixed(2),
			AmountGross: item.GrossPrice.Mul(item.Quantity).Round(2).StringFixed(2),
		})
	}
	return out
}

func typeTitle(t domain.DocumentType) string {
	switch t {
	case domain.TypeProforma:
		return "Proforma invoice"
	case domain.TypeInvoice:
		return "Tax invoice"
	case domain.TypeCreditNote:
		return "Credit note"
	default:
		return "Document"
	}
}
