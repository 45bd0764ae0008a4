// Package fingerprint computes the content hash that gates artifact
// regeneration. The canonical encoding is versioned and append-only:
// changing it invalidates every cached artifact at once.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/doklady/internal/config"
	"github.com/smallbiznis/doklady/internal/document/domain"
)

const version = "doklady.fp.v1"

const (
	fieldSep  = "\x1f"
	recordSep = "\n"
)

// Sum digests the billing-relevant content of a document: type,
// display number, supplier identity, party fields, issue date, VAT
// rate, every line item in position order, and the totals. Two
// documents with identical observable billing content produce the same
// sum; any single-field change produces a different one.
func Sum(supplier config.Supplier, doc *domain.Document, items []domain.LineItem) string {
	h := sha256.New()

	writeRecord(h, version)
	writeRecord(h,
		string(doc.Type),
		doc.DisplayNumber,
		doc.VariableSymbol,
		doc.PaymentMethod,
		doc.IssuedAt.UTC().Format(time.RFC3339),
		rate(doc.VATRate),
	)
	writeRecord(h,
		supplier.Name, supplier.CompanyID, supplier.TaxID, supplier.VATID,
		supplier.Street, supplier.City, supplier.Zipcode, supplier.Country,
		supplier.IBAN, supplier.SWIFT, supplier.Account,
	)
	writeRecord(h,
		doc.CustomerName, doc.CustomerEmail, doc.CompanyID, doc.TaxID, doc.VATID,
		doc.Street, doc.City, doc.Zipcode, doc.Country,
	)

	for _, item := range items {
		writeRecord(h,
			item.Description,
			item.Quantity.StringFixed(3),
			money(item.NetPrice),
			rate(item.EffectiveVATRate(doc.VATRate)),
		)
	}

	writeRecord(h, money(doc.NetTotal), money(doc.GrossTotal))

	return hex.EncodeToString(h.Sum(nil))
}

func writeRecord(w io.Writer, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			fmt.Fprint(w, fieldSep)
		}
		fmt.Fprint(w, f)
	}
	fmt.Fprint(w, recordSep)
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func rate(d decimal.Decimal) string { return d.StringFixed(4) }
