// Package pdf renders billing documents with maroto.
package pdf

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/doklady/internal/artifact"
)

const dateLayout = "02.01.2006"

type Renderer struct{}

func New() artifact.Renderer {
	return &Renderer{}
}

func (r *Renderer) Render(ctx context.Context, doc artifact.CanonicalDocument) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, fmt.Sprintf("%s %s", doc.Title, doc.Number), props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(18,
		col.New(6).Add(
			text.New("Variable symbol: "+doc.VariableSymbol, props.Text{Top: 0, Size: 9}),
			text.New("Payment method: "+doc.PaymentMethod, props.Text{Top: 4, Size: 9}),
			text.New("Issued: "+doc.IssuedAt.Format(dateLayout), props.Text{Top: 8, Size: 9}),
			text.New("Due: "+formatDate(doc.DueAt), props.Text{Top: 12, Size: 9}),
		),
		col.New(6).Add(
			text.New("Paid: "+formatDate(doc.PaidAt), props.Text{Top: 0, Size: 9}),
		),
	)

	m.AddRow(45,
		col.New(6).Add(supplierLines(doc)...),
		col.New(6).Add(customerLines(doc)...),
	)

	m.AddRow(8,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(1, "VAT", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit (net)", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount (net)", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range doc.Items {
		m.AddRow(10,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(1, item.Quantity, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(1, item.VATRate, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitNet, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.AmountNet, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total (net)", props.Text{Size: 9}),
		text.NewCol(2, doc.NetTotal, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total (gross)", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, doc.GrossTotal, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if strings.TrimSpace(doc.Note) != "" {
		m.AddRow(15,
			text.NewCol(12, doc.Note, props.Text{Size: 8, Top: 4}),
		)
	}
	if doc.Supplier.IssuedBy != "" {
		m.AddRow(10,
			text.NewCol(12, "Issued by: "+doc.Supplier.IssuedBy, props.Text{Size: 8, Top: 2}),
		)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, err
	}
	// Generation does not watch the context itself; drop the result if
	// the deadline passed while it ran.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out.GetBytes(), nil
}

func supplierLines(doc artifact.CanonicalDocument) []core.Component {
	s := doc.Supplier
	lines := []string{
		"Supplier",
		s.Name,
		s.Street,
		strings.TrimSpace(s.Zipcode + " " + s.City),
		s.Country,
		"Company ID: " + s.CompanyID,
		"Tax ID: " + s.TaxID,
	}
	if s.VATID != "" {
		lines = append(lines, "VAT ID: "+s.VATID)
	}
	if s.IBAN != "" {
		lines = append(lines, "IBAN: "+s.IBAN+"  SWIFT: "+s.SWIFT)
	}
	return textLines(lines)
}

func customerLines(doc artifact.CanonicalDocument) []core.Component {
	c := doc.Customer
	lines := []string{
		"Customer",
		c.Name,
		c.Street,
		strings.TrimSpace(c.Zipcode + " " + c.City),
		c.Country,
	}
	if c.CompanyID != "" {
		lines = append(lines, "Company ID: "+c.CompanyID)
	}
	if c.TaxID != "" {
		lines = append(lines, "Tax ID: "+c.TaxID)
	}
	if c.VATID != "" {
		lines = append(lines, "VAT ID: "+c.VATID)
	}
	return textLines(lines)
}

func textLines(lines []string) []core.Component {
	out := make([]core.Component, 0, len(lines))
	top := 0.0
	for i, line := range lines {
		style := props.Text{Top: top, Size: 9}
		if i == 0 {
			style.Style = fontstyle.Bold
		}
		out = append(out, text.New(line, style))
		top += 4
	}
	return out
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}
