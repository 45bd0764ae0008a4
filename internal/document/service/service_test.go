package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/doklady/internal/config"
	"github.com/smallbiznis/doklady/internal/document/domain"
	"github.com/smallbiznis/doklady/internal/document/numbering"
	"github.com/smallbiznis/doklady/internal/vat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testBilling() config.Billing {
	return config.Billing{
		DefaultVATRate:       decimal.RequireFromString("0.20"),
		MoneyPrecision:       2,
		PaymentTermDays:      14,
		NumberWidth:          6,
		PrefixProforma:       "PF-",
		PrefixInvoice:        "FV-",
		PrefixCreditNote:     "DP-",
		DefaultPaymentMethod: "sepa",
	}
}

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Document{}, &domain.LineItem{}, &numbering.Sequence{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	billing := testBilling()
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Numbering: numbering.New(db, numbering.Config{
			Width:            billing.NumberWidth,
			PrefixProforma:   billing.PrefixProforma,
			PrefixInvoice:    billing.PrefixInvoice,
			PrefixCreditNote: billing.PrefixCreditNote,
		}),
		Calc:    vat.New(billing.MoneyPrecision),
		Billing: billing,
	})
	return svc, db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func netItem(description, net string) domain.LineItemInput {
	price := dec(net)
	return domain.LineItemInput{Description: description, NetPrice: &price}
}

func TestCreateProformaComputesGrossFromNet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, domain.CreateDocumentRequest{
		Type:          domain.TypeProforma,
		CustomerName:  "Acme s.r.o.",
		CustomerEmail: "billing@acme.example",
		Items:         []domain.LineItemInput{netItem("Hosting", "100.00")},
	})
	require.NoError(t, err)

	assert.Equal(t, "PF-000001", doc.DisplayNumber)
	assert.True(t, doc.NetTotal.Equal(dec("100.00")), "net=%s", doc.NetTotal)
	assert.True(t, doc.GrossTotal.Equal(dec("120.00")), "gross=%s", doc.GrossTotal)
	assert.Equal(t, "sepa", doc.PaymentMethod)
	assert.Equal(t, "1", doc.VariableSymbol)

	require.NotNil(t, doc.DueAt)
	wantDue := doc.IssuedAt.AddDate(0, 0, 14)
	assert.WithinDuration(t, wantDue, *doc.DueAt, time.Second)

	items, err := svc.ListItems(ctx, doc.ID.String())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].GrossPrice.Equal(dec("120.00")))
	assert.True(t, items[0].Quantity.Equal(dec("1")))
}

func TestCreateDerivesNetFromGross(t *testing.T) {
	svc, _ := newTestService(t)

	gross := dec("122.99")
	rate := dec("0.23")
	doc, err := svc.Create(context.Background(), domain.CreateDocumentRequest{
		Type:         domain.TypeInvoice,
		CustomerName: "Acme s.r.o.",
		VATRate:      &rate,
		Items: []domain.LineItemInput{
			{Description: "Consulting", GrossPrice: &gross},
		},
	})
	require.NoError(t, err)

	items, err := svc.ListItems(context.Background(), doc.ID.String())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].NetPrice.Equal(dec("99.99")), "net=%s", items[0].NetPrice)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateDocumentRequest{
		Type:         domain.TypeCreditNote,
		CustomerName: "Acme s.r.o.",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	negative := dec("-0.10")
	_, err = svc.Create(ctx, domain.CreateDocumentRequest{
		Type:         domain.TypeProforma,
		CustomerName: "Acme s.r.o.",
		VATRate:      &negative,
	})
	assert.ErrorIs(t, err, vat.ErrInvalidRate)

	_, err = svc.Create(ctx, domain.CreateDocumentRequest{
		Type:         domain.TypeProforma,
		CustomerName: "Acme s.r.o.",
		Items:        []domain.LineItemInput{{Description: "No price"}},
	})
	assert.ErrorIs(t, err, domain.ErrMissingPrice)
}

func TestUpdateRateChangeReprices(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, domain.CreateDocumentRequest{
		Type:         domain.TypeProforma,
		CustomerName: "Acme s.r.o.",
		Items:        []domain.LineItemInput{netItem("Hosting", "100.00")},
	})
	require.NoError(t, err)

	rate := dec("0.10")
	updated, err := svc.Update(ctx, doc.ID.String(), domain.UpdateDocumentRequest{VATRate: &rate})
	require.NoError(t, err)

	assert.True(t, updated.NetTotal.Equal(dec("100.00")))
	assert.True(t, updated.GrossTotal.Equal(dec("110.00")), "gross=%s", updated.GrossTotal)

	items, err := svc.ListItems(ctx, doc.ID.String())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].GrossPrice.Equal(dec("110.00")))
}

func TestUpdatePaidInvoiceIsImmutable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, domain.CreateDocumentRequest{
		Type:         domain.TypeInvoice,
		CustomerName: "Acme s.r.o.",
		Items:        []domain.LineItemInput{netItem("Hosting", "100.00")},
	})
	require.NoError(t, err)

	paidAt := time.Now().UTC()
	_, err = svc.Update(ctx, doc.ID.String(), domain.UpdateDocumentRequest{PaidAt: &paidAt})
	require.NoError(t, err)

	name := "Someone Else"
	_, err = svc.Update(ctx, doc.ID.String(), domain.UpdateDocumentRequest{CustomerName: &name})
	assert.ErrorIs(t, err, domain.ErrImmutable)
}

func TestDeleteKeepsSequenceReserved(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, domain.CreateDocumentRequest{
		Type:         domain.TypeInvoice,
		CustomerName: "Acme s.r.o.",
		Items:        []domain.LineItemInput{netItem("Hosting", "100.00")},
	})
	require.NoError(t, err)
	assert.Equal(t, "FV-000001", first.DisplayNumber)

	require.NoError(t, svc.Delete(ctx, first.ID.String()))

	_, err = svc.GetByID(ctx, first.ID.String())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	second, err := svc.Create(ctx, domain.CreateDocumentRequest{
		Type:         domain.TypeInvoice,
		CustomerName: "Acme s.r.o.",
		Items:        []domain.LineItemInput{netItem("Hosting", "100.00")},
	})
	require.NoError(t, err)
	assert.Equal(t, "FV-000002", second.DisplayNumber)
}

func TestListFiltersByType(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateDocumentRequest{
		Type:         domain.TypeProforma,
		CustomerName: "Acme s.r.o.",
		Items:        []domain.LineItemInput{netItem("Hosting", "50.00")},
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateDocumentRequest{
		Type:         domain.TypeInvoice,
		CustomerName: "Acme s.r.o.",
		Items:        []domain.LineItemInput{netItem("Hosting", "60.00")},
	})
	require.NoError(t, err)

	all, err := svc.List(ctx, domain.ListDocumentsRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Documents, 2)

	invoiceType := domain.TypeInvoice
	invoices, err := svc.List(ctx, domain.ListDocumentsRequest{Type: &invoiceType})
	require.NoError(t, err)
	require.Len(t, invoices.Documents, 1)
	assert.Equal(t, domain.TypeInvoice, invoices.Documents[0].Type)
}

func TestNotificationLogDeduplicatesRecipients(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, domain.CreateDocumentRequest{
		Type:         domain.TypeInvoice,
		CustomerName: "Acme s.r.o.",
		Items:        []domain.LineItemInput{netItem("Hosting", "100.00")},
	})
	require.NoError(t, err)
	id := doc.ID.String()

	sent, err := svc.IsNotified(ctx, id, "billing@acme.example")
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, svc.MarkNotified(ctx, id, "billing@acme.example"))
	// Same recipient again, case-insensitive, is a no-op.
	require.NoError(t, svc.MarkNotified(ctx, id, "Billing@Acme.example"))

	sent, err = svc.IsNotified(ctx, id, "billing@acme.example")
	require.NoError(t, err)
	assert.True(t, sent)

	fresh, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `["billing@acme.example"]`, string(fresh.NotificationLog))
}
