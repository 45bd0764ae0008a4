package pdf

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/doklady/internal/artifact"
	"github.com/smallbiznis/doklady/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() artifact.CanonicalDocument {
	issued := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return artifact.CanonicalDocument{
		Title:          "Tax invoice",
		Number:         "FV-000042",
		VariableSymbol: "42",
		PaymentMethod:  "sepa",
		IssuedAt:       issued,
		Supplier: config.Supplier{
			Name:      "Doklady s.r.o.",
			CompanyID: "12345678",
			TaxID:     "1234567890",
			Street:    "Hlavna 1",
			City:      "Bratislava",
			Zipcode:   "81101",
			Country:   "SK",
		},
		Customer: artifact.Party{
			Name:    "Acme s.r.o.",
			Street:  "Dlha 2",
			City:    "Presov",
			Zipcode: "08001",
			Country: "SK",
		},
		Items: []artifact.CanonicalLineItem{
			{Description: "Hosting", Quantity: "1.000", VATRate: "0.2000", UnitNet: "100.00", AmountNet: "100.00"},
		},
		VATRate:    "0.2000",
		NetTotal:   "100.00",
		GrossTotal: "120.00",
	}
}

func TestRenderProducesPDF(t *testing.T) {
	r := New()

	out, err := r.Render(context.Background(), sampleDocument())
	require.NoError(t, err)
	require.Greater(t, len(out), 4)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestRenderHonorsExpiredContext(t *testing.T) {
	r := New()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Render(cancelled, sampleDocument())
	assert.ErrorIs(t, err, context.Canceled)

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err = r.Render(expired, sampleDocument())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
