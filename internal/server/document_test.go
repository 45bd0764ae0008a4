package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/doklady/internal/artifact"
	"github.com/smallbiznis/doklady/internal/config"
	"github.com/smallbiznis/doklady/internal/document/domain"
	"github.com/smallbiznis/doklady/internal/document/numbering"
	"github.com/smallbiznis/doklady/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubService struct {
	domain.Service

	getByID  func(ctx context.Context, id string) (domain.Document, error)
	derive   func(ctx context.Context, id string) (domain.Document, bool, error)
	notified func(ctx context.Context, id, recipient string) (bool, error)
}

func (s *stubService) GetByID(ctx context.Context, id string) (domain.Document, error) {
	return s.getByID(ctx, id)
}

func (s *stubService) DeriveInvoice(ctx context.Context, id string) (domain.Document, bool, error) {
	return s.derive(ctx, id)
}

func (s *stubService) IsNotified(ctx context.Context, id, recipient string) (bool, error) {
	return s.notified(ctx, id, recipient)
}

func testServer(t *testing.T, svc domain.Service) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		engine:    newEngine(zap.NewNop(), metrics.NewRegistry()),
		cfg:       config.Config{},
		log:       zap.NewNop(),
		documents: svc,
	}
	s.registerDocumentRoutes()
	return s
}

func perform(s *Server, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	s.engine.ServeHTTP(w, req)
	return w
}

func TestDeriveInvoiceStatusReflectsCreation(t *testing.T) {
	created := true
	svc := &stubService{
		derive: func(ctx context.Context, id string) (domain.Document, bool, error) {
			return domain.Document{Type: domain.TypeInvoice, DisplayNumber: "FV-000001"}, created, nil
		},
	}
	s := testServer(t, svc)

	w := perform(s, http.MethodPost, "/v1/documents/12345/invoice")
	assert.Equal(t, http.StatusCreated, w.Code)

	created = false
	w = perform(s, http.MethodPost, "/v1/documents/12345/invoice")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"created":false`)
}

func TestDeriveInvoiceErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"source missing", domain.ErrSourceNotFound, http.StatusNotFound},
		{"empty source", domain.ErrEmptySource, http.StatusBadRequest},
		{"numbering exhausted", numbering.ErrExhausted, http.StatusConflict},
		{"broken link", domain.ErrInconsistentLink, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{
				derive: func(ctx context.Context, id string) (domain.Document, bool, error) {
					return domain.Document{}, false, tc.err
				},
			}
			s := testServer(t, svc)

			w := perform(s, http.MethodPost, "/v1/documents/12345/invoice")
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestSendReportsAlreadySent(t *testing.T) {
	svc := &stubService{
		getByID: func(ctx context.Context, id string) (domain.Document, error) {
			return domain.Document{CustomerEmail: "billing@acme.example"}, nil
		},
		notified: func(ctx context.Context, id, recipient string) (bool, error) {
			return true, nil
		},
	}
	s := testServer(t, svc)

	w := perform(s, http.MethodPost, "/v1/documents/12345/send")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "already_sent")
}

func TestSendRejectsMissingRecipient(t *testing.T) {
	svc := &stubService{
		getByID: func(ctx context.Context, id string) (domain.Document, error) {
			return domain.Document{}, nil
		},
	}
	s := testServer(t, svc)

	w := perform(s, http.MethodPost, "/v1/documents/12345/send")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvalidIDIsRejected(t *testing.T) {
	s := testServer(t, &stubService{})

	w := perform(s, http.MethodGet, "/v1/documents/not-a-number")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenderTimeoutMapsToGatewayTimeout(t *testing.T) {
	status, payload := mapError(artifact.ErrRenderTimeout)
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, "render_timeout", payload.Type)
}
