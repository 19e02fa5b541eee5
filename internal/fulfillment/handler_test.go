package fulfillment

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/warelane/warelane/internal/policy"
	"github.com/warelane/warelane/internal/shared"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, repo *memoryRepo, pol policy.Policy) chi.Router {
	t.Helper()
	svc := newTestService(repo, pol, &recordingAudit{})
	h := NewHandler(testLogger(), svc)
	r := chi.NewRouter()
	r.Route("/orders", h.MountRoutes)
	return r
}

func doRequest(r chi.Router, method, path, body string, identity *shared.Identity) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if identity != nil {
		req = req.WithContext(shared.ContextWithIdentity(req.Context(), *identity))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRequiresIdentity(t *testing.T) {
	repo := newMemoryRepo()
	seedTransfer(repo, StatusPlanned)
	r := newTestRouter(t, repo, policy.Default(1))

	rec := doRequest(r, http.MethodGet, "/orders/1", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerShowAndNotFound(t *testing.T) {
	repo := newMemoryRepo()
	seedTransfer(repo, StatusPlanned)
	r := newTestRouter(t, repo, policy.Default(1))
	id := actor()

	rec := doRequest(r, http.MethodGet, "/orders/1", "", &id)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "TO-0001", resp.Order.Number)
	require.Len(t, resp.Lines, 2)
	require.Equal(t, LineNotStarted, resp.Lines[0].State)

	rec = doRequest(r, http.MethodGet, "/orders/404", "", &id)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// An order of another organization looks exactly like a missing one.
	other := shared.Identity{ActorID: 5, OrgID: 2, Role: "warehouse"}
	rec = doRequest(r, http.MethodGet, "/orders/1", "", &other)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerFulfillSuccess(t *testing.T) {
	repo := newMemoryRepo()
	seedTransfer(repo, StatusPlanned)
	r := newTestRouter(t, repo, policy.Default(1))
	id := actor()

	body := `{"kind":"SHIP","lines":[{"line_id":11,"delta_qty":"60"}]}`
	rec := doRequest(r, http.MethodPost, "/orders/1/fulfill", body, &id)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FulfillResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, StatusPartiallyShipped, resp.Order.Status)
	require.NotZero(t, resp.TransactionID)
}

func TestHandlerFulfillRejections(t *testing.T) {
	repo := newMemoryRepo()
	seedTransfer(repo, StatusPlanned)
	seedPurchase(repo)
	pol := policy.Policy{OrgID: 1, TolerancePct: dec("10"), AllowOverFulfillment: true}
	r := newTestRouter(t, repo, pol)
	id := actor()

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "tolerance exceeded",
			path:       "/orders/2/fulfill",
			body:       `{"kind":"RECEIVE","lines":[{"line_id":21,"delta_qty":"115"}]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "tolerance_exceeded",
		},
		{
			name:       "unknown line",
			path:       "/orders/2/fulfill",
			body:       `{"kind":"RECEIVE","lines":[{"line_id":999,"delta_qty":"5"}]}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "line_not_found",
		},
		{
			name:       "header state",
			path:       "/orders/1/fulfill",
			body:       `{"kind":"RECEIVE","lines":[{"line_id":11,"delta_qty":"5"}]}`,
			wantStatus: http.StatusConflict,
			wantCode:   "invalid_header_state",
		},
		{
			name:       "invalid quantity",
			path:       "/orders/2/fulfill",
			body:       `{"kind":"RECEIVE","lines":[{"line_id":21,"delta_qty":"-1"}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_quantity",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(r, http.MethodPost, tc.path, tc.body, &id)
			require.Equal(t, tc.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, tc.wantCode, resp.Code)
			require.False(t, resp.Retryable)
		})
	}
}

func TestHandlerCancelConflict(t *testing.T) {
	repo := newMemoryRepo()
	seedTransfer(repo, StatusPlanned)
	r := newTestRouter(t, repo, policy.Default(1))
	id := actor()

	body := `{"kind":"SHIP","lines":[{"line_id":11,"delta_qty":"10"}]}`
	rec := doRequest(r, http.MethodPost, "/orders/1/fulfill", body, &id)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodPost, "/orders/1/cancel", "", &id)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "invalid_header_state", resp.Code)
}
