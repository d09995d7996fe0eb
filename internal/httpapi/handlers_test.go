package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AuraReaper/voom/internal/drivers"
	"github.com/AuraReaper/voom/internal/payments"
	"github.com/AuraReaper/voom/internal/registry"
	"github.com/AuraReaper/voom/internal/routing"
	"github.com/AuraReaper/voom/internal/storage"
	"github.com/AuraReaper/voom/internal/trip"
)

func newTestServer(t *testing.T, quoteTTL time.Duration) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := drivers.NewDirectory()
	sessions := registry.New(logger, 32)
	lifecycle := trip.NewLifecycle(sessions, pool, storage.NewMemoryStore(), payments.Noop{}, logger, trip.Options{AutoStart: true})
	fares := trip.NewFareStore(quoteTTL)
	svc := trip.NewService(routing.StraightLine{}, fares, lifecycle, trip.DefaultPricingConfig(), logger)
	return NewServer(svc, lifecycle, nil, sessions, pool, logger)
}

func postJSON(t *testing.T, srv http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

type previewResponse struct {
	Message string `json:"message"`
	Data    struct {
		Route     json.RawMessage `json:"route"`
		RideFares []struct {
			ID          string  `json:"id"`
			PackageSlug string  `json:"packageSlug"`
			TotalPrice  float64 `json:"totalPriceInINR"`
		} `json:"rideFares"`
	} `json:"data"`
}

func doPreview(t *testing.T, srv http.Handler, userID string) previewResponse {
	t.Helper()
	rec := postJSON(t, srv, "/api/v1/trips/preview", map[string]any{
		"userID":      userID,
		"pickup":      map[string]float64{"latitude": 28.6139, "longitude": 77.2090},
		"destination": map[string]float64{"latitude": 28.7041, "longitude": 77.1025},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("preview status %d: %s", rec.Code, rec.Body.String())
	}
	var resp previewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	return resp
}

func TestPreviewReturnsFarePerPackage(t *testing.T) {
	srv := newTestServer(t, 5*time.Minute)
	resp := doPreview(t, srv, "rider-1")

	if resp.Message != "request valid" {
		t.Fatalf("message = %q", resp.Message)
	}
	if len(resp.Data.RideFares) != 4 {
		t.Fatalf("expected 4 fares, got %d", len(resp.Data.RideFares))
	}
	for _, f := range resp.Data.RideFares {
		if f.ID == "" || f.TotalPrice <= 0 {
			t.Fatalf("bad fare: %+v", f)
		}
	}
}

func TestPreviewRejectsMissingUser(t *testing.T) {
	srv := newTestServer(t, 5*time.Minute)
	rec := postJSON(t, srv, "/api/v1/trips/preview", map[string]any{
		"pickup":      map[string]float64{"latitude": 28.6139, "longitude": 77.2090},
		"destination": map[string]float64{"latitude": 28.7041, "longitude": 77.1025},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStartCreatesTripFromQuote(t *testing.T) {
	srv := newTestServer(t, 5*time.Minute)
	resp := doPreview(t, srv, "rider-1")

	rec := postJSON(t, srv, "/api/v1/trips/start", map[string]string{
		"rideFareID": resp.Data.RideFares[0].ID,
		"userID":     "rider-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status %d: %s", rec.Code, rec.Body.String())
	}
	var started struct {
		TripID string `json:"tripID"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	if started.TripID == "" || started.Status != "requested" {
		t.Fatalf("started = %+v", started)
	}

	// The quote is consumed; replaying the start fails.
	rec = postJSON(t, srv, "/api/v1/trips/start", map[string]string{
		"rideFareID": resp.Data.RideFares[0].ID,
		"userID":     "rider-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("replayed start status = %d", rec.Code)
	}
}

func TestStartWithWrongUserRejected(t *testing.T) {
	srv := newTestServer(t, 5*time.Minute)
	resp := doPreview(t, srv, "rider-1")

	rec := postJSON(t, srv, "/api/v1/trips/start", map[string]string{
		"rideFareID": resp.Data.RideFares[0].ID,
		"userID":     "rider-2",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStartWithExpiredQuoteIsGone(t *testing.T) {
	srv := newTestServer(t, time.Nanosecond)
	resp := doPreview(t, srv, "rider-1")
	time.Sleep(time.Millisecond)

	rec := postJSON(t, srv, "/api/v1/trips/start", map[string]string{
		"rideFareID": resp.Data.RideFares[0].ID,
		"userID":     "rider-1",
	})
	if rec.Code != http.StatusGone {
		t.Fatalf("expired quote status = %d, want 410", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, 5*time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
