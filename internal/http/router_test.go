package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-line-uploader/internal/config"
	"github.com/tbourn/go-line-uploader/internal/domain"
)

type nopRouter struct{ n int }

func (r *nopRouter) Route(ctx context.Context, ev domain.InboundEvent) { r.n++ }

func newTestEngine(t *testing.T) (*gin.Engine, *nopRouter) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("LINE_CHANNEL_SECRET", "secret")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	rt := &nopRouter{}
	r := gin.New()
	RegisterRoutes(r, rt, cfg)
	return r, rt
}

func TestRegisterRoutes_Health(t *testing.T) {
	r, _ := newTestEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health -> %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["status"] != "ok" {
		t.Fatalf("health body = %s (err=%v)", w.Body.String(), err)
	}
	if got := w.Header().Get("X-Request-ID"); got == "" {
		t.Fatalf("expected X-Request-ID header on every response")
	}
}

func TestRegisterRoutes_Metrics(t *testing.T) {
	r, _ := newTestEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics -> %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("metrics exposition missing http_requests_total")
	}
}

func TestRegisterRoutes_WebhookRejectsUnsigned(t *testing.T) {
	r, rt := newTestEngine(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"events":[]}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("unsigned POST /webhook -> %d; want 400", w.Code)
	}
	if rt.n != 0 {
		t.Fatalf("unsigned request must not reach the router")
	}
}

func TestRegisterRoutes_NoRouteAndNoMethod(t *testing.T) {
	r, _ := newTestEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("GET /nope -> %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/webhook", nil))
	if w.Code != http.StatusMethodNotAllowed || !strings.Contains(w.Body.String(), "method_not_allowed") {
		t.Fatalf("DELETE /webhook -> %d %s", w.Code, w.Body.String())
	}
}
