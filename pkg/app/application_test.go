package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tourbook/pkg/client"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
	"tourbook/pkg/middleware"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthStub struct{}

func (healthStub) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

type echoHandler struct {
	calls atomic.Int32
}

func (h *echoHandler) RegisterRoutes(router *httprouter.Router) {
	echo := func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.calls.Add(1)
		actor, _ := middleware.ActorFrom(r.Context())
		httputil.WriteSuccess(w, "echo", map[string]string{"actor": actor.Key()})
	}
	router.GET("/api/v1/echo", echo)
	router.POST("/api/v1/echo", echo)
}

func newTestApp(t *testing.T) (*Application, *echoHandler) {
	t.Helper()

	cfg := &config.Config{
		Port:              "0",
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    5 * time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    64,
		Log:               logger.Discard(),
		Client:            client.NewClient(),
	}

	echo := &echoHandler{}
	a := NewApplication()
	a.SetApp(cfg, healthStub{}, echo)
	t.Cleanup(func() {
		a.idempotencyStore.Stop()
		a.rateLimiter.Stop()
	})
	return a, echo
}

func serve(a *Application, r *http.Request) (*httptest.ResponseRecorder, client.Envelope) {
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, r)

	var env client.Envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestApplication_HealthNeedsNoIdentity(t *testing.T) {
	a, _ := newTestApp(t)

	rec, _ := serve(a, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplication_MetricsExposed(t *testing.T) {
	a, _ := newTestApp(t)

	rec, _ := serve(a, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplication_APIRequiresIdentity(t *testing.T) {
	a, echo := newTestApp(t)

	rec, env := serve(a, httptest.NewRequest(http.MethodGet, "/api/v1/echo", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperrors.CodeUnauthorized, env.Error.Code)
	assert.Zero(t, echo.calls.Load())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/echo", nil)
	req.Header.Set(middleware.HeaderUserID, "mgr-1")
	req.Header.Set(middleware.HeaderUserType, "manager")
	rec, env = serve(a, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"actor":"manager:mgr-1"}`, string(env.Data))
}

func TestApplication_RejectsOversizedBody(t *testing.T) {
	a, echo := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(`{"notes":"`+strings.Repeat("x", 100)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderUserID, "mgr-1")
	req.Header.Set(middleware.HeaderUserType, "manager")

	rec, _ := serve(a, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, echo.calls.Load())
}

func TestApplication_RejectsNonJSONBody(t *testing.T) {
	a, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader("hello"))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set(middleware.HeaderUserID, "mgr-1")
	req.Header.Set(middleware.HeaderUserType, "manager")

	rec, _ := serve(a, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestApplication_RateLimitsCallers(t *testing.T) {
	a, _ := newTestApp(t)

	call := func(phone string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/echo", nil)
		req.Header.Set(middleware.HeaderCallerPhone, phone)
		rec, _ := serve(a, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("+14155550100"))
	// Same number in another format shares the budget.
	assert.Equal(t, http.StatusOK, call("+1 (415) 555-0100"))
	assert.Equal(t, http.StatusTooManyRequests, call("+14155550100"))
	assert.Equal(t, http.StatusOK, call("+14155550199"))
}

func TestApplication_ReplaysIdempotentRequests(t *testing.T) {
	a, echo := newTestApp(t)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "abc")
		req.Header.Set(middleware.HeaderUserID, "agt-1")
		req.Header.Set(middleware.HeaderUserType, "agent")
		rec, _ := serve(a, req)
		return rec
	}

	first := send()
	second := send()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), echo.calls.Load())
}
