package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tourbook/pkg/clock"
	"tourbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActor_FromHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		status  int
		want    model.Actor
	}{
		{
			name:    "manager",
			headers: map[string]string{HeaderUserID: "mgr-1", HeaderUserType: "manager"},
			status:  http.StatusOK,
			want:    model.Actor{ID: "mgr-1", Kind: model.ActorManager},
		},
		{
			name:    "visitor phone is normalized",
			headers: map[string]string{HeaderCallerPhone: "(415) 555-0100", HeaderCallerName: "  Dana  "},
			status:  http.StatusOK,
			want:    model.Actor{Kind: model.ActorVisitor, Phone: "+14155550100", Name: "Dana"},
		},
		{
			name:    "user headers win over caller phone",
			headers: map[string]string{HeaderUserID: "agt-1", HeaderUserType: "agent", HeaderCallerPhone: "+14155550100"},
			status:  http.StatusOK,
			want:    model.Actor{ID: "agt-1", Kind: model.ActorAgent},
		},
		{
			name:    "unknown user type",
			headers: map[string]string{HeaderUserID: "x", HeaderUserType: "admin"},
			status:  http.StatusUnauthorized,
		},
		{
			name:    "unparseable phone",
			headers: map[string]string{HeaderCallerPhone: "call me"},
			status:  http.StatusBadRequest,
		},
		{
			name:   "anonymous",
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.Actor
			h := Actor()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = ActorFrom(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	read := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		for {
			_, err := r.Body.Read(buf)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					w.WriteHeader(http.StatusRequestEntityTooLarge)
					return
				}
				break
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	h := MaxRequestSize(16)(read)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 17))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	// Unknown length is cut off while reading.
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 40)))
	req.ContentLength = -1
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	MaxRequestSize(0)(read).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 100))))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIdempotency(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC))
	store := NewInMemoryIdempotencyStore(time.Minute, clk)
	t.Cleanup(store.Stop)

	var calls atomic.Int32
	status := http.StatusCreated
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"n":1}`))
	}))

	send := func(key string, actor model.Actor) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		req = req.WithContext(WithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	manager := model.Actor{ID: "mgr-1", Kind: model.ActorManager}
	agent := model.Actor{ID: "agt-1", Kind: model.ActorAgent}

	first := send("k1", manager)
	replay := send("k1", manager)
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, "true", replay.Header().Get(HeaderIdempotentReplay))
	assert.Empty(t, first.Header().Get(HeaderIdempotentReplay))
	assert.Equal(t, int32(1), calls.Load())

	// Keys are scoped to the caller.
	send("k1", agent)
	assert.Equal(t, int32(2), calls.Load())

	// No key, no caching.
	send("", manager)
	send("", manager)
	assert.Equal(t, int32(4), calls.Load())

	clk.Advance(2 * time.Minute)
	send("k1", manager)
	assert.Equal(t, int32(5), calls.Load())
}

func TestIdempotency_FailuresAreNotCached(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute, nil)
	t.Cleanup(store.Stop)

	var calls atomic.Int32
	h := Idempotency(store, "Idempotency-Key")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, want := range []int{http.StatusConflict, http.StatusOK, http.StatusOK} {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set("Idempotency-Key", "k")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, store.Len())
}

func TestIdempotencyStore_InFlightClaim(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute, nil)
	t.Cleanup(store.Stop)

	cached, ok := store.Reserve("k")
	require.True(t, ok)
	assert.Nil(t, cached)

	_, ok = store.Reserve("k")
	assert.False(t, ok)

	store.Complete("k", nil)
	_, ok = store.Reserve("k")
	assert.True(t, ok)

	store.Complete("k", &CachedResponse{StatusCode: http.StatusOK})
	cached, ok = store.Reserve("k")
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, cached.StatusCode)
}
