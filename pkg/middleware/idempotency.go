package middleware

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"tourbook/pkg/clock"
	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
)

// HeaderIdempotentReplay marks a response served from the idempotency cache.
const HeaderIdempotentReplay = "Idempotent-Replay"

type IdempotencyStore interface {
	// Reserve returns the stored response for key, or claims key for the
	// caller. ok is false while another request holds the claim.
	Reserve(key string) (cached *CachedResponse, ok bool)
	// Complete stores response under a claimed key. A nil response drops the
	// claim so the request can be retried.
	Complete(key string, response *CachedResponse)
	Stop()
}

type CachedResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	CreatedAt  time.Time
}

type idempotencyEntry struct {
	response *CachedResponse
	claimed  time.Time
}

type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*idempotencyEntry
	ttl      time.Duration
	clock    clock.Clock
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration, clk clock.Clock) *InMemoryIdempotencyStore {
	if clk == nil {
		clk = clock.System()
	}
	store := &InMemoryIdempotencyStore{
		entries: make(map[string]*idempotencyEntry),
		ttl:     ttl,
		clock:   clk,
		stopCh:  make(chan struct{}),
	}

	go store.sweep(sweepInterval(ttl))

	return store
}

func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > time.Hour {
		return time.Hour
	}
	return ttl
}

func (s *InMemoryIdempotencyStore) Reserve(key string) (*CachedResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if e, ok := s.entries[key]; ok && !s.expired(e, now) {
		if e.response == nil {
			return nil, false
		}
		return e.response, true
	}
	s.entries[key] = &idempotencyEntry{claimed: now}
	return nil, true
}

func (s *InMemoryIdempotencyStore) Complete(key string, response *CachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if response == nil {
		delete(s.entries, key)
		return
	}
	response.CreatedAt = s.clock.Now()
	s.entries[key] = &idempotencyEntry{response: response, claimed: response.CreatedAt}
}

// A claim whose request never completed expires with the same TTL.
func (s *InMemoryIdempotencyStore) expired(e *idempotencyEntry, now time.Time) bool {
	return now.Sub(e.claimed) > s.ttl
}

func (s *InMemoryIdempotencyStore) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := s.clock.Now()
			s.mu.Lock()
			for key, e := range s.entries {
				if s.expired(e, now) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (rc *responseCapture) WriteHeader(statusCode int) {
	rc.statusCode = statusCode
	rc.ResponseWriter.WriteHeader(statusCode)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the first successful response for a repeated key. A
// repeat that arrives while the first request is still running gets 409.
func Idempotency(store IdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = "Idempotency-Key"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scopedIdempotencyKey(r, headerName)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			cached, ok := store.Reserve(key)
			if !ok {
				httputil.WriteError(w, apperrors.Conflict("A request with this idempotency key is still being processed"))
				return
			}
			if cached != nil {
				replayCachedResponse(w, cached)
				return
			}

			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK, body: &bytes.Buffer{}}
			completed := false
			defer func() {
				if !completed {
					store.Complete(key, nil)
				}
			}()

			next.ServeHTTP(capture, r)

			if capture.statusCode >= 200 && capture.statusCode < 300 {
				store.Complete(key, &CachedResponse{
					StatusCode: capture.statusCode,
					Headers:    w.Header().Clone(),
					Body:       capture.body.Bytes(),
				})
				completed = true
			}
		})
	}
}

// scopedIdempotencyKey ties a client key to the caller and the route so two
// callers reusing a key never see each other's responses.
func scopedIdempotencyKey(r *http.Request, headerName string) string {
	key := r.Header.Get(headerName)
	if key == "" {
		return ""
	}
	caller := "anonymous"
	if actor, ok := ActorFrom(r.Context()); ok {
		caller = actor.Key()
	}
	return caller + "|" + r.Method + " " + r.URL.Path + "|" + key
}

func replayCachedResponse(w http.ResponseWriter, cached *CachedResponse) {
	for key, values := range cached.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(HeaderIdempotentReplay, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}
