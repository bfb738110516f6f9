package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"onboarding/internal/platform/requestctx"
	"onboarding/internal/transport/http/api"
)

const (
	IdempotencyHeader       = "Idempotency-Key"
	idempotencyReplayHeader = "Idempotent-Replayed"
	maxIdempotencyKeyLength = 255
)

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

const msgIdempotencyInProgress = "a request with this Idempotency-Key is still in progress"

// pendingTTL bounds how long a reservation blocks retries when the process
// dies before the handler finishes.
const pendingTTL = 2 * time.Minute

// StoredResponse is what a completed request leaves behind for replays. A
// zero Status marks a reservation whose request is still running.
type StoredResponse struct {
	RequestHash string `json:"requestHash"`
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

func (s StoredResponse) Pending() bool {
	return s.Status == 0
}

type IdempotencyStore interface {
	Load(ctx context.Context, key string) (StoredResponse, bool, error)
	// Reserve claims key for a running request and reports false when the
	// key is already held, by a reservation or a completed response.
	Reserve(ctx context.Context, key, requestHash string, ttl time.Duration) (bool, error)
	// Save replaces the reservation with the completed response.
	Save(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error
	// Release drops a reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// requestFingerprint hashes multipart bodies part by part so a retry that
// picks a new boundary, or orders fields differently, still matches.
func requestFingerprint(contentType string, payload []byte) string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return RequestHash(payload)
	}
	reader := multipart.NewReader(bytes.NewReader(payload), params["boundary"])
	var parts []string
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return RequestHash(payload)
		}
		sum := sha256.New()
		if _, err := io.Copy(sum, part); err != nil {
			return RequestHash(payload)
		}
		parts = append(parts, part.FormName()+"\x00"+part.FileName()+"\x00"+hex.EncodeToString(sum.Sum(nil)))
	}
	sort.Strings(parts)
	return RequestHash([]byte(mediaType + "\n" + strings.Join(parts, "\n")))
}

type RedisIdempotencyStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisIdempotencyStore(client redis.Cmdable) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: "idempotency:"}
}

func (s *RedisIdempotencyStore) Load(ctx context.Context, key string) (StoredResponse, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return StoredResponse{}, false, nil
	}
	if err != nil {
		return StoredResponse{}, false, err
	}
	var resp StoredResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return StoredResponse{}, false, fmt.Errorf("decode stored response: %w", err)
	}
	return resp, true, nil
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key, requestHash string, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(StoredResponse{RequestHash: requestHash})
	if err != nil {
		return false, err
	}
	return s.client.SetNX(ctx, s.prefix+key, payload, ttl).Result()
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, payload, ttl).Err()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

type memoryEntry struct {
	resp    StoredResponse
	expires time.Time
}

// MemoryIdempotencyStore serves single-instance deployments without redis.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{now: time.Now, entries: map[string]memoryEntry{}}
}

// live returns the unexpired entry for key. Callers hold s.mu.
func (s *MemoryIdempotencyStore) live(key string) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if s.now().After(entry.expires) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (s *MemoryIdempotencyStore) Load(_ context.Context, key string) (StoredResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(key)
	return entry.resp, ok, nil
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key, requestHash string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = memoryEntry{resp: StoredResponse{RequestHash: requestHash}, expires: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{resp: resp, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

// replayStored answers from a stored entry and reports whether it did. A
// different body always conflicts; a pending entry with the same body tells
// the caller to retry later.
func replayStored(w http.ResponseWriter, stored StoredResponse, hash, reqID string) bool {
	if stored.RequestHash != hash {
		api.Fail(w, http.StatusConflict, "idempotency_conflict", ErrIdempotencyConflict.Error(), reqID)
		return true
	}
	if stored.Pending() {
		api.Fail(w, http.StatusConflict, "idempotency_in_progress", msgIdempotencyInProgress, reqID)
		return true
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(idempotencyReplayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
	return true
}

// Idempotency replays the stored response when a caller repeats an
// Idempotency-Key with the same body and answers 409 when the body differs.
// Requests without the header pass straight through. Only 2xx responses are
// remembered.
// The key is reserved before the handler runs, so a duplicate that arrives
// meanwhile gets 409 instead of a second execution.
func Idempotency(store IdempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idemKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if store == nil || idemKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			reqID := GetRequestID(r.Context())
			if len(idemKey) > maxIdempotencyKeyLength {
				api.Fail(w, http.StatusBadRequest, "validation_error", "Idempotency-Key is too long", reqID)
				return
			}

			payload, err := io.ReadAll(r.Body)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", reqID)
					return
				}
				api.Fail(w, http.StatusBadRequest, "validation_error", "unable to read request body", reqID)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(payload))
			hash := requestFingerprint(r.Header.Get("Content-Type"), payload)

			caller := "anonymous"
			if subject, ok := GetSubject(r.Context()); ok {
				caller = subject.UserID
			}
			storeKey := caller + ":" + r.Method + ":" + r.URL.Path + ":" + idemKey
			logger := requestctx.Logger(r.Context())

			stored, found, err := store.Load(r.Context(), storeKey)
			if err != nil {
				logger.Warn("idempotency lookup failed", zap.Error(err))
			}
			if found && replayStored(w, stored, hash, reqID) {
				return
			}

			reserved, err := store.Reserve(r.Context(), storeKey, hash, min(pendingTTL, ttl))
			if err != nil {
				logger.Warn("idempotency reserve failed", zap.Error(err))
			} else if !reserved {
				// Lost the race to a concurrent request with the same key.
				if stored, found, err := store.Load(r.Context(), storeKey); err == nil && found && replayStored(w, stored, hash, reqID) {
					return
				}
				api.Fail(w, http.StatusConflict, "idempotency_in_progress", msgIdempotencyInProgress, reqID)
				return
			}

			capture := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			saveCtx := context.WithoutCancel(r.Context())
			if capture.status < 200 || capture.status >= 300 {
				if reserved {
					if err := store.Release(saveCtx, storeKey); err != nil {
						logger.Warn("idempotency release failed", zap.Error(err))
					}
				}
				return
			}
			resp := StoredResponse{
				RequestHash: hash,
				Status:      capture.status,
				ContentType: w.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			if err := store.Save(saveCtx, storeKey, resp, ttl); err != nil {
				logger.Warn("idempotency save failed", zap.Error(err))
			}
		})
	}
}
