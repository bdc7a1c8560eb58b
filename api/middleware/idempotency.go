package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/groupbuy-backend/api/responses"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/groupbuy-backend/pkg/redis"
)

// Replay windows. Money-moving routes (join, cancel) keep their record for a
// week, admin writes for a day.
const (
	IdempotencyTTL         = 24 * time.Hour
	CriticalIdempotencyTTL = 7 * 24 * time.Hour
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayHeader         = "Idempotent-Replayed"
	userIDHeader         = "X-User-Id"
	maxIdempotencyKeyLen = 255
	// inFlightTTL bounds how long a crashed request can hold its key.
	inFlightTTL = 2 * time.Minute
)

const (
	recordInFlight  = "in_flight"
	recordCompleted = "completed"
)

type idempotencyRecord struct {
	State       string `json:"state"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes a POST route safe to retry. The first request under a key
// reserves it, runs, and stores the response for ttl; later requests with the
// same key and body get the stored response back. A different body under the
// same key is rejected, as is a retry that races the first request. 5xx
// responses free the key. A nil store disables the middleware.
func Idempotency(store pkgredis.KV, logg *logger.Logger, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
			if clientKey == "" || len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header is required (at most 255 characters)"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := requestFingerprint(r, body)
			key := pkgredis.Key(pkgredis.NSIdempotency, r.Header.Get(userIDHeader), r.Method+" "+r.URL.Path, clientKey)

			reserved, err := putRecord(ctx, store, key, idempotencyRecord{State: recordInFlight, Fingerprint: fingerprint}, inFlightTTL, true)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayOrReject(ctx, logg, w, store, key, fingerprint)
				return
			}

			// Writes after the handler must survive a client disconnect.
			persistCtx := context.WithoutCancel(ctx)
			defer func() {
				if rec := recover(); rec != nil {
					_ = store.Del(persistCtx, key)
					panic(rec)
				}
			}()

			var captured bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				if err := store.Del(persistCtx, key); err != nil && logg != nil {
					logg.Error(persistCtx, "release idempotency key", err)
				}
				return
			}

			completed := idempotencyRecord{
				State:       recordCompleted,
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        captured.Bytes(),
			}
			if _, err := putRecord(persistCtx, store, key, completed, ttl, false); err != nil && logg != nil {
				logg.Error(persistCtx, "store idempotent response", err)
			}
		})
	}
}

func replayOrReject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store pkgredis.KV, key, fingerprint string) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}
	var record idempotencyRecord
	if ok {
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record"))
			return
		}
	}

	switch {
	case !ok, record.State == recordInFlight && record.Fingerprint == fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this Idempotency-Key is still in progress"))
	case record.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key was already used with a different request"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(replayHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

func putRecord(ctx context.Context, store pkgredis.KV, key string, record idempotencyRecord, ttl time.Duration, onlyIfAbsent bool) (bool, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return false, err
	}
	if onlyIfAbsent {
		return store.SetNX(ctx, key, string(payload), ttl)
	}
	return true, store.Set(ctx, key, string(payload), ttl)
}

func requestFingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	_, _ = io.WriteString(h, r.Method+"\n"+r.URL.Path+"\n")
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
