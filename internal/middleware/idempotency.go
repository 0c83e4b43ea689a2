package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/showpls/showpls-server-go/internal/errors"
	"github.com/showpls/showpls-server-go/internal/service"
)

// IdempotencyKeyHeader names the header carrying the client-supplied key.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayedHeader marks a response served from the idempotency store.
const ReplayedHeader = "Idempotency-Replayed"

// capturedResponse is the serialized form of a guarded handler's output.
// Body bytes are stored verbatim so a replay is byte-identical.
type capturedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// errPassthrough carries a non-2xx response out of the idempotency store
// without caching it.
type errPassthrough struct {
	resp capturedResponse
}

func (e *errPassthrough) Error() string {
	return "response not cacheable"
}

// IdempotencyMiddleware is the gate in front of money-moving routes. It
// requires a well-formed UUID key on every mutating request, executes the
// handler at most once per key and replays the first successful response
// byte-for-byte on duplicates.
type IdempotencyMiddleware struct {
	svc *service.IdempotencyService
}

func NewIdempotencyMiddleware(svc *service.IdempotencyService) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{svc: svc}
}

func (m *IdempotencyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isMutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		rawKey := r.Header.Get(IdempotencyKeyHeader)
		if rawKey == "" {
			writeError(w, apperrors.MissingIdempotencyKey())
			return
		}

		key, err := uuid.Parse(rawKey)
		if err != nil || !isWellFormedKey(key) {
			writeError(w, apperrors.InvalidKeyFormat())
			return
		}

		operation := r.Method + " " + r.URL.Path

		response, replayed, err := m.svc.Execute(r.Context(), &key, operation,
			func(ctx context.Context) (json.RawMessage, error) {
				return runAndCapture(next, r.WithContext(ctx))
			})
		if err != nil {
			var passthrough *errPassthrough
			if errors.As(err, &passthrough) {
				writeCaptured(w, passthrough.resp, false)
				return
			}
			log.Error().Err(err).Str("key", key.String()).Msg("idempotency gate failed")
			writeError(w, err)
			return
		}

		var captured capturedResponse
		if err := json.Unmarshal(response, &captured); err != nil {
			log.Error().Err(err).Str("key", key.String()).Msg("stored idempotent response is corrupt")
			writeError(w, apperrors.Internal("Stored response is unreadable"))
			return
		}

		writeCaptured(w, captured, replayed)
	})
}

// runAndCapture executes the handler against a buffering response writer.
// Successful (2xx) responses become the cacheable result; anything else is
// propagated uncached through an errPassthrough.
func runAndCapture(next http.Handler, r *http.Request) (json.RawMessage, error) {
	rec := newRecorder()
	next.ServeHTTP(rec, r)

	captured := capturedResponse{
		Status:      rec.status,
		ContentType: rec.Header().Get("Content-Type"),
		Body:        rec.body.Bytes(),
	}

	if captured.Status < 200 || captured.Status >= 300 {
		return nil, &errPassthrough{resp: captured}
	}

	return json.Marshal(captured)
}

func writeCaptured(w http.ResponseWriter, resp capturedResponse, replayed bool) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	if replayed {
		w.Header().Set(ReplayedHeader, "true")
	}
	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// isWellFormedKey accepts RFC 4122 UUIDs of versions 1 through 5.
func isWellFormedKey(key uuid.UUID) bool {
	if key.Variant() != uuid.RFC4122 {
		return false
	}
	v := key.Version()
	return v >= 1 && v <= 5
}

// recorder buffers a handler's response instead of streaming it to the
// client, so the gate can decide whether to persist it first.
type recorder struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newRecorder() *recorder {
	return &recorder{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

func (r *recorder) Header() http.Header {
	return r.header
}

func (r *recorder) Write(b []byte) (int, error) {
	return r.body.Write(b)
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
}
