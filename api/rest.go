package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"catalog-services/db"
	"catalog-services/log_helpers"

	"github.com/go-chi/chi/v5"
	"github.com/ninja-software/terror/v2"
)

type ErrorMessage string

const (
	InputError            ErrorMessage = "Input error - please check your request"
	NotFoundError         ErrorMessage = "Not found"
	RequestTimeout        ErrorMessage = "Request timeout"
	InternalErrorTryAgain ErrorMessage = "Internal error - please try again in a few minutes"
)

func (errMsg ErrorMessage) String() string {
	return string(errMsg)
}

var ErrInvalidID = fmt.Errorf("invalid id")

// ErrorObject is the uniform JSON error body; the message text varies per
// call site but the shape does not.
type ErrorObject struct {
	Error string `json:"error"`
}

// Handler is a REST endpoint that reports its outcome instead of writing
// error responses itself.
type Handler func(w http.ResponseWriter, r *http.Request) (int, error)

// ConnHandler additionally receives the connection acquired for the request.
type ConnHandler func(w http.ResponseWriter, r *http.Request, conn db.Conn) (int, error)

// WithError adapts handlers that need neither a datastore connection nor a
// deadline.
func (api *API) WithError(next Handler) http.HandlerFunc {
	fn := func(w http.ResponseWriter, r *http.Request) {
		code, err := next(w, r)
		if err != nil {
			api.logOutcome(r, code, err)
			writeError(w, code, err)
		}
	}
	return fn
}

// WithTimeout dispatches next under a deadline, with a connection acquired
// from the pool for the life of the request. Handler completion races
// deadline expiry; the first terminal state wins the single response write.
// A handler that loses the race keeps running to completion with its writes
// discarded, and its deferred release still returns the connection exactly
// once.
func (api *API) WithTimeout(timeout time.Duration, next ConnHandler) http.HandlerFunc {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		gw := newGuardedWriter(w)
		done := make(chan struct{})

		go func() {
			defer close(done)
			defer cancel()
			defer func() {
				if p := recover(); p != nil {
					api.Log.Error().Str("path", r.URL.Path).Interface("panic", p).Msg("handler panic")
					writeError(gw, http.StatusInternalServerError, nil)
				}
			}()

			conn, err := api.Pool.Acquire(ctx)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					writeError(gw, http.StatusGatewayTimeout, terror.Warn(err, RequestTimeout.String()))
					return
				}
				api.logOutcome(r, http.StatusInternalServerError, err)
				writeError(gw, http.StatusInternalServerError, terror.Error(err, InternalErrorTryAgain.String()))
				return
			}
			defer conn.Release()

			code, err := next(gw, r.WithContext(ctx), conn)
			if err != nil {
				api.logOutcome(r, code, err)
				writeError(gw, code, err)
			}
		}()

		select {
		case <-done:
		case <-ctx.Done():
			if gw.abandon() {
				// a response was already under way, nothing more to write
				return
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				api.Log.Warn().Str("path", r.URL.Path).Dur("timeout", timeout).Msg("request deadline exceeded")
				writeError(w, http.StatusGatewayTimeout, terror.Warn(ctx.Err(), RequestTimeout.String()))
			}
		}
	}
	return fn
}

func (api *API) logOutcome(r *http.Request, code int, err error) {
	log := api.Log.With().Str("method", r.Method).Str("path", r.URL.Path).Int("code", code).Logger()
	if code >= http.StatusInternalServerError {
		log_helpers.TerrorEcho(err, &log)
		return
	}
	log.Warn().Err(err).Msg("rest error")
}

// writeError encodes a single error response. Internal error text never
// reaches the client; 500s always carry the generic message.
func writeError(w http.ResponseWriter, code int, err error) {
	errObj := &ErrorObject{Error: errorMessage(code, err)}
	jsonErr, jErr := json.Marshal(errObj)
	if jErr != nil {
		http.Error(w, `{"error":"Internal error - please try again in a few minutes"}`, code)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(jsonErr)
}

func errorMessage(code int, err error) string {
	if code != http.StatusInternalServerError && err != nil {
		var bErr *terror.TError
		if errors.As(err, &bErr) && bErr.Message != "" && bErr.Message != bErr.Error() {
			return bErr.Message
		}
	}
	switch code {
	case http.StatusBadRequest:
		return InputError.String()
	case http.StatusNotFound:
		return NotFoundError.String()
	case http.StatusRequestEntityTooLarge:
		return "File too large"
	case http.StatusGatewayTimeout:
		return RequestTimeout.String()
	default:
		return InternalErrorTryAgain.String()
	}
}

// urlParamInt64 validates a chi id parameter as an integer.
func urlParamInt64(r *http.Request, key string) (int64, error) {
	idStr := chi.URLParam(r, key)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, terror.Error(ErrInvalidID, "invalid id provided")
	}
	return id, nil
}

// guardedWriter is a write-once gate over the real ResponseWriter. After
// abandon, handler writes become no-ops so a zombie completion can never
// touch the wire, and nothing writes to the underlying writer once the
// request handler has returned.
type guardedWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	wrote   bool
	closed  bool
	discard http.Header
}

func newGuardedWriter(w http.ResponseWriter) *guardedWriter {
	return &guardedWriter{w: w}
}

func (g *guardedWriter) Header() http.Header {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		if g.discard == nil {
			g.discard = http.Header{}
		}
		return g.discard
	}
	return g.w.Header()
}

func (g *guardedWriter) WriteHeader(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.wrote {
		return
	}
	g.wrote = true
	g.w.WriteHeader(code)
}

func (g *guardedWriter) Write(b []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return len(b), nil
	}
	g.wrote = true
	return g.w.Write(b)
}

// abandon suppresses all further writes and reports whether a response was
// already started.
func (g *guardedWriter) abandon() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return g.wrote
}
