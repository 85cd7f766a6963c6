package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"catalog-services/db"
	"catalog-services/types"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/microcosm-cc/bluemonday"
	"github.com/ninja-software/terror/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errRow struct {
	err error
}

func (r errRow) Scan(dest ...interface{}) error {
	return r.err
}

// stubConn records every statement sent to it and fails each one with
// queryErr.
type stubConn struct {
	mu       sync.Mutex
	queries  []string
	released int
	queryErr error
}

func (c *stubConn) record(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, q)
}

func (c *stubConn) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.queries))
	copy(out, c.queries)
	return out
}

func (c *stubConn) Released() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

func (c *stubConn) Exec(ctx context.Context, q string, args ...interface{}) (pgconn.CommandTag, error) {
	c.record(q)
	return nil, c.queryErr
}

func (c *stubConn) Query(ctx context.Context, q string, args ...interface{}) (pgx.Rows, error) {
	c.record(q)
	return nil, c.queryErr
}

func (c *stubConn) QueryRow(ctx context.Context, q string, args ...interface{}) pgx.Row {
	c.record(q)
	return errRow{err: c.queryErr}
}

func (c *stubConn) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (c *stubConn) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
}

// stubPool hands out a single stubConn, optionally erroring or blocking
// until the caller's deadline.
type stubPool struct {
	conn       *stubConn
	err        error
	blockUntil bool
}

func (p *stubPool) Acquire(ctx context.Context) (PooledConn, error) {
	if p.blockUntil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.conn, nil
}

func testAPI(pool ConnPool) *API {
	log := zerolog.Nop()
	return &API{
		Log:          &log,
		Pool:         pool,
		HTMLSanitize: bluemonday.StrictPolicy(),
		Config: &types.Config{
			Environment:    "testing",
			RequestTimeout: 8 * time.Second,
			UploadTimeout:  10 * time.Second,
			MaxUploadBytes: 5 << 20,
		},
	}
}

func TestWithTimeoutCompletes(t *testing.T) {
	conn := &stubConn{}
	api := testAPI(&stubPool{conn: conn})

	handler := func(w http.ResponseWriter, r *http.Request, c db.Conn) (int, error) {
		_, _ = w.Write([]byte(`{"ok":true}`))
		return http.StatusOK, nil
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/products/1", nil)
	api.WithTimeout(time.Second, handler)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, 1, conn.Released())
}

func TestWithTimeoutDeadlineWins(t *testing.T) {
	conn := &stubConn{}
	api := testAPI(&stubPool{conn: conn})

	handlerDone := make(chan struct{})
	handler := func(w http.ResponseWriter, r *http.Request, c db.Conn) (int, error) {
		defer close(handlerDone)
		<-r.Context().Done()
		// zombie completion: this write must never reach the wire
		time.Sleep(10 * time.Millisecond)
		_, _ = w.Write([]byte("late result"))
		return http.StatusOK, nil
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/products/1", nil)
	api.WithTimeout(20*time.Millisecond, handler)(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.JSONEq(t, `{"error":"Request timeout"}`, rec.Body.String())

	select {
	case <-handlerDone:
	case <-time.After(time.Second):
		t.Fatal("abandoned handler never finished")
	}
	// the connection borrowed by the abandoned handler still comes back
	require.Eventually(t, func() bool { return conn.Released() == 1 }, time.Second, 5*time.Millisecond)
	assert.NotContains(t, rec.Body.String(), "late result")
}

func TestWithTimeoutHandlerPanics(t *testing.T) {
	conn := &stubConn{}
	api := testAPI(&stubPool{conn: conn})

	handler := func(w http.ResponseWriter, r *http.Request, c db.Conn) (int, error) {
		panic("boom")
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/products/1", nil)
	api.WithTimeout(time.Second, handler)(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal error - please try again in a few minutes"}`, rec.Body.String())
	require.Eventually(t, func() bool { return conn.Released() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWithTimeoutAcquireFails(t *testing.T) {
	api := testAPI(&stubPool{err: fmt.Errorf("pool closed")})

	handler := func(w http.ResponseWriter, r *http.Request, c db.Conn) (int, error) {
		t.Fatal("handler must not run without a connection")
		return http.StatusOK, nil
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/products/1", nil)
	api.WithTimeout(time.Second, handler)(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWithTimeoutAcquireBlockedByDeadline(t *testing.T) {
	api := testAPI(&stubPool{blockUntil: true})

	handler := func(w http.ResponseWriter, r *http.Request, c db.Conn) (int, error) {
		t.Fatal("handler must not run without a connection")
		return http.StatusOK, nil
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/products/1", nil)
	api.WithTimeout(20*time.Millisecond, handler)(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.JSONEq(t, `{"error":"Request timeout"}`, rec.Body.String())
}

func TestWithErrorEncodesBusinessError(t *testing.T) {
	api := testAPI(&stubPool{conn: &stubConn{}})

	handler := func(w http.ResponseWriter, r *http.Request) (int, error) {
		return http.StatusNotFound, terror.Warn(pgx.ErrNoRows, "product not found")
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/products/99", nil)
	api.WithError(handler)(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"product not found"}`, rec.Body.String())
}

func TestGuardedWriterAbandon(t *testing.T) {
	rec := httptest.NewRecorder()
	gw := newGuardedWriter(rec)

	wrote := gw.abandon()
	assert.False(t, wrote)

	gw.WriteHeader(http.StatusOK)
	n, err := gw.Write([]byte("discarded"))
	assert.NoError(t, err)
	assert.Equal(t, len("discarded"), n)
	assert.Equal(t, 0, rec.Body.Len())

	gw.Header().Set("Content-Type", "image/png")
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestGuardedWriterReportsStartedResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	gw := newGuardedWriter(rec)

	_, _ = gw.Write([]byte("partial"))
	assert.True(t, gw.abandon())
	assert.Equal(t, "partial", rec.Body.String())
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		code int
		err  error
		want string
	}{
		{"500 never leaks detail", http.StatusInternalServerError, terror.Error(fmt.Errorf("pq: connection refused"), "could not get product"), "Internal error - please try again in a few minutes"},
		{"404 friendly message", http.StatusNotFound, terror.Warn(pgx.ErrNoRows, "product not found"), "product not found"},
		{"400 without friendly falls back", http.StatusBadRequest, fmt.Errorf("bad"), "Input error - please check your request"},
		{"504 timeout", http.StatusGatewayTimeout, terror.Warn(context.DeadlineExceeded, "Request timeout"), "Request timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorMessage(tt.code, tt.err))
		})
	}
}
