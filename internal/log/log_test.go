package log

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"mkoba/internal/core"
)

func bufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{core.Invalid("month", core.ErrInvalidMonth), ErrorTypeValidation},
		{core.Denied("no"), ErrorTypeAuth},
		{core.Conflict("busy"), ErrorTypeConflict},
		{fmt.Errorf("period x: %w", core.ErrNotFound), ErrorTypeNotFound},
		{&core.StoreError{Op: "get", Err: context.DeadlineExceeded}, ErrorTypeTimeout},
		{&core.StoreError{Op: "get", Err: errors.New("disk full")}, ErrorTypeDatabase},
		{errors.New("boom"), ErrorTypeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorType(tt.err), tt.err.Error())
	}
}

func TestFromContext_Default(t *testing.T) {
	l := FromContext(context.Background())
	assert.Equal(t, ComponentApp, l.Component())
	assert.Equal(t, ComponentLedger, FromContextOr(context.Background(), ComponentLedger).Component())

	var buf bytes.Buffer
	ctx := WithContext(context.Background(), bufferLogger(&buf, "worker"))
	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "component=worker")
	assert.Equal(t, "worker", FromContextOr(ctx, ComponentLedger).Component(), "a stored logger keeps its component")
}

func TestWithComponentDoesNotStack(t *testing.T) {
	var buf bytes.Buffer
	bufferLogger(&buf, ComponentApp).WithComponent(ComponentHTTP).WithComponent(ComponentLedger).Warn("once")
	assert.Equal(t, 1, strings.Count(buf.String(), "component="))
	assert.Contains(t, buf.String(), "component=ledger")
}

func TestHTTPMiddlewareChain(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, ComponentHTTP)

	h := middleware.RequestID(Middleware(logger)(RequestIDMiddleware(AccessLog(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "inside")
			w.WriteHeader(http.StatusTeapot)
		})))))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x?y=1", nil))

	out := buf.String()
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, out, "msg=inside")
	assert.Contains(t, out, "request_id=")
	assert.Contains(t, out, `msg="HTTP request completed"`)
	assert.Contains(t, out, "status_code=418")
	assert.Contains(t, out, "level=WARN")
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(bufferLogger(&buf, ComponentLedger))
	ctx := context.Background()

	sl.LogContributionSaved(ctx, "u1", "treasurer", "p1", "m1", "2025-03", 5000)
	assert.Contains(t, buf.String(), "amount_cents=5000")
	assert.Contains(t, buf.String(), "month=2025-03")

	buf.Reset()
	sl.LogError(ctx, "Publish failed", errors.New("broker down"), ComponentLedger, OpPublish, nil)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), `error="broker down"`)
	assert.Contains(t, buf.String(), "operation=publish")
}
