package resilience

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("overloaded")), true},
		{"wrapped explicit", eris.Wrap(NewTransientError(errors.New("overloaded")), "store: get tenants"), true},
		{"connection reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"network timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"plain", errors.New("invalid input: missing field"), false},
		{"no rows", pgx.ErrNoRows, false},
		{"sql no rows", sql.ErrNoRows, false},
		{"cancelled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner)

	if !errors.Is(te, inner) {
		t.Error("TransientError.Unwrap should return the inner error")
	}
	if te.Error() != "root cause" {
		t.Errorf("expected error message %q, got %q", inner.Error(), te.Error())
	}
}
