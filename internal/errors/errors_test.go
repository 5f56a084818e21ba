package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"provider", NewProviderError("events", "http://x", 502, nil), ErrProvider},
		{"not found", NewNotFoundError("trade", "t1"), ErrNotFound},
		{"insufficient", NewInsufficientBalanceError(decimal.NewFromInt(2), decimal.NewFromInt(1)), ErrInsufficientBalance},
		{"already closed", NewAlreadyClosedError("t1"), ErrAlreadyClosed},
		{"persistence", NewPersistenceError("write", "trades", fmt.Errorf("disk full")), ErrPersistence},
		{"decode", NewDecodeError("outcomePrices", "[", fmt.Errorf("eof")), ErrDecode},
		{"validation", NewValidationError("shares", "0", "shares must be positive"), ErrInputValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Wrap(tt.err, "outer")
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("%v does not match %v", wrapped, tt.sentinel)
			}
		})
	}
}

func TestInsufficientBalanceMessage(t *testing.T) {
	err := NewInsufficientBalanceError(decimal.RequireFromString("14000"), decimal.RequireFromString("9960.5"))
	want := "Insufficient balance. Need $14000.00, have $9960.50"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewPersistenceError("read", "balance", cause)
	if !errors.Is(err, cause) {
		t.Error("PersistenceError should unwrap to its cause")
	}

	var pe *PersistenceError
	if !As(Wrapf(err, "loading %s", "ledger"), &pe) || pe.Key != "balance" {
		t.Errorf("As failed: %+v", pe)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport", NewProviderError("events", "u", 0, fmt.Errorf("dial tcp")), true},
		{"server error", NewProviderError("events", "u", 503, nil), true},
		{"rate limited", NewProviderError("events", "u", 429, nil), true},
		{"client error", NewProviderError("events", "u", 400, nil), false},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), true},
		{"not found", NewNotFoundError("event", "x"), false},
		{"validation", NewValidationError("side", "MAYBE", "bad side"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsDeclined(t *testing.T) {
	if !IsDeclined(NewAlreadyClosedError("t1")) || !IsDeclined(NewInsufficientBalanceError(decimal.Zero, decimal.Zero)) {
		t.Error("business refusals should be declined")
	}
	if IsDeclined(NewProviderError("events", "u", 500, nil)) {
		t.Error("provider failure is not a decline")
	}
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil {
		t.Error("wrapping nil should return nil")
	}
}
