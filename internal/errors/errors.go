// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/shopspring/decimal"
)

// Standard sentinel errors
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyClosed       = errors.New("trade already closed")
	ErrNotFound            = errors.New("not found")
	ErrProvider            = errors.New("market data provider error")
	ErrPersistence         = errors.New("persistence error")
	ErrDecode              = errors.New("decode error")
	ErrInputValidation     = errors.New("input validation failed")
	ErrConfigInvalid       = errors.New("invalid configuration")
)

// ProviderError represents a failure talking to the market data provider.
type ProviderError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider error [%s] %s: status %d", e.Op, e.URL, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("provider error [%s] %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("provider error [%s] %s", e.Op, e.URL)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is makes every ProviderError match ErrProvider.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// NewProviderError creates a new ProviderError.
func NewProviderError(op, url string, status int, err error) *ProviderError {
	return &ProviderError{
		Op:     op,
		URL:    url,
		Status: status,
		Err:    err,
	}
}

// NotFoundError represents an unknown market, event or trade.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Is makes every NotFoundError match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// InsufficientBalanceError is returned when an open would cost more than the available cash.
type InsufficientBalanceError struct {
	Need decimal.Decimal
	Have decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Insufficient balance. Need $%s, have $%s", e.Need.StringFixed(2), e.Have.StringFixed(2))
}

// Is makes every InsufficientBalanceError match ErrInsufficientBalance.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// NewInsufficientBalanceError creates a new InsufficientBalanceError.
func NewInsufficientBalanceError(need, have decimal.Decimal) *InsufficientBalanceError {
	return &InsufficientBalanceError{Need: need, Have: have}
}

// AlreadyClosedError is returned when closing a trade that is already closed.
type AlreadyClosedError struct {
	TradeID string
}

func (e *AlreadyClosedError) Error() string {
	return fmt.Sprintf("trade already closed: %s", e.TradeID)
}

// Is makes every AlreadyClosedError match ErrAlreadyClosed.
func (e *AlreadyClosedError) Is(target error) bool {
	return target == ErrAlreadyClosed
}

// NewAlreadyClosedError creates a new AlreadyClosedError.
func NewAlreadyClosedError(tradeID string) *AlreadyClosedError {
	return &AlreadyClosedError{TradeID: tradeID}
}

// PersistenceError represents a ledger store read or write failure.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error [%s] %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is makes every PersistenceError match ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// NewPersistenceError creates a new PersistenceError.
func NewPersistenceError(op, key string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Key: key, Err: err}
}

// DecodeError represents a malformed embedded price or outcome encoding.
// It is recovered where it occurs and never returned to callers of the gateway.
type DecodeError struct {
	Field string
	Raw   string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error [%s] %q: %v", e.Field, e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is makes every DecodeError match ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// NewDecodeError creates a new DecodeError.
func NewDecodeError(field, raw string, err error) *DecodeError {
	return &DecodeError{Field: field, Raw: raw, Err: err}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Is makes every ValidationError match ErrInputValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsDeclined reports whether err is a business rule refusal rather than a failure.
func IsDeclined(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrAlreadyClosed)
}

// IsRetryable reports whether the operation may succeed if retried later.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Status == 0 || pe.Status == 429 || pe.Status >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
