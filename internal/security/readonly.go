package security

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrReadOnly is matched by every ReadOnlyError.
var ErrReadOnly = errors.New("read-only mode")

// Operation names a ledger mutation.
type Operation string

const (
	OpOpenPosition  Operation = "OPEN_POSITION"
	OpClosePosition Operation = "CLOSE_POSITION"
	OpReset         Operation = "RESET"
)

// ReadOnlyError is returned when a mutation is attempted in read-only mode.
type ReadOnlyError struct {
	Operation Operation
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("operation %s blocked: read-only mode is enabled", e.Operation)
}

// Is makes every ReadOnlyError match ErrReadOnly.
func (e *ReadOnlyError) Is(target error) bool {
	return target == ErrReadOnly
}

// AccessController decides whether ledger mutations are allowed.
type AccessController struct {
	mu       sync.RWMutex
	readOnly bool
	logger   zerolog.Logger
}

// NewAccessController creates an access controller.
func NewAccessController(readOnly bool, logger zerolog.Logger) *AccessController {
	return &AccessController{readOnly: readOnly, logger: logger}
}

// IsReadOnly reports whether mutations are blocked.
func (ac *AccessController) IsReadOnly() bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.readOnly
}

// SetReadOnly toggles read-only mode.
func (ac *AccessController) SetReadOnly(readOnly bool) {
	ac.mu.Lock()
	ac.readOnly = readOnly
	ac.mu.Unlock()
	ac.logger.Info().Bool("read_only", readOnly).Msg("Access mode changed")
}

// Check returns a ReadOnlyError for op when read-only mode is enabled.
func (ac *AccessController) Check(op Operation) error {
	if !ac.IsReadOnly() {
		return nil
	}
	ac.logger.Warn().Str("operation", string(op)).Msg("Mutation blocked in read-only mode")
	return &ReadOnlyError{Operation: op}
}
