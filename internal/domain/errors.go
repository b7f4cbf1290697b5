package domain

import (
	"errors"
	"fmt"
)

// Validation errors: local, synchronous, never retried.
var (
	ErrEventNotOpen        = errors.New("event is not open")
	ErrInvalidOutcome      = errors.New("invalid outcome")
	ErrInvalidStake        = errors.New("invalid stake")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// ErrNetwork marks transient transport failures. The caller may retry the whole operation.
var ErrNetwork = errors.New("network error")

// RemoteRejectedError es un rechazo de negocio del servidor.
// Message se muestra al usuario tal cual.
type RemoteRejectedError struct {
	Message string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("remote rejected: %s", e.Message)
}

// IsRetryable devuelve true solo para fallos de red.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
