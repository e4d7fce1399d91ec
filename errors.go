package qsync

import (
	"errors"
	"fmt"

	"github.com/hupe1980/qsync/remote"
)

var (
	// ErrNotFound is returned when a remote operation matches no row.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when the client has been closed.
	ErrClosed = errors.New("client is closed")
)

// ErrMutationInvalid indicates a mutation that cannot be executed,
// typically a missing Write function.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrMutationInvalid struct {
	Name  string
	cause error
}

func (e *ErrMutationInvalid) Error() string {
	return fmt.Sprintf("invalid mutation: %s", e.Name)
}

func (e *ErrMutationInvalid) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification. The remote error stays reachable through
	// errors.Is/As so callers can still inspect the request context.
	if errors.Is(err, remote.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
