// Package remote defines the boundary to the hosted backend.
//
// The remote store is an opaque collaborator with a table-like CRUD surface
// plus RPC. Implementations perform authoritative writes and return the
// resulting row data; the mutation executor never patches the cache unless
// the remote call succeeded. This package ships an in-memory implementation
// for tests; the postgres and rest subpackages adapt real backends.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/qsync/record"
)

// ErrNoRows is returned when an update, delete, or single-row select
// matches nothing.
var ErrNoRows = errors.New("no rows")

// RequestError wraps a failed remote call with its operation context.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type RequestError struct {
	Op    string
	Table string
	cause error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Table, e.cause)
}

func (e *RequestError) Unwrap() error { return e.cause }

// NewRequestError constructs a RequestError. Used by store implementations.
func NewRequestError(op, table string, cause error) *RequestError {
	return &RequestError{Op: op, Table: table, cause: cause}
}

// Store is the consumed contract of the remote backend. All calls are
// single round trips; there is no client-side retry at this layer.
type Store interface {
	// Insert creates one row and returns it as stored (including
	// server-assigned fields such as ids and timestamps).
	Insert(ctx context.Context, table string, values record.Record) (record.Record, error)

	// Update rewrites the fields of the single row matching the filter
	// set and returns the updated row. Returns ErrNoRows if nothing
	// matches.
	Update(ctx context.Context, table string, match record.FilterSet, values record.Record) (record.Record, error)

	// Delete removes the single row matching the filter set and returns
	// it as it was. Returns ErrNoRows if nothing matches.
	Delete(ctx context.Context, table string, match record.FilterSet) (record.Record, error)

	// Select returns all rows matching the filter set, in a stable order.
	Select(ctx context.Context, table string, match record.FilterSet) ([]record.Record, error)

	// RPC invokes a named server-side function with the given arguments.
	RPC(ctx context.Context, fn string, args record.Record) (record.Record, error)
}
