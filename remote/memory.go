package remote

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/qsync/record"
)

// RPCFunc implements one named server-side function for the in-memory
// store.
type RPCFunc func(ctx context.Context, args record.Record) (record.Record, error)

// Memory is an in-memory Store for tests and examples. Inserted rows get a
// uuid "id" field unless one is supplied. Select returns rows ordered by
// id so results are deterministic.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]record.Record
	rpcs   map[string]RPCFunc

	// FailNext, when set, makes the next write call return the error and
	// clear itself. Used to exercise the no-patch-on-failure contract.
	FailNext error
}

// Compile-time interface check.
var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string][]record.Record),
		rpcs:   make(map[string]RPCFunc),
	}
}

// RegisterRPC installs a named function callable through RPC.
func (m *Memory) RegisterRPC(name string, fn RPCFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rpcs[name] = fn
}

// Seed inserts rows without generating ids. Rows are stored as given.
func (m *Memory) Seed(table string, rows ...record.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], r.Clone())
	}
}

// Insert creates one row, assigning a uuid id when none is given.
func (m *Memory) Insert(ctx context.Context, table string, values record.Record) (record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, NewRequestError("insert", table, err)
	}

	row := values.Clone()
	if _, ok := row["id"]; !ok {
		row["id"] = record.String(uuid.NewString())
	}
	m.tables[table] = append(m.tables[table], row)
	return row.Clone(), nil
}

// Update rewrites the first row matching the filter set.
func (m *Memory) Update(ctx context.Context, table string, match record.FilterSet, values record.Record) (record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, NewRequestError("update", table, err)
	}

	for i, row := range m.tables[table] {
		if match.Matches(row) {
			next := row.Clone()
			for k, v := range values {
				next[k] = v.Clone()
			}
			m.tables[table][i] = next
			return next.Clone(), nil
		}
	}
	return nil, NewRequestError("update", table, ErrNoRows)
}

// Delete removes the first row matching the filter set.
func (m *Memory) Delete(ctx context.Context, table string, match record.FilterSet) (record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, NewRequestError("delete", table, err)
	}

	rows := m.tables[table]
	for i, row := range rows {
		if match.Matches(row) {
			m.tables[table] = append(rows[:i:i], rows[i+1:]...)
			return row.Clone(), nil
		}
	}
	return nil, NewRequestError("delete", table, ErrNoRows)
}

// Select returns all matching rows ordered by id.
func (m *Memory) Select(ctx context.Context, table string, match record.FilterSet) ([]record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []record.Record
	for _, row := range m.tables[table] {
		if match.Matches(row) {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// RPC invokes a registered function.
func (m *Memory) RPC(ctx context.Context, fn string, args record.Record) (record.Record, error) {
	m.mu.Lock()
	f, ok := m.rpcs[fn]
	err := m.takeFailure()
	m.mu.Unlock()

	if err != nil {
		return nil, NewRequestError("rpc", fn, err)
	}
	if !ok {
		return nil, NewRequestError("rpc", fn, ErrNoRows)
	}
	return f(ctx, args)
}

// Len returns the number of rows in a table.
func (m *Memory) Len(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func (m *Memory) takeFailure() error {
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return err
	}
	return nil
}
