package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/qsync/record"
)

func TestMemoryInsertAssignsID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	row, err := m.Insert(ctx, "activities", record.Record{"title": record.String("dune")})
	require.NoError(t, err)
	assert.NotEmpty(t, row.ID())

	// A supplied id is kept.
	row, err = m.Insert(ctx, "activities", record.Record{"id": record.String("a1")})
	require.NoError(t, err)
	assert.Equal(t, "a1", row.ID())
	assert.Equal(t, 2, m.Len("activities"))
}

func TestMemoryUpdate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Seed("activities", record.Record{"id": record.String("a1"), "rating": record.Int(5)})

	row, err := m.Update(ctx, "activities", record.Where(record.Eq("id", record.String("a1"))), record.Record{"rating": record.Int(9)})
	require.NoError(t, err)
	rating, _ := row["rating"].AsInt64()
	assert.Equal(t, int64(9), rating)

	_, err = m.Update(ctx, "activities", record.Where(record.Eq("id", record.String("missing"))), record.Record{})
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Seed("activities", record.Record{"id": record.String("a1")})

	row, err := m.Delete(ctx, "activities", record.Where(record.Eq("id", record.String("a1"))))
	require.NoError(t, err)
	assert.Equal(t, "a1", row.ID())
	assert.Equal(t, 0, m.Len("activities"))

	_, err = m.Delete(ctx, "activities", record.Where(record.Eq("id", record.String("a1"))))
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestMemorySelectOrdered(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Seed("activities",
		record.Record{"id": record.String("b"), "user_id": record.String("u1")},
		record.Record{"id": record.String("a"), "user_id": record.String("u1")},
		record.Record{"id": record.String("c"), "user_id": record.String("u2")},
	)

	rows, err := m.Select(ctx, "activities", record.Where(record.Eq("user_id", record.String("u1"))))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].ID())
	assert.Equal(t, "b", rows[1].ID())
}

func TestMemoryRPC(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.RegisterRPC("echo", func(ctx context.Context, args record.Record) (record.Record, error) {
		return args, nil
	})

	row, err := m.RPC(ctx, "echo", record.Record{"x": record.Int(1)})
	require.NoError(t, err)
	x, _ := row["x"].AsInt64()
	assert.Equal(t, int64(1), x)

	_, err = m.RPC(ctx, "unknown", nil)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestMemoryFailNext(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	m.FailNext = boom
	_, err := m.Insert(ctx, "activities", record.Record{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "insert", reqErr.Op)
	assert.Equal(t, "activities", reqErr.Table)

	// The failure is consumed.
	_, err = m.Insert(ctx, "activities", record.Record{})
	assert.NoError(t, err)
}
