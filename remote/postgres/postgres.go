// Package postgres adapts a PostgreSQL database to the remote.Store
// contract using pgx.
//
// Filter sets translate to WHERE clauses with positional parameters;
// writes use RETURNING * so the authoritative row comes back in the same
// round trip. Only equality and comparison operators that map directly to
// SQL are supported; OpContains translates to LIKE with wildcards.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hupe1980/qsync/record"
	"github.com/hupe1980/qsync/remote"
)

// Store implements remote.Store over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time interface check.
var _ remote.Store = (*Store)(nil)

// NewStore wraps an existing pool. The caller owns the pool's lifecycle.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert implements remote.Store.
func (s *Store) Insert(ctx context.Context, table string, values record.Record) (record.Record, error) {
	fields := values.Fields()
	cols := make([]string, len(fields))
	placeholders := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = pgx.Identifier{f}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = toSQL(values[f])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "))

	row, err := s.queryOne(ctx, query, args)
	if err != nil {
		return nil, remote.NewRequestError("insert", table, err)
	}
	return row, nil
}

// Update implements remote.Store.
func (s *Store) Update(ctx context.Context, table string, match record.FilterSet, values record.Record) (record.Record, error) {
	fields := values.Fields()
	sets := make([]string, len(fields))
	args := make([]any, 0, len(fields)+len(match.Filters))
	for i, f := range fields {
		sets[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{f}.Sanitize(), i+1)
		args = append(args, toSQL(values[f]))
	}

	where, args, err := whereClause(match, args)
	if err != nil {
		return nil, remote.NewRequestError("update", table, err)
	}

	query := fmt.Sprintf("UPDATE %s SET %s%s RETURNING *",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(sets, ", "),
		where)

	row, err := s.queryOne(ctx, query, args)
	if err != nil {
		return nil, remote.NewRequestError("update", table, err)
	}
	return row, nil
}

// Delete implements remote.Store.
func (s *Store) Delete(ctx context.Context, table string, match record.FilterSet) (record.Record, error) {
	where, args, err := whereClause(match, nil)
	if err != nil {
		return nil, remote.NewRequestError("delete", table, err)
	}

	query := fmt.Sprintf("DELETE FROM %s%s RETURNING *",
		pgx.Identifier{table}.Sanitize(), where)

	row, err := s.queryOne(ctx, query, args)
	if err != nil {
		return nil, remote.NewRequestError("delete", table, err)
	}
	return row, nil
}

// Select implements remote.Store.
func (s *Store) Select(ctx context.Context, table string, match record.FilterSet) ([]record.Record, error) {
	where, args, err := whereClause(match, nil)
	if err != nil {
		return nil, remote.NewRequestError("select", table, err)
	}

	query := fmt.Sprintf("SELECT * FROM %s%s ORDER BY id",
		pgx.Identifier{table}.Sanitize(), where)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, remote.NewRequestError("select", table, err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, remote.NewRequestError("select", table, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, remote.NewRequestError("select", table, err)
	}
	return out, nil
}

// RPC implements remote.Store by invoking a SQL function returning a
// single row.
func (s *Store) RPC(ctx context.Context, fn string, args record.Record) (record.Record, error) {
	fields := args.Fields()
	params := make([]string, len(fields))
	vals := make([]any, len(fields))
	for i, f := range fields {
		params[i] = fmt.Sprintf("%s => $%d", pgx.Identifier{f}.Sanitize(), i+1)
		vals[i] = toSQL(args[f])
	}

	query := fmt.Sprintf("SELECT * FROM %s(%s)",
		pgx.Identifier{fn}.Sanitize(), strings.Join(params, ", "))

	row, err := s.queryOne(ctx, query, vals)
	if err != nil {
		return nil, remote.NewRequestError("rpc", fn, err)
	}
	return row, nil
}

func (s *Store) queryOne(ctx context.Context, query string, args []any) (record.Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, remote.ErrNoRows
	}
	r, err := scanRecord(rows)
	if err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return r, nil
}

func whereClause(match record.FilterSet, args []any) (string, []any, error) {
	if match.Empty() {
		return "", args, nil
	}
	conds := make([]string, 0, len(match.Filters))
	for _, f := range match.Filters {
		col := pgx.Identifier{f.Field}.Sanitize()
		switch f.Operator {
		case record.OpEqual:
			if f.Value.IsNull() {
				conds = append(conds, col+" IS NULL")
				continue
			}
			args = append(args, toSQL(f.Value))
			conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
		case record.OpNotEqual:
			if f.Value.IsNull() {
				conds = append(conds, col+" IS NOT NULL")
				continue
			}
			args = append(args, toSQL(f.Value))
			conds = append(conds, fmt.Sprintf("%s <> $%d", col, len(args)))
		case record.OpGreaterThan:
			args = append(args, toSQL(f.Value))
			conds = append(conds, fmt.Sprintf("%s > $%d", col, len(args)))
		case record.OpGreaterEqual:
			args = append(args, toSQL(f.Value))
			conds = append(conds, fmt.Sprintf("%s >= $%d", col, len(args)))
		case record.OpLessThan:
			args = append(args, toSQL(f.Value))
			conds = append(conds, fmt.Sprintf("%s < $%d", col, len(args)))
		case record.OpLessEqual:
			args = append(args, toSQL(f.Value))
			conds = append(conds, fmt.Sprintf("%s <= $%d", col, len(args)))
		case record.OpIn:
			if f.Value.Kind != record.KindArray {
				return "", nil, fmt.Errorf("in filter on %s requires array value", f.Field)
			}
			items := make([]any, len(f.Value.A))
			for i, v := range f.Value.A {
				items[i] = toSQL(v)
			}
			args = append(args, items)
			conds = append(conds, fmt.Sprintf("%s = ANY($%d)", col, len(args)))
		case record.OpContains:
			args = append(args, "%"+f.Value.StringValue()+"%")
			conds = append(conds, fmt.Sprintf("%s LIKE $%d", col, len(args)))
		default:
			return "", nil, fmt.Errorf("unsupported filter operator on %s", f.Field)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func toSQL(v record.Value) any {
	switch v.Kind {
	case record.KindNull:
		return nil
	case record.KindInt:
		return v.I64
	case record.KindFloat:
		return v.F64
	case record.KindString:
		return v.S
	case record.KindBool:
		return v.B
	case record.KindArray:
		items := make([]any, len(v.A))
		for i, item := range v.A {
			items[i] = toSQL(item)
		}
		return items
	default:
		return nil
	}
}

func scanRecord(rows pgx.Rows) (record.Record, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, err
	}

	r := record.New()
	for i, fd := range rows.FieldDescriptions() {
		r[fd.Name] = fromSQL(values[i])
	}
	return r, nil
}

func fromSQL(v any) record.Value {
	switch x := v.(type) {
	case nil:
		return record.Null()
	case bool:
		return record.Bool(x)
	case int16:
		return record.Int(int64(x))
	case int32:
		return record.Int(int64(x))
	case int64:
		return record.Int(x)
	case float32:
		return record.Float(float64(x))
	case float64:
		return record.Float(x)
	case string:
		return record.String(x)
	case []byte:
		return record.String(string(x))
	case time.Time:
		return record.String(x.UTC().Format(time.RFC3339))
	case [16]byte:
		return record.String(fmt.Sprintf("%x-%x-%x-%x-%x", x[0:4], x[4:6], x[6:8], x[8:10], x[10:16]))
	default:
		return record.String(fmt.Sprintf("%v", x))
	}
}
