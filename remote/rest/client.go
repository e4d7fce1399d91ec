// Package rest adapts a PostgREST-style hosted backend to the
// remote.Store contract.
//
// Rows travel as plain JSON objects; filters become query-string
// operators (eq., gt., in., ...). Authentication is a bearer token from a
// Session; realtime change notifications arrive over a websocket Feed and
// map to cache invalidations.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hupe1980/qsync/record"
	"github.com/hupe1980/qsync/remote"
)

// ClientOptions configure the REST client.
type ClientOptions struct {
	// HTTPClient is the underlying HTTP client. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Session supplies bearer tokens. If nil, requests are anonymous.
	Session *Session
}

// Client implements remote.Store against a PostgREST-style API.
type Client struct {
	base *url.URL
	opts ClientOptions
}

// Compile-time interface check.
var _ remote.Store = (*Client)(nil)

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, optFns ...func(o *ClientOptions)) (*Client, error) {
	opts := ClientOptions{
		HTTPClient: http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("rest: parse base url: %w", err)
	}
	return &Client{base: base, opts: opts}, nil
}

// Insert implements remote.Store.
func (c *Client) Insert(ctx context.Context, table string, values record.Record) (record.Record, error) {
	body, err := json.Marshal(toJSON(values))
	if err != nil {
		return nil, remote.NewRequestError("insert", table, err)
	}
	rows, err := c.do(ctx, http.MethodPost, table, nil, body)
	if err != nil {
		return nil, remote.NewRequestError("insert", table, err)
	}
	if len(rows) == 0 {
		return nil, remote.NewRequestError("insert", table, remote.ErrNoRows)
	}
	return rows[0], nil
}

// Update implements remote.Store.
func (c *Client) Update(ctx context.Context, table string, match record.FilterSet, values record.Record) (record.Record, error) {
	body, err := json.Marshal(toJSON(values))
	if err != nil {
		return nil, remote.NewRequestError("update", table, err)
	}
	query, err := filterQuery(match)
	if err != nil {
		return nil, remote.NewRequestError("update", table, err)
	}
	rows, err := c.do(ctx, http.MethodPatch, table, query, body)
	if err != nil {
		return nil, remote.NewRequestError("update", table, err)
	}
	if len(rows) == 0 {
		return nil, remote.NewRequestError("update", table, remote.ErrNoRows)
	}
	return rows[0], nil
}

// Delete implements remote.Store.
func (c *Client) Delete(ctx context.Context, table string, match record.FilterSet) (record.Record, error) {
	query, err := filterQuery(match)
	if err != nil {
		return nil, remote.NewRequestError("delete", table, err)
	}
	rows, err := c.do(ctx, http.MethodDelete, table, query, nil)
	if err != nil {
		return nil, remote.NewRequestError("delete", table, err)
	}
	if len(rows) == 0 {
		return nil, remote.NewRequestError("delete", table, remote.ErrNoRows)
	}
	return rows[0], nil
}

// Select implements remote.Store.
func (c *Client) Select(ctx context.Context, table string, match record.FilterSet) ([]record.Record, error) {
	query, err := filterQuery(match)
	if err != nil {
		return nil, remote.NewRequestError("select", table, err)
	}
	rows, err := c.do(ctx, http.MethodGet, table, query, nil)
	if err != nil {
		return nil, remote.NewRequestError("select", table, err)
	}
	return rows, nil
}

// RPC implements remote.Store.
func (c *Client) RPC(ctx context.Context, fn string, args record.Record) (record.Record, error) {
	body, err := json.Marshal(toJSON(args))
	if err != nil {
		return nil, remote.NewRequestError("rpc", fn, err)
	}
	rows, err := c.do(ctx, http.MethodPost, "rpc/"+fn, nil, body)
	if err != nil {
		return nil, remote.NewRequestError("rpc", fn, err)
	}
	if len(rows) == 0 {
		return record.New(), nil
	}
	return rows[0], nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]record.Record, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Ask the backend to echo the affected rows back.
	req.Header.Set("Prefer", "return=representation")

	if c.opts.Session != nil {
		token, err := c.opts.Session.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if len(data) == 0 {
		return nil, nil
	}

	return decodeRows(data)
}

func decodeRows(data []byte) ([]record.Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, err
		}
		return []record.Record{fromJSON(obj)}, nil
	}

	var objs []map[string]any
	if err := json.Unmarshal(trimmed, &objs); err != nil {
		return nil, err
	}
	rows := make([]record.Record, len(objs))
	for i, obj := range objs {
		rows[i] = fromJSON(obj)
	}
	return rows, nil
}

func filterQuery(match record.FilterSet) (url.Values, error) {
	query := url.Values{}
	for _, f := range match.Filters {
		op, err := queryOperator(f)
		if err != nil {
			return nil, err
		}
		query.Add(f.Field, op)
	}
	return query, nil
}

func queryOperator(f record.Filter) (string, error) {
	switch f.Operator {
	case record.OpEqual:
		return "eq." + queryLiteral(f.Value), nil
	case record.OpNotEqual:
		return "neq." + queryLiteral(f.Value), nil
	case record.OpGreaterThan:
		return "gt." + queryLiteral(f.Value), nil
	case record.OpGreaterEqual:
		return "gte." + queryLiteral(f.Value), nil
	case record.OpLessThan:
		return "lt." + queryLiteral(f.Value), nil
	case record.OpLessEqual:
		return "lte." + queryLiteral(f.Value), nil
	case record.OpIn:
		if f.Value.Kind != record.KindArray {
			return "", fmt.Errorf("in filter on %s requires array value", f.Field)
		}
		items := make([]string, len(f.Value.A))
		for i, v := range f.Value.A {
			items[i] = queryLiteral(v)
		}
		return "in.(" + strings.Join(items, ",") + ")", nil
	case record.OpContains:
		return "like.*" + f.Value.StringValue() + "*", nil
	default:
		return "", fmt.Errorf("unsupported filter operator on %s", f.Field)
	}
}

func queryLiteral(v record.Value) string {
	switch v.Kind {
	case record.KindNull:
		return "null"
	case record.KindInt:
		return strconv.FormatInt(v.I64, 10)
	case record.KindFloat:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case record.KindString:
		return v.S
	case record.KindBool:
		return strconv.FormatBool(v.B)
	default:
		return ""
	}
}

func toJSON(r record.Record) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = valueToJSON(v)
	}
	return out
}

func valueToJSON(v record.Value) any {
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
			items[i] = valueToJSON(item)
		}
		return items
	default:
		return nil
	}
}

func fromJSON(obj map[string]any) record.Record {
	r := record.New()
	for k, v := range obj {
		r[k] = valueFromJSON(v)
	}
	return r
}

func valueFromJSON(v any) record.Value {
	switch x := v.(type) {
	case nil:
		return record.Null()
	case bool:
		return record.Bool(x)
	case float64:
		// JSON numbers arrive as float64; keep integral values as ints so
		// id fields and counters stay exact.
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return record.Int(int64(x))
		}
		return record.Float(x)
	case string:
		return record.String(x)
	case []any:
		items := make([]record.Value, len(x))
		for i, item := range x {
			items[i] = valueFromJSON(item)
		}
		return record.Array(items...)
	default:
		// Nested objects have no Value kind; keep their JSON form.
		data, err := json.Marshal(x)
		if err != nil {
			return record.Null()
		}
		return record.String(string(data))
	}
}
