package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

func (c *Client) Select(ctx context.Context, collection string, filter ports.Filter, page ports.Pagination) (ports.SelectResult, error) {
	op := "select " + collection
	token, err := c.bearer(ctx)
	if err != nil {
		return ports.SelectResult{}, err
	}

	query := filterQuery(filter)
	query.Set("select", "*")
	if filter.OrderBy != "" {
		direction := "asc"
		if filter.Descending {
			direction = "desc"
		}
		query.Set("order", filter.OrderBy+"."+direction)
	}

	header := http.Header{"Prefer": {"count=exact"}}
	if page.Limit > 0 {
		header.Set("Range-Unit", "items")
		header.Set("Range", fmt.Sprintf("%d-%d", page.Offset, page.Offset+page.Limit-1))
	}

	resp, err := c.do(ctx, op, request{
		method: http.MethodGet,
		path:   "/rest/v1/" + collection,
		query:  query,
		header: header,
		bearer: token,
	}, http.StatusRequestedRangeNotSatisfiable)
	if err != nil {
		return ports.SelectResult{}, err
	}

	var rows []ports.Row
	if resp.status != http.StatusRequestedRangeNotSatisfiable {
		if err := decode(op, resp.body, &rows); err != nil {
			return ports.SelectResult{}, err
		}
	}
	count, ok := parseContentRangeTotal(resp.header.Get("Content-Range"))
	if !ok {
		count = len(rows)
	}
	return ports.SelectResult{Rows: rows, Count: count}, nil
}

func (c *Client) Insert(ctx context.Context, collection string, row ports.Row) (ports.Row, error) {
	op := "insert " + collection
	rows, err := c.write(ctx, op, http.MethodPost, collection, nil, row)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.NewError(domain.KindInternal, op, "insert returned no representation")
	}
	return rows[0], nil
}

func (c *Client) Update(ctx context.Context, collection string, filter ports.Filter, patch ports.Row) (int, error) {
	rows, err := c.write(ctx, "update "+collection, http.MethodPatch, collection, filterQuery(filter), patch)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (c *Client) Delete(ctx context.Context, collection string, filter ports.Filter) (int, error) {
	rows, err := c.write(ctx, "delete "+collection, http.MethodDelete, collection, filterQuery(filter), nil)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Call invokes a Postgres function exposed under /rest/v1/rpc.
func (c *Client) Call(ctx context.Context, procedure string, args map[string]any) (json.RawMessage, error) {
	op := "call " + procedure
	token, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}

	resp, err := c.do(ctx, op, request{
		method: http.MethodPost,
		path:   "/rest/v1/rpc/" + procedure,
		body:   args,
		bearer: token,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.body) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(resp.body), nil
}

func (c *Client) write(ctx context.Context, op, method, collection string, query url.Values, body ports.Row) ([]ports.Row, error) {
	token, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}

	req := request{
		method: method,
		path:   "/rest/v1/" + collection,
		query:  query,
		header: http.Header{"Prefer": {"return=representation"}},
		bearer: token,
	}
	if body != nil {
		req.body = body
	}

	resp, err := c.do(ctx, op, req)
	if err != nil {
		return nil, err
	}
	if len(resp.body) == 0 {
		return nil, nil
	}
	var rows []ports.Row
	if err := decode(op, resp.body, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// filterQuery renders a filter as PostgREST horizontal filters.
func filterQuery(filter ports.Filter) url.Values {
	query := url.Values{}
	for _, c := range filter.Conditions {
		query.Add(c.Column, conditionValue(c))
	}
	if filter.Search != nil && filter.Search.Term != "" && len(filter.Search.Columns) > 0 {
		term := strings.NewReplacer(",", " ", "(", " ", ")", " ").Replace(filter.Search.Term)
		parts := make([]string, 0, len(filter.Search.Columns))
		for _, column := range filter.Search.Columns {
			parts = append(parts, column+".ilike.*"+term+"*")
		}
		query.Set("or", "("+strings.Join(parts, ",")+")")
	}
	return query
}

func conditionValue(c ports.Condition) string {
	switch c.Op {
	case ports.FilterNeq:
		if c.Value == nil {
			return "not.is.null"
		}
		return "neq." + formatValue(c.Value)
	case ports.FilterILike:
		return "ilike." + strings.ReplaceAll(formatValue(c.Value), "%", "*")
	case ports.FilterIn:
		values, _ := c.Value.([]any)
		parts := make([]string, 0, len(values))
		for _, v := range values {
			parts = append(parts, quoteListValue(formatValue(v)))
		}
		return "in.(" + strings.Join(parts, ",") + ")"
	default:
		if c.Value == nil {
			return "is.null"
		}
		return "eq." + formatValue(c.Value)
	}
}

func formatValue(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

func quoteListValue(v string) string {
	if strings.ContainsAny(v, ",()\" ") {
		return strconv.Quote(v)
	}
	return v
}

// parseContentRangeTotal reads N from "0-11/N" or "*/N".
func parseContentRangeTotal(header string) (int, bool) {
	_, total, found := strings.Cut(header, "/")
	if !found || total == "*" {
		return 0, false
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, false
	}
	return n, true
}
