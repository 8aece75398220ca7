package toml

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
	"github.com/google/uuid"
)

func (b *Backend) Select(ctx context.Context, collection string, filter ports.Filter, page ports.Pagination) (ports.SelectResult, error) {
	var result ports.SelectResult
	err := b.view(ctx, func(file *fileSchema) error {
		var matched []ports.Row
		for _, row := range file.Tables[collection] {
			if matches(row, filter) {
				matched = append(matched, copyRow(row))
			}
		}
		if filter.OrderBy != "" {
			slices.SortStableFunc(matched, func(a, c ports.Row) int {
				order := compareValues(a[filter.OrderBy], c[filter.OrderBy])
				if filter.Descending {
					return -order
				}
				return order
			})
		}

		result.Count = len(matched)
		if page.Limit > 0 {
			start := min(page.Offset, len(matched))
			end := min(start+page.Limit, len(matched))
			matched = matched[start:end]
		}
		result.Rows = matched
		return nil
	})
	if err != nil {
		return ports.SelectResult{}, fmt.Errorf("select %s: %w", collection, err)
	}
	return result, nil
}

// Insert stores row, assigning a uuid id when the row has none.
func (b *Backend) Insert(ctx context.Context, collection string, row ports.Row) (ports.Row, error) {
	stored := sanitizeRow(row)
	if id, _ := stored["id"].(string); id == "" {
		stored["id"] = uuid.NewString()
	}

	err := b.update(ctx, func(file *fileSchema) error {
		for _, existing := range file.Tables[collection] {
			if fmt.Sprint(existing["id"]) == fmt.Sprint(stored["id"]) {
				return domain.NewError(domain.KindConflict, "insert "+collection, fmt.Sprintf("duplicate id %v", stored["id"]))
			}
		}
		file.Tables[collection] = append(file.Tables[collection], stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return copyRow(stored), nil
}

func (b *Backend) Update(ctx context.Context, collection string, filter ports.Filter, patch ports.Row) (int, error) {
	clean := sanitizeRow(patch)
	n := 0
	err := b.update(ctx, func(file *fileSchema) error {
		for _, row := range file.Tables[collection] {
			if !matches(row, filter) {
				continue
			}
			for k, v := range clean {
				row[k] = v
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (b *Backend) Delete(ctx context.Context, collection string, filter ports.Filter) (int, error) {
	n := 0
	err := b.update(ctx, func(file *fileSchema) error {
		kept := file.Tables[collection][:0]
		for _, row := range file.Tables[collection] {
			if matches(row, filter) {
				n++
				continue
			}
			kept = append(kept, row)
		}
		file.Tables[collection] = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Call runs one of the stored procedures the remote service exposes.
func (b *Backend) Call(ctx context.Context, procedure string, args map[string]any) (json.RawMessage, error) {
	switch procedure {
	case "increment_content_views":
		id := fmt.Sprint(args["content_id"])
		var views int64
		err := b.update(ctx, func(file *fileSchema) error {
			for _, row := range file.Tables["contents"] {
				if fmt.Sprint(row["id"]) == id {
					views = toInt64(row["view_count"]) + 1
					row["view_count"] = views
					return nil
				}
			}
			return domain.NewError(domain.KindNotFound, "increment_content_views", id)
		})
		if err != nil {
			return nil, err
		}
		return json.RawMessage(strconv.FormatInt(views, 10)), nil
	default:
		return nil, domain.NewError(domain.KindNotFound, "call", "unknown procedure "+procedure)
	}
}

func matches(row map[string]any, filter ports.Filter) bool {
	for _, c := range filter.Conditions {
		if !conditionHolds(row[c.Column], c) {
			return false
		}
	}
	if filter.Search == nil || filter.Search.Term == "" {
		return true
	}
	term := strings.ToLower(filter.Search.Term)
	for _, column := range filter.Search.Columns {
		if v, ok := row[column]; ok && strings.Contains(strings.ToLower(fmt.Sprint(v)), term) {
			return true
		}
	}
	return false
}

func conditionHolds(value any, c ports.Condition) bool {
	switch c.Op {
	case ports.FilterNeq:
		return fmt.Sprint(value) != fmt.Sprint(c.Value)
	case ports.FilterILike:
		pattern := strings.ToLower(strings.Trim(fmt.Sprint(c.Value), "%"))
		return strings.Contains(strings.ToLower(fmt.Sprint(value)), pattern)
	case ports.FilterIn:
		values, ok := c.Value.([]any)
		if !ok {
			return false
		}
		for _, v := range values {
			if fmt.Sprint(value) == fmt.Sprint(v) {
				return true
			}
		}
		return false
	default:
		if value == nil {
			return c.Value == nil
		}
		return fmt.Sprint(value) == fmt.Sprint(c.Value)
	}
}

func compareValues(a, b any) int {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return cmp.Compare(af, bf)
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// sanitizeRow copies row, dropping nil values TOML cannot hold.
func sanitizeRow(row ports.Row) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

func copyRow(row map[string]any) ports.Row {
	out := make(ports.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toInt64(v any) int64 {
	f, _ := toFloat(v)
	return int64(f)
}
