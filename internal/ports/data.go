package ports

import (
	"context"
	"encoding/json"
)

// Row is one record of a remote collection, keyed by column name.
type Row map[string]any

type FilterOp string

const (
	FilterEq    FilterOp = "eq"
	FilterNeq   FilterOp = "neq"
	FilterILike FilterOp = "ilike"
	FilterIn    FilterOp = "in"
)

type Condition struct {
	Column string
	Op     FilterOp
	Value  any
}

// Search matches rows where any of Columns contains Term, case-insensitive.
type Search struct {
	Columns []string
	Term    string
}

type Filter struct {
	Conditions []Condition
	Search     *Search
	OrderBy    string
	Descending bool
}

func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: FilterEq, Value: value}
}

func Where(conditions ...Condition) Filter {
	return Filter{Conditions: conditions}
}

func (f Filter) And(conditions ...Condition) Filter {
	merged := make([]Condition, 0, len(f.Conditions)+len(conditions))
	merged = append(merged, f.Conditions...)
	f.Conditions = append(merged, conditions...)
	return f
}

// Pagination is an inclusive row window. Limit <= 0 means no window.
type Pagination struct {
	Offset int
	Limit  int
}

type SelectResult struct {
	Rows  []Row
	Count int
}

// DataService is the generic CRUD/RPC surface of the remote data service.
// Update and Delete report how many rows matched.
type DataService interface {
	Select(ctx context.Context, collection string, filter Filter, page Pagination) (SelectResult, error)
	Insert(ctx context.Context, collection string, row Row) (Row, error)
	Update(ctx context.Context, collection string, filter Filter, patch Row) (int, error)
	Delete(ctx context.Context, collection string, filter Filter) (int, error)
	Call(ctx context.Context, procedure string, args map[string]any) (json.RawMessage, error)
}

// ByID is the single-row filter used by update(collection, id, patch).
func ByID(id string) Filter {
	return Where(Eq("id", id))
}
