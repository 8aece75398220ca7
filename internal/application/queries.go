package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/pathfinder/internal/cache"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

const (
	DefaultDetailStaleTime   = 10 * time.Minute
	DefaultAttemptsStaleTime = 2 * time.Minute
)

// SessionSource exposes the active session to services that attribute
// writes to a user.
type SessionSource interface {
	Session() domain.Session
}

// Staleness overrides the store's stale time per kind of key.
type Staleness struct {
	Detail   time.Duration
	Attempts time.Duration
}

func (s Staleness) withDefaults() Staleness {
	if s.Detail <= 0 {
		s.Detail = DefaultDetailStaleTime
	}
	if s.Attempts <= 0 {
		s.Attempts = DefaultAttemptsStaleTime
	}
	return s
}

// entityService holds what every domain service needs to read through the
// cache and write through the coordinator.
type entityService struct {
	data      ports.DataService
	store     *cache.Store
	coord     *cache.Coordinator
	session   SessionSource
	clock     ports.Clock
	logger    *slog.Logger
	staleness Staleness
}

func (s entityService) currentUser() (domain.UserID, error) {
	id := s.session.Session().UserID()
	if id == "" {
		return "", domain.ErrSessionUnresolved
	}
	return id, nil
}

func (s entityService) now() string {
	return s.clock.Now().UTC().Format(time.RFC3339Nano)
}

func fetchTyped[T any](ctx context.Context, store *cache.Store, q cache.Query) (T, error) {
	var zero T
	snap, err := store.Fetch(ctx, q)
	if err != nil {
		return zero, err
	}
	v, ok := cache.Value[T](snap)
	if !ok {
		return zero, fmt.Errorf("cache key %s holds %T", q.Key.String(), snap.Value)
	}
	return v, nil
}

func listFilter(filterColumn string, params domain.ListParams, searchColumns ...string) ports.Filter {
	params = params.Normalize()
	filter := ports.Filter{OrderBy: "created_at", Descending: true}
	if filterColumn != "" && params.Filter != "" && params.Filter != "all" {
		filter = filter.And(ports.Eq(filterColumn, params.Filter))
	}
	if params.SearchQuery != "" {
		filter.Search = &ports.Search{Columns: searchColumns, Term: params.SearchQuery}
	}
	return filter
}

func selectPage[T any](ctx context.Context, data ports.DataService, collection string, filter ports.Filter, params domain.ListParams) (domain.Page[T], error) {
	params = params.Normalize()
	from, _ := params.Range()
	res, err := data.Select(ctx, collection, filter, ports.Pagination{Offset: from, Limit: params.PageSize})
	if err != nil {
		return domain.Page[T]{}, fmt.Errorf("select %s: %w", collection, err)
	}
	rows, err := decodeRows[T](res.Rows)
	if err != nil {
		return domain.Page[T]{}, err
	}
	return domain.NewPage(rows, res.Count, params), nil
}

func selectOne[T any](ctx context.Context, data ports.DataService, collection string, filter ports.Filter) (T, error) {
	var zero T
	res, err := data.Select(ctx, collection, filter, ports.Pagination{Limit: 1})
	if err != nil {
		return zero, fmt.Errorf("select %s: %w", collection, err)
	}
	if len(res.Rows) == 0 {
		return zero, domain.NewError(domain.KindNotFound, "select "+collection, "no matching row")
	}
	return decodeRow[T](res.Rows[0])
}

func selectAll[T any](ctx context.Context, data ports.DataService, collection string, filter ports.Filter) ([]T, error) {
	res, err := data.Select(ctx, collection, filter, ports.Pagination{})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	return decodeRows[T](res.Rows)
}

func commentsFilter(target domain.TargetType, id string) ports.Filter {
	filter := ports.Where(ports.Eq("target_type", string(target)), ports.Eq("target_id", id))
	filter.OrderBy = "created_at"
	filter.Descending = true
	return filter
}

func favoriteFilter(user domain.UserID, target domain.TargetType, id string) ports.Filter {
	return ports.Where(
		ports.Eq("user_id", string(user)),
		ports.Eq("target_type", string(target)),
		ports.Eq("target_id", id),
	)
}

// isFavorited reports whether user has favorited the target.
func (s entityService) isFavorited(ctx context.Context, user domain.UserID, target domain.TargetType, id string) (bool, error) {
	res, err := s.data.Select(ctx, "favorites", favoriteFilter(user, target, id), ports.Pagination{Limit: 1})
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return len(res.Rows) > 0, nil
}

// writeFavorite adds or removes the favorite row and keeps the counter on
// the target row in step.
func (s entityService) writeFavorite(ctx context.Context, user domain.UserID, target domain.TargetType, collection, id string, add bool) error {
	if add {
		row := ports.Row{
			"user_id":     string(user),
			"target_type": string(target),
			"target_id":   id,
			"created_at":  s.now(),
		}
		if _, err := s.data.Insert(ctx, "favorites", row); err != nil {
			return fmt.Errorf("insert favorite: %w", err)
		}
	} else {
		if _, err := s.data.Delete(ctx, "favorites", favoriteFilter(user, target, id)); err != nil {
			return fmt.Errorf("delete favorite: %w", err)
		}
	}
	return s.adjustCounter(ctx, collection, id, "favorite_count", add)
}

// adjustCounter moves a denormalized counter by one, never below zero.
func (s entityService) adjustCounter(ctx context.Context, collection, id, column string, up bool) error {
	res, err := s.data.Select(ctx, collection, ports.ByID(id), ports.Pagination{Limit: 1})
	if err != nil {
		return fmt.Errorf("read %s.%s: %w", collection, column, err)
	}
	if len(res.Rows) == 0 {
		return domain.NewError(domain.KindNotFound, "read "+collection, id)
	}

	next := bump(toInt(res.Rows[0][column]), up)
	if _, err := s.data.Update(ctx, collection, ports.ByID(id), ports.Row{column: next}); err != nil {
		return fmt.Errorf("update %s.%s: %w", collection, column, err)
	}
	return nil
}

func (s entityService) insertComment(ctx context.Context, target domain.TargetType, id, text, parentID string) (domain.Comment, error) {
	user, err := s.currentUser()
	if err != nil {
		return domain.Comment{}, err
	}
	row := ports.Row{
		"user_id":     string(user),
		"target_type": string(target),
		"target_id":   id,
		"content":     text,
		"created_at":  s.now(),
	}
	if parentID != "" {
		row["parent_id"] = parentID
	}
	inserted, err := s.data.Insert(ctx, "comments", row)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return decodeRow[domain.Comment](inserted)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func bump(n int, up bool) int {
	if up {
		return n + 1
	}
	return max(n-1, 0)
}
