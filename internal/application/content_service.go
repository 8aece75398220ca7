package application

import (
	"context"
	"fmt"

	"github.com/bnema/pathfinder/internal/cache"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

const contentsTable = "contents"

type ContentService struct {
	entityService
}

func (s *ContentService) ListQuery(params domain.ListParams) cache.Query {
	params = params.Normalize()
	return cache.Query{
		Key: domain.ContentKeys.List(params),
		Fetch: func(ctx context.Context) (any, error) {
			return selectPage[domain.Content](ctx, s.data, contentsTable,
				listFilter("category", params, "title", "description"), params)
		},
	}
}

func (s *ContentService) List(ctx context.Context, params domain.ListParams) (domain.Page[domain.Content], error) {
	return fetchTyped[domain.Page[domain.Content]](ctx, s.store, s.ListQuery(params))
}

func (s *ContentService) DetailQuery(id string) cache.Query {
	return cache.Query{
		Key:        domain.ContentKeys.Detail(id),
		StaleAfter: s.staleness.Detail,
		Fetch: func(ctx context.Context) (any, error) {
			return selectOne[domain.Content](ctx, s.data, contentsTable, ports.ByID(id))
		},
	}
}

func (s *ContentService) Get(ctx context.Context, id string) (domain.Content, error) {
	return fetchTyped[domain.Content](ctx, s.store, s.DetailQuery(id))
}

func (s *ContentService) CommentsQuery(id string) cache.Query {
	return cache.Query{
		Key: domain.ContentKeys.Comments(id),
		Fetch: func(ctx context.Context) (any, error) {
			return selectAll[domain.Comment](ctx, s.data, "comments", commentsFilter(domain.TargetContent, id))
		},
	}
}

func (s *ContentService) Comments(ctx context.Context, id string) ([]domain.Comment, error) {
	return fetchTyped[[]domain.Comment](ctx, s.store, s.CommentsQuery(id))
}

// IncrementViews records a view through the increment_content_views
// procedure.
func (s *ContentService) IncrementViews(ctx context.Context, id string) error {
	_, err := s.coord.Run(ctx, cache.Mutation{
		Kind:    KindContentView,
		Subject: cache.Subject{ID: id},
		Remote: func(ctx context.Context) (any, error) {
			return s.data.Call(ctx, "increment_content_views", map[string]any{"content_id": id})
		},
	})
	return err
}

// ToggleFavorite flips the current user's favorite on content id and
// returns the new state.
func (s *ContentService) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	user, err := s.currentUser()
	if err != nil {
		return false, err
	}
	favorited, err := s.isFavorited(ctx, user, domain.TargetContent, id)
	if err != nil {
		return false, err
	}
	add := !favorited

	_, err = s.coord.Run(ctx, cache.Mutation{
		Kind:    KindContentFavorite,
		Subject: cache.Subject{ID: id, UserID: user},
		Target:  domain.ContentKeys.Detail(id),
		Optimistic: cache.Patch(func(c domain.Content) domain.Content {
			c.FavoriteCount = bump(c.FavoriteCount, add)
			return c
		}),
		Remote: func(ctx context.Context) (any, error) {
			return nil, s.writeFavorite(ctx, user, domain.TargetContent, contentsTable, id, add)
		},
	})
	if err != nil {
		return favorited, fmt.Errorf("toggle content favorite: %w", err)
	}
	return add, nil
}

func (s *ContentService) AddComment(ctx context.Context, id, text, parentID string) (domain.Comment, error) {
	if text == "" {
		return domain.Comment{}, domain.NewError(domain.KindValidation, "add comment", "comment is empty")
	}

	res, err := s.coord.Run(ctx, cache.Mutation{
		Kind:    KindContentComment,
		Subject: cache.Subject{ParentID: id},
		Target:  domain.ContentKeys.Detail(id),
		Optimistic: cache.Patch(func(c domain.Content) domain.Content {
			c.CommentCount++
			return c
		}),
		Remote: func(ctx context.Context) (any, error) {
			return s.insertComment(ctx, domain.TargetContent, id, text, parentID)
		},
	})
	if err != nil {
		return domain.Comment{}, fmt.Errorf("add content comment: %w", err)
	}
	comment, _ := res.Value.(domain.Comment)
	return comment, nil
}
