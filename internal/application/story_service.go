package application

import (
	"context"
	"fmt"

	"github.com/bnema/pathfinder/internal/cache"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

const storiesTable = "stories"

type StoryService struct {
	entityService
}

func (s *StoryService) ListQuery(params domain.ListParams) cache.Query {
	params = params.Normalize()
	return cache.Query{
		Key: domain.StoryKeys.List(params),
		Fetch: func(ctx context.Context) (any, error) {
			filter := listFilter("", params, "title", "content").And(ports.Eq("is_public", true))
			return selectPage[domain.Story](ctx, s.data, storiesTable, filter, params)
		},
	}
}

func (s *StoryService) List(ctx context.Context, params domain.ListParams) (domain.Page[domain.Story], error) {
	return fetchTyped[domain.Page[domain.Story]](ctx, s.store, s.ListQuery(params))
}

func (s *StoryService) DetailQuery(id string) cache.Query {
	return cache.Query{
		Key:        domain.StoryKeys.Detail(id),
		StaleAfter: s.staleness.Detail,
		Fetch: func(ctx context.Context) (any, error) {
			return selectOne[domain.Story](ctx, s.data, storiesTable, ports.ByID(id))
		},
	}
}

func (s *StoryService) Get(ctx context.Context, id string) (domain.Story, error) {
	return fetchTyped[domain.Story](ctx, s.store, s.DetailQuery(id))
}

func (s *StoryService) CommentsQuery(id string) cache.Query {
	return cache.Query{
		Key: domain.StoryKeys.Comments(id),
		Fetch: func(ctx context.Context) (any, error) {
			return selectAll[domain.Comment](ctx, s.data, "comments", commentsFilter(domain.TargetStory, id))
		},
	}
}

func (s *StoryService) Comments(ctx context.Context, id string) ([]domain.Comment, error) {
	return fetchTyped[[]domain.Comment](ctx, s.store, s.CommentsQuery(id))
}

func (s *StoryService) Create(ctx context.Context, input domain.StoryInput) (domain.Story, error) {
	if input.Title == "" || input.Content == "" {
		return domain.Story{}, domain.NewError(domain.KindValidation, "create story", "title and content are required")
	}
	user, err := s.currentUser()
	if err != nil {
		return domain.Story{}, err
	}

	res, err := s.coord.Run(ctx, cache.Mutation{
		Kind: KindStoryCreate,
		Remote: func(ctx context.Context) (any, error) {
			now := s.now()
			row := storyRow(input)
			row["author_id"] = string(user)
			row["is_public"] = true
			row["created_at"] = now
			row["updated_at"] = now
			inserted, err := s.data.Insert(ctx, storiesTable, row)
			if err != nil {
				return nil, fmt.Errorf("insert story: %w", err)
			}
			return decodeRow[domain.Story](inserted)
		},
		OnSuccess: func(store *cache.Store, result any) {
			if story, ok := result.(domain.Story); ok {
				store.Set(domain.StoryKeys.Detail(story.ID), story)
			}
		},
	})
	if err != nil {
		return domain.Story{}, fmt.Errorf("create story: %w", err)
	}
	story, _ := res.Value.(domain.Story)
	return story, nil
}

// Update applies the non-empty fields of input. The cached detail shows the
// edit immediately and is replaced by the stored row once written.
func (s *StoryService) Update(ctx context.Context, id string, input domain.StoryInput) (domain.Story, error) {
	res, err := s.coord.Run(ctx, cache.Mutation{
		Kind:    KindStoryUpdate,
		Subject: cache.Subject{ID: id},
		Target:  domain.StoryKeys.Detail(id),
		Optimistic: cache.Patch(func(story domain.Story) domain.Story {
			return applyStoryInput(story, input)
		}),
		Remote: func(ctx context.Context) (any, error) {
			patch := storyRow(input)
			patch["updated_at"] = s.now()
			n, err := s.data.Update(ctx, storiesTable, ports.ByID(id), patch)
			if err != nil {
				return nil, fmt.Errorf("update story: %w", err)
			}
			if n == 0 {
				return nil, domain.NewError(domain.KindNotFound, "update story", id)
			}
			return selectOne[domain.Story](ctx, s.data, storiesTable, ports.ByID(id))
		},
		OnSuccess: func(store *cache.Store, result any) {
			if story, ok := result.(domain.Story); ok {
				store.Set(domain.StoryKeys.Detail(id), story)
			}
		},
	})
	if err != nil {
		return domain.Story{}, fmt.Errorf("update story %s: %w", id, err)
	}
	story, _ := res.Value.(domain.Story)
	return story, nil
}

// Delete removes the story; its detail and comments leave the cache.
func (s *StoryService) Delete(ctx context.Context, id string) error {
	_, err := s.coord.Run(ctx, cache.Mutation{
		Kind:    KindStoryDelete,
		Subject: cache.Subject{ID: id},
		Remote: func(ctx context.Context) (any, error) {
			n, err := s.data.Delete(ctx, storiesTable, ports.ByID(id))
			if err != nil {
				return nil, fmt.Errorf("delete story: %w", err)
			}
			if n == 0 {
				return nil, domain.NewError(domain.KindNotFound, "delete story", id)
			}
			return nil, nil
		},
	})
	return err
}

func (s *StoryService) Like(ctx context.Context, id string) error {
	if _, err := s.currentUser(); err != nil {
		return err
	}
	_, err := s.coord.Run(ctx, cache.Mutation{
		Kind:    KindStoryLike,
		Subject: cache.Subject{ID: id},
		Target:  domain.StoryKeys.Detail(id),
		Optimistic: cache.Patch(func(story domain.Story) domain.Story {
			story.LikeCount++
			return story
		}),
		Remote: func(ctx context.Context) (any, error) {
			return nil, s.adjustCounter(ctx, storiesTable, id, "like_count", true)
		},
	})
	if err != nil {
		return fmt.Errorf("like story %s: %w", id, err)
	}
	return nil
}

func (s *StoryService) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	user, err := s.currentUser()
	if err != nil {
		return false, err
	}
	favorited, err := s.isFavorited(ctx, user, domain.TargetStory, id)
	if err != nil {
		return false, err
	}
	add := !favorited

	_, err = s.coord.Run(ctx, cache.Mutation{
		Kind:    KindStoryFavorite,
		Subject: cache.Subject{ID: id, UserID: user},
		Target:  domain.StoryKeys.Detail(id),
		Optimistic: cache.Patch(func(story domain.Story) domain.Story {
			story.FavoriteCount = bump(story.FavoriteCount, add)
			return story
		}),
		Remote: func(ctx context.Context) (any, error) {
			return nil, s.writeFavorite(ctx, user, domain.TargetStory, storiesTable, id, add)
		},
	})
	if err != nil {
		return favorited, fmt.Errorf("toggle story favorite: %w", err)
	}
	return add, nil
}

func (s *StoryService) AddComment(ctx context.Context, id, text, parentID string) (domain.Comment, error) {
	if text == "" {
		return domain.Comment{}, domain.NewError(domain.KindValidation, "add comment", "comment is empty")
	}

	res, err := s.coord.Run(ctx, cache.Mutation{
		Kind:    KindStoryComment,
		Subject: cache.Subject{ParentID: id},
		Target:  domain.StoryKeys.Detail(id),
		Optimistic: cache.Patch(func(story domain.Story) domain.Story {
			story.CommentCount++
			return story
		}),
		Remote: func(ctx context.Context) (any, error) {
			return s.insertComment(ctx, domain.TargetStory, id, text, parentID)
		},
	})
	if err != nil {
		return domain.Comment{}, fmt.Errorf("add story comment: %w", err)
	}
	comment, _ := res.Value.(domain.Comment)
	return comment, nil
}

func storyRow(input domain.StoryInput) ports.Row {
	row := ports.Row{}
	if input.Title != "" {
		row["title"] = input.Title
	}
	if input.Content != "" {
		row["content"] = input.Content
	}
	if input.Tags != nil {
		tags := make([]any, 0, len(input.Tags))
		for _, tag := range input.Tags {
			tags = append(tags, tag)
		}
		row["tags"] = tags
	}
	return row
}

func applyStoryInput(story domain.Story, input domain.StoryInput) domain.Story {
	if input.Title != "" {
		story.Title = input.Title
	}
	if input.Content != "" {
		story.Content = input.Content
	}
	if input.Tags != nil {
		story.Tags = append([]string(nil), input.Tags...)
	}
	return story
}
