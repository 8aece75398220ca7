package application

import (
	"context"
	"fmt"

	"github.com/bnema/pathfinder/internal/cache"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

const (
	tasksTable    = "tasks"
	attemptsTable = "user_task_attempts"
)

type TaskService struct {
	entityService
}

func (s *TaskService) ListQuery(params domain.ListParams) cache.Query {
	params = params.Normalize()
	return cache.Query{
		Key: domain.TaskKeys.List(params),
		Fetch: func(ctx context.Context) (any, error) {
			return selectPage[domain.Task](ctx, s.data, tasksTable,
				listFilter("difficulty", params, "title", "description"), params)
		},
	}
}

func (s *TaskService) List(ctx context.Context, params domain.ListParams) (domain.Page[domain.Task], error) {
	return fetchTyped[domain.Page[domain.Task]](ctx, s.store, s.ListQuery(params))
}

func (s *TaskService) DetailQuery(id string) cache.Query {
	return cache.Query{
		Key:        domain.TaskKeys.Detail(id),
		StaleAfter: s.staleness.Detail,
		Fetch: func(ctx context.Context) (any, error) {
			return selectOne[domain.Task](ctx, s.data, tasksTable, ports.ByID(id))
		},
	}
}

func (s *TaskService) Get(ctx context.Context, id string) (domain.Task, error) {
	return fetchTyped[domain.Task](ctx, s.store, s.DetailQuery(id))
}

func (s *TaskService) AttemptsQuery(user domain.UserID) cache.Query {
	return cache.Query{
		Key:        domain.TaskKeys.Attempts(user),
		StaleAfter: s.staleness.Attempts,
		Fetch: func(ctx context.Context) (any, error) {
			filter := ports.Where(ports.Eq("user_id", string(user)))
			filter.OrderBy = "started_at"
			filter.Descending = true
			return selectAll[domain.TaskAttempt](ctx, s.data, attemptsTable, filter)
		},
	}
}

// UserAttempts lists the current user's attempts, newest first.
func (s *TaskService) UserAttempts(ctx context.Context) ([]domain.TaskAttempt, error) {
	user, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	return fetchTyped[[]domain.TaskAttempt](ctx, s.store, s.AttemptsQuery(user))
}

func (s *TaskService) Start(ctx context.Context, taskID string) (domain.TaskAttempt, error) {
	user, err := s.currentUser()
	if err != nil {
		return domain.TaskAttempt{}, err
	}

	placeholder := domain.TaskAttempt{
		UserID:      user,
		TaskID:      taskID,
		Status:      domain.AttemptInProgress,
		CurrentStep: 1,
		StartedAt:   s.clock.Now(),
	}
	res, err := s.coord.Run(ctx, cache.Mutation{
		Kind:    KindTaskStart,
		Subject: cache.Subject{ParentID: taskID, UserID: user},
		Target:  domain.TaskKeys.Attempts(user),
		Optimistic: cache.Patch(func(attempts []domain.TaskAttempt) []domain.TaskAttempt {
			next := make([]domain.TaskAttempt, 0, len(attempts)+1)
			next = append(next, placeholder)
			return append(next, attempts...)
		}),
		Remote: func(ctx context.Context) (any, error) {
			inserted, err := s.data.Insert(ctx, attemptsTable, ports.Row{
				"user_id":      string(user),
				"task_id":      taskID,
				"status":       string(domain.AttemptInProgress),
				"current_step": 1,
				"started_at":   s.now(),
			})
			if err != nil {
				return nil, fmt.Errorf("insert attempt: %w", err)
			}
			return decodeRow[domain.TaskAttempt](inserted)
		},
	})
	if err != nil {
		return domain.TaskAttempt{}, fmt.Errorf("start task %s: %w", taskID, err)
	}
	attempt, _ := res.Value.(domain.TaskAttempt)
	return attempt, nil
}

// UpdateStep moves an attempt to step, saving submission when given.
func (s *TaskService) UpdateStep(ctx context.Context, attemptID string, step int, submission map[string]any) (domain.TaskAttempt, error) {
	if step < 1 {
		return domain.TaskAttempt{}, domain.NewError(domain.KindValidation, "update step", "step must be positive")
	}
	user, err := s.currentUser()
	if err != nil {
		return domain.TaskAttempt{}, err
	}

	patch := ports.Row{"current_step": step}
	if submission != nil {
		patch["submission_content"] = submission
	}
	return s.updateAttempt(ctx, KindTaskStep, user, attemptID, "", patch, func(a domain.TaskAttempt) domain.TaskAttempt {
		a.CurrentStep = step
		if submission != nil {
			a.Submission = submission
		}
		return a
	})
}

// Complete closes an attempt of taskID with a rating.
func (s *TaskService) Complete(ctx context.Context, attemptID, taskID string, rating int) (domain.TaskAttempt, error) {
	if rating < 1 || rating > 5 {
		return domain.TaskAttempt{}, domain.NewError(domain.KindValidation, "complete task", "rating must be between 1 and 5")
	}
	user, err := s.currentUser()
	if err != nil {
		return domain.TaskAttempt{}, err
	}

	completedAt := s.clock.Now()
	patch := ports.Row{
		"status":       string(domain.AttemptCompleted),
		"rating":       rating,
		"completed_at": s.now(),
	}
	return s.updateAttempt(ctx, KindTaskComplete, user, attemptID, taskID, patch, func(a domain.TaskAttempt) domain.TaskAttempt {
		a.Status = domain.AttemptCompleted
		a.Rating = rating
		a.CompletedAt = completedAt
		return a
	})
}

func (s *TaskService) updateAttempt(ctx context.Context, kind cache.MutationKind, user domain.UserID, attemptID, taskID string, patch ports.Row, apply func(domain.TaskAttempt) domain.TaskAttempt) (domain.TaskAttempt, error) {
	res, err := s.coord.Run(ctx, cache.Mutation{
		Kind:    kind,
		Subject: cache.Subject{ID: attemptID, ParentID: taskID, UserID: user},
		Target:  domain.TaskKeys.Attempts(user),
		Optimistic: cache.Patch(func(attempts []domain.TaskAttempt) []domain.TaskAttempt {
			next := make([]domain.TaskAttempt, len(attempts))
			for i, a := range attempts {
				if a.ID == attemptID {
					a = apply(a)
				}
				next[i] = a
			}
			return next
		}),
		Remote: func(ctx context.Context) (any, error) {
			filter := ports.ByID(attemptID).And(ports.Eq("user_id", string(user)))
			n, err := s.data.Update(ctx, attemptsTable, filter, patch)
			if err != nil {
				return nil, fmt.Errorf("update attempt: %w", err)
			}
			if n == 0 {
				return nil, domain.NewError(domain.KindNotFound, "update attempt", attemptID)
			}
			return selectOne[domain.TaskAttempt](ctx, s.data, attemptsTable, ports.ByID(attemptID))
		},
	})
	if err != nil {
		return domain.TaskAttempt{}, fmt.Errorf("%s %s: %w", kind, attemptID, err)
	}
	attempt, _ := res.Value.(domain.TaskAttempt)
	return attempt, nil
}
