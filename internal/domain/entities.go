package domain

import "time"

type TargetType string

const (
	TargetContent TargetType = "content"
	TargetStory   TargetType = "story"
	TargetTask    TargetType = "task"
)

type Author struct {
	ID        UserID `mapstructure:"id"`
	Username  string `mapstructure:"username"`
	AvatarURL string `mapstructure:"avatar_url"`
}

type Content struct {
	ID            string    `mapstructure:"id"`
	Title         string    `mapstructure:"title"`
	Description   string    `mapstructure:"description"`
	Category      string    `mapstructure:"category"`
	AuthorID      UserID    `mapstructure:"author_id"`
	Author        *Author   `mapstructure:"author"`
	ViewCount     int       `mapstructure:"view_count"`
	FavoriteCount int       `mapstructure:"favorite_count"`
	CommentCount  int       `mapstructure:"comment_count"`
	LikeCount     int       `mapstructure:"like_count"`
	CreatedAt     time.Time `mapstructure:"created_at"`
}

type Story struct {
	ID            string    `mapstructure:"id"`
	Title         string    `mapstructure:"title"`
	Content       string    `mapstructure:"content"`
	AuthorID      UserID    `mapstructure:"author_id"`
	Author        *Author   `mapstructure:"author"`
	Tags          []string  `mapstructure:"tags"`
	ViewCount     int       `mapstructure:"view_count"`
	LikeCount     int       `mapstructure:"like_count"`
	FavoriteCount int       `mapstructure:"favorite_count"`
	CommentCount  int       `mapstructure:"comment_count"`
	CreatedAt     time.Time `mapstructure:"created_at"`
	UpdatedAt     time.Time `mapstructure:"updated_at"`
}

type StoryInput struct {
	Title   string
	Content string
	Tags    []string
}

type TaskDifficulty string

const (
	TaskDifficultyEasy   TaskDifficulty = "easy"
	TaskDifficultyMedium TaskDifficulty = "medium"
	TaskDifficultyHard   TaskDifficulty = "hard"
)

type Task struct {
	ID             string         `mapstructure:"id"`
	Title          string         `mapstructure:"title"`
	Description    string         `mapstructure:"description"`
	Difficulty     TaskDifficulty `mapstructure:"difficulty"`
	TotalSteps     int            `mapstructure:"total_steps"`
	AttemptCount   int            `mapstructure:"attempt_count"`
	CompletionRate float64        `mapstructure:"completion_rate"`
	FavoriteCount  int            `mapstructure:"favorite_count"`
	CreatedAt      time.Time      `mapstructure:"created_at"`
}

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

type TaskAttempt struct {
	ID          string         `mapstructure:"id"`
	UserID      UserID         `mapstructure:"user_id"`
	TaskID      string         `mapstructure:"task_id"`
	Status      AttemptStatus  `mapstructure:"status"`
	CurrentStep int            `mapstructure:"current_step"`
	Submission  map[string]any `mapstructure:"submission_content"`
	Rating      int            `mapstructure:"rating"`
	StartedAt   time.Time      `mapstructure:"started_at"`
	CompletedAt time.Time      `mapstructure:"completed_at"`
}

type Comment struct {
	ID         string     `mapstructure:"id"`
	UserID     UserID     `mapstructure:"user_id"`
	TargetType TargetType `mapstructure:"target_type"`
	TargetID   string     `mapstructure:"target_id"`
	ParentID   string     `mapstructure:"parent_id"`
	Content    string     `mapstructure:"content"`
	Author     *Author    `mapstructure:"author"`
	CreatedAt  time.Time  `mapstructure:"created_at"`
}

type Favorite struct {
	ID         string     `mapstructure:"id"`
	UserID     UserID     `mapstructure:"user_id"`
	TargetType TargetType `mapstructure:"target_type"`
	TargetID   string     `mapstructure:"target_id"`
	CreatedAt  time.Time  `mapstructure:"created_at"`
}

type Page[T any] struct {
	Rows       []T
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

func NewPage[T any](rows []T, total int, params ListParams) Page[T] {
	params = params.Normalize()
	totalPages := 0
	if total > 0 {
		totalPages = (total + params.PageSize - 1) / params.PageSize
	}
	if rows == nil {
		rows = []T{}
	}
	return Page[T]{
		Rows:       rows,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}
}
