package domain

import "time"

// OwnedTable names a remote collection whose rows belong to a user through
// OwnerColumn.
type OwnedTable struct {
	Name        string
	OwnerColumn string
}

// OwnedTables lists, in migration order, every collection re-pointed when an
// anonymous identity converts.
var OwnedTables = []OwnedTable{
	{Name: "user_skills", OwnerColumn: "user_id"},
	{Name: "user_badges", OwnerColumn: "user_id"},
	{Name: "skill_assessments", OwnerColumn: "user_id"},
	{Name: "user_answers", OwnerColumn: "user_id"},
	{Name: "user_courses", OwnerColumn: "user_id"},
	{Name: "career_goals", OwnerColumn: "user_id"},
	{Name: "learning_paths", OwnerColumn: "user_id"},
	{Name: "favorites", OwnerColumn: "user_id"},
	{Name: "comments", OwnerColumn: "user_id"},
	{Name: "user_task_attempts", OwnerColumn: "user_id"},
	{Name: "stories", OwnerColumn: "author_id"},
}

type TableFailure struct {
	Table string
	Err   error
}

type MigrationReport struct {
	From      UserID
	To        UserID
	Migrated  []string
	Rows      map[string]int
	Failed    []TableFailure
	Pending   []string
	StartedAt time.Time
	EndedAt   time.Time
}

func (r MigrationReport) Complete() bool {
	return len(r.Failed) == 0 && len(r.Pending) == 0
}

// Remaining returns the tables that still need a retry, failed first.
func (r MigrationReport) Remaining() []string {
	tables := make([]string, 0, len(r.Failed)+len(r.Pending))
	for _, failure := range r.Failed {
		tables = append(tables, failure.Table)
	}
	return append(tables, r.Pending...)
}
