// Package store persists tasks, dependency edges, assignments and tags.
//
// Store is the boundary the dependency engine and task service work
// against. Gorm implements it on gorm.io/gorm for MySQL (Dolt) and SQLite.
// Missing rows surface as errs.ErrNotFound; other database failures are
// wrapped with context and returned unchanged.
package store

import (
	"context"

	"github.com/zulandar/taskyard/internal/filter"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/page"
)

// DependencyFilter selects dependency edges. Zero fields are ignored.
type DependencyFilter struct {
	TaskID           string                // dependent side
	DependsOnTaskID  string                // prerequisite side
	Type             models.DependencyType // empty matches any type
	UnresolvedOnly   bool                  // prerequisite not done
	WithPrerequisite bool                  // load DependsOnTask
}

// Store is the task store.
type Store interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
	LockTasks(ctx context.Context, ids ...string) error
	TaskSource(teamIDs []string, pred filter.Predicate) page.Source[models.Task]
	InsertTask(ctx context.Context, t *models.Task) error
	UpdateTaskFields(ctx context.Context, id string, fields map[string]any) error
	DeleteTask(ctx context.Context, id string) error
	ListSubtasks(ctx context.Context, parentID string) ([]models.Task, error)
	ReconcileCandidates(ctx context.Context) ([]string, error)

	InsertDependency(ctx context.Context, d *models.TaskDependency) error
	DeleteDependency(ctx context.Context, id string) error
	GetDependency(ctx context.Context, id string) (*models.TaskDependency, error)
	ListDependencies(ctx context.Context, f DependencyFilter) ([]models.TaskDependency, error)
	CountDependencies(ctx context.Context, f DependencyFilter) (int64, error)

	ListAssignments(ctx context.Context, taskID string) ([]models.TaskAssignment, error)
	InsertAssignment(ctx context.Context, a *models.TaskAssignment) error
	DeleteAssignment(ctx context.Context, taskID, userID string) error

	GetTeam(ctx context.Context, id string) (*models.Team, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	FindTags(ctx context.Context, teamID string, ids []string) ([]models.Tag, error)
	ReplaceTaskTags(ctx context.Context, taskID string, tagIDs []string) error

	// Membership oracle.
	IsActiveMember(ctx context.Context, teamID, userID string) (bool, error)
	TeamIDsForUser(ctx context.Context, userID string) ([]string, error)

	// WithTx runs fn against a Store bound to one transaction. fn's error
	// rolls the transaction back.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
