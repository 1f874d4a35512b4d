package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/zulandar/taskyard/internal/errs"
	"github.com/zulandar/taskyard/internal/filter"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/page"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm is a Store backed by a GORM connection.
type Gorm struct {
	db *gorm.DB
}

// New wraps db. The connection should be opened with TranslateError so
// unique violations surface as gorm.ErrDuplicatedKey.
func New(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

var _ Store = (*Gorm)(nil)

func (s *Gorm) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("store: %s %s: %w", what, id, errs.ErrNotFound)
	}
	return fmt.Errorf("store: get %s %s: %w", what, id, err)
}

// GetTask loads a task with its tags.
func (s *Gorm) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	if err := s.conn(ctx).Preload("Tags").Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err, "task", id)
	}
	return &t, nil
}

// LockTasks takes row locks on the given tasks for the rest of the
// transaction. Only MySQL supports SELECT ... FOR UPDATE; SQLite serializes
// writers already, so there it only checks the rows can be read.
func (s *Gorm) LockTasks(ctx context.Context, ids ...string) error {
	q := s.conn(ctx).Model(&models.Task{}).Where("id IN ?", ids).Order("id")
	if s.db.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var locked []string
	if err := q.Pluck("id", &locked).Error; err != nil {
		return fmt.Errorf("store: lock tasks %v: %w", ids, err)
	}
	return nil
}

// TaskSource returns a paginated view over tasks in teamIDs matching pred,
// newest first. No teams means no rows.
func (s *Gorm) TaskSource(teamIDs []string, pred filter.Predicate) page.Source[models.Task] {
	where, args, err := compilePredicate(pred)
	scoped := func(ctx context.Context) *gorm.DB {
		q := s.conn(ctx).Model(&models.Task{}).Where("tasks.team_id IN ?", teamIDs)
		if where != "" {
			q = q.Where(where, args...)
		}
		return q
	}
	return page.Source[models.Task]{
		Count: func(ctx context.Context) (int64, error) {
			if err != nil {
				return 0, err
			}
			if len(teamIDs) == 0 {
				return 0, nil
			}
			var n int64
			if err := scoped(ctx).Count(&n).Error; err != nil {
				return 0, fmt.Errorf("store: count tasks: %w", err)
			}
			return n, nil
		},
		Fetch: func(ctx context.Context, offset, limit int) ([]models.Task, error) {
			if err != nil {
				return nil, err
			}
			if len(teamIDs) == 0 {
				return nil, nil
			}
			var tasks []models.Task
			if err := scoped(ctx).Preload("Tags").
				Order("tasks.created_at DESC, tasks.id").
				Offset(offset).Limit(limit).
				Find(&tasks).Error; err != nil {
				return nil, fmt.Errorf("store: list tasks: %w", err)
			}
			return tasks, nil
		},
	}
}

// InsertTask creates a task row. Tags are attached with ReplaceTaskTags.
func (s *Gorm) InsertTask(ctx context.Context, t *models.Task) error {
	if err := s.conn(ctx).Omit("Tags").Create(t).Error; err != nil {
		return fmt.Errorf("store: insert task %s: %w", t.ID, err)
	}
	return nil
}

// UpdateTaskFields applies a column map to one task and bumps updated_at.
func (s *Gorm) UpdateTaskFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	result := s.conn(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("store: update task %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: task %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

// DeleteTask removes a task, its dependency edges in both directions, its
// assignments and tag links. Subtasks are kept with parent_task_id cleared.
func (s *Gorm) DeleteTask(ctx context.Context, id string) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ? OR depends_on_task_id = ?", id, id).
			Delete(&models.TaskDependency{}).Error; err != nil {
			return fmt.Errorf("store: delete edges of %s: %w", id, err)
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskAssignment{}).Error; err != nil {
			return fmt.Errorf("store: delete assignments of %s: %w", id, err)
		}
		if err := tx.Exec("DELETE FROM task_tags WHERE task_id = ?", id).Error; err != nil {
			return fmt.Errorf("store: delete tags of %s: %w", id, err)
		}
		if err := tx.Model(&models.Task{}).Where("parent_task_id = ?", id).
			Update("parent_task_id", nil).Error; err != nil {
			return fmt.Errorf("store: orphan subtasks of %s: %w", id, err)
		}
		result := tx.Where("id = ?", id).Delete(&models.Task{})
		if result.Error != nil {
			return fmt.Errorf("store: delete task %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("store: task %s: %w", id, errs.ErrNotFound)
		}
		return nil
	})
}

// ListSubtasks returns the direct children of a task, oldest first.
func (s *Gorm) ListSubtasks(ctx context.Context, parentID string) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.conn(ctx).Preload("Tags").Where("parent_task_id = ?", parentID).
		Order("created_at ASC, id").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("store: list subtasks of %s: %w", parentID, err)
	}
	return tasks, nil
}

// ReconcileCandidates returns ids of unfinished tasks whose derived status
// could be stale: those marked blocked and those with blocking edges.
func (s *Gorm) ReconcileCandidates(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.conn(ctx).Model(&models.Task{}).
		Where("status <> ?", models.StatusDone).
		Where("status = ? OR id IN (?)", models.StatusBlocked,
			s.conn(ctx).Model(&models.TaskDependency{}).Select("task_id").
				Where("dependency_type = ?", models.DependencyBlocking)).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("store: reconcile candidates: %w", err)
	}
	return ids, nil
}

// InsertDependency creates an edge. A duplicate (task, prerequisite) pair
// fails with errs.ErrDuplicateDependency.
func (s *Gorm) InsertDependency(ctx context.Context, d *models.TaskDependency) error {
	if err := s.conn(ctx).Omit("DependsOnTask").Create(d).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("store: dependency %s → %s: %w", d.TaskID, d.DependsOnTaskID, errs.ErrDuplicateDependency)
		}
		return fmt.Errorf("store: insert dependency %s → %s: %w", d.TaskID, d.DependsOnTaskID, err)
	}
	return nil
}

// DeleteDependency removes one edge by id.
func (s *Gorm) DeleteDependency(ctx context.Context, id string) error {
	result := s.conn(ctx).Where("id = ?", id).Delete(&models.TaskDependency{})
	if result.Error != nil {
		return fmt.Errorf("store: delete dependency %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: dependency %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

// GetDependency loads one edge by id.
func (s *Gorm) GetDependency(ctx context.Context, id string) (*models.TaskDependency, error) {
	var d models.TaskDependency
	if err := s.conn(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, notFound(err, "dependency", id)
	}
	return &d, nil
}

func (s *Gorm) dependencyQuery(ctx context.Context, f DependencyFilter) *gorm.DB {
	q := s.conn(ctx).Model(&models.TaskDependency{})
	if f.TaskID != "" {
		q = q.Where("task_dependencies.task_id = ?", f.TaskID)
	}
	if f.DependsOnTaskID != "" {
		q = q.Where("task_dependencies.depends_on_task_id = ?", f.DependsOnTaskID)
	}
	if f.Type != "" {
		q = q.Where("task_dependencies.dependency_type = ?", f.Type)
	}
	if f.UnresolvedOnly {
		q = q.Joins("JOIN tasks prereq ON prereq.id = task_dependencies.depends_on_task_id").
			Where("prereq.status <> ?", models.StatusDone)
	}
	return q
}

// ListDependencies returns matching edges, oldest first.
func (s *Gorm) ListDependencies(ctx context.Context, f DependencyFilter) ([]models.TaskDependency, error) {
	q := s.dependencyQuery(ctx, f)
	if f.WithPrerequisite {
		q = q.Preload("DependsOnTask")
	}
	var deps []models.TaskDependency
	if err := q.Order("task_dependencies.created_at ASC, task_dependencies.id").Find(&deps).Error; err != nil {
		return nil, fmt.Errorf("store: list dependencies: %w", err)
	}
	return deps, nil
}

// CountDependencies counts matching edges.
func (s *Gorm) CountDependencies(ctx context.Context, f DependencyFilter) (int64, error) {
	var n int64
	if err := s.dependencyQuery(ctx, f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("store: count dependencies: %w", err)
	}
	return n, nil
}

// ListAssignments returns a task's assignments, oldest first.
func (s *Gorm) ListAssignments(ctx context.Context, taskID string) ([]models.TaskAssignment, error) {
	var out []models.TaskAssignment
	if err := s.conn(ctx).Where("task_id = ?", taskID).
		Order("assigned_at ASC, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list assignments of %s: %w", taskID, err)
	}
	return out, nil
}

// InsertAssignment assigns a user. Assigning the same user twice fails with
// errs.ErrConflict.
func (s *Gorm) InsertAssignment(ctx context.Context, a *models.TaskAssignment) error {
	if err := s.conn(ctx).Create(a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("store: user %s already assigned to %s: %w", a.UserID, a.TaskID, errs.ErrConflict)
		}
		return fmt.Errorf("store: insert assignment %s/%s: %w", a.TaskID, a.UserID, err)
	}
	return nil
}

// DeleteAssignment unassigns a user.
func (s *Gorm) DeleteAssignment(ctx context.Context, taskID, userID string) error {
	result := s.conn(ctx).Where("task_id = ? AND user_id = ?", taskID, userID).Delete(&models.TaskAssignment{})
	if result.Error != nil {
		return fmt.Errorf("store: delete assignment %s/%s: %w", taskID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: assignment %s/%s: %w", taskID, userID, errs.ErrNotFound)
	}
	return nil
}

// GetTeam loads a team.
func (s *Gorm) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	var t models.Team
	if err := s.conn(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err, "team", id)
	}
	return &t, nil
}

// GetUser loads a user.
func (s *Gorm) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

// FindTags returns the tags among ids that belong to teamID.
func (s *Gorm) FindTags(ctx context.Context, teamID string, ids []string) ([]models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tags []models.Tag
	if err := s.conn(ctx).Where("team_id = ? AND id IN ?", teamID, ids).
		Order("name").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("store: find tags in team %s: %w", teamID, err)
	}
	return tags, nil
}

// ReplaceTaskTags sets a task's tags to exactly tagIDs.
func (s *Gorm) ReplaceTaskTags(ctx context.Context, taskID string, tagIDs []string) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM task_tags WHERE task_id = ?", taskID).Error; err != nil {
			return fmt.Errorf("store: clear tags of %s: %w", taskID, err)
		}
		if len(tagIDs) == 0 {
			return nil
		}
		rows := make([]map[string]any, 0, len(tagIDs))
		for _, id := range tagIDs {
			rows = append(rows, map[string]any{"task_id": taskID, "tag_id": id})
		}
		if err := tx.Table("task_tags").Create(&rows).Error; err != nil {
			return fmt.Errorf("store: set tags of %s: %w", taskID, err)
		}
		return nil
	})
}

// IsActiveMember reports whether userID has an active membership in teamID.
func (s *Gorm) IsActiveMember(ctx context.Context, teamID, userID string) (bool, error) {
	var n int64
	if err := s.conn(ctx).Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ? AND is_active = ?", teamID, userID, true).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("store: membership %s/%s: %w", teamID, userID, err)
	}
	return n > 0, nil
}

// TeamIDsForUser returns the teams userID created or actively belongs to,
// sorted.
func (s *Gorm) TeamIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var member, created []string
	if err := s.conn(ctx).Model(&models.TeamMember{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Pluck("team_id", &member).Error; err != nil {
		return nil, fmt.Errorf("store: teams of %s: %w", userID, err)
	}
	if err := s.conn(ctx).Model(&models.Team{}).
		Where("created_by = ?", userID).
		Pluck("id", &created).Error; err != nil {
		return nil, fmt.Errorf("store: teams created by %s: %w", userID, err)
	}
	seen := make(map[string]bool, len(member)+len(created))
	var ids []string
	for _, id := range append(member, created...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// WithTx runs fn inside a transaction.
func (s *Gorm) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx})
	})
}
