// Package task implements the task operations exposed over HTTP and the CLI.
//
// Every operation checks team access first, then reads or writes through
// the store, then keeps derived blocked state consistent using package dep.
package task

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskyard/internal/access"
	"github.com/zulandar/taskyard/internal/auth"
	"github.com/zulandar/taskyard/internal/dep"
	"github.com/zulandar/taskyard/internal/errs"
	"github.com/zulandar/taskyard/internal/filter"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/store"
)

const maxTitleLen = 200

// Service runs task operations for authenticated callers.
type Service struct {
	store store.Store
	guard *access.Guard
	log   logrus.FieldLogger
}

// NewService returns a Service.
func NewService(s store.Store, g *access.Guard, log logrus.FieldLogger) *Service {
	return &Service{store: s, guard: g, log: log}
}

// Guard exposes the access guard, used by the admin cache hook.
func (s *Service) Guard() *access.Guard {
	return s.guard
}

func (s *Service) resolver(st store.Store) *dep.Resolver {
	return dep.NewResolver(st, s.log)
}

// CreateInput holds the fields of a new task.
type CreateInput struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *filter.Date        `json:"due_date"`
	TeamID      string              `json:"team_id"`
	TagIDs      []string            `json:"tag_ids"`
}

// Detail is a task with its assignments and direct subtasks.
type Detail struct {
	models.Task
	Assignments []models.TaskAssignment `json:"assignments"`
	Subtasks    []models.Task           `json:"subtasks"`
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("task: title is required: %w", errs.ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", fmt.Errorf("task: title exceeds %d characters: %w", maxTitleLen, errs.ErrValidation)
	}
	return title, nil
}

func validateID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("task: %s %q is not a valid id: %w", field, id, errs.ErrValidation)
	}
	return nil
}

func (in *CreateInput) normalize() error {
	title, err := validateTitle(in.Title)
	if err != nil {
		return err
	}
	in.Title = title
	if in.Status == "" {
		in.Status = models.StatusTodo
	}
	if !in.Status.Valid() {
		return fmt.Errorf("task: status %q is not valid: %w", in.Status, errs.ErrValidation)
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return fmt.Errorf("task: priority %q is not valid: %w", in.Priority, errs.ErrValidation)
	}
	for _, id := range in.TagIDs {
		if err := validateID("tag_id", id); err != nil {
			return err
		}
	}
	return nil
}

func dueTime(d *filter.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// checkTags fails unless every id names a tag of teamID.
func checkTags(ctx context.Context, st store.Store, teamID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	unique := make(map[string]bool, len(ids))
	for _, id := range ids {
		unique[id] = true
	}
	tags, err := st.FindTags(ctx, teamID, ids)
	if err != nil {
		return err
	}
	if len(tags) != len(unique) {
		return fmt.Errorf("task: tags must exist in team %s: %w", teamID, errs.ErrValidation)
	}
	return nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Create adds a task to in.TeamID.
func (s *Service) Create(ctx context.Context, caller auth.Caller, in CreateInput) (*models.Task, error) {
	if err := validateID("team_id", in.TeamID); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := s.guard.EnsureTeamAccess(ctx, in.TeamID, caller); err != nil {
		return nil, err
	}
	return s.insert(ctx, caller, in, nil)
}

// CreateSubtask adds a task under parentID. The subtask always joins the
// parent's team; in.TeamID is ignored.
func (s *Service) CreateSubtask(ctx context.Context, caller auth.Caller, parentID string, in CreateInput) (*models.Task, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	parent, err := s.guard.EnsureTaskAccess(ctx, parentID, caller)
	if err != nil {
		return nil, err
	}
	in.TeamID = parent.TeamID
	return s.insert(ctx, caller, in, &parent.ID)
}

func (s *Service) insert(ctx context.Context, caller auth.Caller, in CreateInput, parentID *string) (*models.Task, error) {
	t := &models.Task{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Description:  in.Description,
		Status:       in.Status,
		Priority:     in.Priority,
		DueDate:      dueTime(in.DueDate),
		ParentTaskID: parentID,
		TeamID:       in.TeamID,
		CreatedBy:    caller.UserID,
	}
	tagIDs := dedupeIDs(in.TagIDs)
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := checkTags(ctx, tx, t.TeamID, tagIDs); err != nil {
			return err
		}
		if err := tx.InsertTask(ctx, t); err != nil {
			return err
		}
		return tx.ReplaceTaskTags(ctx, t.ID, tagIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("task: create: %w", err)
	}
	s.log.WithFields(logrus.Fields{"task_id": t.ID, "team_id": t.TeamID, "user_id": caller.UserID}).Info("task created")
	return s.load(ctx, t.ID)
}

// load reads a task and fills its derived fields.
func (s *Service) load(ctx context.Context, id string) (*models.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task: %w", err)
	}
	if err := s.resolver(s.store).Annotate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns a task with its assignments and subtasks.
func (s *Service) Get(ctx context.Context, caller auth.Caller, id string) (*Detail, error) {
	if _, err := s.guard.EnsureTaskAccess(ctx, id, caller); err != nil {
		return nil, err
	}
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	assignments, err := s.store.ListAssignments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task: %w", err)
	}
	subtasks, err := s.store.ListSubtasks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("task: %w", err)
	}
	r := s.resolver(s.store)
	for i := range subtasks {
		if err := r.Annotate(ctx, &subtasks[i]); err != nil {
			return nil, err
		}
	}
	if assignments == nil {
		assignments = []models.TaskAssignment{}
	}
	if subtasks == nil {
		subtasks = []models.Task{}
	}
	return &Detail{Task: *t, Assignments: assignments, Subtasks: subtasks}, nil
}

// Delete removes a task. Only its creator may delete it. Subtasks are
// orphaned, edges detached, and tasks that depended on it reconciled.
func (s *Service) Delete(ctx context.Context, caller auth.Caller, id string) error {
	t, err := s.guard.EnsureTaskAccess(ctx, id, caller)
	if err != nil {
		return err
	}
	if err := s.guard.EnsureCreator(t, caller); err != nil {
		return err
	}

	edges, err := s.store.ListDependencies(ctx, store.DependencyFilter{DependsOnTaskID: id})
	if err != nil {
		return fmt.Errorf("task: delete %s: %w", id, err)
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("task: delete: %w", err)
	}
	s.log.WithFields(logrus.Fields{"task_id": id, "user_id": caller.UserID}).Info("task deleted")

	r := s.resolver(s.store)
	for _, e := range edges {
		if _, err := r.ReconcileStatus(ctx, e.TaskID); err != nil {
			s.log.WithFields(logrus.Fields{"task_id": id, "dependent_id": e.TaskID}).
				WithError(err).Warn("reconcile after delete failed")
		}
	}
	return nil
}
