package dep

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/store"
)

// Transition describes a status write made by ReconcileStatus. Changed is
// false when the stored status was already consistent.
type Transition struct {
	TaskID  string            `json:"task_id"`
	From    models.TaskStatus `json:"from"`
	To      models.TaskStatus `json:"to"`
	Changed bool              `json:"changed"`
}

// Resolver derives blocked state from a task's blocking prerequisites.
type Resolver struct {
	store store.Store
	log   logrus.FieldLogger
}

// NewResolver returns a Resolver over s.
func NewResolver(s store.Store, log logrus.FieldLogger) *Resolver {
	return &Resolver{store: s, log: log}
}

func unresolved(taskID string) store.DependencyFilter {
	return store.DependencyFilter{
		TaskID:         taskID,
		Type:           models.DependencyBlocking,
		UnresolvedOnly: true,
	}
}

// BlockingDependencies returns the ids of prerequisites of taskID that are
// linked by a blocking edge and not done.
func (r *Resolver) BlockingDependencies(ctx context.Context, taskID string) ([]string, error) {
	edges, err := r.store.ListDependencies(ctx, unresolved(taskID))
	if err != nil {
		return nil, fmt.Errorf("dep: blocking dependencies of %s: %w", taskID, err)
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.DependsOnTaskID)
	}
	return ids, nil
}

// IsBlocked reports whether taskID has any unresolved blocking prerequisite.
func (r *Resolver) IsBlocked(ctx context.Context, taskID string) (bool, error) {
	n, err := r.store.CountDependencies(ctx, unresolved(taskID))
	if err != nil {
		return false, fmt.Errorf("dep: blocked check for %s: %w", taskID, err)
	}
	return n > 0, nil
}

// CanStart is the negation of IsBlocked.
func (r *Resolver) CanStart(ctx context.Context, taskID string) (bool, error) {
	blocked, err := r.IsBlocked(ctx, taskID)
	return !blocked, err
}

// ReconcileStatus moves a task into blocked when it has unresolved blocking
// prerequisites, and out of blocked to todo when it has none. Done tasks
// are never touched. Repeated calls make no further writes.
func (r *Resolver) ReconcileStatus(ctx context.Context, taskID string) (Transition, error) {
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return Transition{}, fmt.Errorf("dep: reconcile: %w", err)
	}
	tr := Transition{TaskID: taskID, From: task.Status, To: task.Status}

	blocked, err := r.IsBlocked(ctx, taskID)
	if err != nil {
		return tr, err
	}
	switch {
	case blocked && task.Status != models.StatusBlocked && task.Status != models.StatusDone:
		tr.To = models.StatusBlocked
	case !blocked && task.Status == models.StatusBlocked:
		tr.To = models.StatusTodo
	default:
		return tr, nil
	}

	if err := r.store.UpdateTaskFields(ctx, taskID, map[string]any{"status": tr.To}); err != nil {
		return Transition{TaskID: taskID, From: task.Status, To: task.Status}, fmt.Errorf("dep: set %s to %s: %w", taskID, tr.To, err)
	}
	tr.Changed = true
	r.log.WithFields(logrus.Fields{"task_id": taskID, "from": tr.From, "to": tr.To}).Debug("reconciled task status")
	return tr, nil
}

// Annotate fills the derived IsBlocked and BlockingTaskCount fields. Every
// task returned to a caller goes through it.
func (r *Resolver) Annotate(ctx context.Context, t *models.Task) error {
	n, err := r.store.CountDependencies(ctx, unresolved(t.ID))
	if err != nil {
		return fmt.Errorf("dep: annotate %s: %w", t.ID, err)
	}
	t.BlockingTaskCount = int(n)
	t.IsBlocked = n > 0
	return nil
}
