package dep

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/store"
)

// Report summarizes a propagation pass. Warnings hold per-dependent
// failures that did not stop the pass.
type Report struct {
	Unblocked []string `json:"unblocked"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Propagator releases dependents when a prerequisite completes.
type Propagator struct {
	store    store.Store
	resolver *Resolver
	log      logrus.FieldLogger
}

// NewPropagator returns a Propagator over s.
func NewPropagator(s store.Store, log logrus.FieldLogger) *Propagator {
	return &Propagator{store: s, resolver: NewResolver(s, log), log: log}
}

// OnTaskCompleted moves every blocked direct dependent of taskID that can
// now start back to todo. Only direct dependents are considered. Only a
// failure to list dependents is returned as an error.
func (p *Propagator) OnTaskCompleted(ctx context.Context, taskID string) (Report, error) {
	report := Report{Unblocked: []string{}}

	edges, err := p.store.ListDependencies(ctx, store.DependencyFilter{
		DependsOnTaskID: taskID,
		Type:            models.DependencyBlocking,
	})
	if err != nil {
		return report, fmt.Errorf("dep: list dependents of %s: %w", taskID, err)
	}

	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		if seen[e.TaskID] {
			continue
		}
		seen[e.TaskID] = true

		if err := ctx.Err(); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", e.TaskID, err))
			continue
		}
		released, err := p.release(ctx, e.TaskID)
		if err != nil {
			p.log.WithFields(logrus.Fields{"task_id": taskID, "dependent_id": e.TaskID}).
				WithError(err).Warn("propagation to dependent failed")
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", e.TaskID, err))
			continue
		}
		if released {
			report.Unblocked = append(report.Unblocked, e.TaskID)
		}
	}

	if len(report.Unblocked) > 0 {
		p.log.WithFields(logrus.Fields{"task_id": taskID, "unblocked": len(report.Unblocked)}).Info("released dependents")
	}
	return report, nil
}

func (p *Propagator) release(ctx context.Context, id string) (bool, error) {
	task, err := p.store.GetTask(ctx, id)
	if err != nil {
		return false, err
	}
	if task.Status != models.StatusBlocked {
		return false, nil
	}
	ok, err := p.resolver.CanStart(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	if err := p.store.UpdateTaskFields(ctx, id, map[string]any{"status": models.StatusTodo}); err != nil {
		return false, fmt.Errorf("dep: release %s: %w", id, err)
	}
	return true, nil
}
