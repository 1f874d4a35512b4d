// Package dep validates dependency edges between tasks and keeps the derived
// blocked status of tasks consistent with their prerequisites.
package dep

import (
	"context"
	"fmt"

	"github.com/zulandar/taskyard/internal/errs"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/store"
)

// Validator checks whether a new edge may be added. It only reads.
type Validator struct {
	store store.Store
}

// NewValidator returns a Validator reading from s.
func NewValidator(s store.Store) *Validator {
	return &Validator{store: s}
}

// Validate checks that taskID may depend on dependsOnID with the given type.
// Checks run in order and stop at the first failure: self dependency,
// missing task, cross-team edge, duplicate edge, then cycle. Soft edges
// cannot close a blocking cycle and skip the last check.
func (v *Validator) Validate(ctx context.Context, taskID, dependsOnID string, depType models.DependencyType) error {
	if taskID == dependsOnID {
		return fmt.Errorf("dep: task %s cannot depend on itself: %w", taskID, errs.ErrSelfDependency)
	}

	task, err := v.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("dep: task: %w", err)
	}
	prereq, err := v.store.GetTask(ctx, dependsOnID)
	if err != nil {
		return fmt.Errorf("dep: dependency target: %w", err)
	}

	if task.TeamID != prereq.TeamID {
		return fmt.Errorf("dep: %s and %s are in different teams: %w", taskID, dependsOnID, errs.ErrCrossTeamDependency)
	}

	n, err := v.store.CountDependencies(ctx, store.DependencyFilter{TaskID: taskID, DependsOnTaskID: dependsOnID})
	if err != nil {
		return fmt.Errorf("dep: check existing %s → %s: %w", taskID, dependsOnID, err)
	}
	if n > 0 {
		return fmt.Errorf("dep: %s already depends on %s: %w", taskID, dependsOnID, errs.ErrDuplicateDependency)
	}

	if depType == models.DependencySoft {
		return nil
	}
	cyclic, err := v.wouldCycle(ctx, taskID, dependsOnID)
	if err != nil {
		return err
	}
	if cyclic {
		return fmt.Errorf("dep: adding %s → %s would create a cycle: %w", taskID, dependsOnID, errs.ErrCyclicDependency)
	}
	return nil
}

// wouldCycle reports whether taskID is reachable from dependsOnID along
// blocking edges, meaning the new edge would close a loop.
func (v *Validator) wouldCycle(ctx context.Context, taskID, dependsOnID string) (bool, error) {
	visited := make(map[string]bool)
	return v.reachable(ctx, dependsOnID, taskID, visited)
}

// reachable performs a DFS from current following blocking edges. The
// visited set keeps pre-existing cycles from looping forever.
func (v *Validator) reachable(ctx context.Context, current, target string, visited map[string]bool) (bool, error) {
	if current == target {
		return true, nil
	}
	if visited[current] {
		return false, nil
	}
	visited[current] = true

	if err := ctx.Err(); err != nil {
		return false, err
	}
	edges, err := v.store.ListDependencies(ctx, store.DependencyFilter{
		TaskID: current,
		Type:   models.DependencyBlocking,
	})
	if err != nil {
		return false, fmt.Errorf("dep: walk from %s: %w", current, err)
	}
	for _, e := range edges {
		found, err := v.reachable(ctx, e.DependsOnTaskID, target, visited)
		if err != nil || found {
			return found, err
		}
	}
	return false, nil
}
