package task

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskyard/internal/auth"
	"github.com/zulandar/taskyard/internal/dep"
	"github.com/zulandar/taskyard/internal/errs"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/store"
)

// DependencyInput describes a new edge from the task in the URL.
type DependencyInput struct {
	DependsOnTaskID string                `json:"depends_on_task_id"`
	DependencyType  models.DependencyType `json:"dependency_type"`
}

// BlockingInfo summarizes whether a task can start.
type BlockingInfo struct {
	TaskID               string   `json:"task_id"`
	IsBlocked            bool     `json:"is_blocked"`
	BlockingDependencies []string `json:"blocking_dependencies"`
	CanStart             bool     `json:"can_start"`
}

// AddDependency makes taskID depend on in.DependsOnTaskID. The caller needs
// access to both tasks. Validation and insert share one transaction, with
// the dependent's status reconciled before it commits.
func (s *Service) AddDependency(ctx context.Context, caller auth.Caller, taskID string, in DependencyInput) (*models.TaskDependency, error) {
	if err := validateID("depends_on_task_id", in.DependsOnTaskID); err != nil {
		return nil, err
	}
	if in.DependencyType == "" {
		in.DependencyType = models.DependencyBlocking
	}
	if !in.DependencyType.Valid() {
		return nil, fmt.Errorf("task: dependency_type %q is not valid: %w", in.DependencyType, errs.ErrValidation)
	}
	if _, err := s.guard.EnsureTaskAccess(ctx, taskID, caller); err != nil {
		return nil, err
	}
	if _, err := s.guard.EnsureTaskAccess(ctx, in.DependsOnTaskID, caller); err != nil {
		return nil, err
	}

	edge := &models.TaskDependency{
		ID:              uuid.NewString(),
		TaskID:          taskID,
		DependsOnTaskID: in.DependsOnTaskID,
		DependencyType:  in.DependencyType,
	}
	var tr dep.Transition
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.LockTasks(ctx, taskID, in.DependsOnTaskID); err != nil {
			return err
		}
		if err := dep.NewValidator(tx).Validate(ctx, taskID, in.DependsOnTaskID, in.DependencyType); err != nil {
			return err
		}
		if err := tx.InsertDependency(ctx, edge); err != nil {
			return err
		}
		var err error
		tr, err = s.resolver(tx).ReconcileStatus(ctx, taskID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("task: add dependency: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"task_id":       taskID,
		"depends_on_id": in.DependsOnTaskID,
		"type":          in.DependencyType,
		"status":        tr.To,
	}).Info("dependency added")

	return s.store.GetDependency(ctx, edge.ID)
}

// RemoveDependency deletes edge depID of taskID and reconciles taskID.
func (s *Service) RemoveDependency(ctx context.Context, caller auth.Caller, taskID, depID string) error {
	if _, err := s.guard.EnsureTaskAccess(ctx, taskID, caller); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		edge, err := tx.GetDependency(ctx, depID)
		if err != nil {
			return err
		}
		if edge.TaskID != taskID {
			return fmt.Errorf("dependency %s of task %s: %w", depID, taskID, errs.ErrNotFound)
		}
		if err := tx.DeleteDependency(ctx, depID); err != nil {
			return err
		}
		_, err = s.resolver(tx).ReconcileStatus(ctx, taskID)
		return err
	})
	if err != nil {
		return fmt.Errorf("task: remove dependency: %w", err)
	}
	s.log.WithFields(logrus.Fields{"task_id": taskID, "dependency_id": depID}).Info("dependency removed")
	return nil
}

// ListDependencies returns the edges taskID depends on, each with its
// prerequisite task.
func (s *Service) ListDependencies(ctx context.Context, caller auth.Caller, taskID string) ([]models.TaskDependency, error) {
	if _, err := s.guard.EnsureTaskAccess(ctx, taskID, caller); err != nil {
		return nil, err
	}
	edges, err := s.store.ListDependencies(ctx, store.DependencyFilter{TaskID: taskID, WithPrerequisite: true})
	if err != nil {
		return nil, fmt.Errorf("task: %w", err)
	}
	r := s.resolver(s.store)
	for i := range edges {
		if edges[i].DependsOnTask == nil {
			continue
		}
		if err := r.Annotate(ctx, edges[i].DependsOnTask); err != nil {
			return nil, err
		}
	}
	return nonNil(edges), nil
}

// ListDependents returns the edges pointing at taskID: tasks it blocks.
func (s *Service) ListDependents(ctx context.Context, caller auth.Caller, taskID string) ([]models.TaskDependency, error) {
	if _, err := s.guard.EnsureTaskAccess(ctx, taskID, caller); err != nil {
		return nil, err
	}
	edges, err := s.store.ListDependencies(ctx, store.DependencyFilter{DependsOnTaskID: taskID})
	if err != nil {
		return nil, fmt.Errorf("task: %w", err)
	}
	return nonNil(edges), nil
}

// BlockingStatus reports the unresolved blocking prerequisites of taskID.
func (s *Service) BlockingStatus(ctx context.Context, caller auth.Caller, taskID string) (*BlockingInfo, error) {
	if _, err := s.guard.EnsureTaskAccess(ctx, taskID, caller); err != nil {
		return nil, err
	}
	ids, err := s.resolver(s.store).BlockingDependencies(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &BlockingInfo{
		TaskID:               taskID,
		IsBlocked:            len(ids) > 0,
		BlockingDependencies: nonNil(ids),
		CanStart:             len(ids) == 0,
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
