package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskyard/internal/auth"
	"github.com/zulandar/taskyard/internal/errs"
	"github.com/zulandar/taskyard/internal/models"
)

const defaultAssignmentRole = "assignee"

// AssignInput names the user to assign.
type AssignInput struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Assign adds a user to a task. The user must exist and be an active member
// of the task's team.
func (s *Service) Assign(ctx context.Context, caller auth.Caller, taskID string, in AssignInput) (*models.TaskAssignment, error) {
	if err := validateID("user_id", in.UserID); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = defaultAssignmentRole
	}
	t, err := s.guard.EnsureTaskAccess(ctx, taskID, caller)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetUser(ctx, in.UserID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("task: user %s does not exist: %w", in.UserID, errs.ErrValidation)
		}
		return nil, fmt.Errorf("task: %w", err)
	}
	member, err := s.store.IsActiveMember(ctx, t.TeamID, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("task: %w", err)
	}
	if !member {
		return nil, fmt.Errorf("task: user %s is not a member of team %s: %w", in.UserID, t.TeamID, errs.ErrValidation)
	}

	a := &models.TaskAssignment{
		ID:     uuid.NewString(),
		TaskID: taskID,
		UserID: in.UserID,
		Role:   in.Role,
	}
	if err := s.store.InsertAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("task: assign: %w", err)
	}
	s.log.WithFields(logrus.Fields{"task_id": taskID, "assignee_id": in.UserID}).Info("task assigned")
	return a, nil
}

// Unassign removes a user from a task.
func (s *Service) Unassign(ctx context.Context, caller auth.Caller, taskID, userID string) error {
	if _, err := s.guard.EnsureTaskAccess(ctx, taskID, caller); err != nil {
		return err
	}
	if err := s.store.DeleteAssignment(ctx, taskID, userID); err != nil {
		return fmt.Errorf("task: unassign: %w", err)
	}
	return nil
}

// ListAssignments returns a task's assignments.
func (s *Service) ListAssignments(ctx context.Context, caller auth.Caller, taskID string) ([]models.TaskAssignment, error) {
	if _, err := s.guard.EnsureTaskAccess(ctx, taskID, caller); err != nil {
		return nil, err
	}
	out, err := s.store.ListAssignments(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("task: %w", err)
	}
	return nonNil(out), nil
}
