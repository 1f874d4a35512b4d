// Package access decides whether a caller may see or change team data.
//
// A caller has access to a team when they created it or hold an active
// membership. Decisions are cached per (user, team, role) for a bounded
// time; InvalidateUser drops a user's entries when their role or
// memberships change.
package access

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskyard/internal/auth"
	"github.com/zulandar/taskyard/internal/errs"
	"github.com/zulandar/taskyard/internal/models"
)

// Oracle answers the lookups the guard needs.
type Oracle interface {
	GetTeam(ctx context.Context, id string) (*models.Team, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	IsActiveMember(ctx context.Context, teamID, userID string) (bool, error)
	TeamIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// Guard enforces team membership and task ownership.
type Guard struct {
	oracle Oracle
	cache  Cache
	log    logrus.FieldLogger
}

// NewGuard returns a guard. cache may be nil to disable caching.
func NewGuard(oracle Oracle, cache Cache, log logrus.FieldLogger) *Guard {
	return &Guard{oracle: oracle, cache: cache, log: log}
}

// EnsureTeamAccess returns the team when caller may access it.
func (g *Guard) EnsureTeamAccess(ctx context.Context, teamID string, caller auth.Caller) (*models.Team, error) {
	team, err := g.oracle.GetTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("access: %w", err)
	}
	ok, err := g.allowed(ctx, team, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("access: user %s is not a member of team %s: %w", caller.UserID, teamID, errs.ErrAccessDenied)
	}
	return team, nil
}

// EnsureTaskAccess returns the task when caller may access its team.
func (g *Guard) EnsureTaskAccess(ctx context.Context, taskID string, caller auth.Caller) (*models.Task, error) {
	task, err := g.oracle.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("access: %w", err)
	}
	if _, err := g.EnsureTeamAccess(ctx, task.TeamID, caller); err != nil {
		return nil, err
	}
	return task, nil
}

// EnsureCreator fails unless caller created task.
func (g *Guard) EnsureCreator(task *models.Task, caller auth.Caller) error {
	if task.CreatedBy != caller.UserID {
		return fmt.Errorf("access: task %s: %w", task.ID, errs.ErrCreatorOnly)
	}
	return nil
}

// VisibleTeams lists the teams caller created or actively belongs to.
func (g *Guard) VisibleTeams(ctx context.Context, caller auth.Caller) ([]string, error) {
	ids, err := g.oracle.TeamIDsForUser(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("access: visible teams: %w", err)
	}
	return ids, nil
}

// InvalidateUser drops cached decisions for userID.
func (g *Guard) InvalidateUser(ctx context.Context, userID string) error {
	if g.cache == nil {
		return nil
	}
	if err := g.cache.InvalidateUser(ctx, userID); err != nil {
		return fmt.Errorf("access: invalidate %s: %w", userID, err)
	}
	g.log.WithField("user_id", userID).Info("access cache invalidated")
	return nil
}

func (g *Guard) allowed(ctx context.Context, team *models.Team, caller auth.Caller) (bool, error) {
	if team.CreatedBy == caller.UserID {
		return true, nil
	}
	key := Key{UserID: caller.UserID, TeamID: team.ID, Role: caller.Role}
	if g.cache != nil {
		if ok, found := g.cache.Get(ctx, key); found {
			return ok, nil
		}
	}
	ok, err := g.oracle.IsActiveMember(ctx, team.ID, caller.UserID)
	if err != nil {
		return false, fmt.Errorf("access: membership of %s in %s: %w", caller.UserID, team.ID, err)
	}
	if g.cache != nil {
		g.cache.Set(ctx, key, ok)
	}
	return ok, nil
}
