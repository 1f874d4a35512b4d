package task

import (
	"context"

	"github.com/zulandar/taskyard/internal/auth"
	"github.com/zulandar/taskyard/internal/filter"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/page"
)

// List returns one page of the tasks matching f in the caller's teams.
// Naming a team the caller cannot access is an error rather than an empty
// page.
func (s *Service) List(ctx context.Context, caller auth.Caller, f filter.TaskFilters, pageNum, size int) (*page.Page[models.Task], error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	teams, err := s.scope(ctx, caller, f.TeamID)
	if err != nil {
		return nil, err
	}
	return s.paginate(ctx, teams, filter.Compile(f, caller.UserID), pageNum, size)
}

// Search is List for several filter groups joined by a global operator.
func (s *Service) Search(ctx context.Context, caller auth.Caller, adv filter.Advanced, pageNum, size int) (*page.Page[models.Task], error) {
	if err := adv.Validate(); err != nil {
		return nil, err
	}
	teams, err := s.scope(ctx, caller, "")
	if err != nil {
		return nil, err
	}
	return s.paginate(ctx, teams, filter.CompileAdvanced(adv, caller.UserID), pageNum, size)
}

func (s *Service) scope(ctx context.Context, caller auth.Caller, teamID string) ([]string, error) {
	if teamID != "" {
		if _, err := s.guard.EnsureTeamAccess(ctx, teamID, caller); err != nil {
			return nil, err
		}
		return []string{teamID}, nil
	}
	return s.guard.VisibleTeams(ctx, caller)
}

func (s *Service) paginate(ctx context.Context, teams []string, pred filter.Predicate, pageNum, size int) (*page.Page[models.Task], error) {
	src := s.store.TaskSource(teams, pred)
	return page.Paginate(ctx, src, pageNum, size, s.resolver(s.store).Annotate)
}
