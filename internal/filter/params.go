package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/zulandar/taskyard/internal/errs"
)

// ParseParams reads filters from query-string form. List values may be
// comma separated, repeated, or both: status=todo,review&status=done.
func ParseParams(q url.Values) (TaskFilters, error) {
	f := TaskFilters{
		TeamID:    strings.TrimSpace(q.Get("team_id")),
		CreatedBy: strings.TrimSpace(q.Get("created_by")),
		Search:    strings.TrimSpace(q.Get("search")),
		Operator:  Operator(strings.ToLower(strings.TrimSpace(q.Get("operator")))),
	}
	f.Status = parseList(q["status"])
	f.Priority = parseList(q["priority"])
	f.AssigneeIDs = parseList(q["assignee_ids"])
	f.TagIDs = parseList(q["tag_ids"])
	f.TagNames = parseList(q["tag_names"])

	if v := q.Get("assigned_to_me"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return TaskFilters{}, fmt.Errorf("filter: assigned_to_me %q is not a boolean: %w", v, errs.ErrValidation)
		}
		f.AssignedToMe = b
	}

	var err error
	if f.DueDate, err = parseDateFilter(q, "due_date_before", "due_date_after", "due_date_on"); err != nil {
		return TaskFilters{}, err
	}
	if f.CreatedAt, err = parseDateFilter(q, "created_before", "created_after", ""); err != nil {
		return TaskFilters{}, err
	}
	if f.UpdatedAt, err = parseDateFilter(q, "updated_before", "updated_after", ""); err != nil {
		return TaskFilters{}, err
	}

	if err := f.Validate(); err != nil {
		return TaskFilters{}, err
	}
	return f, nil
}

func parseList(raw []string) StringSet {
	var out StringSet
	for _, r := range raw {
		for _, item := range strings.Split(r, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func parseDateFilter(q url.Values, beforeKey, afterKey, onKey string) (*DateFilter, error) {
	var d DateFilter
	for _, b := range []struct {
		key string
		dst **Date
	}{
		{beforeKey, &d.Before},
		{afterKey, &d.After},
		{onKey, &d.On},
	} {
		if b.key == "" {
			continue
		}
		v := strings.TrimSpace(q.Get(b.key))
		if v == "" {
			continue
		}
		parsed, err := ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("filter: %s: %w", b.key, err)
		}
		*b.dst = &parsed
	}
	if d.Empty() {
		return nil, nil
	}
	return &d, nil
}
