// Package filter compiles task filter requests into predicate trees.
//
// A TaskFilters value is one group of criteria joined by its Operator. An
// Advanced value holds several groups joined by GlobalOperator. Compile
// turns either form into a Predicate that the store translates into SQL;
// nothing in this package touches a database.
package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/taskyard/internal/errs"
	"github.com/zulandar/taskyard/internal/models"
)

// DateLayout is the calendar-date form accepted and compared by date filters.
const DateLayout = "2006-01-02"

// Operator joins criteria.
type Operator string

const (
	OpAnd Operator = "and"
	OpOr  Operator = "or"
)

// Valid reports whether o is a known operator. Empty means the default (and).
func (o Operator) Valid() bool {
	return o == "" || o == OpAnd || o == OpOr
}

// StringSet is a list of values that also accepts a bare JSON string.
type StringSet []string

// UnmarshalJSON accepts "x", ["x", "y"] or null.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = StringSet{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("filter: expected string or list of strings: %w", errs.ErrValidation)
	}
	*s = many
	return nil
}

// Date is a calendar date with no time of day.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD date. RFC 3339 timestamps are accepted and
// truncated to their date.
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("filter: invalid date %q: %w", s, errs.ErrValidation)
	}
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}, nil
}

// String returns the YYYY-MM-DD form.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON writes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON reads a date string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("filter: date must be a string: %w", errs.ErrValidation)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateFilter bounds a timestamp column by calendar date. Set bounds are
// ANDed together.
type DateFilter struct {
	Before *Date `json:"before,omitempty"`
	After  *Date `json:"after,omitempty"`
	On     *Date `json:"on,omitempty"`
}

// Empty reports whether no bound is set.
func (d *DateFilter) Empty() bool {
	return d == nil || (d.Before == nil && d.After == nil && d.On == nil)
}

// TaskFilters is one group of task criteria.
type TaskFilters struct {
	TeamID       string      `json:"team_id,omitempty"`
	Status       StringSet   `json:"status,omitempty"`
	Priority     StringSet   `json:"priority,omitempty"`
	AssigneeIDs  StringSet   `json:"assignee_ids,omitempty"`
	CreatedBy    string      `json:"created_by,omitempty"`
	AssignedToMe bool        `json:"assigned_to_me,omitempty"`
	DueDate      *DateFilter `json:"due_date,omitempty"`
	CreatedAt    *DateFilter `json:"created_at,omitempty"`
	UpdatedAt    *DateFilter `json:"updated_at,omitempty"`
	Search       string      `json:"search,omitempty"`
	TagIDs       StringSet   `json:"tag_ids,omitempty"`
	TagNames     StringSet   `json:"tag_names,omitempty"`
	Operator     Operator    `json:"operator,omitempty"`
}

// Advanced combines several filter groups.
type Advanced struct {
	Filters        []TaskFilters `json:"filters"`
	GlobalOperator Operator      `json:"global_operator,omitempty"`
}

// Validate checks enum values, ids and operators. Every failure wraps
// errs.ErrValidation.
func (f TaskFilters) Validate() error {
	var problems []string
	for _, s := range f.Status {
		if !models.TaskStatus(s).Valid() {
			problems = append(problems, fmt.Sprintf("status %q is not valid", s))
		}
	}
	for _, p := range f.Priority {
		if !models.TaskPriority(p).Valid() {
			problems = append(problems, fmt.Sprintf("priority %q is not valid", p))
		}
	}
	problems = append(problems, badIDs("team_id", f.TeamID)...)
	problems = append(problems, badIDs("created_by", f.CreatedBy)...)
	problems = append(problems, badIDs("assignee_ids", f.AssigneeIDs...)...)
	problems = append(problems, badIDs("tag_ids", f.TagIDs...)...)
	if !f.Operator.Valid() {
		problems = append(problems, fmt.Sprintf("operator %q must be and or or", f.Operator))
	}
	if len(problems) > 0 {
		return fmt.Errorf("filter: %s: %w", strings.Join(problems, "; "), errs.ErrValidation)
	}
	return nil
}

// Validate checks every group and the global operator.
func (a Advanced) Validate() error {
	if !a.GlobalOperator.Valid() {
		return fmt.Errorf("filter: global_operator %q must be and or or: %w", a.GlobalOperator, errs.ErrValidation)
	}
	for i, g := range a.Filters {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("filter: group %d: %w", i, err)
		}
	}
	return nil
}

func badIDs(field string, ids ...string) []string {
	var out []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			out = append(out, fmt.Sprintf("%s %q is not a valid id", field, id))
		}
	}
	return out
}
