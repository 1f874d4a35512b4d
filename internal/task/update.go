package task

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskyard/internal/auth"
	"github.com/zulandar/taskyard/internal/dep"
	"github.com/zulandar/taskyard/internal/errs"
	"github.com/zulandar/taskyard/internal/filter"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/store"
)

// Patch lists the mutable task fields. Nil fields are left unchanged.
type Patch struct {
	Title        *string              `json:"title,omitempty"`
	Description  *string              `json:"description,omitempty"`
	Status       *models.TaskStatus   `json:"status,omitempty"`
	Priority     *models.TaskPriority `json:"priority,omitempty"`
	DueDate      *filter.Date         `json:"due_date,omitempty"`
	ClearDueDate bool                 `json:"clear_due_date,omitempty"`
	TagIDs       *[]string            `json:"tag_ids,omitempty"`
}

// DecodePatch reads a Patch from JSON, rejecting fields it does not know.
func DecodePatch(r io.Reader) (Patch, error) {
	var p Patch
	if err := decodeStrict(r, &p); err != nil {
		return Patch{}, err
	}
	return p, nil
}

func decodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, errs.ErrValidation) {
			return err
		}
		return fmt.Errorf("task: invalid body: %v: %w", err, errs.ErrValidation)
	}
	return nil
}

// fields validates the patch and returns the column updates it implies.
func (p Patch) fields() (map[string]any, error) {
	out := map[string]any{}
	if p.Title != nil {
		title, err := validateTitle(*p.Title)
		if err != nil {
			return nil, err
		}
		out["title"] = title
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, fmt.Errorf("task: status %q is not valid: %w", *p.Status, errs.ErrValidation)
		}
		out["status"] = *p.Status
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return nil, fmt.Errorf("task: priority %q is not valid: %w", *p.Priority, errs.ErrValidation)
		}
		out["priority"] = *p.Priority
	}
	switch {
	case p.ClearDueDate && p.DueDate != nil:
		return nil, fmt.Errorf("task: due_date and clear_due_date conflict: %w", errs.ErrValidation)
	case p.ClearDueDate:
		out["due_date"] = nil
	case p.DueDate != nil:
		out["due_date"] = p.DueDate.Time
	}
	if p.TagIDs != nil {
		for _, id := range *p.TagIDs {
			if err := validateID("tag_id", id); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Updated is a task after an update, with the effect of completing it.
type Updated struct {
	*models.Task
	Unblocked []string `json:"unblocked,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Update applies p to a task. A status set explicitly is stored as given.
// Moving a task into done from another status releases its blocked
// dependents; failures doing so come back as warnings.
func (s *Service) Update(ctx context.Context, caller auth.Caller, id string, p Patch) (*Updated, error) {
	fields, err := p.fields()
	if err != nil {
		return nil, err
	}
	current, err := s.guard.EnsureTaskAccess(ctx, id, caller)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if p.TagIDs != nil {
			tagIDs := dedupeIDs(*p.TagIDs)
			if err := checkTags(ctx, tx, current.TeamID, tagIDs); err != nil {
				return err
			}
			if err := tx.ReplaceTaskTags(ctx, id, tagIDs); err != nil {
				return err
			}
		}
		return tx.UpdateTaskFields(ctx, id, fields)
	})
	if err != nil {
		return nil, fmt.Errorf("task: update %s: %w", id, err)
	}

	out := &Updated{}
	if p.Status != nil && *p.Status == models.StatusDone && current.Status != models.StatusDone {
		report, err := dep.NewPropagator(s.store, s.log).OnTaskCompleted(ctx, id)
		if err != nil {
			report.Warnings = append(report.Warnings, err.Error())
		}
		for _, w := range report.Warnings {
			s.log.WithFields(logrus.Fields{"task_id": id, "warning": w}).Warn("release of dependent failed")
		}
		out.Unblocked = report.Unblocked
		out.Warnings = report.Warnings
	}

	out.Task, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BulkItem is one entry of a bulk update: a task id plus patch fields.
type BulkItem struct {
	TaskID string `json:"task_id"`
	Patch

	err error
}

// BulkResult reports the outcome for one BulkItem.
type BulkResult struct {
	TaskID  string `json:"task_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ParseBulk decodes {"task_updates": [...]}. An item with unknown or
// malformed fields does not fail the batch; it fails on its own when the
// batch runs.
func ParseBulk(r io.Reader) ([]BulkItem, error) {
	var body struct {
		TaskUpdates []json.RawMessage `json:"task_updates"`
	}
	if err := decodeStrict(r, &body); err != nil {
		return nil, err
	}
	if len(body.TaskUpdates) == 0 {
		return nil, fmt.Errorf("task: task_updates must not be empty: %w", errs.ErrValidation)
	}
	items := make([]BulkItem, len(body.TaskUpdates))
	for i, raw := range body.TaskUpdates {
		if err := decodeStrict(bytes.NewReader(raw), &items[i]); err != nil {
			var probe struct {
				TaskID string `json:"task_id"`
			}
			_ = json.Unmarshal(raw, &probe)
			items[i] = BulkItem{TaskID: probe.TaskID, err: err}
		}
	}
	return items, nil
}

// BulkUpdate applies each item independently, in order. Items already
// applied stay applied when a later item fails. Once ctx is done the
// remaining items are reported as failed without being attempted.
func (s *Service) BulkUpdate(ctx context.Context, caller auth.Caller, items []BulkItem) []BulkResult {
	results := make([]BulkResult, len(items))
	for i, item := range items {
		res := BulkResult{TaskID: item.TaskID}
		switch {
		case item.err != nil:
			res.Error = item.err.Error()
		case ctx.Err() != nil:
			res.Error = ctx.Err().Error()
		case item.TaskID == "":
			res.Error = "task_id is required"
		default:
			if err := validateID("task_id", item.TaskID); err != nil {
				res.Error = err.Error()
			} else if _, err := s.Update(ctx, caller, item.TaskID, item.Patch); err != nil {
				res.Error = err.Error()
			} else {
				res.Success = true
			}
		}
		results[i] = res
	}
	return results
}
