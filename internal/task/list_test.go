package task

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/zulandar/taskyard/internal/auth"
	"github.com/zulandar/taskyard/internal/errs"
	"github.com/zulandar/taskyard/internal/filter"
	"github.com/zulandar/taskyard/internal/models"
)

func titles(tasks []models.Task) string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// seedList creates four teamA tasks with mixed status and priority plus one
// teamB task.
func seedList(h *harness) map[string]*models.Task {
	h.t.Helper()
	specs := []struct {
		title    string
		status   models.TaskStatus
		priority models.TaskPriority
	}{
		{"todo-high", models.StatusTodo, models.PriorityHigh},
		{"todo-low", models.StatusTodo, models.PriorityLow},
		{"review-high", models.StatusReview, models.PriorityHigh},
		{"done-low", models.StatusDone, models.PriorityLow},
	}
	out := map[string]*models.Task{}
	for _, s := range specs {
		out[s.title] = h.create(alice, s.title, func(in *CreateInput) {
			in.Status = s.status
			in.Priority = s.priority
		})
	}
	out["mobile-high"] = h.create(carol, "mobile-high", func(in *CreateInput) {
		in.TeamID = teamB
		in.Priority = models.PriorityHigh
	})
	return out
}

func TestList_Filters(t *testing.T) {
	h := newHarness(t)
	seeded := seedList(h)
	if _, err := h.svc.Assign(context.Background(), alice, seeded["todo-low"].ID, AssignInput{UserID: bobID}); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	tests := []struct {
		name   string
		caller auth.Caller
		f      filter.TaskFilters
		want   string
	}{
		{
			name:   "everything visible to alice",
			caller: alice,
			want:   "done-low,mobile-high,review-high,todo-high,todo-low",
		},
		{
			name:   "bob sees only teamA",
			caller: bob,
			want:   "done-low,review-high,todo-high,todo-low",
		},
		{
			name:   "carol sees only teamB",
			caller: carol,
			want:   "mobile-high",
		},
		{
			name:   "status and priority",
			caller: alice,
			f:      filter.TaskFilters{Status: filter.StringSet{"todo", "review"}, Priority: filter.StringSet{"high"}},
			want:   "mobile-high,review-high,todo-high",
		},
		{
			name:   "status and priority within one team",
			caller: alice,
			f:      filter.TaskFilters{TeamID: teamA, Status: filter.StringSet{"todo", "review"}, Priority: filter.StringSet{"high"}},
			want:   "review-high,todo-high",
		},
		{
			name:   "status or priority",
			caller: bob,
			f: filter.TaskFilters{
				Status:   filter.StringSet{"done"},
				Priority: filter.StringSet{"high"},
				Operator: filter.OpOr,
			},
			want: "done-low,review-high,todo-high",
		},
		{
			name:   "assigned to me",
			caller: bob,
			f:      filter.TaskFilters{AssignedToMe: true},
			want:   "todo-low",
		},
		{
			name:   "search is case insensitive",
			caller: alice,
			f:      filter.TaskFilters{Search: "HIGH", TeamID: teamA},
			want:   "review-high,todo-high",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := h.svc.List(context.Background(), tt.caller, tt.f, 1, 50)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if got := titles(p.Items); got != tt.want {
				t.Errorf("List() = %s, want %s", got, tt.want)
			}
			if p.Total != int64(len(p.Items)) {
				t.Errorf("Total = %d, items = %d", p.Total, len(p.Items))
			}
		})
	}
}

func TestList_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.svc.List(ctx, bob, filter.TaskFilters{TeamID: teamB}, 1, 10); !errors.Is(err, errs.ErrAccessDenied) {
		t.Errorf("foreign team = %v, want ErrAccessDenied", err)
	}
	if _, err := h.svc.List(ctx, bob, filter.TaskFilters{TeamID: uuid.NewString()}, 1, 10); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("unknown team = %v, want ErrNotFound", err)
	}
	if _, err := h.svc.List(ctx, bob, filter.TaskFilters{Status: filter.StringSet{"finished"}}, 1, 10); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("bad status = %v, want ErrValidation", err)
	}
}

func TestList_Pagination(t *testing.T) {
	h := newHarness(t)
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		h.create(alice, title)
	}

	p, err := h.svc.List(context.Background(), alice, filter.TaskFilters{}, 3, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if p.Total != 5 || p.Pages != 3 || p.Page != 3 || p.Size != 2 {
		t.Errorf("meta = total %d pages %d page %d size %d", p.Total, p.Pages, p.Page, p.Size)
	}
	if len(p.Items) != 1 || p.HasNext || !p.HasPrev {
		t.Errorf("last page = %d items next %v prev %v", len(p.Items), p.HasNext, p.HasPrev)
	}

	empty, err := h.svc.List(context.Background(), alice, filter.TaskFilters{}, 9, 2)
	if err != nil {
		t.Fatalf("List past end: %v", err)
	}
	if empty.Items == nil || len(empty.Items) != 0 {
		t.Errorf("past end items = %v, want empty non-nil", empty.Items)
	}
}

func TestList_AnnotatesBlocked(t *testing.T) {
	h := newHarness(t)
	a := h.create(alice, "a")
	b := h.create(alice, "b")
	h.dependOn(a.ID, b.ID)

	p, err := h.svc.List(context.Background(), alice, filter.TaskFilters{Status: filter.StringSet{"blocked"}}, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(p.Items) != 1 || !p.Items[0].IsBlocked || p.Items[0].BlockingTaskCount != 1 {
		t.Errorf("items = %+v", p.Items)
	}
}

func TestSearch(t *testing.T) {
	h := newHarness(t)
	seedList(h)

	adv := filter.Advanced{
		Filters: []filter.TaskFilters{
			{Status: filter.StringSet{"review"}},
			{Priority: filter.StringSet{"low"}, Status: filter.StringSet{"done"}},
		},
		GlobalOperator: filter.OpOr,
	}
	p, err := h.svc.Search(context.Background(), alice, adv, 1, 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := titles(p.Items); got != "done-low,review-high" {
		t.Errorf("Search(or) = %s", got)
	}

	adv.GlobalOperator = filter.OpAnd
	p, err = h.svc.Search(context.Background(), alice, adv, 1, 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(p.Items) != 0 {
		t.Errorf("Search(and) = %s, want none", titles(p.Items))
	}

	p, err = h.svc.Search(context.Background(), bob, filter.Advanced{Filters: []filter.TaskFilters{{Priority: filter.StringSet{"high"}}}}, 1, 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := titles(p.Items); got != "review-high,todo-high" {
		t.Errorf("Search scoped to bob = %s", got)
	}
}

func TestBulkUpdate(t *testing.T) {
	h := newHarness(t)
	a := h.create(alice, "a")
	b := h.create(alice, "b")
	foreign := h.create(carol, "foreign", func(in *CreateInput) { in.TeamID = teamB })

	body := `{"task_updates": [
		{"task_id": "` + a.ID + `", "status": "review"},
		{"task_id": "` + b.ID + `", "team_id": "` + teamB + `"},
		{"task_id": "` + foreign.ID + `", "title": "stolen"},
		{"task_id": "` + b.ID + `", "priority": "critical"},
		{"status": "done"}
	]}`
	items, err := ParseBulk(strings.NewReader(body))
	if err != nil {
		t.Fatalf("ParseBulk: %v", err)
	}
	results := h.svc.BulkUpdate(context.Background(), bob, items)

	want := []struct {
		id      string
		success bool
	}{
		{a.ID, true},
		{b.ID, false},
		{foreign.ID, false},
		{b.ID, true},
		{"", false},
	}
	if len(results) != len(want) {
		t.Fatalf("results = %d, want %d", len(results), len(want))
	}
	for i, w := range want {
		if results[i].TaskID != w.id || results[i].Success != w.success {
			t.Errorf("results[%d] = %+v, want id %s success %v", i, results[i], w.id, w.success)
		}
		if !w.success && results[i].Error == "" {
			t.Errorf("results[%d] has no error message", i)
		}
	}
	if !strings.Contains(results[1].Error, "team_id") {
		t.Errorf("unknown field error = %q", results[1].Error)
	}
	if h.status(a.ID) != models.StatusReview {
		t.Errorf("a = %s, want review", h.status(a.ID))
	}
}

func TestBulkUpdate_Cancelled(t *testing.T) {
	h := newHarness(t)
	a := h.create(alice, "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	review := models.StatusReview
	results := h.svc.BulkUpdate(ctx, alice, []BulkItem{{TaskID: a.ID, Patch: Patch{Status: &review}}})
	if results[0].Success || results[0].Error == "" {
		t.Errorf("result = %+v, want failure", results[0])
	}
	if h.status(a.ID) != models.StatusTodo {
		t.Errorf("a = %s, want untouched", h.status(a.ID))
	}
}

func TestParseBulk_Errors(t *testing.T) {
	for _, body := range []string{
		`{"task_updates": []}`,
		`{}`,
		`{"updates": [{"task_id": "x"}]}`,
		`[]`,
	} {
		if _, err := ParseBulk(strings.NewReader(body)); !errors.Is(err, errs.ErrValidation) {
			t.Errorf("ParseBulk(%s) = %v, want ErrValidation", body, err)
		}
	}
}
