package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zulandar/taskyard/internal/access"
	"github.com/zulandar/taskyard/internal/auth"
	"github.com/zulandar/taskyard/internal/db"
	"github.com/zulandar/taskyard/internal/logging"
	"github.com/zulandar/taskyard/internal/models"
	"github.com/zulandar/taskyard/internal/store"
	"github.com/zulandar/taskyard/internal/task"
)

const (
	aliceID = "2d9f0a0e-2c1b-4b8e-9a55-1f1b6c1d9b01"
	bobID   = "2d9f0a0e-2c1b-4b8e-9a55-1f1b6c1d9b02"
	carolID = "2d9f0a0e-2c1b-4b8e-9a55-1f1b6c1d9b03"
	teamID  = "7c1e2a4b-0f7d-4d62-8f7e-3b9a1d2c4e01"
	secret  = "test-secret"
)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	tokens map[string]string
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	gormDB, err := db.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("ConnectSQLite: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, r := range []any{
		&models.User{ID: aliceID, Username: "alice", Email: "alice@example.com", Role: "admin"},
		&models.User{ID: bobID, Username: "bob", Email: "bob@example.com", Role: "user"},
		&models.User{ID: carolID, Username: "carol", Email: "carol@example.com", Role: "user"},
		&models.Team{ID: teamID, Name: "platform", CreatedBy: aliceID},
		&models.TeamMember{ID: uuid.NewString(), TeamID: teamID, UserID: bobID, IsActive: true},
	} {
		if err := gormDB.Create(r).Error; err != nil {
			t.Fatalf("seed %T: %v", r, err)
		}
	}

	st := store.New(gormDB)
	log := logging.Discard()
	svc := task.NewService(st, access.NewGuard(st, access.NewLRUCache(64, time.Minute), log), log)
	provider := auth.NewJWTProvider(secret, "taskyard", st)

	tokens := map[string]string{}
	for name, id := range map[string]string{"alice": aliceID, "bob": bobID, "carol": carolID} {
		// The role claim is ignored; the stored role wins.
		tok, err := provider.Issue(id, "admin", time.Hour)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		tokens[name] = tok
	}
	return &testAPI{t: t, router: NewRouter(svc, provider, log), tokens: tokens}
}

func (a *testAPI) do(method, path, user string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+a.tokens[user])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, want, w.Body.String())
	}
}

func (a *testAPI) createTask(user, title string) models.Task {
	a.t.Helper()
	w := a.do(http.MethodPost, "/tasks", user, map[string]any{"title": title, "team_id": teamID})
	expectStatus(a.t, w, http.StatusCreated)
	return decode[models.Task](a.t, w)
}

func TestHealth(t *testing.T) {
	a := setupAPI(t)
	w := a.do(http.MethodGet, "/health", "", nil)
	expectStatus(t, w, http.StatusOK)
	if body := decode[map[string]string](t, w); body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
	if w.Header().Get("X-Process-Time") == "" {
		t.Error("X-Process-Time header missing")
	}
}

func TestAuthentication(t *testing.T) {
	a := setupAPI(t)
	forged, err := auth.NewJWTProvider("other-secret", "taskyard", nil).Issue(aliceID, "admin", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "wrong secret", header: "Bearer " + forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			a.router.ServeHTTP(w, req)
			expectStatus(t, w, http.StatusUnauthorized)
			body := decode[errorBody](t, w)
			if body.StatusCode != http.StatusUnauthorized || body.Error == "" {
				t.Errorf("body = %+v", body)
			}
			if w.Header().Get("X-Process-Time") == "" {
				t.Error("X-Process-Time header missing on error")
			}
		})
	}
}

func TestTaskLifecycle(t *testing.T) {
	a := setupAPI(t)
	created := a.createTask("bob", "Write runbook")
	if created.Status != models.StatusTodo || created.CreatedBy != bobID {
		t.Fatalf("created = %+v", created)
	}

	w := a.do(http.MethodGet, "/tasks/"+created.ID, "alice", nil)
	expectStatus(t, w, http.StatusOK)
	detail := decode[task.Detail](t, w)
	if detail.Title != "Write runbook" || detail.Assignments == nil || detail.Subtasks == nil {
		t.Errorf("detail = %+v", detail)
	}

	w = a.do(http.MethodPut, "/tasks/"+created.ID, "alice", `{"status":"review","priority":"high"}`)
	expectStatus(t, w, http.StatusOK)
	if u := decode[models.Task](t, w); u.Status != models.StatusReview || u.Priority != models.PriorityHigh {
		t.Errorf("updated = %+v", u)
	}

	w = a.do(http.MethodGet, "/tasks?status=review,done&priority=high&page=1&size=5", "bob", nil)
	expectStatus(t, w, http.StatusOK)
	pg := decode[struct {
		Items []models.Task `json:"items"`
		Total int64         `json:"total"`
		Size  int           `json:"size"`
		Pages int           `json:"pages"`
	}](t, w)
	if pg.Total != 1 || len(pg.Items) != 1 || pg.Size != 5 || pg.Pages != 1 {
		t.Errorf("page = %+v", pg)
	}

	w = a.do(http.MethodDelete, "/tasks/"+created.ID, "alice", nil)
	expectStatus(t, w, http.StatusForbidden)

	w = a.do(http.MethodDelete, "/tasks/"+created.ID, "bob", nil)
	expectStatus(t, w, http.StatusNoContent)

	w = a.do(http.MethodGet, "/tasks/"+created.ID, "bob", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestErrorResponses(t *testing.T) {
	a := setupAPI(t)
	tk := a.createTask("alice", "a")

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		want   int
	}{
		{name: "unknown update field", method: http.MethodPut, path: "/tasks/" + tk.ID, user: "alice", body: `{"team_id":"x"}`, want: http.StatusBadRequest},
		{name: "unknown create field", method: http.MethodPost, path: "/tasks", user: "alice", body: `{"title":"x","team_id":"` + teamID + `","owner":"bob"}`, want: http.StatusBadRequest},
		{name: "unknown search field", method: http.MethodPost, path: "/tasks/search", user: "alice", body: `{"filters":[],"limit":5}`, want: http.StatusBadRequest},
		{name: "malformed json", method: http.MethodPost, path: "/tasks", user: "alice", body: `{`, want: http.StatusBadRequest},
		{name: "outsider read", method: http.MethodGet, path: "/tasks/" + tk.ID, user: "carol", want: http.StatusForbidden},
		{name: "unknown task", method: http.MethodGet, path: "/tasks/" + uuid.NewString(), user: "alice", want: http.StatusNotFound},
		{name: "self dependency", method: http.MethodPost, path: "/tasks/" + tk.ID + "/dependencies", user: "alice", body: map[string]string{"depends_on_task_id": tk.ID}, want: http.StatusBadRequest},
		{name: "bad page", method: http.MethodGet, path: "/tasks?page=two", user: "alice", want: http.StatusBadRequest},
		{name: "bad date filter", method: http.MethodGet, path: "/tasks?due_date_before=soon", user: "alice", want: http.StatusBadRequest},
		{name: "foreign team filter", method: http.MethodGet, path: "/tasks?team_id=" + teamID, user: "carol", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(tt.method, tt.path, tt.user, tt.body)
			expectStatus(t, w, tt.want)
			if body := decode[errorBody](t, w); body.StatusCode != tt.want {
				t.Errorf("status_code = %d, want %d", body.StatusCode, tt.want)
			}
		})
	}
}

func TestAssignmentRoutes(t *testing.T) {
	a := setupAPI(t)
	tk := a.createTask("alice", "a")
	path := "/tasks/" + tk.ID + "/assignments"

	expectStatus(t, a.do(http.MethodPost, path, "alice", map[string]string{"user_id": bobID}), http.StatusCreated)
	expectStatus(t, a.do(http.MethodPost, path, "alice", map[string]string{"user_id": bobID}), http.StatusConflict)
	expectStatus(t, a.do(http.MethodPost, path, "alice", map[string]string{"user_id": carolID}), http.StatusBadRequest)

	w := a.do(http.MethodGet, path, "bob", nil)
	expectStatus(t, w, http.StatusOK)
	if list := decode[[]models.TaskAssignment](t, w); len(list) != 1 || list[0].UserID != bobID {
		t.Errorf("assignments = %+v", list)
	}

	w = a.do(http.MethodGet, "/tasks?assigned_to_me=true", "bob", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), tk.ID) {
		t.Errorf("assigned_to_me page missing task: %s", w.Body.String())
	}

	expectStatus(t, a.do(http.MethodDelete, path+"/"+bobID, "alice", nil), http.StatusNoContent)
	expectStatus(t, a.do(http.MethodDelete, path+"/"+bobID, "alice", nil), http.StatusNotFound)
}

func TestDependencyRoutes(t *testing.T) {
	a := setupAPI(t)
	first := a.createTask("alice", "first")
	second := a.createTask("alice", "second")

	w := a.do(http.MethodPost, "/tasks/"+second.ID+"/dependencies", "bob", map[string]string{"depends_on_task_id": first.ID})
	expectStatus(t, w, http.StatusCreated)
	edge := decode[models.TaskDependency](t, w)
	if edge.DependencyType != models.DependencyBlocking {
		t.Errorf("type = %s", edge.DependencyType)
	}

	w = a.do(http.MethodPost, "/tasks/"+first.ID+"/dependencies", "bob", map[string]string{"depends_on_task_id": second.ID})
	expectStatus(t, w, http.StatusBadRequest)
	if body := decode[errorBody](t, w); !strings.Contains(body.Error, "cyclic") {
		t.Errorf("cycle error = %q", body.Error)
	}

	w = a.do(http.MethodGet, "/tasks/"+second.ID+"/status", "bob", nil)
	expectStatus(t, w, http.StatusOK)
	info := decode[task.BlockingInfo](t, w)
	if !info.IsBlocked || info.CanStart || len(info.BlockingDependencies) != 1 {
		t.Errorf("status = %+v", info)
	}

	w = a.do(http.MethodGet, "/tasks/"+first.ID+"/blocking", "bob", nil)
	expectStatus(t, w, http.StatusOK)
	if deps := decode[[]models.TaskDependency](t, w); len(deps) != 1 || deps[0].TaskID != second.ID {
		t.Errorf("blocking = %+v", deps)
	}

	w = a.do(http.MethodPut, "/tasks/"+first.ID, "bob", `{"status":"done"}`)
	expectStatus(t, w, http.StatusOK)
	if u := decode[task.Updated](t, w); len(u.Unblocked) != 1 || u.Unblocked[0] != second.ID {
		t.Errorf("unblocked = %v", u.Unblocked)
	}

	expectStatus(t, a.do(http.MethodDelete, "/tasks/"+second.ID+"/dependencies/"+edge.ID, "bob", nil), http.StatusNoContent)
	w = a.do(http.MethodGet, "/tasks/"+second.ID+"/dependencies", "bob", nil)
	expectStatus(t, w, http.StatusOK)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("dependencies after remove = %s", w.Body.String())
	}
}

func TestSearchAndBulkRoutes(t *testing.T) {
	a := setupAPI(t)
	x := a.createTask("alice", "x")
	y := a.createTask("alice", "y")

	body := `{"task_updates":[{"task_id":"` + x.ID + `","priority":"critical"},{"task_id":"` + y.ID + `","owner":"bob"}]}`
	w := a.do(http.MethodPost, "/tasks/bulk-update", "bob", body)
	expectStatus(t, w, http.StatusOK)
	res := decode[struct {
		Results []task.BulkResult `json:"results"`
	}](t, w)
	if len(res.Results) != 2 || !res.Results[0].Success || res.Results[1].Success {
		t.Fatalf("results = %+v", res.Results)
	}

	w = a.do(http.MethodPost, "/tasks/search?size=10", "bob", map[string]any{
		"filters":         []map[string]any{{"priority": "critical"}, {"search": "y"}},
		"global_operator": "or",
	})
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), x.ID) || !strings.Contains(w.Body.String(), y.ID) {
		t.Errorf("search body = %s", w.Body.String())
	}

	expectStatus(t, a.do(http.MethodPost, "/tasks/search", "bob", `{"filters":[],"extra":1}`), http.StatusBadRequest)
}

func TestAdminInvalidate(t *testing.T) {
	a := setupAPI(t)
	expectStatus(t, a.do(http.MethodPost, "/admin/access/invalidate/"+bobID, "bob", nil), http.StatusForbidden)
	expectStatus(t, a.do(http.MethodPost, "/admin/access/invalidate/"+bobID, "alice", nil), http.StatusNoContent)
	expectStatus(t, a.do(http.MethodPost, "/admin/access/invalidate/"+bobID, "", nil), http.StatusUnauthorized)
}

func TestStart_Validation(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil || !strings.Contains(err.Error(), "service is required") {
		t.Errorf("Start(no service) = %v", err)
	}
}
