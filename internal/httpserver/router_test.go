package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/handler"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/model"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/progress"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/repository/memory"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/progression"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/mq"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/outbox"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/rbac"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/trace"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/util"
)

const testSecret = "test-secret"

type fixture struct {
	router  *gin.Engine
	store   *memory.Store
	project model.Project
	mentors []model.Mentor
}

func newFixture(t *testing.T, readiness map[string]ReadinessCheck) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	store := memory.NewStore()
	engine := progression.NewEngine(store, store, log)
	p := store.AddProject("Solar Kiosk", "lead@example.org", 1)
	var mentors []model.Mentor
	for _, name := range []string{"Amina", "Brian"} {
		m := store.AddMentor(name, "")
		if err := store.AssignMentor(p.ID, m.ID); err != nil {
			t.Fatalf("AssignMentor: %v", err)
		}
		if err := engine.Consensus.OnMentorAssigned(context.Background(), p.ID, m.ID); err != nil {
			t.Fatalf("OnMentorAssigned: %v", err)
		}
		mentors = append(mentors, m)
	}

	replay := outbox.NewReplayService(store, mq.NewLocalBus(log), log)
	r := NewRouter(
		handler.NewProgressionHandler(engine, progress.DefaultCatalog(), log),
		handler.NewAdminHandler(replay, log),
		RouterConfig{JWTSecret: testSecret, Readiness: readiness},
		log,
	)
	return &fixture{router: r, store: store, project: p, mentors: mentors}
}

func token(t *testing.T, mentorID int64, role string) string {
	t.Helper()
	tok, err := util.GenerateJWT(mentorID, role, testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthAndStages(t *testing.T) {
	f := newFixture(t, nil)

	if w := f.do(t, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/readyz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("readyz = %d", w.Code)
	}

	w := f.do(t, http.MethodGet, "/stages", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stages = %d", w.Code)
	}
	stages, _ := decodeBody(t, w)["stages"].([]any)
	if len(stages) != model.MaxStage {
		t.Fatalf("stages = %d, want %d", len(stages), model.MaxStage)
	}
}

func TestReadyzReportsFailingDependency(t *testing.T) {
	f := newFixture(t, map[string]ReadinessCheck{
		"db_not_ready": func(context.Context) error { return errors.New("down") },
	})
	w := f.do(t, http.MethodGet, "/readyz", "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("readyz = %d", w.Code)
	}
	if got := decodeBody(t, w)["status"]; got != "db_not_ready" {
		t.Fatalf("status = %v", got)
	}
}

func TestTraceHeaderEchoed(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName(), "trace-123")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if got := w.Header().Get(trace.HeaderName()); got != "trace-123" {
		t.Fatalf("trace header = %q", got)
	}
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t, nil)
	if w := f.do(t, http.MethodGet, "/projects/1/consensus", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/projects/1/consensus", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d", w.Code)
	}
}

func TestRecordRatingEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	tok := token(t, f.mentors[0].ID, rbac.RoleMentor)

	w := f.do(t, http.MethodPost, "/projects/1/ratings", tok, map[string]any{"stage": 1, "percentage": 50, "notes": "good"})
	if w.Code != http.StatusOK {
		t.Fatalf("rating = %d %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["success"] != true || body["overall_progress"] != float64(5) {
		t.Fatalf("body = %v", body)
	}

	cases := []struct {
		name string
		path string
		tok  string
		body map[string]any
		want int
	}{
		{"percentage out of range", "/projects/1/ratings", tok, map[string]any{"stage": 1, "percentage": 101}, http.StatusBadRequest},
		{"future stage", "/projects/1/ratings", tok, map[string]any{"stage": 2, "percentage": 10}, http.StatusBadRequest},
		{"bad project id", "/projects/abc/ratings", tok, map[string]any{"stage": 1, "percentage": 10}, http.StatusBadRequest},
		{"unknown project", "/projects/99/ratings", tok, map[string]any{"stage": 1, "percentage": 10}, http.StatusNotFound},
		{"unassigned mentor", "/projects/1/ratings", token(t, 77, rbac.RoleMentor), map[string]any{"stage": 1, "percentage": 10}, http.StatusForbidden},
		{"admin cannot rate", "/projects/1/ratings", token(t, f.mentors[0].ID, rbac.RoleAdmin), map[string]any{"stage": 1, "percentage": 10}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := f.do(t, http.MethodPost, tc.path, tc.tok, tc.body); w.Code != tc.want {
				t.Fatalf("code = %d, want %d (%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}

	w = f.do(t, http.MethodGet, "/projects/1/ratings", tok, nil)
	if w.Code != http.StatusOK || decodeBody(t, w)["count"] != float64(1) {
		t.Fatalf("history = %d %s", w.Code, w.Body.String())
	}
}

func TestApprovalsDriveAdvancement(t *testing.T) {
	f := newFixture(t, nil)
	a := token(t, f.mentors[0].ID, rbac.RoleMentor)
	b := token(t, f.mentors[1].ID, rbac.RoleMentor)

	if w := f.do(t, http.MethodPut, "/projects/1/approvals", a, map[string]any{"stage": 1}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing approved flag = %d", w.Code)
	}
	if w := f.do(t, http.MethodPut, "/projects/1/approvals", a, map[string]any{"stage": 1, "approved": true}); w.Code != http.StatusOK {
		t.Fatalf("approve a = %d %s", w.Code, w.Body.String())
	}

	w := f.do(t, http.MethodGet, "/projects/1/consensus", a, nil)
	status := decodeBody(t, w)
	if status["approved_mentors"] != float64(1) || status["total_mentors"] != float64(2) || status["consensus_reached"] != false {
		t.Fatalf("consensus = %v", status)
	}

	if w := f.do(t, http.MethodPut, "/projects/1/approvals", b, map[string]any{"stage": 1, "approved": true}); w.Code != http.StatusOK {
		t.Fatalf("approve b = %d", w.Code)
	}
	p, _ := f.store.Project(f.project.ID)
	if p.CurrentStage != 2 {
		t.Fatalf("stage = %d, want 2", p.CurrentStage)
	}

	// 过期阶段投票
	if w := f.do(t, http.MethodPut, "/projects/1/approvals", a, map[string]any{"stage": 1, "approved": true}); w.Code != http.StatusBadRequest {
		t.Fatalf("stale vote = %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/projects/1/approvals", a, nil)
	rows, _ := decodeBody(t, w)["approvals"].([]any)
	if len(rows) != 2 {
		t.Fatalf("reseeded rows = %d, want 2", len(rows))
	}
}

func TestAdvanceRequiresAdmin(t *testing.T) {
	f := newFixture(t, nil)
	if w := f.do(t, http.MethodPost, "/projects/1/advance", token(t, f.mentors[0].ID, rbac.RoleMentor), nil); w.Code != http.StatusForbidden {
		t.Fatalf("mentor advance = %d", w.Code)
	}

	w := f.do(t, http.MethodPost, "/projects/1/advance", token(t, 1, rbac.RoleAdmin), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin advance = %d", w.Code)
	}
	if decodeBody(t, w)["advanced"] != false {
		t.Fatalf("advanced without consensus: %s", w.Body.String())
	}
}

func TestAdminOutboxEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	admin := token(t, 1, rbac.RoleAdmin)

	w := f.do(t, http.MethodGet, "/admin/outbox/failed", admin, nil)
	if w.Code != http.StatusOK || decodeBody(t, w)["count"] != float64(0) {
		t.Fatalf("failed list = %d %s", w.Code, w.Body.String())
	}
	if w := f.do(t, http.MethodPost, "/admin/outbox/replay?id=404", admin, nil); w.Code != http.StatusNotFound {
		t.Fatalf("replay unknown = %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/admin/outbox/replay", admin, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("replay no id = %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/admin/outbox/replay-failed", token(t, f.mentors[0].ID, rbac.RoleMentor), nil); w.Code != http.StatusForbidden {
		t.Fatalf("mentor replay = %d", w.Code)
	}
}
