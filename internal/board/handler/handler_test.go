package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"serviceflow_gateway/internal/board"
	"serviceflow_gateway/internal/board/transport"
	apphttp "serviceflow_gateway/internal/http"
	"serviceflow_gateway/internal/upstream"
	"serviceflow_gateway/internal/workflow"
	"serviceflow_gateway/platform/httpkit"
	"serviceflow_gateway/platform/logger"
	"serviceflow_gateway/platform/validator"

	"github.com/gin-gonic/gin"
)

type fakeBackend struct {
	mu         sync.Mutex
	records    []workflow.ProcessRecord
	odns       map[string][]workflow.ODN
	ewmStarted []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{odns: make(map[string][]workflow.ODN)}
}

func (f *fakeBackend) ServiceList(ctx context.Context, store string) ([]workflow.ProcessRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]workflow.ProcessRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeBackend) TVDisplayCustomers(ctx context.Context) ([]upstream.TVCustomer, error) {
	return nil, nil
}

func (f *fakeBackend) ODNs(ctx context.Context, processID string) ([]workflow.ODN, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.odns[processID], nil
}

func (f *fakeBackend) Picklists(ctx context.Context) ([]workflow.Picklist, error) {
	return nil, nil
}

func (f *fakeBackend) UpdateServiceStatus(ctx context.Context, processID, status string) error {
	return nil
}

func (f *fakeBackend) UpdateServicePoint(ctx context.Context, req upstream.ServicePointUpdate) error {
	return nil
}

func (f *fakeBackend) UpdateExitPermitStatus(ctx context.Context, req upstream.ExitPermitUpdate) error {
	return nil
}

func (f *fakeBackend) UpdateGateStatus(ctx context.Context, req upstream.GateStatusUpdate) error {
	return nil
}

func (f *fakeBackend) StartEWM(ctx context.Context, req upstream.ODNActionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ewmStarted = append(f.ewmStarted, req.ProcessID+"|"+req.Store+"|"+req.OfficerName)
	return nil
}

func (f *fakeBackend) CompleteEWM(ctx context.Context, req upstream.ODNActionRequest) error {
	return nil
}

func (f *fakeBackend) RevertEWM(ctx context.Context, req upstream.ODNActionRequest) error {
	return nil
}

func testEngine(t *testing.T, backend *fakeBackend, claims httpkit.Claims) (*gin.Engine, *board.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("development")
	manager := board.NewManager(board.DefaultScreens(), backend, nil, nil, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	manager.Start(ctx)

	actions := board.NewActions(backend, nil, validator.New(), nil, log, manager.RefreshAll)

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextClaimsKey, claims)
	})

	mod := New(manager, actions, log)
	mod.RegisterRoutes(&apphttp.RouterContext{Engine: engine, V1: v1, Protected: protected})
	return engine, manager
}

func TestListScreens(t *testing.T) {
	engine, _ := testEngine(t, newFakeBackend(), httpkit.Claims{UserID: "u1", JobTitle: "admin"})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/screens", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var screens []transport.ScreenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &screens); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(screens) != 7 {
		t.Fatalf("screens = %d, want 7", len(screens))
	}
}

func TestViewBoardUsesSessionStore(t *testing.T) {
	backend := newFakeBackend()
	backend.records = []workflow.ProcessRecord{
		{ID: "p1", Status: "o2c_completed", NextServicePoint: "ewm"},
	}
	backend.odns["p1"] = []workflow.ODN{
		{ProcessID: "p1", Store: "AA12", EwmStatus: "started"},
	}
	engine, _ := testEngine(t, backend, httpkit.Claims{UserID: "u1", JobTitle: "ewm officer", Store: "AA12"})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/screens/ewm-dashboard/board", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp transport.BoardResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Store != "AA12" {
		t.Fatalf("store = %q, want session store AA12", resp.Store)
	}
	if len(resp.Rows) != 1 || resp.Rows[0].Record.ID != "p1" {
		t.Fatalf("rows = %+v", resp.Rows)
	}
}

func TestViewBoardUnauthenticated(t *testing.T) {
	engine, _ := testEngine(t, newFakeBackend(), httpkit.Claims{})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/screens/o2c-dashboard/board", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestStartEWMActionCarriesOfficer(t *testing.T) {
	backend := newFakeBackend()
	engine, _ := testEngine(t, backend, httpkit.Claims{UserID: "u1", FullName: "Abebe K", JobTitle: "ewm officer", Store: "AA12"})

	body := strings.NewReader(`{"process_id":"p1","store":"AA12"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/actions/start-ewm", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.ewmStarted) != 1 || backend.ewmStarted[0] != "p1|AA12|Abebe K" {
		t.Fatalf("start-ewm calls = %v", backend.ewmStarted)
	}
}

func TestActionValidationBlocksSubmission(t *testing.T) {
	backend := newFakeBackend()
	engine, _ := testEngine(t, backend, httpkit.Claims{UserID: "u1", JobTitle: "ewm officer", Store: "AA12"})

	// Missing store: rejected before any upstream call.
	body := strings.NewReader(`{"process_id":"p1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/actions/start-ewm", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.ewmStarted) != 0 {
		t.Fatal("no upstream call may happen on validation failure")
	}
}
