package reference

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"serviceflow_gateway/internal/workflow"
	"serviceflow_gateway/platform/logger"
)

type fakeAPI struct {
	mu        sync.Mutex
	storeErr  error
	calls     map[string]int
	storeList []workflow.Store
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls:     make(map[string]int),
		storeList: []workflow.Store{{Code: "AA11", Name: "Main"}},
	}
}

func (f *fakeAPI) count(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
}

func (f *fakeAPI) Facilities(ctx context.Context) ([]workflow.Facility, error) {
	f.count("facilities")
	return []workflow.Facility{{ID: "f1", Name: "Central"}}, nil
}

func (f *fakeAPI) Stores(ctx context.Context) ([]workflow.Store, error) {
	f.count("stores")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	return f.storeList, nil
}

func (f *fakeAPI) Employees(ctx context.Context) ([]workflow.Employee, error) {
	f.count("employees")
	return nil, nil
}

func (f *fakeAPI) Users(ctx context.Context) ([]workflow.User, error) {
	f.count("users")
	return nil, nil
}

func TestCacheHitSkipsUpstream(t *testing.T) {
	api := newFakeAPI()
	svc := NewService(api, time.Minute, logger.New("development"))

	for i := 0; i < 3; i++ {
		stores, err := svc.Stores(context.Background())
		if err != nil {
			t.Fatalf("stores: %v", err)
		}
		if len(stores) != 1 || stores[0].Code != "AA11" {
			t.Fatalf("stores = %+v", stores)
		}
	}

	if got := api.calls["stores"]; got != 1 {
		t.Fatalf("upstream calls = %d, want 1", got)
	}
}

func TestExpiredEntryRefetches(t *testing.T) {
	api := newFakeAPI()
	svc := NewService(api, time.Minute, logger.New("development"))

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return now }

	if _, err := svc.Stores(context.Background()); err != nil {
		t.Fatalf("stores: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := svc.Stores(context.Background()); err != nil {
		t.Fatalf("stores after expiry: %v", err)
	}

	if got := api.calls["stores"]; got != 2 {
		t.Fatalf("upstream calls = %d, want 2", got)
	}
}

func TestInvalidateDropsEveryList(t *testing.T) {
	api := newFakeAPI()
	svc := NewService(api, time.Minute, logger.New("development"))

	ctx := context.Background()
	if _, err := svc.Stores(ctx); err != nil {
		t.Fatalf("stores: %v", err)
	}
	if _, err := svc.Facilities(ctx); err != nil {
		t.Fatalf("facilities: %v", err)
	}

	svc.Invalidate()

	if _, err := svc.Stores(ctx); err != nil {
		t.Fatalf("stores after invalidate: %v", err)
	}
	if got := api.calls["stores"]; got != 2 {
		t.Fatalf("stores upstream calls = %d, want 2", got)
	}
}

func TestRefreshFailureServesStale(t *testing.T) {
	api := newFakeAPI()
	svc := NewService(api, time.Minute, logger.New("development"))

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return now }

	if _, err := svc.Stores(context.Background()); err != nil {
		t.Fatalf("stores: %v", err)
	}

	api.mu.Lock()
	api.storeErr = errors.New("backend down")
	api.mu.Unlock()
	now = now.Add(2 * time.Minute)

	stores, err := svc.Stores(context.Background())
	if err != nil {
		t.Fatalf("stale refresh must not error: %v", err)
	}
	if len(stores) != 1 {
		t.Fatalf("stale stores = %+v", stores)
	}
}

func TestFirstLoadFailureSurfaces(t *testing.T) {
	api := newFakeAPI()
	api.storeErr = errors.New("backend down")
	svc := NewService(api, time.Minute, logger.New("development"))

	if _, err := svc.Stores(context.Background()); err == nil {
		t.Fatal("first-load failure must surface")
	}
}
