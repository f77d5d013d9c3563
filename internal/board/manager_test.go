package board

import (
	"context"
	"testing"

	"serviceflow_gateway/internal/workflow"
	"serviceflow_gateway/platform/apperr"
	"serviceflow_gateway/platform/logger"
)

type fakeManagerAPI struct {
	*fakeUpstream
	picklists []workflow.Picklist
}

func (f *fakeManagerAPI) Picklists(ctx context.Context) ([]workflow.Picklist, error) {
	return f.picklists, nil
}

func TestManagerRequiresStart(t *testing.T) {
	m := NewManager(DefaultScreens(), &fakeManagerAPI{fakeUpstream: newFakeUpstream()}, nil, nil, logger.New("development"))

	if _, err := m.Board(ScreenO2CDashboard, ""); err == nil {
		t.Fatal("board before Start must fail")
	}
}

func TestManagerBoardLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager(DefaultScreens(), &fakeManagerAPI{fakeUpstream: newFakeUpstream()}, nil, nil, logger.New("development"))
	m.Start(ctx)

	if m.Picklists() == nil {
		t.Fatal("picklist board must start with the manager")
	}

	first, err := m.Board(ScreenO2CDashboard, "")
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	second, err := m.Board(ScreenO2CDashboard, "")
	if err != nil {
		t.Fatalf("board again: %v", err)
	}
	if first != second {
		t.Fatal("same screen and store must reuse the running board")
	}

	other, err := m.Board(ScreenEWMDashboard, "AA12")
	if err != nil {
		t.Fatalf("store-scoped board: %v", err)
	}
	if other == first {
		t.Fatal("different screens must not share a board")
	}

	m.RefreshAll(ctx)
}

func TestManagerRejectsBadRequests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewManager(DefaultScreens(), &fakeManagerAPI{fakeUpstream: newFakeUpstream()}, nil, nil, logger.New("development"))
	m.Start(ctx)

	if _, err := m.Board("no-such-screen", ""); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("unknown screen error = %v, want not found", err)
	}
	// The picklist listing is not a row board.
	if _, err := m.Board(ScreenPicklists, ""); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("picklists as board error = %v, want not found", err)
	}
	if _, err := m.Board(ScreenGateKeeper, ""); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("missing store error = %v, want validation", err)
	}
}
