// Package transport holds the request/response shapes of the board API.
package transport

import (
	"serviceflow_gateway/internal/board"
	"serviceflow_gateway/internal/poller"
	"serviceflow_gateway/internal/workflow"
)

// RowResponse is one displayable board row.
type RowResponse struct {
	Record         workflow.ProcessRecord  `json:"record"`
	ODNs           []workflow.ODN          `json:"odns,omitempty"`
	Classification workflow.Classification `json:"classification"`
	Draft          map[string]string       `json:"draft,omitempty"`
}

// BoardResponse is a screen's filtered view for one operator.
type BoardResponse struct {
	Screen  string        `json:"screen"`
	Store   string        `json:"store,omitempty"`
	Version uint64        `json:"version"`
	Loaded  bool          `json:"loaded"`
	Error   string        `json:"error,omitempty"`
	Rows    []RowResponse `json:"rows"`
}

// ScreenResponse describes one configured screen.
type ScreenResponse struct {
	Name       string `json:"name"`
	IntervalMs int64  `json:"interval_ms"`
	Announce   bool   `json:"announce"`
	StoreBound bool   `json:"store_bound"`
}

// PicklistResponse is the picklist listing.
type PicklistResponse struct {
	Version   uint64              `json:"version"`
	Loaded    bool                `json:"loaded"`
	Picklists []workflow.Picklist `json:"picklists"`
}

// DraftRequest sets one drafted form field on a record.
type DraftRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// NewBoardResponse assembles the view payload from filtered rows and the
// board snapshot.
func NewBoardResponse(screen, store string, snap poller.Snapshot[board.Row], rows []board.Row) BoardResponse {
	resp := BoardResponse{
		Screen:  screen,
		Store:   store,
		Version: snap.Version,
		Loaded:  snap.Loaded,
		Rows:    make([]RowResponse, 0, len(rows)),
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, RowResponse{
			Record:         row.Record,
			ODNs:           row.ODNs,
			Classification: row.Class,
			Draft:          snap.Drafts[row.Record.ID],
		})
	}
	return resp
}

// NewScreenResponses maps the screen definitions.
func NewScreenResponses(defs []board.ScreenDef) []ScreenResponse {
	out := make([]ScreenResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, ScreenResponse{
			Name:       def.Name,
			IntervalMs: def.Interval.Milliseconds(),
			Announce:   def.Announce,
			StoreBound: def.NeedsODNs,
		})
	}
	return out
}
