// Package upstream provides the HTTP client for the workflow backend API.
// Endpoint paths are fixed by the backend and must not be changed.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/sync/singleflight"

	"serviceflow_gateway/internal/workflow"
	"serviceflow_gateway/platform/apperr"
	"serviceflow_gateway/platform/config"
	"serviceflow_gateway/platform/logger"
)

// Client is the HTTP client for the workflow backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger

	// odnGroup collapses concurrent ODN lookups for the same process. Every
	// store-scoped board re-fetches ODNs each poll, so overlapping boards
	// would otherwise multiply identical calls.
	odnGroup singleflight.Group
}

// New creates a new backend client.
func New(cfg config.UpstreamConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.GetUpstreamTimeout()},
		baseURL:    cfg.GetUpstreamBaseURL(),
		log:        log,
	}
}

// ServiceList fetches the customer process records, optionally scoped to one
// store.
func (c *Client) ServiceList(ctx context.Context, store string) ([]workflow.ProcessRecord, error) {
	path := "/api/serviceList"
	if store != "" {
		path += "?store=" + url.QueryEscape(store)
	}
	var records []workflow.ProcessRecord
	if err := c.getJSON(ctx, "service_list", path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// TVDisplayCustomers fetches the denormalized records for TV displays,
// including nested store details keyed by store code.
func (c *Client) TVDisplayCustomers(ctx context.Context) ([]TVCustomer, error) {
	var records []TVCustomer
	if err := c.getJSON(ctx, "tv_display_customers", "/api/tv-display-customers", &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Facilities fetches the facility reference list.
func (c *Client) Facilities(ctx context.Context) ([]workflow.Facility, error) {
	var facilities []workflow.Facility
	if err := c.getJSON(ctx, "facilities", "/api/facilities", &facilities); err != nil {
		return nil, err
	}
	return facilities, nil
}

// Stores fetches the store reference list.
func (c *Client) Stores(ctx context.Context) ([]workflow.Store, error) {
	var stores []workflow.Store
	if err := c.getJSON(ctx, "stores", "/api/stores", &stores); err != nil {
		return nil, err
	}
	return stores, nil
}

// Employees fetches the employee reference list.
func (c *Client) Employees(ctx context.Context) ([]workflow.Employee, error) {
	var employees []workflow.Employee
	if err := c.getJSON(ctx, "employees", "/api/get-employee", &employees); err != nil {
		return nil, err
	}
	return employees, nil
}

// Users fetches the user account list.
func (c *Client) Users(ctx context.Context) ([]workflow.User, error) {
	var users []workflow.User
	if err := c.getJSON(ctx, "users", "/api/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ODNs fetches the ODN list for one process. Concurrent calls for the same
// process share one request; callers must treat the result as read-only.
func (c *Client) ODNs(ctx context.Context, processID string) ([]workflow.ODN, error) {
	value, err, _ := c.odnGroup.Do(processID, func() (interface{}, error) {
		var resp odnsResponse
		path := "/api/rdf-odns/" + url.PathEscape(processID)
		if err := c.getJSON(ctx, "odns", path, &resp); err != nil {
			return nil, err
		}
		if !resp.Success {
			return nil, apperr.NotFound("odns not found for process " + processID).WithOp("odns")
		}
		return resp.Odns, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]workflow.ODN), nil
}

// Ping probes backend reachability for the health endpoint. The store list is
// the cheapest stable listing the backend serves.
func (c *Client) Ping(ctx context.Context) error {
	var stores []workflow.Store
	return c.getJSON(ctx, "ping", "/api/stores", &stores)
}

// UpdateServicePoint routes a process to its next service point.
func (c *Client) UpdateServicePoint(ctx context.Context, req ServicePointUpdate) error {
	return c.send(ctx, "update_service_point", http.MethodPut, "/api/update-service-point", req)
}

// UpdateServiceStatus sets a process's global status.
func (c *Client) UpdateServiceStatus(ctx context.Context, processID, status string) error {
	path := "/api/update-service-status/" + url.PathEscape(processID)
	return c.send(ctx, "update_service_status", http.MethodPut, path, map[string]string{"status": status})
}

// UpdateExitPermitStatus transitions an ODN's exit permit status.
func (c *Client) UpdateExitPermitStatus(ctx context.Context, req ExitPermitUpdate) error {
	return c.send(ctx, "update_exit_permit_status", http.MethodPut, "/api/odns-rdf/update-exit-permit-status", req)
}

// UpdateGateStatus transitions an ODN's gate status.
func (c *Client) UpdateGateStatus(ctx context.Context, req GateStatusUpdate) error {
	return c.send(ctx, "update_gate_status", http.MethodPut, "/api/odns-rdf/update-gate-status", req)
}

// StartEWM marks warehouse processing started for one store's ODN.
func (c *Client) StartEWM(ctx context.Context, req ODNActionRequest) error {
	return c.send(ctx, "start_ewm", http.MethodPut, "/api/odns-rdf/start-ewm", req)
}

// CompleteEWM marks warehouse processing complete for one store's ODN.
func (c *Client) CompleteEWM(ctx context.Context, req ODNActionRequest) error {
	return c.send(ctx, "complete_ewm", http.MethodPut, "/api/odns-rdf/complete-ewm", req)
}

// RevertEWM reverts a started EWM stage.
func (c *Client) RevertEWM(ctx context.Context, req ODNActionRequest) error {
	return c.send(ctx, "revert_ewm", http.MethodPut, "/api/odns-rdf/revert-ewm", req)
}

// Picklists fetches the open picklist documents.
func (c *Client) Picklists(ctx context.Context) ([]workflow.Picklist, error) {
	var picklists []workflow.Picklist
	if err := c.getJSON(ctx, "picklists", "/api/picklists", &picklists); err != nil {
		return nil, err
	}
	return picklists, nil
}

// RecordServiceTime appends one audit entry to the track's service-time log.
func (c *Client) RecordServiceTime(ctx context.Context, entry ServiceTimeEntry, track Track) error {
	path := "/api/service-time"
	if track == TrackHP {
		path = "/api/service-time-hp"
	}
	return c.send(ctx, "record_service_time", http.MethodPost, path, entry)
}

func (c *Client) getJSON(ctx context.Context, op, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.UpstreamError(op, path, 0, err)
		return apperr.Wrap(apperr.KindUnavailable, "workflow backend unreachable", err).WithOp(op)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(op, path, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.UpstreamError(op, path, resp.StatusCode, err)
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, op, method, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.UpstreamError(op, path, 0, err)
		return apperr.Wrap(apperr.KindUnavailable, "workflow backend unreachable", err).WithOp(op)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.statusError(op, path, resp)
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// statusError surfaces the backend's own error message verbatim when the
// response body carries one, else a generic fallback.
func (c *Client) statusError(op, path string, resp *http.Response) error {
	var body errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	message := body.text()
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	c.log.UpstreamError(op, path, resp.StatusCode, fmt.Errorf("%s", message))

	kind := apperr.KindBadRequest
	switch {
	case resp.StatusCode == http.StatusNotFound:
		kind = apperr.KindNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		kind = apperr.KindUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		kind = apperr.KindForbidden
	case resp.StatusCode >= http.StatusInternalServerError:
		kind = apperr.KindUnavailable
	}
	return apperr.New(kind, message).WithOp(op)
}
