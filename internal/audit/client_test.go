package audit

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"serviceflow_gateway/internal/upstream"
)

type schedCfg struct {
	url string
}

func (c schedCfg) GetRedisURL() string       { return c.url }
func (c schedCfg) GetRedisTLSInsecure() bool { return false }
func (c schedCfg) GetAsynqQueueName() string { return "audit" }
func (c schedCfg) GetAsynqConcurrency() int  { return 1 }

func TestClientEnqueuesServiceTimeTask(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(schedCfg{url: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	entry := upstream.ServiceTimeEntry{
		ProcessID:   "proc-1",
		ServiceUnit: "ewm",
		EndTime:     "2024-01-05 09:03:07",
		OfficerID:   "off-9",
		OfficerName: "Test Officer",
		Status:      "completed",
	}
	if err := client.RecordServiceTime(context.Background(), entry, upstream.TrackRDF); err != nil {
		t.Fatalf("RecordServiceTime: %v", err)
	}

	var queued bool
	for _, key := range srv.Keys() {
		if strings.Contains(key, "audit") {
			queued = true
		}
	}
	if !queued {
		t.Fatalf("no task landed on the audit queue, keys=%v", srv.Keys())
	}
}

func TestClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(schedCfg{url: ""}); err == nil {
		t.Fatal("expected error for missing redis url")
	}
}

func TestNilClientIsNoop(t *testing.T) {
	var c *Client
	if err := c.RecordServiceTime(context.Background(), upstream.ServiceTimeEntry{}, upstream.TrackHP); err != nil {
		t.Fatalf("nil client must be a no-op, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestServiceTimePayloadRoundTrip(t *testing.T) {
	task, err := NewServiceTimeTask(ServiceTimePayload{
		Entry: upstream.ServiceTimeEntry{ProcessID: "p1", ServiceUnit: "o2c"},
		Track: upstream.TrackHP,
	})
	if err != nil {
		t.Fatalf("NewServiceTimeTask: %v", err)
	}
	payload, err := ParseServiceTimePayload(task)
	if err != nil {
		t.Fatalf("ParseServiceTimePayload: %v", err)
	}
	if payload.Entry.ProcessID != "p1" || payload.Track != upstream.TrackHP {
		t.Fatalf("payload mangled: %+v", payload)
	}
}
