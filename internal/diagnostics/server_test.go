package diagnostics

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/soderholm/streamverify/events"
)

func TestHandleStatusCountsStepEvents(t *testing.T) {
	bus := events.NewMemoryBus()
	bus.Publish(events.New(events.TypeStepMatched, "complete"))
	bus.Publish(events.New(events.TypeStepFailed, "mismatch"))
	bus.Publish(events.New(events.TypeStepFailed, "timeout"))

	s := New(bus)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/status", nil)
	s.mux.ServeHTTP(rr, req)

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["steps_matched"].(float64) != 1 {
		t.Errorf("steps_matched = %v, want 1", body["steps_matched"])
	}
	if body["steps_failed"].(float64) != 2 {
		t.Errorf("steps_failed = %v, want 2", body["steps_failed"])
	}
}

func TestHandleHistoryReturnsAllEvents(t *testing.T) {
	bus := events.NewMemoryBus()
	bus.Publish(events.New(events.TypeVerifyStart, nil))
	bus.Publish(events.New(events.TypeVerifyEnd, nil))

	s := New(bus)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/history", nil)
	s.mux.ServeHTTP(rr, req)

	var history []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %v, want 2 events", history)
	}
}
