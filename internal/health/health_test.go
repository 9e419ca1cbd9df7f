package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New(nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyz_AllCheckersPass(t *testing.T) {
	h := New(nil,
		Checker{Name: "microphone", Check: func(_ context.Context) error { return nil }},
		Checker{Name: "stream", Check: func(_ context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.Checks["microphone"] != "ok" || body.Checks["stream"] != "ok" {
		t.Errorf("checks = %v, want all ok", body.Checks)
	}
}

func TestReadyz_FailingCheckerReturns503(t *testing.T) {
	h := New(nil,
		Checker{Name: "microphone", Check: func(_ context.Context) error { return nil }},
		Checker{Name: "stream", Check: func(_ context.Context) error {
			return errors.New("connection lost")
		}},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want fail", body.Status)
	}
	if body.Checks["stream"] != "fail: connection lost" {
		t.Errorf("stream check = %q, want failure detail", body.Checks["stream"])
	}
	if body.Checks["microphone"] != "ok" {
		t.Errorf("microphone check = %q, want ok", body.Checks["microphone"])
	}
}

func TestStatusz_ReportsSnapshot(t *testing.T) {
	h := New(func() Snapshot {
		return Snapshot{
			SessionID:      "sess-7",
			StreamState:    "open",
			InputLevel:     0.42,
			FramesOffered:  100,
			FramesAdmitted: 21,
			Segments:       3,
		}
	})

	req := httptest.NewRequest("GET", "/statusz", nil)
	rec := httptest.NewRecorder()
	h.Statusz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if snap.SessionID != "sess-7" || snap.StreamState != "open" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.FramesAdmitted != 21 || snap.Segments != 3 {
		t.Errorf("snapshot counters = %+v", snap)
	}
}

func TestStatusz_NilSnapshot(t *testing.T) {
	h := New(nil)
	req := httptest.NewRequest("GET", "/statusz", nil)
	rec := httptest.NewRecorder()
	h.Statusz(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRegister_Routes(t *testing.T) {
	mux := http.NewServeMux()
	New(nil).Register(mux)

	for _, path := range []string{"/healthz", "/readyz", "/statusz"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code == http.StatusNotFound {
			t.Errorf("%s not registered", path)
		}
	}
}
