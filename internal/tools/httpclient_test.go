package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoJSONRetriesUntilSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("body must be resent on retry: %v", err)
		}
		if body["q"] != "hello" {
			t.Errorf("retried body is corrupt: %v", body)
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(time.Second, 2, time.Millisecond)
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.DoJSON(context.Background(), "POST", srv.URL, nil, map[string]string{"q": "hello"}, &out)
	if err != nil {
		t.Fatalf("want success after retries: %v", err)
	}
	if !out.OK {
		t.Fatal("response not decoded")
	}
	if hits.Load() != 3 {
		t.Fatalf("want 3 attempts, got %d", hits.Load())
	}
}

func TestDoJSONGivesUpAfterRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(time.Second, 1, time.Millisecond)
	err := c.DoJSON(context.Background(), "GET", srv.URL, nil, nil, nil)
	if err == nil {
		t.Fatal("want error after exhausting retries")
	}
	if hits.Load() != 2 {
		t.Fatalf("want 2 attempts, got %d", hits.Load())
	}
}

func TestDoJSONHonorsContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewHTTPClient(time.Second, 3, time.Hour)
	err := c.DoJSON(ctx, "GET", srv.URL, nil, nil, nil)
	if err == nil {
		t.Fatal("cancelled context must abort retries")
	}
}
