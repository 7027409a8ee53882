package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestClientGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/items" || r.URL.Query().Get("q") != "x" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL+"/api/"), WithTimeout(time.Second))
	var out struct {
		Name string `json:"name"`
	}
	if err := c.GetJSON(context.Background(), "/items", url.Values{"q": {"x"}}, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Name != "ok" {
		t.Fatalf("unexpected body %+v", out)
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	err := c.GetJSON(context.Background(), "x", nil, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected StatusError 502, got %v", err)
	}
}

func TestClientURL(t *testing.T) {
	c := NewClient(WithBaseURL("http://h/api/"))
	if got := c.URL("/datasources/1/data"); got != "http://h/api/datasources/1/data" {
		t.Fatalf("unexpected url %s", got)
	}
	if got := NewClient().URL("http://a/b"); got != "http://a/b" {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestStatusErrorTemporary(t *testing.T) {
	for code, want := range map[int]bool{
		http.StatusNotFound:           false,
		http.StatusTooManyRequests:    true,
		http.StatusServiceUnavailable: true,
	} {
		if got := (&StatusError{StatusCode: code}).Temporary(); got != want {
			t.Fatalf("Temporary(%d) = %v", code, got)
		}
	}
}
