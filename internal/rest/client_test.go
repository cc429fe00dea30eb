package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchAllSendsTokenAndDecodes(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.RequestURI()
		_, _ = w.Write([]byte(`[{"UID":"hue:bulb:1","label":"Lamp","channels":[]}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/rest/", "secret")
	things, err := client.Things(context.Background())
	if err != nil {
		t.Fatalf("Things() error: %v", err)
	}
	if len(things) != 1 || things[0].UID != "hue:bulb:1" {
		t.Fatalf("Things() = %+v", things)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotPath != "/rest/things" {
		t.Fatalf("path = %q, want /rest/things", gotPath)
	}
}

func TestFetchOneEscapesID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"UID":"hue:0210","channels":[{"id":"color","typeUID":"hue:color"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	tt, err := client.ThingType(context.Background(), "hue:0210")
	if err != nil {
		t.Fatalf("ThingType() error: %v", err)
	}
	if len(tt.Channels) != 1 {
		t.Fatalf("channels = %d, want 1", len(tt.Channels))
	}
	if gotPath != "/thing-types/hue:0210" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", WithRetryStep(time.Millisecond))
	if _, err := client.Rules(context.Background()); err != nil {
		t.Fatalf("Rules() error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such thing type", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", WithRetryStep(time.Millisecond))
	_, err := client.ThingType(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound(%v) = false", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestRetryBudgetIsExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", WithRetryStep(time.Millisecond))
	if _, err := client.Items(context.Background()); err == nil {
		t.Fatal("expected error after retries")
	}
	if calls.Load() != maxRetryAttempts {
		t.Fatalf("calls = %d, want %d", calls.Load(), maxRetryAttempts)
	}
}

func TestNewClientDefaultsBaseURL(t *testing.T) {
	if got := NewClient("  ", "").BaseURL(); got != "http://localhost:8080/rest" {
		t.Fatalf("BaseURL() = %q", got)
	}
}
