package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbeReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New()
	if got := p.Probe(context.Background(), srv.URL); got != StatusReady {
		t.Fatalf("expected StatusReady, got %s", got)
	}
}

func TestProbeNotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New()
	if got := p.Probe(context.Background(), srv.URL); got != StatusNotReady {
		t.Fatalf("expected StatusNotReady, got %s", got)
	}
}

func TestProbeUnreachable(t *testing.T) {
	p := New()
	if got := p.Probe(context.Background(), "http://127.0.0.1:1"); got != StatusUnreachable {
		t.Fatalf("expected StatusUnreachable, got %s", got)
	}
}
