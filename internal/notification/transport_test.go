package notification

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func fastOptions(name string) ResilienceOptions {
	return ResilienceOptions{
		Name:            name,
		AttemptTimeout:  time.Second,
		MaxRetries:      2,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      2 * time.Millisecond,
		BreakerFailures: 2,
		BreakerOpen:     time.Minute,
	}
}

func TestResilientTransport_RetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"text":"hi"}` {
			t.Errorf("attempt %d body=%q", hits.Load()+1, body)
		}
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer ts.Close()

	client := NewHTTPClient(fastOptions("retry-ok"))
	resp, err := client.Post(ts.URL, "application/json", bytes.NewReader([]byte(`{"text":"hi"}`)))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits=%d want 3", hits.Load())
	}
}

func TestResilientTransport_ReturnsLastFailure(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "upstream down")
	}))
	defer ts.Close()

	client := NewHTTPClient(fastOptions("retry-exhausted"))
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError || string(body) != "upstream down" {
		t.Fatalf("status=%d body=%q", resp.StatusCode, body)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits=%d want 1 attempt + 2 retries", hits.Load())
	}
}

func TestResilientTransport_ClientErrorsNotRetried(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	transport := NewResilientTransport(nil, fastOptions("client-error"))
	client := &http.Client{Transport: transport}
	for i := 0; i < 5; i++ {
		resp, err := client.Get(ts.URL)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		resp.Body.Close()
	}
	if hits.Load() != 5 {
		t.Fatalf("hits=%d want 5", hits.Load())
	}
	if transport.State() != gobreaker.StateClosed {
		t.Fatalf("breaker=%s want closed", transport.State())
	}
}

func TestResilientTransport_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	transport := NewResilientTransport(nil, fastOptions("breaker"))
	client := &http.Client{Transport: transport}
	for i := 0; i < 2; i++ {
		resp, err := client.Get(ts.URL)
		if err != nil {
			t.Fatalf("call %d err=%v", i, err)
		}
		resp.Body.Close()
	}
	if transport.State() != gobreaker.StateOpen {
		t.Fatalf("breaker=%s want open", transport.State())
	}
	before := hits.Load()
	_, err := client.Get(ts.URL)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err=%v want open state", err)
	}
	if hits.Load() != before {
		t.Fatalf("open breaker still reached the server")
	}
}
