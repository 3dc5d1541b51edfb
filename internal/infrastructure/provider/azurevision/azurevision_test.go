package azurevision

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.jpg")
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func succeededResult() readResultResponse {
	return readResultResponse{
		Status: "succeeded",
		AnalyzeResult: &analyzeResult{
			ReadResults: []readPage{{
				Page: 1,
				Lines: []readLine{
					{Text: "Hello", Words: []readWord{{Text: "Hello", Confidence: 0.98}}},
					{Text: "World", Words: []readWord{{Text: "World", Confidence: 0.90}}},
				},
			}},
		},
	}
}

func newReadServer(t *testing.T, pollsUntilDone int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/vision/v3.2/read/analyze", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			t.Errorf("missing subscription key header")
		}
		w.Header().Set("Operation-Location", server.URL+"/vision/v3.2/read/analyzeResults/op-1")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/vision/v3.2/read/analyzeResults/op-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < pollsUntilDone {
			json.NewEncoder(w).Encode(readResultResponse{Status: "running"})
			return
		}
		json.NewEncoder(w).Encode(succeededResult())
	})
	server = httptest.NewServer(mux)
	return server, &polls
}

func newProvider(endpoint string) *Provider {
	return New(Options{
		SubscriptionKey: "test-key",
		Endpoint:        endpoint,
		PollInterval:    time.Millisecond,
		PollTimeout:     time.Second,
	})
}

func TestExtractTextPollsUntilSucceeded(t *testing.T) {
	server, polls := newReadServer(t, 3)
	defer server.Close()

	result := newProvider(server.URL).ExtractText(context.Background(), writeInput(t), "en")
	if !result.Success {
		t.Fatalf("ExtractText failed: %s", result.ErrorMessage)
	}
	if result.Text != "Hello\nWorld" {
		t.Fatalf("text = %q", result.Text)
	}
	want := (0.98 + 0.90) / 2 * 100
	if math.Abs(result.Confidence-want) > 1e-6 {
		t.Fatalf("confidence = %v, want %v", result.Confidence, want)
	}
	if polls.Load() != 3 {
		t.Fatalf("polls = %d, want 3", polls.Load())
	}
	if result.Metadata["line_count"] != 2 {
		t.Fatalf("line_count = %v", result.Metadata["line_count"])
	}
}

func TestExtractFailsOnFailedOperation(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/vision/v3.2/read/analyze", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Operation-Location", server.URL+"/poll")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/poll", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(readResultResponse{Status: "failed"})
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	result := newProvider(server.URL).ExtractText(context.Background(), writeInput(t), "en")
	if result.Success {
		t.Fatalf("expected failure")
	}
}

func TestExtractStopsPollingOnCancel(t *testing.T) {
	server, _ := newReadServer(t, 1000)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p := New(Options{
		SubscriptionKey: "test-key",
		Endpoint:        server.URL,
		PollInterval:    5 * time.Millisecond,
		PollTimeout:     10 * time.Second,
	})
	result := p.ExtractText(ctx, writeInput(t), "en")
	if result.Success {
		t.Fatalf("expected failure after cancellation")
	}
}

func TestAuthenticateChecksModelsEndpoint(t *testing.T) {
	var hit atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/vision/v3.2/models", func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"models":[]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	if err := newProvider(server.URL).Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !hit.Load() {
		t.Fatalf("models endpoint not called")
	}

	bad := New(Options{SubscriptionKey: "wrong", Endpoint: server.URL})
	if err := bad.Authenticate(context.Background()); err == nil {
		t.Fatalf("expected auth error")
	}
}
