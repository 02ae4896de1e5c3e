package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientGenerate(t *testing.T) {
	t.Parallel()

	var gotPath, gotPrompt, gotModel string
	var gotStream bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		gotPrompt = req.Prompt
		gotModel = req.Model
		gotStream = req.Stream
		json.NewEncoder(w).Encode(generateResponse{Response: "Findings:\nUnremarkable."})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "llama3", 5*time.Second)
	out, err := c.Generate(context.Background(), "describe the scan")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "Findings:\nUnremarkable." {
		t.Errorf("Generate() = %q", out)
	}
	if gotPath != "/api/generate" {
		t.Errorf("request path = %q, want /api/generate", gotPath)
	}
	if gotModel != "llama3" || gotPrompt != "describe the scan" {
		t.Errorf("request model/prompt = %q/%q", gotModel, gotPrompt)
	}
	if gotStream {
		t.Error("request asked for a streaming completion")
	}
}

func TestClientGenerateBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "llama3", 5*time.Second)
	_, err := c.Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("Generate() succeeded against a 404 endpoint")
	}
	var te *transportError
	if errors.As(err, &te) {
		t.Errorf("status error classified as transport error: %v", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error %q does not name the status", err)
	}
}

func TestClientGenerateMalformedPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "llama3", 5*time.Second)
	_, err := c.Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("Generate() succeeded on a malformed payload")
	}
	if !strings.Contains(err.Error(), "malformed") {
		t.Errorf("error %q does not mention the malformed payload", err)
	}
}

func TestClientGenerateUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // shut down immediately so the address refuses connections

	c := NewClient(srv.URL, "llama3", time.Second)
	_, err := c.Generate(context.Background(), "p")
	var te *transportError
	if !errors.As(err, &te) {
		t.Errorf("Generate() error = %v, want transport error", err)
	}
}
