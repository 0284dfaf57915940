package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lkovac/narrator/core/classify"
)

func TestClassifyParsesTaggedReply(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "[Q] Approve the edit?"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-model")
	got, err := client.Classify(context.Background(), "Do you want me to edit main.py? (yes/no)")
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if got.Kind != classify.KindQuestion {
		t.Fatalf("expected question, got %q", got.Kind)
	}
	if got.Text != "Approve the edit?" {
		t.Fatalf("expected parsed narration, got %q", got.Text)
	}

	if gotReq.Model != "test-model" {
		t.Fatalf("expected model test-model, got %q", gotReq.Model)
	}
	if gotReq.Stream {
		t.Fatal("expected stream disabled")
	}
	if !strings.Contains(gotReq.Prompt, "Terminal output:") {
		t.Fatal("expected prompt to carry the delta section")
	}
	if gotReq.Options.Temperature != 0.3 || gotReq.Options.NumPredict != 256 {
		t.Fatalf("unexpected options: %+v", gotReq.Options)
	}
}

func TestClassifyServiceErrorYieldsSkip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-model")
	got, err := client.Classify(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected an error from the failing service")
	}
	if !got.IsSkip() {
		t.Fatalf("expected skip on service error, got %+v", got)
	}
}

func TestClassifyMalformedReplyYieldsSkip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "I would narrate this if I could."})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-model")
	got, err := client.Classify(context.Background(), "anything")
	if err != nil {
		t.Fatalf("malformed output is not a service error: %v", err)
	}
	if !got.IsSkip() {
		t.Fatalf("expected skip for untagged reply, got %+v", got)
	}
}

func TestClassifyTruncatesLongInput(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotPrompt = req.Prompt
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "SKIP"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-model")
	if _, err := client.Classify(context.Background(), strings.Repeat("x", 10_000)); err != nil {
		t.Fatalf("classify failed: %v", err)
	}

	if !strings.Contains(gotPrompt, "... (truncated)") {
		t.Fatal("expected truncation marker in prompt")
	}
	marker := "Terminal output:\n"
	payload := gotPrompt[strings.Index(gotPrompt, marker)+len(marker):]
	if got := strings.Count(payload, "x"); got > maxInputChars {
		t.Fatalf("expected input bounded to %d chars, got %d", maxInputChars, got)
	}
}

func TestClassifyTruncatesOnRuneBoundary(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotPrompt = req.Prompt
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "SKIP"})
	}))
	defer srv.Close()

	// The "a" prefix shifts the multi-byte runes off any byte offset
	// that is a multiple of three, so a byte-indexed cut would land
	// mid-rune.
	client := NewClient(srv.URL, "test-model")
	input := "a" + strings.Repeat("→", maxInputChars+50)
	if _, err := client.Classify(context.Background(), input); err != nil {
		t.Fatalf("classify failed: %v", err)
	}

	marker := "Terminal output:\n"
	payload := gotPrompt[strings.Index(gotPrompt, marker)+len(marker):]
	payload = strings.TrimSuffix(payload, "\n... (truncated)")
	if strings.ContainsRune(payload, utf8.RuneError) {
		t.Fatal("expected no mangled rune at the cut")
	}
	if got := utf8.RuneCountInString(payload); got != maxInputChars {
		t.Fatalf("expected %d runes kept, got %d", maxInputChars, got)
	}
}

func TestClassifyStructured(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"response": `{"decision":"summary","narration":"Build finished."}`,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-model", WithStructuredOutput())
	got, err := client.Classify(context.Background(), "build ok")
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if got.Kind != classify.KindSummary || got.Text != "Build finished." {
		t.Fatalf("unexpected result: %+v", got)
	}
	if gotReq.Format == nil {
		t.Fatal("expected a schema in the format field")
	}
}

func TestClassifyStructuredMalformedJSONYieldsSkip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "not json at all"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-model", WithStructuredOutput())
	got, err := client.Classify(context.Background(), "anything")
	if err != nil {
		t.Fatalf("malformed output is not a service error: %v", err)
	}
	if !got.IsSkip() {
		t.Fatalf("expected skip, got %+v", got)
	}
}

func TestInstalledModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"qwen2.5:14b"},{"name":"llama3.2:3b"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "qwen2.5:14b")
	models, err := client.InstalledModels(context.Background())
	if err != nil {
		t.Fatalf("listing models failed: %v", err)
	}
	if len(models) != 2 || models[0] != "qwen2.5:14b" {
		t.Fatalf("unexpected models: %v", models)
	}
}
