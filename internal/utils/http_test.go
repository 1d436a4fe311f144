package utils

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// completionBody mirrors the shape of a minimal provider completion, which is
// what this helper decodes in practice.
type completionBody struct {
	Model   string `json:"model"`
	Content string `json:"content"`
}

func jsonHandler(t *testing.T, status int, body string, inspect func(r *http.Request)) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

// ========== DoPostSync ==========

func TestDoPostSync_DecodesResponse(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, http.StatusOK, `{"model":"m1","content":"hello"}`, nil))
	defer server.Close()

	_, result, err := DoPostSync[completionBody](context.Background(), server.Client(), server.URL, "key-1", map[string]string{"prompt": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result == nil || result.Content != "hello" || result.Model != "m1" {
		t.Errorf("unexpected decoded body: %+v", result)
	}
}

func TestDoPostSync_SendsAuthAndCustomHeaders(t *testing.T) {
	var authorization, version string

	server := httptest.NewServer(jsonHandler(t, http.StatusOK, `{}`, func(r *http.Request) {
		authorization = r.Header.Get("Authorization")
		version = r.Header.Get("Anthropic-Version")
	}))
	defer server.Close()

	_, _, err := DoPostSync[completionBody](
		context.Background(), server.Client(), server.URL, "key-1", nil,
		HeaderOption{Key: "Anthropic-Version", Value: "2023-06-01"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if authorization != "Bearer key-1" {
		t.Errorf("expected bearer auth, got %q", authorization)
	}

	if version != "2023-06-01" {
		t.Errorf("expected the vendor header, got %q", version)
	}
}

func TestDoPostSync_EmptyKeySkipsAuthHeader(t *testing.T) {
	var authorization string

	server := httptest.NewServer(jsonHandler(t, http.StatusOK, `{}`, func(r *http.Request) {
		authorization = r.Header.Get("Authorization")
	}))
	defer server.Close()

	if _, _, err := DoPostSync[completionBody](context.Background(), server.Client(), server.URL, "", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if authorization != "" {
		t.Errorf("expected no Authorization header, got %q", authorization)
	}
}

func TestDoPostSync_Non2xxIsAnError(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, http.StatusTooManyRequests, `{"error":"rate limited"}`, nil))
	defer server.Close()

	response, _, err := DoPostSync[completionBody](context.Background(), server.Client(), server.URL, "", nil)
	if err == nil {
		t.Fatal("expected an error for a 429 response")
	}

	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error must carry status and body, got %v", err)
	}

	if response == nil || response.StatusCode != http.StatusTooManyRequests {
		t.Error("the raw response must be returned alongside the error")
	}
}

func TestDoPostSync_MalformedBodyIsAnError(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, http.StatusOK, `"just a string"`, nil))
	defer server.Close()

	_, _, err := DoPostSync[completionBody](context.Background(), server.Client(), server.URL, "", nil)
	if err == nil {
		t.Fatal("expected a decode error")
	}

	if !strings.Contains(err.Error(), "unmarshal") {
		t.Errorf("expected a decode failure, got %v", err)
	}
}

func TestDoPostSync_NilClientFallsBackToDefault(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, http.StatusOK, `{"content":"ok"}`, nil))
	defer server.Close()

	_, result, err := DoPostSync[completionBody](context.Background(), nil, server.URL, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Content != "ok" {
		t.Errorf("unexpected body: %+v", result)
	}
}

func TestDoPostSync_BadURL(t *testing.T) {
	if _, _, err := DoPostSync[completionBody](context.Background(), nil, " not-a-url", "", nil); err == nil {
		t.Fatal("expected a request construction error")
	}
}

// ========== CloseWithLog ==========

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("already closed") }

func TestCloseWithLog_SwallowsCloseError(t *testing.T) {
	// Must only log; the primary error path owns the return value.
	CloseWithLog(failingCloser{})
}
