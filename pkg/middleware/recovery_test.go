package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/unioneyes/warden/pkg/observability"
)

func TestRecovery(t *testing.T) {
	t.Run("converts panic to 500", func(t *testing.T) {
		var buf bytes.Buffer
		logger := observability.NewLogger(observability.ErrorLevel, &buf)

		handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("kaboom")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/roles", nil))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", w.Code)
		}
		body := w.Body.String()
		if body != `{"error":"internal server error"}` {
			t.Errorf("unexpected body: %s", body)
		}
		contentType := w.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}
	})

	t.Run("logs the panic with request context", func(t *testing.T) {
		var buf bytes.Buffer
		logger := observability.NewLogger(observability.ErrorLevel, &buf)

		handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("kaboom")
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/roles", nil))

		entries := parseLogLines(t, &buf)
		if len(entries) != 1 {
			t.Fatalf("expected 1 log line, got %d", len(entries))
		}
		entry := entries[0]
		if entry["msg"] != "PANIC recovered" {
			t.Errorf("expected msg 'PANIC recovered', got %v", entry["msg"])
		}
		if entry["panic"] != "kaboom" {
			t.Errorf("expected panic value, got %v", entry["panic"])
		}
		if entry["context"] != "GET /api/v1/roles" {
			t.Errorf("expected request context, got %v", entry["context"])
		}
		stack, _ := entry["stack"].(string)
		if !strings.Contains(stack, "goroutine") {
			t.Error("expected stack trace in log line")
		}
	})

	t.Run("passes non-panicking requests through", func(t *testing.T) {
		var buf bytes.Buffer
		logger := observability.NewLogger(observability.ErrorLevel, &buf)

		handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
		if w.Body.String() != "ok" {
			t.Errorf("unexpected body: %s", w.Body.String())
		}
		if buf.Len() != 0 {
			t.Errorf("expected no log output, got %s", buf.String())
		}
	})
}
