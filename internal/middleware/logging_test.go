package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// serveLogged はhandlerをロギングミドルウェアで包んでreqを処理し、出力されたログエントリを返す。
func serveLogged(t *testing.T, handler http.Handler, req *http.Request) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	NewLoggingMiddleware(logger)(handler).ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

// TestLoggingMiddleware_LogsRequestFields はリクエストログに必要なフィールドが含まれることを検証する。
func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	entry := serveLogged(t, statusHandler(http.StatusOK), httptest.NewRequest(http.MethodGet, "/api/records/tasks", nil))

	if entry["msg"] != "http_request" {
		t.Errorf("msg = %q, want %q", entry["msg"], "http_request")
	}
	if entry["method"] != "GET" {
		t.Errorf("method = %q, want %q", entry["method"], "GET")
	}
	if entry["path"] != "/api/records/tasks" {
		t.Errorf("path = %q, want %q", entry["path"], "/api/records/tasks")
	}
	if status, ok := entry["status"].(float64); !ok || status != 200 {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if duration, ok := entry["duration_ms"].(float64); !ok || duration < 0 {
		t.Errorf("duration_ms = %v, want >= 0", entry["duration_ms"])
	}
}

// TestLoggingMiddleware_IncludesClientID はクライアントIDがログに含まれることを検証する。
func TestLoggingMiddleware_IncludesClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/records/tasks", nil)
	req = req.WithContext(ContextWithClientID(req.Context(), "client-123"))

	entry := serveLogged(t, statusHandler(http.StatusOK), req)
	if entry["client_id"] != "client-123" {
		t.Errorf("client_id = %q, want %q", entry["client_id"], "client-123")
	}
}

// TestLoggingMiddleware_NoClientID_OmitsField は初回リクエストではclient_idを出力しないことを検証する。
func TestLoggingMiddleware_NoClientID_OmitsField(t *testing.T) {
	entry := serveLogged(t, statusHandler(http.StatusOK), httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if val, ok := entry["client_id"]; ok {
		t.Errorf("client_id should be omitted for a first request, got %q", val)
	}
}

// TestLoggingMiddleware_ClientIDFromCookie はクライアントIDミドルウェアより外側でもCookieからIDを記録することを検証する。
func TestLoggingMiddleware_ClientIDFromCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: "cookie-client"})

	entry := serveLogged(t, statusHandler(http.StatusOK), req)
	if entry["client_id"] != "cookie-client" {
		t.Errorf("client_id = %q, want %q", entry["client_id"], "cookie-client")
	}
}

// TestLoggingMiddleware_StatusAndLevel はステータスコードとログレベルの対応を検証する。
func TestLoggingMiddleware_StatusAndLevel(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusCreated, "INFO"},
		{http.StatusNoContent, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusNotFound, "WARN"},
		{http.StatusServiceUnavailable, "ERROR"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			entry := serveLogged(t, statusHandler(tt.status), httptest.NewRequest(http.MethodGet, "/api/stats", nil))

			if status := int(entry["status"].(float64)); status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
			if entry["level"] != tt.level {
				t.Errorf("level = %q, want %q", entry["level"], tt.level)
			}
		})
	}
}

// TestLoggingMiddleware_ImplicitStatusAndBytes はWriteHeaderなしの書き込みで200とバイト数が記録されることを検証する。
func TestLoggingMiddleware_ImplicitStatusAndBytes(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"kind":"tasks"}`))
	})

	entry := serveLogged(t, handler, httptest.NewRequest(http.MethodGet, "/api/records/tasks", nil))

	if status := int(entry["status"].(float64)); status != 200 {
		t.Errorf("status = %d, want 200", status)
	}
	if n := int(entry["bytes"].(float64)); n != len(`{"kind":"tasks"}`) {
		t.Errorf("bytes = %d, want %d", n, len(`{"kind":"tasks"}`))
	}
}

// TestLoggingMiddleware_RecordsRoutePattern はchiのルートパターンがrouteとして記録されることを検証する。
func TestLoggingMiddleware_RecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(logger))
	r.Delete("/api/records/{kind}/{index}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/records/tasks/2", nil))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}
	if entry["route"] != "/api/records/{kind}/{index}" {
		t.Errorf("route = %q, want %q", entry["route"], "/api/records/{kind}/{index}")
	}
	if entry["path"] != "/api/records/tasks/2" {
		t.Errorf("path = %q, want %q", entry["path"], "/api/records/tasks/2")
	}
}
