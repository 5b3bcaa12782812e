package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/uxtemplate/internal/model"
)

func findCSRFCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == csrfCookieName {
			return c
		}
	}
	return nil
}

func TestCSRFMiddleware_SafeMethods_PassThroughWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			called := false
			handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(method, "/api/records/tasks", nil))

			if !called {
				t.Fatalf("%s はトークンなしで通過すべき", method)
			}
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
		})
	}
}

func TestCSRFMiddleware_StateChange_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		method string
		cookie string
		header string
	}{
		{name: "POSTでCookieなし", method: http.MethodPost, header: "tok"},
		{name: "POSTでヘッダーなし", method: http.MethodPost, cookie: "tok"},
		{name: "POSTで不一致", method: http.MethodPost, cookie: "tok", header: "other"},
		{name: "PUTでトークンなし", method: http.MethodPut},
		{name: "PATCHでトークンなし", method: http.MethodPatch},
		{name: "DELETEでトークンなし", method: http.MethodDelete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("検証に失敗したリクエストがハンドラーに到達した")
			}))

			req := httptest.NewRequest(tt.method, "/api/records/tasks/0", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if body.Code != model.ErrCodeCSRFInvalid {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeCSRFInvalid)
			}
		})
	}
}

func TestCSRFMiddleware_StateChange_ValidToken_PassesThrough(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			called := false
			handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(method, "/api/records/tasks/0", nil)
			req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "valid-token"})
			req.Header.Set(csrfHeaderName, "valid-token")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if !called || w.Code != http.StatusNoContent {
				t.Errorf("called = %v, status = %d; want handler called with 204", called, w.Code)
			}
		})
	}
}

func TestCheckCSRF_Reasons(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
	if got := checkCSRF(req); got != "missing cookie token" {
		t.Errorf("checkCSRF = %q, want missing cookie token", got)
	}

	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "a"})
	if got := checkCSRF(req); got != "missing header token" {
		t.Errorf("checkCSRF = %q, want missing header token", got)
	}

	req.Header.Set(csrfHeaderName, "b")
	if got := checkCSRF(req); got != "token mismatch" {
		t.Errorf("checkCSRF = %q, want token mismatch", got)
	}

	req.Header.Set(csrfHeaderName, "a")
	if got := checkCSRF(req); got != "" {
		t.Errorf("checkCSRF = %q, want empty", got)
	}
}

func TestCSRFMiddleware_GETRequest_SetsCSRFCookie(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{CookieDomain: "example.com"})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/view", nil))

	c := findCSRFCookie(w.Result())
	if c == nil {
		t.Fatal("expected CSRF cookie to be set on GET request")
	}
	if len(c.Value) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(c.Value))
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want %v", c.SameSite, http.SameSiteLaxMode)
	}
	if c.HttpOnly {
		t.Error("CSRF cookie should NOT be HttpOnly (frontend needs to read it)")
	}
	if c.Path != "/" {
		t.Errorf("Path = %q, want %q", c.Path, "/")
	}
	if c.MaxAge != defaultCSRFMaxAge {
		t.Errorf("MaxAge = %d, want %d", c.MaxAge, defaultCSRFMaxAge)
	}
}

func TestCSRFMiddleware_CustomMaxAgeAndSecure(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{CookieSecure: true, MaxAge: 3600})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/view", nil))

	c := findCSRFCookie(w.Result())
	if c == nil {
		t.Fatal("expected CSRF cookie")
	}
	if c.MaxAge != 3600 || !c.Secure {
		t.Errorf("MaxAge = %d, Secure = %v; want 3600, true", c.MaxAge, c.Secure)
	}
}

func TestCSRFMiddleware_GETRequest_ExistingCookie_DoesNotReplace(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if findCSRFCookie(w.Result()) != nil {
		t.Error("CSRF cookie should not be re-set when already present")
	}
}

func TestCSRFTokenHandler_SetsTokenCookieAndReturnsJSON(t *testing.T) {
	w := httptest.NewRecorder()
	NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body CSRFTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token == "" {
		t.Error("expected non-empty token in response")
	}
	if body.Header != "X-CSRF-Token" {
		t.Errorf("header = %q, want X-CSRF-Token", body.Header)
	}

	c := findCSRFCookie(resp)
	if c == nil {
		t.Fatal("expected CSRF cookie to be set")
	}
	if c.Value != body.Token {
		t.Errorf("cookie value = %q, response token = %q; should match", c.Value, body.Token)
	}
}

func TestCSRFTokenHandler_ExistingCookie_ReturnsSameToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-csrf-token"})
	w := httptest.NewRecorder()
	NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, req)

	var body CSRFTokenResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token != "existing-csrf-token" {
		t.Errorf("token = %q, want %q", body.Token, "existing-csrf-token")
	}
	if findCSRFCookie(w.Result()) != nil {
		t.Error("既存のトークンがある場合はCookieを再設定しない")
	}
}
