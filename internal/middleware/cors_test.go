package middleware

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func corsRequest(method, origin string) *http.Request {
	req := httptest.NewRequest(method, "/api/records/tasks", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestCORSMiddleware_AllowedOrigin_SetsHeaders(t *testing.T) {
	handler := NewCORSMiddleware("http://localhost:3000")(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, corsRequest(http.MethodGet, "http://localhost:3000"))

	resp := w.Result()
	tests := []struct {
		header string
		want   string
	}{
		{"Access-Control-Allow-Origin", "http://localhost:3000"},
		{"Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS"},
		{"Access-Control-Allow-Headers", "Content-Type, X-CSRF-Token"},
		{"Access-Control-Allow-Credentials", "true"},
		{"Access-Control-Max-Age", "86400"},
		{"Vary", "Origin"},
	}
	for _, tt := range tests {
		if got := resp.Header.Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestCORSMiddleware_UnknownOrigin_NoAllowHeaders(t *testing.T) {
	handler := NewCORSMiddleware("http://localhost:3000")(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, corsRequest(http.MethodGet, "https://evil.example.com"))

	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("許可していないOriginにAccess-Control-Allow-Originを返した: %q", got)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestCORSMiddleware_MultipleOrigins(t *testing.T) {
	handler := NewCORSMiddleware("http://localhost:3000, https://research.example.com/")(okHandler())

	for _, origin := range []string{"http://localhost:3000", "https://research.example.com"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, corsRequest(http.MethodPost, origin))

		if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != origin {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, origin)
		}
	}
}

func TestCORSMiddleware_OptionsRequest_Returns204(t *testing.T) {
	called := false
	handler := NewCORSMiddleware("http://localhost:3000")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, corsRequest(http.MethodOptions, "http://localhost:3000"))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if called {
		t.Error("プリフライトは後続のハンドラーに到達してはならない")
	}
	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
}

func TestParseOrigins(t *testing.T) {
	got := ParseOrigins(" http://a.example.com/ ,,https://b.example.com")
	want := []string{"http://a.example.com", "https://b.example.com"}
	if !slices.Equal(got, want) {
		t.Errorf("ParseOrigins = %v, want %v", got, want)
	}
	if got := ParseOrigins(""); len(got) != 0 {
		t.Errorf("ParseOrigins(\"\") = %v, want empty", got)
	}
}
