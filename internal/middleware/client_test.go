package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func captureClientID(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := ClientIDFromContext(r.Context())
		if err == nil {
			*got = id
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestClientMiddleware_IssuesClientIDWhenMissing(t *testing.T) {
	var got string
	handler := NewClientMiddleware(ClientConfig{MaxAge: 3600})(captureClientID(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("コンテキストのクライアントIDがUUIDではない: %q", got)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == ClientCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("クライアントID Cookieが設定されていない")
	}
	if cookie.Value != got {
		t.Errorf("Cookie値 = %q, コンテキスト = %q", cookie.Value, got)
	}
	if !cookie.HttpOnly {
		t.Error("クライアントID CookieはHttpOnlyであるべき")
	}
	if cookie.MaxAge != 3600 {
		t.Errorf("MaxAge = %d, want 3600", cookie.MaxAge)
	}
}

func TestClientMiddleware_ReusesValidCookie(t *testing.T) {
	id := uuid.NewString()
	var got string
	handler := NewClientMiddleware(ClientConfig{})(captureClientID(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: id})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got != id {
		t.Errorf("クライアントID = %q, want %q", got, id)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("有効なCookieがあるのに再発行された")
	}
}

func TestClientMiddleware_ReplacesInvalidCookie(t *testing.T) {
	var got string
	handler := NewClientMiddleware(ClientConfig{})(captureClientID(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: "../../etc/passwd"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got == "../../etc/passwd" {
		t.Fatal("不正なクライアントIDがそのまま使われた")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("再発行されたクライアントIDがUUIDではない: %q", got)
	}
}

func TestClientIDFromContext_NoValue_ReturnsError(t *testing.T) {
	if _, err := ClientIDFromContext(context.Background()); err == nil {
		t.Error("クライアントIDがない場合はエラーを返すべき")
	}
}

func TestContextWithClientID_RoundTrip(t *testing.T) {
	ctx := ContextWithClientID(context.Background(), "client-1")

	got, err := ClientIDFromContext(ctx)
	if err != nil {
		t.Fatalf("ClientIDFromContext がエラーを返した: %v", err)
	}
	if got != "client-1" {
		t.Errorf("got %q, want %q", got, "client-1")
	}
}
