package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSecurityHeaders(t *testing.T) {
	for _, https := range []bool{false, true} {
		w := httptest.NewRecorder()
		NewSecurityHeadersMiddleware(https)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/view", nil))

		for _, kv := range apiSecurityHeaders {
			if got := w.Header().Get(kv[0]); got != kv[1] {
				t.Errorf("https=%v: %s = %q, want %q", https, kv[0], got, kv[1])
			}
		}

		hsts := w.Header().Get("Strict-Transport-Security")
		if https && hsts != hstsValue {
			t.Errorf("HSTS = %q, want %q", hsts, hstsValue)
		}
		if !https && hsts != "" {
			t.Errorf("HTTPでHSTSを付与した: %q", hsts)
		}
	}
}
