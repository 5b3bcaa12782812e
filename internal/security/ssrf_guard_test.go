package security

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testPolicy() OutboundPolicy {
	return OutboundPolicy{Timeout: 5 * time.Second, MaxResponseBytes: 1 << 20}
}

// roundTripFunc は関数をhttp.RoundTripperとして使うためのアダプタ。
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func bodyResponse(body string, contentLength int64) roundTripFunc {
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode:    http.StatusOK,
			Body:          io.NopCloser(strings.NewReader(body)),
			ContentLength: contentLength,
		}, nil
	}
}

func TestNewSafeClient_TimeoutAndTransport(t *testing.T) {
	client := NewSSRFGuard(testPolicy()).NewSafeClient()

	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout %v, got %v", 5*time.Second, client.Timeout)
	}
	if _, ok := client.Transport.(*guardedTransport); !ok {
		t.Fatalf("Transport = %T, want *guardedTransport", client.Transport)
	}
}

// TestNewSafeClientBlocksLoopback はhttptestサーバー（127.0.0.1）への接続が拒否されることを検証する。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard(testPolicy()).NewSafeClient()
	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestNewSafeClient_RejectsHostOutsideAllowList(t *testing.T) {
	policy := testPolicy()
	policy.AllowedHosts = GoogleIdentityHosts
	client := NewSSRFGuard(policy).NewSafeClient()

	_, err := client.Get("https://example.com/userinfo")
	if !errors.Is(err, ErrHostNotAllowed) {
		t.Errorf("err = %v, want ErrHostNotAllowed", err)
	}
}

func TestGuardedTransport_LimitsResponseBody(t *testing.T) {
	guard := NewSSRFGuard(OutboundPolicy{MaxResponseBytes: 8})
	req := httptest.NewRequest(http.MethodGet, "https://www.googleapis.com/oauth2/v3/userinfo", nil)

	tests := []struct {
		name          string
		body          string
		contentLength int64
		wantErr       bool
	}{
		{name: "上限未満", body: "{}", contentLength: 2},
		{name: "上限ちょうど", body: "12345678", contentLength: -1},
		{name: "長さ不明で超過", body: "123456789", contentLength: -1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &guardedTransport{base: bodyResponse(tt.body, tt.contentLength), guard: guard}
			resp, err := tr.RoundTrip(req)
			if err != nil {
				t.Fatalf("RoundTrip がエラーを返した: %v", err)
			}
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			if tt.wantErr {
				if !errors.Is(err, ErrResponseTooLarge) {
					t.Errorf("err = %v, want ErrResponseTooLarge", err)
				}
				return
			}
			if err != nil || string(data) != tt.body {
				t.Errorf("ReadAll = %q, %v; want %q", data, err, tt.body)
			}
		})
	}
}

func TestGuardedTransport_RejectsDeclaredOversize(t *testing.T) {
	guard := NewSSRFGuard(OutboundPolicy{MaxResponseBytes: 8})
	tr := &guardedTransport{base: bodyResponse("123456789", 9), guard: guard}

	_, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "https://oauth2.googleapis.com/token", nil))
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Errorf("err = %v, want ErrResponseTooLarge", err)
	}
}

func TestValidateURL_Allowed(t *testing.T) {
	guard := NewSSRFGuard(testPolicy())
	for _, u := range []string{
		"https://lh3.googleusercontent.com/a/avatar.png",
		"https://www.googleapis.com/oauth2/v3/userinfo",
		"http://8.8.8.8/avatar.png",
	} {
		if err := guard.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", u, err)
		}
	}
}

func TestValidateURL_Blocked(t *testing.T) {
	guard := NewSSRFGuard(testPolicy())
	tests := []struct {
		name string
		url  string
	}{
		{"private 10/8", "http://10.0.0.1/avatar.png"},
		{"private 172.16/12", "http://172.31.255.255/avatar.png"},
		{"private 192.168/16", "http://192.168.1.100/avatar.png"},
		{"CGNAT", "http://100.64.0.1/avatar.png"},
		{"loopback", "http://127.0.0.2/avatar.png"},
		{"localhost", "http://localhost/avatar.png"},
		{"localhost subdomain", "http://api.localhost/avatar.png"},
		{"link-local", "http://169.254.0.1/avatar.png"},
		{"metadata IP", "http://169.254.169.254/computeMetadata/v1/"},
		{"metadata host", "http://metadata.google.internal/computeMetadata/v1/"},
		{"zero address", "http://0.0.0.0/avatar.png"},
		{"IPv6 loopback", "http://[::1]/avatar.png"},
		{"IPv4-mapped loopback", "http://[::ffff:127.0.0.1]/avatar.png"},
		{"IPv6 unique local", "http://[fd00::1]/avatar.png"},
		{"empty", ""},
		{"ftp scheme", "ftp://example.com/avatar.png"},
		{"javascript scheme", "javascript:alert(1)"},
		{"data scheme", "data:image/png;base64,AAAA"},
		{"no host", "http:///avatar.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateURL(tt.url); err == nil {
				t.Errorf("ValidateURL(%q) should have returned error", tt.url)
			}
		})
	}
}

func TestValidateURL_AllowList(t *testing.T) {
	policy := testPolicy()
	policy.AllowedHosts = GoogleIdentityHosts
	guard := NewSSRFGuard(policy)

	if err := guard.ValidateURL("https://lh3.googleusercontent.com/a/avatar.png"); err != nil {
		t.Errorf("許可リストのサブドメインを拒否した: %v", err)
	}
	if err := guard.ValidateURL("https://googleusercontent.com.evil.example/a.png"); !errors.Is(err, ErrHostNotAllowed) {
		t.Errorf("err = %v, want ErrHostNotAllowed", err)
	}
}
