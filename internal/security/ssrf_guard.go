package security

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

var (
	// ErrResponseTooLarge はIdPの応答が上限サイズを超えたことを示す。
	ErrResponseTooLarge = errors.New("response body exceeds limit")
	// ErrHostNotAllowed は接続先ホストが許可リストに含まれないことを示す。
	ErrHostNotAllowed = errors.New("host is not allowed")
)

// GoogleIdentityHosts はGoogle OAuthのトークン交換、ユーザー情報取得、
// プロフィール画像の配信に使われるホスト（サブドメインを含む）。
var GoogleIdentityHosts = []string{
	"accounts.google.com",
	"googleapis.com",
	"googleusercontent.com",
}

// OutboundPolicy はIdPへの外向き通信に適用する制限。
type OutboundPolicy struct {
	Timeout          time.Duration
	MaxResponseBytes int64 // 0の場合は無制限
	// AllowedHosts が空でない場合、ホスト名がいずれかと一致するか、
	// そのサブドメインであるURLだけを許可する。
	AllowedHosts []string
}

// SSRFGuardService はIdPとの通信と、IdPから受け取ったプロフィール画像URLの検証に使用する。
type SSRFGuardService interface {
	// NewSafeClient はプライベートIP、ループバック、リンクローカル、メタデータIPへの
	// 接続をDNS解決後に拒否するHTTPクライアントを生成する。
	NewSafeClient() *http.Client

	// ValidateURL はDNS解決を伴わない静的な検証を行い、危険なURLの場合はエラーを返す。
	ValidateURL(rawURL string) error
}

var allowedSchemes = []string{"http", "https"}

// blockedPrefixes はValidateURLで拒否するIPアドレス範囲。
// IPv4射影IPv6アドレスはUnmapしてから照合する。
var blockedPrefixes = mustParsePrefixes(
	"10.0.0.0/8",     // RFC 1918
	"172.16.0.0/12",  // RFC 1918
	"192.168.0.0/16", // RFC 1918
	"100.64.0.0/10",  // CGNAT
	"127.0.0.0/8",    // ループバック
	"169.254.0.0/16", // リンクローカル（169.254.169.254を含む）
	"0.0.0.0/8",      // カレントネットワーク
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

// blockedHostnames はIPアドレスを含まないが内部に解決されるホスト名。
var blockedHostnames = []string{
	"localhost",
	"metadata.google.internal",
}

func mustParsePrefixes(cidrs ...string) []netip.Prefix {
	prefixes := make([]netip.Prefix, len(cidrs))
	for i, cidr := range cidrs {
		prefixes[i] = netip.MustParsePrefix(cidr)
	}
	return prefixes
}

// SSRFGuard はSSRFGuardServiceの実装。
type SSRFGuard struct {
	policy OutboundPolicy
}

// NewSSRFGuard はpolicyに従うSSRFGuardを生成する。
func NewSSRFGuard(policy OutboundPolicy) *SSRFGuard {
	return &SSRFGuard{policy: policy}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// 接続先IPの検証はsafeurlがnet.DialerのControlフックで行うため、DNS再バインディングにも効く。
// その外側でホストの許可リストと応答サイズの上限を適用する。
func (g *SSRFGuard) NewSafeClient() *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(g.policy.Timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	client := safeurl.Client(config).Client
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = &guardedTransport{base: base, guard: g}
	return client
}

// ValidateURL はURLの安全性を事前に検証する。
// プロフィール画像URLをidentityに保存する前に使用する。
func (g *SSRFGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("blocked IP address: %s", addr)
			}
		}
		return nil
	}

	for _, blocked := range blockedHostnames {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return fmt.Errorf("blocked host: %s", host)
		}
	}

	if !g.hostAllowed(host) {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}
	return nil
}

func (g *SSRFGuard) hostAllowed(host string) bool {
	if len(g.policy.AllowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, allowed := range g.policy.AllowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// guardedTransport はリダイレクト先を含む全リクエストにホストの許可リストを適用し、
// 応答ボディをMaxResponseBytesで打ち切る。
type guardedTransport struct {
	base  http.RoundTripper
	guard *SSRFGuard
}

func (t *guardedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.guard.hostAllowed(req.URL.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, req.URL.Hostname())
	}

	resp, err := t.base.RoundTrip(req)
	limit := t.guard.policy.MaxResponseBytes
	if err != nil || limit <= 0 {
		return resp, err
	}
	if resp.ContentLength > limit {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, resp.ContentLength)
	}
	resp.Body = &limitedBody{rc: resp.Body, remaining: limit}
	return resp, nil
}

// limitedBody は上限を超えて読もうとした時点でErrResponseTooLargeを返す。
type limitedBody struct {
	rc        io.ReadCloser
	remaining int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		// 上限ちょうどで終わる応答は許可する
		var peek [1]byte
		n, err := b.rc.Read(peek[:])
		if n > 0 {
			return 0, ErrResponseTooLarge
		}
		return 0, err
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.rc.Read(p)
	b.remaining -= int64(n)
	return n, err
}

func (b *limitedBody) Close() error {
	return b.rc.Close()
}

// compile-time interface check
var _ SSRFGuardService = (*SSRFGuard)(nil)
