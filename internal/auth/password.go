package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/uxtemplate/internal/model"
	"github.com/hitoshi/uxtemplate/internal/repository"
)

// ProviderNamePassword はメールアドレスとパスワードで認証するプロバイダー名。
const ProviderNamePassword = "password"

const (
	minPasswordLength = 6
	// bcryptは72バイトを超える入力を扱えない。
	maxPasswordLength = 72
	passwordIDPrefix  = "password:"
)

// account は永続化するアカウント。パスワードはbcryptハッシュのみ保存する。
type account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash []byte    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PasswordProvider はメールアドレスとパスワードで認証するIdentityProvider。
// アカウントはKeyValueStoreのAccountKeyに保存する。
type PasswordProvider struct {
	store repository.KeyValueStore
	cost  int
	now   func() time.Time
	// 同一プロセス内での同じメールアドレスの二重登録を防ぐ。
	mu sync.Mutex
}

// NewPasswordProvider はPasswordProviderを生成する。costが0以下の場合はbcrypt.DefaultCostを使う。
func NewPasswordProvider(store repository.KeyValueStore, cost int) *PasswordProvider {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordProvider{store: store, cost: cost, now: time.Now}
}

// SignUp は新しいアカウントを登録し、そのidentityを返す。
// displayNameが空の場合はメールアドレスのローカル部を使う。
func (p *PasswordProvider) SignUp(ctx context.Context, email, password, displayName string) (*model.Identity, error) {
	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if n := len(password); n < minPasswordLength || n > maxPasswordLength {
		return nil, fmt.Errorf("%w: password must be %d-%d bytes", model.ErrInvalidAccount, minPasswordLength, maxPasswordLength)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(addr, "@")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := repository.AccountKey(addr)
	if _, found, err := p.store.Get(ctx, key); err != nil {
		return nil, err
	} else if found {
		return nil, model.ErrAccountExists
	}

	acc := account{
		ID:           passwordIDPrefix + uuid.NewString(),
		Email:        addr,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    p.now().UTC(),
	}
	raw, err := json.Marshal(acc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode account: %w", err)
	}
	if err := p.store.Set(ctx, key, raw); err != nil {
		return nil, err
	}
	return acc.identity(), nil
}

// Authenticate はメールアドレスとパスワードを照合する。
// 未登録のメールアドレスと誤ったパスワードは区別しない。
func (p *PasswordProvider) Authenticate(ctx context.Context, cred Credential) (*model.Identity, error) {
	if cred.Email == "" || cred.Password == "" {
		return nil, errors.New("email and password are required")
	}
	addr, err := normalizeEmail(cred.Email)
	if err != nil {
		return nil, errInvalidCredentials
	}

	raw, found, err := p.store.Get(ctx, repository.AccountKey(addr))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errInvalidCredentials
	}
	var acc account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(cred.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	return acc.identity(), nil
}

var errInvalidCredentials = errors.New("invalid email or password")

func (a account) identity() *model.Identity {
	return &model.Identity{
		ID:          a.ID,
		DisplayName: a.DisplayName,
		AvatarRef:   "https://ui-avatars.com/api/?name=" + url.QueryEscape(a.DisplayName) + "&background=4f46e5&color=fff",
	}
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return "", fmt.Errorf("%w: malformed email address", model.ErrInvalidAccount)
	}
	return strings.ToLower(addr.Address), nil
}
