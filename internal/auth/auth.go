package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/treat_shop/internal/domain"
	"github.com/Skotchmaster/treat_shop/pkg/hash"
	"github.com/Skotchmaster/treat_shop/pkg/logging"
	"github.com/Skotchmaster/treat_shop/pkg/tokens"
)

const (
	CookieName      = "admin_session"
	SessionDuration = 24 * time.Hour
)

type Settings struct {
	AdminPassword string
	SessionSecret []byte
	CookieSecure  bool
}

type Authenticator struct {
	passwordHash []byte
	secret       []byte
	secure       bool
	now          func() time.Time
}

type Option func(*Authenticator)

func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

type Session struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func New(s Settings, opts ...Option) (*Authenticator, error) {
	if len(s.SessionSecret) == 0 {
		return nil, fmt.Errorf("auth: session secret is empty: %w", domain.ErrNotConfigured)
	}
	pwHash, err := hash.HashSecret(s.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("auth: admin password: %w", err)
	}

	a := &Authenticator{
		passwordHash: pwHash,
		secret:       s.SessionSecret,
		secure:       s.CookieSecure,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Authenticator) Login(ctx context.Context, password string) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if password == "" {
		return nil, fmt.Errorf("password is required: %w", domain.ErrValidation)
	}
	if !hash.CheckSecret(a.passwordHash, password) {
		l.Warn("login_failed", "reason", "password mismatch")
		return nil, domain.ErrInvalidCredentials
	}

	payload, err := tokens.NewPayload()
	if err != nil {
		return nil, err
	}
	issued := a.now()
	signed, err := tokens.SignSession(payload, issued, a.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	return &Session{
		Token:     signed,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(SessionDuration),
	}, nil
}

// Verify fails closed: every parse, signature or age problem is reported as
// ErrUnauthorized with the cause attached.
func (a *Authenticator) Verify(token string) error {
	if token == "" {
		return domain.ErrUnauthorized
	}
	if _, err := tokens.SessionFromToken(token, a.secret, a.now(), SessionDuration); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	return nil
}
