package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/treat_shop/internal/domain"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestAuthenticator(t *testing.T) (*Authenticator, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	a, err := New(Settings{
		AdminPassword: "treats-for-all",
		SessionSecret: []byte("test-session-secret"),
		CookieSecure:  true,
	}, WithClock(clock.Now))
	require.NoError(t, err)
	return a, clock
}

func TestNew_RequiresSecrets(t *testing.T) {
	_, err := New(Settings{AdminPassword: "x"})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	_, err = New(Settings{SessionSecret: []byte("s")})
	assert.Error(t, err)
}

func TestAuthenticator_Login(t *testing.T) {
	a, clock := newTestAuthenticator(t)
	ctx := context.Background()

	t.Run("empty password", func(t *testing.T) {
		_, err := a.Login(ctx, "")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := a.Login(ctx, "treats-for-al")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("correct password", func(t *testing.T) {
		s, err := a.Login(ctx, "treats-for-all")
		require.NoError(t, err)
		assert.NotEmpty(t, s.Token)
		assert.Equal(t, clock.now.Add(24*time.Hour), s.ExpiresAt)
		assert.NoError(t, a.Verify(s.Token))
	})
}

func TestAuthenticator_VerifyExpiry(t *testing.T) {
	a, clock := newTestAuthenticator(t)

	s, err := a.Login(context.Background(), "treats-for-all")
	require.NoError(t, err)

	clock.now = clock.now.Add(24 * time.Hour)
	require.NoError(t, a.Verify(s.Token))

	clock.now = clock.now.Add(time.Second)
	assert.ErrorIs(t, a.Verify(s.Token), domain.ErrUnauthorized)
}

func TestAuthenticator_VerifyRejectsForeignSecret(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	other, err := New(Settings{AdminPassword: "treats-for-all", SessionSecret: []byte("another")})
	require.NoError(t, err)

	s, err := other.Login(context.Background(), "treats-for-all")
	require.NoError(t, err)

	assert.ErrorIs(t, a.Verify(s.Token), domain.ErrUnauthorized)
	assert.ErrorIs(t, a.Verify(""), domain.ErrUnauthorized)
	assert.ErrorIs(t, a.Verify("a:b:c"), domain.ErrUnauthorized)
}

func TestAuthenticator_Cookies(t *testing.T) {
	a, _ := newTestAuthenticator(t)

	s, err := a.Login(context.Background(), "treats-for-all")
	require.NoError(t, err)

	ck := a.Cookie(s)
	assert.Equal(t, CookieName, ck.Name)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	assert.Equal(t, s.ExpiresAt, ck.Expires)

	cleared := a.ClearCookie()
	assert.Equal(t, -1, cleared.MaxAge)
	assert.Empty(t, cleared.Value)
}

func TestRequireAdmin(t *testing.T) {
	a, _ := newTestAuthenticator(t)
	s, err := a.Login(context.Background(), "treats-for-all")
	require.NoError(t, err)

	tests := []struct {
		name       string
		cookie     *http.Cookie
		wantStatus int
		wantCalled bool
	}{
		{name: "no cookie", wantStatus: http.StatusUnauthorized},
		{name: "garbage cookie", cookie: &http.Cookie{Name: CookieName, Value: "nope"}, wantStatus: http.StatusUnauthorized},
		{name: "valid session", cookie: a.Cookie(s), wantStatus: http.StatusOK, wantCalled: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/admin/products", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			called := false
			h := a.RequireAdmin(func(c echo.Context) error {
				called = true
				return c.NoContent(http.StatusOK)
			})

			require.NoError(t, h(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
		})
	}
}
