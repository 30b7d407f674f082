package login

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bizdir/bizdir/internal/auth"
	"github.com/bizdir/bizdir/internal/db/models"
	"github.com/bizdir/bizdir/internal/token"
	"github.com/bizdir/bizdir/internal/web/handler"
)

// countingTokens records how often the token service is asked to issue.
type countingTokens struct {
	*token.Service
	issued atomic.Int32
}

func (c *countingTokens) Issue(userID uint64) (string, error) {
	c.issued.Add(1)
	return c.Service.Issue(userID)
}

type testEnv struct {
	app    *fiber.App
	store  *auth.Store
	tokens *countingTokens
	clock  *time.Time
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err, "failed to open sqlite db")
	require.NoError(t, db.AutoMigrate(&models.User{}), "failed to migrate user model")

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	now := time.Now()
	env := &testEnv{clock: &now}

	ts, err := token.New("login-test-secret", 8*time.Hour, token.WithClock(func() time.Time { return *env.clock }))
	require.NoError(t, err)

	env.store = auth.NewStore(newTestDB(t))
	env.tokens = &countingTokens{Service: ts}

	svc := auth.NewService(env.store, env.tokens)
	env.app = fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler})

	require.NoError(t, New(svc, auth.NewMiddleware(svc), env.store).Init(env.app))

	return env
}

func (e *testEnv) createUser(t *testing.T, in auth.NewUser) *models.User {
	t.Helper()

	u, err := e.store.CreateUser(t.Context(), in)
	require.NoError(t, err)

	return u
}

func (e *testEnv) do(t *testing.T, method, target, bearer string, body any) (int, handler.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = strings.NewReader(string(raw))
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out handler.Response
	require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)

	return resp.StatusCode, out, raw
}

type loginEnvelope struct {
	Success bool   `json:"success"`
	Data    Result `json:"data"`
}

func (e *testEnv) login(t *testing.T, username, password string) Result {
	t.Helper()

	status, _, raw := e.do(t, http.MethodPost, "/auth/login", "", Credentials{Username: username, Password: password})
	require.Equal(t, http.StatusOK, status, "body: %s", raw)

	var env loginEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.True(t, env.Success)

	return env.Data
}

func TestLogin_AdminGetsUniversalCapabilities(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, auth.NewUser{
		Username:    "admin",
		Password:    "changeme-please",
		Role:        models.RoleAdmin,
		Permissions: []string{auth.CapMapView},
		Active:      true,
	})

	res := env.login(t, "admin", "changeme-please")

	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "admin", res.User.Username)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	assert.True(t, res.User.Capabilities.Universal())
	assert.True(t, res.User.Capabilities.Has("probe.never.granted"))
	assert.NotNil(t, res.User.LastLoginAt)
}

func TestLogin_ResponseNeverContainsHash(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, auth.NewUser{Username: "bob", Password: "bob-password", Active: true})

	status, _, raw := env.do(t, http.MethodPost, "/auth/login", "", Credentials{Username: "bob", Password: "bob-password"})
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(raw), u.Password)
	assert.NotContains(t, string(raw), "argon2id")
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, auth.NewUser{Username: "alice", Password: "alice-secret", Active: true})
	env.createUser(t, auth.NewUser{Username: "carol", Password: "carol-secret", Active: false})

	tests := []struct {
		name       string
		creds      Credentials
		wantStatus int
		wantCode   string
	}{
		{"empty password", Credentials{Username: "admin superlong", Password: ""}, http.StatusUnauthorized, handler.CodeInvalidCredentials},
		{"empty username", Credentials{Username: "  ", Password: "x"}, http.StatusUnauthorized, handler.CodeInvalidCredentials},
		{"unknown user", Credentials{Username: "nobody", Password: "x"}, http.StatusUnauthorized, handler.CodeInvalidCredentials},
		{"wrong password", Credentials{Username: "alice", Password: "nope"}, http.StatusUnauthorized, handler.CodeInvalidCredentials},
		{"inactive user", Credentials{Username: "carol", Password: "carol-secret"}, http.StatusUnauthorized, string(auth.CodeUserInactive)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := env.tokens.issued.Load()

			status, out, _ := env.do(t, http.MethodPost, "/auth/login", "", tt.creds)

			assert.Equal(t, tt.wantStatus, status)
			assert.False(t, out.Success)
			assert.Equal(t, tt.wantCode, out.Error)
			assert.NotEmpty(t, out.Message)
			assert.Equal(t, before, env.tokens.issued.Load(), "no token may be issued")
		})
	}
}

func TestLogin_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerify(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, auth.NewUser{Username: "alice", Password: "alice-secret", Active: true})

	res := env.login(t, "alice", "alice-secret")

	status, out, _ := env.do(t, http.MethodGet, "/auth/verify", res.Token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, out.Success)

	status, out, _ = env.do(t, http.MethodGet, "/auth/verify", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(auth.CodeNoToken), out.Error)

	status, out, _ = env.do(t, http.MethodGet, "/auth/verify", res.Token+"x", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(auth.CodeInvalidToken), out.Error)

	*env.clock = env.clock.Add(9 * time.Hour)

	status, out, _ = env.do(t, http.MethodGet, "/auth/verify", res.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(auth.CodeExpiredToken), out.Error)
}

func TestVerify_DeactivatedAfterLogin(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, auth.NewUser{Username: "dave", Password: "dave-secret", Active: true})

	res := env.login(t, "dave", "dave-secret")
	require.NoError(t, env.store.SetActive(t.Context(), u.ID, false))

	status, out, _ := env.do(t, http.MethodGet, "/auth/verify", res.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(auth.CodeUserInactive), out.Error)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, auth.NewUser{
		Username:    "erin",
		Password:    "erin-secret",
		Permissions: []string{auth.CapBusinessRead, auth.CapMapView},
		Active:      true,
	})

	res := env.login(t, "erin", "erin-secret")

	status, _, raw := env.do(t, http.MethodGet, "/auth/me", res.Token, nil)
	require.Equal(t, http.StatusOK, status)

	var me struct {
		Data struct {
			Username     string            `json:"username"`
			Capabilities auth.Capabilities `json:"capabilities"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &me))

	assert.Equal(t, "erin", me.Data.Username)
	assert.True(t, me.Data.Capabilities.Equal(auth.Of(auth.CapMapView, auth.CapBusinessRead)))
}

func TestLogout_IsAlwaysAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, auth.NewUser{Username: "frank", Password: "frank-secret", Active: true})

	res := env.login(t, "frank", "frank-secret")

	for _, bearer := range []string{res.Token, "", "garbage"} {
		status, out, _ := env.do(t, http.MethodPost, "/auth/logout", bearer, nil)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, out.Success)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, auth.NewUser{Username: "gina", Password: "gina-secret", Active: true})

	res := env.login(t, "gina", "gina-secret")

	status, out, _ := env.do(t, http.MethodPost, "/auth/password", res.Token,
		PasswordChange{OldPassword: "wrong", NewPassword: "a-new-password"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, handler.CodeValidation, out.Error)

	status, out, _ = env.do(t, http.MethodPost, "/auth/password", res.Token,
		PasswordChange{OldPassword: "gina-secret", NewPassword: "short"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, handler.CodeValidation, out.Error)

	status, _, _ = env.do(t, http.MethodPost, "/auth/password", res.Token,
		PasswordChange{OldPassword: "gina-secret", NewPassword: "a-new-password"})
	require.Equal(t, http.StatusOK, status)

	env.login(t, "gina", "a-new-password")

	status, _, _ = env.do(t, http.MethodPost, "/auth/login", "", Credentials{Username: "gina", Password: "gina-secret"})
	assert.Equal(t, http.StatusUnauthorized, status)
}
