package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bizdir/bizdir/internal/auth"
	"github.com/bizdir/bizdir/internal/config"
	"github.com/bizdir/bizdir/internal/db/models"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "web.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	cfg := &config.Config{
		Title: "bizdir-test",
		Auth: config.Auth{
			JWTSecret: "web-test-secret",
			TokenTTL:  time.Hour,
			Issuer:    "bizdir",
		},
		Webserver: config.Webserver{FastShutDown: true},
	}

	s, err := New(cfg, db)
	require.NoError(t, err)

	return s, db
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), string(body))

	return out
}

func TestNew_NilDependencies(t *testing.T) {
	_, err := New(nil, nil)
	require.ErrorIs(t, err, ErrNilDependency)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "nil.db")), &gorm.Config{})
	require.NoError(t, err)

	_, err = New(&config.Config{}, db)
	require.Error(t, err, "an empty jwt secret must be rejected")
}

func TestCheckAlive(t *testing.T) {
	s, _ := newTestService(t)

	resp, err := s.App.Test(httptest.NewRequest(http.MethodGet, CheckAlivePath, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "not alive before Start")

	s.alive.Store(true)

	resp, err = s.App.Test(httptest.NewRequest(http.MethodGet, CheckAlivePath, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	s, _ := newTestService(t)

	// one decision so the auth counter is registered with a sample
	resp, err := s.App.Test(httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = s.App.Test(httptest.NewRequest(http.MethodGet, MetricsPath, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "bizdir_auth_decisions_total")
}

func TestRoutesAreWired(t *testing.T) {
	s, db := newTestService(t)

	_, err := auth.NewStore(db).CreateUser(t.Context(), auth.NewUser{
		Username: "root",
		Password: "root-password",
		Role:     models.RoleAdmin,
		Active:   true,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"root","password":"root-password"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, ok := decode(t, resp)["data"].(map[string]any)
	require.True(t, ok)

	bearer := "Bearer " + data["token"].(string)

	tests := []struct {
		name   string
		method string
		path   string
		auth   bool
		want   int
	}{
		{name: "users without token", method: http.MethodGet, path: "/api/admin/users", want: http.StatusUnauthorized},
		{name: "users as admin", method: http.MethodGet, path: "/api/admin/users", auth: true, want: http.StatusOK},
		{name: "businesses anonymous", method: http.MethodGet, path: "/api/businesses", want: http.StatusOK},
		{name: "verify", method: http.MethodGet, path: "/auth/verify", auth: true, want: http.StatusOK},
		{name: "unknown route", method: http.MethodGet, path: "/nope", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth {
				r.Header.Set("Authorization", bearer)
			}

			resp, err := s.App.Test(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestShutdown(t *testing.T) {
	s, _ := newTestService(t)
	s.alive.Store(true)

	s.Shutdown()
	assert.False(t, s.alive.Load())
}
