package user

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
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

type testEnv struct {
	app    *fiber.App
	store  *auth.Store
	tokens *token.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "admin.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	tokens, err := token.New("admin-test-secret", time.Hour)
	require.NoError(t, err)

	store := auth.NewStore(db)
	svc := auth.NewService(store, tokens)

	app := fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler})
	require.NoError(t, New(store, auth.NewMiddleware(svc)).Init(app))

	return &testEnv{app: app, store: store, tokens: tokens}
}

// account creates a user and returns it with a token.
func (e *testEnv) account(t *testing.T, name string, role models.Role, grants ...string) (*models.User, string) {
	t.Helper()

	u, err := e.store.CreateUser(t.Context(), auth.NewUser{
		Username:    name,
		Password:    name + "-password",
		Role:        role,
		Permissions: grants,
		Active:      true,
	})
	require.NoError(t, err)

	tok, err := e.tokens.Issue(u.ID)
	require.NoError(t, err)

	return u, tok
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, target, bearer, body string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
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

	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return resp.StatusCode, out
}

func TestAccessIsGated(t *testing.T) {
	env := newTestEnv(t)
	_, plain := env.account(t, "plain", models.RoleUser, auth.CapMapView)
	_, manager := env.account(t, "manager", models.RoleUser, auth.CapUsersManage)
	_, admin := env.account(t, "admin", models.RoleAdmin)

	status, out := env.do(t, http.MethodGet, Path, "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(auth.CodeNoToken), out.Error)

	status, out = env.do(t, http.MethodGet, Path, plain, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, string(auth.CodeInsufficientPermissions), out.Error)

	status, _ = env.do(t, http.MethodGet, Path, manager, "")
	assert.Equal(t, http.StatusOK, status)

	status, out = env.do(t, http.MethodGet, Path+"?limit=2", admin, "")
	require.Equal(t, http.StatusOK, status)

	var page struct {
		Items []auth.UserView `json:"items"`
		Total int64           `json:"total"`
		Limit int             `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &page))
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Len(t, page.Items, 2)
}

func TestCreate(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.account(t, "admin", models.RoleAdmin)

	status, out := env.do(t, http.MethodPost, Path, admin,
		`{"username":"newbie","password":"long-enough","permissions":["map.view","business.read"]}`)
	require.Equal(t, http.StatusCreated, status)

	var view auth.UserView
	require.NoError(t, json.Unmarshal(out.Data, &view))
	assert.Equal(t, "newbie", view.Username)
	assert.Equal(t, models.RoleUser, view.Role)
	assert.True(t, view.Active)
	assert.Equal(t, []string{"business.read", "map.view"}, view.Permissions)
	assert.NotContains(t, string(out.Data), "password")

	status, out = env.do(t, http.MethodPost, Path, admin, `{"username":"newbie","password":"long-enough"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, handler.CodeConflict, out.Error)

	status, out = env.do(t, http.MethodPost, Path, admin, `{"username":"other","password":"long-enough","permissions":["Map View"]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, handler.CodeValidation, out.Error)

	status, out = env.do(t, http.MethodPost, Path, admin, `{"username":"other","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, handler.CodeValidation, out.Error)

	status, out = env.do(t, http.MethodPost, Path, admin, `{"username":"other","password":"long-enough","role":"root"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, handler.CodeValidation, out.Error)

	status, out = env.do(t, http.MethodPost, Path, admin, `{"username":"sleeper","password":"long-enough","isActive":false}`)
	require.Equal(t, http.StatusCreated, status)
	require.NoError(t, json.Unmarshal(out.Data, &view))
	assert.False(t, view.Active)
}

func TestPermissionChangeAppliesToNextRequest(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.account(t, "admin", models.RoleAdmin)
	bob, bobToken := env.account(t, "bob", models.RoleUser)

	status, _ := env.do(t, http.MethodGet, Path, bobToken, "")
	require.Equal(t, http.StatusForbidden, status)

	target := fmt.Sprintf("%s/%d/permissions", Path, bob.ID)
	status, out := env.do(t, http.MethodPut, target, admin, `{"permissions":["users.manage"]}`)
	require.Equal(t, http.StatusOK, status)

	var view auth.UserView
	require.NoError(t, json.Unmarshal(out.Data, &view))
	assert.True(t, view.Capabilities.Has(auth.CapUsersManage))

	// same token, no new login
	status, _ = env.do(t, http.MethodGet, Path, bobToken, "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodPut, target, admin, `{"permissions":[]}`)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, Path, bobToken, "")
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRoleChange(t *testing.T) {
	env := newTestEnv(t)
	adminUser, admin := env.account(t, "admin", models.RoleAdmin)
	carol, carolToken := env.account(t, "carol", models.RoleUser)

	status, _ := env.do(t, http.MethodPut, fmt.Sprintf("%s/%d/role", Path, carol.ID), admin, `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, Path, carolToken, "")
	assert.Equal(t, http.StatusOK, status)

	status, out := env.do(t, http.MethodPut, fmt.Sprintf("%s/%d/role", Path, adminUser.ID), admin, `{"role":"user"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, handler.CodeConflict, out.Error)
}

func TestDeactivate(t *testing.T) {
	env := newTestEnv(t)
	adminUser, admin := env.account(t, "admin", models.RoleAdmin)
	dave, daveToken := env.account(t, "dave", models.RoleUser, auth.CapUsersManage)

	status, _ := env.do(t, http.MethodPut, fmt.Sprintf("%s/%d/active", Path, dave.ID), admin, `{"isActive":false}`)
	require.Equal(t, http.StatusOK, status)

	status, out := env.do(t, http.MethodGet, Path, daveToken, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, string(auth.CodeUserInactive), out.Error)

	status, out = env.do(t, http.MethodPut, fmt.Sprintf("%s/%d/active", Path, adminUser.ID), admin, `{"isActive":false}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, handler.CodeConflict, out.Error)

	status, out = env.do(t, http.MethodPut, fmt.Sprintf("%s/%d/active", Path, dave.ID), admin, `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, handler.CodeValidation, out.Error)

	status, out = env.do(t, http.MethodPut, Path+"/9999/active", admin, `{"isActive":true}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, handler.CodeNotFound, out.Error)
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.account(t, "admin", models.RoleAdmin)
	erin, _ := env.account(t, "erin", models.RoleUser)

	status, _ := env.do(t, http.MethodPost, fmt.Sprintf("%s/%d/password", Path, erin.ID), admin, `{"password":"brand-new-secret"}`)
	require.Equal(t, http.StatusOK, status)

	got, err := env.store.GetUserByID(t.Context(), erin.ID)
	require.NoError(t, err)
	assert.True(t, got.VerifyPassword("brand-new-secret"))

	status, out := env.do(t, http.MethodPost, Path+"/abc/password", admin, `{"password":"brand-new-secret"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, handler.CodeInvalidRequest, out.Error)

	status, out = env.do(t, http.MethodGet, Path+"/4242", admin, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, handler.CodeNotFound, out.Error)
}

func TestIDBeyondKeyRange(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.account(t, "admin", models.RoleAdmin)

	for _, id := range []string{"9223372036854775808", "18446744073709551615", "99999999999999999999999"} {
		status, out := env.do(t, http.MethodGet, Path+"/"+id, admin, "")
		assert.Equal(t, http.StatusNotFound, status, id)
		assert.Equal(t, handler.CodeNotFound, out.Error, id)

		status, _ = env.do(t, http.MethodPut, Path+"/"+id+"/role", admin, `{"role":"user"}`)
		assert.Equal(t, http.StatusNotFound, status, id)
	}

	status, out := env.do(t, http.MethodGet, Path+"/9223372036854775807", admin, "")
	assert.Equal(t, http.StatusNotFound, status, "largest key is looked up")
	assert.Equal(t, handler.CodeNotFound, out.Error)

	for _, id := range []string{"0", "-1", "abc"} {
		status, out = env.do(t, http.MethodGet, Path+"/"+id, admin, "")
		assert.Equal(t, http.StatusBadRequest, status, id)
		assert.Equal(t, handler.CodeInvalidRequest, out.Error, id)
	}
}
