package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"motorlane/internal/config"
	"motorlane/internal/logger"
	"motorlane/internal/models"
)

func newTestServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Account{}, &models.User{}, &models.Role{},
		&models.EmailVerification{}, &models.RevokedToken{}, &models.AuditLog{},
		&models.Vehicle{}, &models.VehicleImage{},
	))
	for _, slug := range []string{"hashagile", "rival"} {
		acc := models.Account{Name: slug, Slug: slug}
		require.NoError(t, db.Create(&acc).Error)
		require.NoError(t, db.Create(&models.Role{Name: "Administrator", AccountID: &acc.ID}).Error)
		require.NoError(t, db.Create(&models.Role{Name: "User", AccountID: &acc.ID}).Error)
	}
	cfg := config.Config{
		JWTSecret:          "test-secret",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		DefaultAccountSlug: "hashagile",
		StorageDir:         t.TempDir(),
	}
	router, err := NewRouter(db, cfg, logger.New(""))
	require.NoError(t, err)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, db
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any, bearer string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

// registerAndLogin walks a fresh user through register, verify and login and
// returns the token pair.
func registerAndLogin(t *testing.T, srv *httptest.Server, email, password, slug string) (string, string) {
	t.Helper()
	status, body := doJSON(t, srv, "POST", "/auth/register", map[string]any{
		"email": email, "password": password, "account_slug": slug,
	}, "")
	require.Equal(t, http.StatusCreated, status)
	token, _ := body["verification_token"].(string)
	require.NotEmpty(t, token)

	status, _ = doJSON(t, srv, "POST", "/auth/verify-email", map[string]any{"token": token}, "")
	require.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, srv, "POST", "/auth/login", map[string]any{
		"email": email, "password": password,
	}, "")
	require.Equal(t, http.StatusOK, status)
	access, _ := body["access_token"].(string)
	refresh, _ := body["refresh_token"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	assert.Equal(t, "bearer", body["token_type"])
	return access, refresh
}

func TestAuthFlowEndToEnd(t *testing.T) {
	srv, db := newTestServer(t)

	status, body := doJSON(t, srv, "POST", "/auth/register", map[string]any{
		"email": "a@x.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusCreated, status)
	verification, _ := body["verification_token"].(string)
	require.NotEmpty(t, verification)

	// Duplicate registration is rejected before any token flows.
	status, _ = doJSON(t, srv, "POST", "/auth/register", map[string]any{
		"email": "a@x.com", "password": "secret1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, srv, "POST", "/auth/verify-email", map[string]any{"token": verification}, "")
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, srv, "POST", "/auth/verify-email", map[string]any{"token": verification}, "")
	assert.Equal(t, http.StatusBadRequest, status)

	// Wrong password: 401, no tokens, and nothing lands on the denylist.
	status, body = doJSON(t, srv, "POST", "/auth/login", map[string]any{
		"email": "a@x.com", "password": "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotContains(t, body, "access_token")
	var revocations int64
	require.NoError(t, db.Model(&models.RevokedToken{}).Count(&revocations).Error)
	assert.Zero(t, revocations)

	status, body = doJSON(t, srv, "POST", "/auth/login", map[string]any{
		"email": "a@x.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusOK, status)
	access, _ := body["access_token"].(string)
	refresh, _ := body["refresh_token"].(string)

	status, body = doJSON(t, srv, "GET", "/auth/me", nil, access)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a@x.com", body["email"])
	assert.Equal(t, []any{}, body["roles"])

	// No role assigned yet: admin surface is forbidden, not unauthorized.
	status, _ = doJSON(t, srv, "GET", "/auth/admin/ping", nil, access)
	assert.Equal(t, http.StatusForbidden, status)

	// Refresh keeps the refresh token and mints a fresh access token.
	status, body = doJSON(t, srv, "POST", "/auth/refresh", map[string]any{"refresh_token": refresh}, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, refresh, body["refresh_token"])
	newAccess, _ := body["access_token"].(string)
	status, _ = doJSON(t, srv, "GET", "/auth/me", nil, newAccess)
	assert.Equal(t, http.StatusOK, status)

	// A refresh token is not accepted where an access token is expected.
	status, _ = doJSON(t, srv, "POST", "/auth/logout", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = doJSON(t, srv, "GET", "/auth/me", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Logout denylists the access token immediately.
	status, _ = doJSON(t, srv, "POST", "/auth/logout", nil, access)
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, srv, "GET", "/auth/me", nil, access)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminRoleGrantsPing(t *testing.T) {
	srv, db := newTestServer(t)
	registerAndLogin(t, srv, "admin@x.com", "secret1", "hashagile")

	var user models.User
	require.NoError(t, db.First(&user, "email = ?", "admin@x.com").Error)
	var role models.Role
	require.NoError(t, db.First(&role, "name = ? AND account_id = ?", "Administrator", user.AccountID).Error)
	require.NoError(t, db.Model(&user).Association("Roles").Append(&role))

	// The new role is picked up on the next login.
	status, body := doJSON(t, srv, "POST", "/auth/login", map[string]any{
		"email": "admin@x.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusOK, status)
	access, _ := body["access_token"].(string)

	status, body = doJSON(t, srv, "GET", "/auth/admin/ping", nil, access)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["ok"])

	status, _ = doJSON(t, srv, "GET", "/auth/admin/logs", nil, access)
	assert.Equal(t, http.StatusOK, status)
}

func TestPasswordGrantForm(t *testing.T) {
	srv, _ := newTestServer(t)
	registerAndLogin(t, srv, "a@x.com", "secret1", "hashagile")

	res, err := srv.Client().PostForm(srv.URL+"/auth/token", map[string][]string{
		"username": {"a@x.com"},
		"password": {"secret1"},
	})
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
}

func TestPasswordResetOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	registerAndLogin(t, srv, "a@x.com", "secret1", "hashagile")

	// Unknown email: same message, no token leaked.
	status, body := doJSON(t, srv, "POST", "/auth/forgot-password", map[string]any{"email": "nobody@x.com"}, "")
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, body, "reset_token")

	status, body = doJSON(t, srv, "POST", "/auth/forgot-password", map[string]any{"email": "a@x.com"}, "")
	require.Equal(t, http.StatusOK, status)
	reset, _ := body["reset_token"].(string)
	require.NotEmpty(t, reset)

	status, body = doJSON(t, srv, "POST", "/auth/validate-reset-token", map[string]any{"token": reset}, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])

	status, _ = doJSON(t, srv, "POST", "/auth/reset-password", map[string]any{
		"token": reset, "new_password": "secret1",
	}, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, srv, "POST", "/auth/reset-password", map[string]any{
		"token": reset, "new_password": "secret2",
	}, "")
	require.Equal(t, http.StatusOK, status)

	// Single use: the same token cannot reset again or validate.
	status, _ = doJSON(t, srv, "POST", "/auth/reset-password", map[string]any{
		"token": reset, "new_password": "secret3",
	}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = doJSON(t, srv, "POST", "/auth/validate-reset-token", map[string]any{"token": reset}, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, srv, "POST", "/auth/login", map[string]any{
		"email": "a@x.com", "password": "secret2",
	}, "")
	assert.Equal(t, http.StatusOK, status)
}

func postVehicleForm(t *testing.T, srv *httptest.Server, access, product string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Swift VXI"))
	require.NoError(t, mw.WriteField("product", product))
	require.NoError(t, mw.WriteField("amount", "350000"))
	require.NoError(t, mw.WriteField("model_year", "2020"))
	fw, err := mw.CreateFormFile("images", "front.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake jpeg bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest("POST", srv.URL+"/vehicles", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+access)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

func createVehicle(t *testing.T, srv *httptest.Server, access string) int64 {
	t.Helper()
	status, out := postVehicleForm(t, srv, access, "car")
	require.Equal(t, http.StatusCreated, status)
	id, ok := out["id"].(float64)
	require.True(t, ok)
	images, _ := out["images"].([]any)
	require.Len(t, images, 1)
	return int64(id)
}

func TestCreateVehicleRejectsUnknownProduct(t *testing.T) {
	srv, db := newTestServer(t)
	access, _ := registerAndLogin(t, srv, "a@x.com", "secret1", "hashagile")

	for _, product := range []string{"boat", "truck", "carz"} {
		status, _ := postVehicleForm(t, srv, access, product)
		assert.Equal(t, http.StatusBadRequest, status, "product %q", product)
	}
	var count int64
	require.NoError(t, db.Model(&models.Vehicle{}).Count(&count).Error)
	assert.Zero(t, count)

	// Case folding still applies before the check.
	status, _ := postVehicleForm(t, srv, access, "CAR")
	assert.Equal(t, http.StatusCreated, status)
}

func TestVehicleImageLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	access, _ := registerAndLogin(t, srv, "a@x.com", "secret1", "hashagile")
	id := createVehicle(t, srv, access)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("images", "side.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake png bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/vehicles/%d/images", srv.URL, id), &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+access)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	// The response is the reloaded vehicle, never a bare null.
	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.NotNil(t, out["id"])
	images, _ := out["images"].([]any)
	require.Len(t, images, 2)

	first, ok := images[0].(map[string]any)
	require.True(t, ok)
	imgID, ok := first["id"].(float64)
	require.True(t, ok)

	status, out := doJSON(t, srv, "DELETE", fmt.Sprintf("/vehicles/%d/images", id), map[string]any{
		"image_ids": []int64{int64(imgID)},
	}, access)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, out["id"])
	images, _ = out["images"].([]any)
	assert.Len(t, images, 1)
}

func TestVehicleTenantScopingOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	accessA, _ := registerAndLogin(t, srv, "a@x.com", "secret1", "hashagile")
	accessB, _ := registerAndLogin(t, srv, "b@y.com", "secret1", "rival")

	id := createVehicle(t, srv, accessA)
	path := fmt.Sprintf("/vehicles/%d", id)

	status, body := doJSON(t, srv, "GET", path, nil, accessA)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Swift VXI", body["name"])

	// Same numeric id from another tenant: plain 404.
	status, _ = doJSON(t, srv, "GET", path, nil, accessB)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = doJSON(t, srv, "PATCH", path, map[string]any{"status": "sold"}, accessB)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = doJSON(t, srv, "DELETE", path, nil, accessB)
	assert.Equal(t, http.StatusNotFound, status)

	// Tenant lists do not mix.
	status, body = doJSON(t, srv, "GET", "/vehicles", nil, accessB)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["total"])

	// The public browse feed shows active vehicles from every account.
	status, body = doJSON(t, srv, "GET", "/vehicles/browse", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
	status, _ = doJSON(t, srv, "GET", fmt.Sprintf("/vehicles/browse/%d", id), nil, "")
	assert.Equal(t, http.StatusOK, status)

	// Sold vehicles drop out of the public feed.
	status, _ = doJSON(t, srv, "PATCH", path, map[string]any{"status": "sold"}, accessA)
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, srv, "GET", fmt.Sprintf("/vehicles/browse/%d", id), nil, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestVehicleRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	status, _ := doJSON(t, srv, "GET", "/vehicles", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = doJSON(t, srv, "GET", "/vehicles", nil, "garbage-token")
	assert.Equal(t, http.StatusUnauthorized, status)
}
