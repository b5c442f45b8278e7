package rest_test

import (
	"net/http"
	"testing"

	"github.com/heropets/server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	w := postJSON(s.r, "/api/auth/register", map[string]string{
		"name": "Ana", "email": "a@x.com", "password": "pw",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.NotEmpty(t, resp["message"])
	assert.EqualValues(t, 1, resp["id"])

	var user model.User
	require.NoError(t, s.db.Where("email = ?", "a@x.com").Take(&user).Error)
	assert.Equal(t, "Ana", user.Name)
	assert.NotEqual(t, "pw", user.PasswordHash)
}

func TestRegister_SequentialIDs(t *testing.T) {
	s := newTestServer(t)
	for i, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		w := postJSON(s.r, "/api/auth/register", map[string]string{
			"name": "u", "email": email, "password": "pw",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		var resp map[string]interface{}
		decode(t, w, &resp)
		assert.EqualValues(t, i+1, resp["id"])
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	body := map[string]string{"name": "Ana", "email": "a@x.com", "password": "pw"}
	require.Equal(t, http.StatusCreated, postJSON(s.r, "/api/auth/register", body).Code)

	w := postJSON(s.r, "/api/auth/register", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "email already registered")

	var n int64
	s.db.Model(&model.User{}).Count(&n)
	assert.EqualValues(t, 1, n)
}

func TestRegister_MissingFields(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []map[string]string{
		{"email": "a@x.com", "password": "pw"},
		{"name": "Ana", "password": "pw"},
		{"name": "Ana", "email": "a@x.com"},
		{"name": "Ana", "email": "not-an-email", "password": "pw"},
	} {
		w := postJSON(s.r, "/api/auth/register", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %v", body)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	postJSON(s.r, "/api/auth/register", map[string]string{"name": "Ana", "email": "a@x.com", "password": "pw"})

	w := postJSON(s.r, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.NotEmpty(t, resp["token"])
	assert.Equal(t, "Ana", resp["name"])
	assert.Equal(t, "a@x.com", resp["email"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s := newTestServer(t)
	postJSON(s.r, "/api/auth/register", map[string]string{"name": "Ana", "email": "a@x.com", "password": "pw"})

	wrong := postJSON(s.r, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "nope"})
	unknown := postJSON(s.r, "/api/auth/login", map[string]string{"email": "z@x.com", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, wrong.Code)
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
}

func TestLogout_RevokesToken(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s.r, "Ana", "a@x.com")

	require.Equal(t, http.StatusOK, doRequest(s.r, http.MethodGet, "/api/pets", nil, token).Code)
	require.Equal(t, http.StatusOK, doRequest(s.r, http.MethodPost, "/api/auth/logout", nil, token).Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(s.r, http.MethodGet, "/api/pets", nil, token).Code)
}

func TestLogout_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(s.r, http.MethodPost, "/api/auth/logout", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_LiteralUserIDRejected(t *testing.T) {
	s := newTestServer(t)
	registerAndLogin(t, s.r, "Ana", "a@x.com")

	w := doRequest(s.r, http.MethodGet, "/api/pets", nil, "1")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAudit_AuthEventsRecorded(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s.r, "Ana", "a@x.com")
	doRequest(s.r, http.MethodPost, "/api/auth/logout", nil, token)
	s.audit.Stop(nil)

	var actions []string
	require.NoError(t, s.db.Model(&model.AuditLog{}).Order("id").Pluck("action", &actions).Error)
	assert.Equal(t, []string{"user.register", "user.login", "user.logout"}, actions)
}
