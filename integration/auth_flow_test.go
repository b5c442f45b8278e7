package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/heropets/server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullAuthLifecycle(t *testing.T) {
	ts := NewTestServer(t)
	email := UniqueID("auth") + "@example.com"

	userID := ts.Register(t, "Ana", email, "testpass1234")
	require.EqualValues(t, 1, userID)

	// Registering the same address again fails.
	resp := ts.PostJSON(t, "/api/auth/register", map[string]string{
		"name": "Other", "email": email, "password": "x",
	}, "")
	assert.Equal(t, http.StatusBadRequest, Status(resp))

	token1 := ts.Login(t, email, "testpass1234")
	assert.Equal(t, http.StatusOK, Status(ts.Get(t, "/api/pets", token1)))

	// A later login issues a different token; both stay valid.
	time.Sleep(1100 * time.Millisecond)
	token2 := ts.Login(t, email, "testpass1234")
	assert.NotEqual(t, token1, token2)
	assert.Equal(t, http.StatusOK, Status(ts.Get(t, "/api/pets", token2)))

	// Logging out token2 leaves token1 working.
	assert.Equal(t, http.StatusOK, Status(ts.PostJSON(t, "/api/auth/logout", nil, token2)))
	assert.Equal(t, http.StatusUnauthorized, Status(ts.Get(t, "/api/pets", token2)))
	assert.Equal(t, http.StatusOK, Status(ts.Get(t, "/api/pets", token1)))

	// Wrong password.
	resp = ts.PostJSON(t, "/api/auth/login", map[string]string{"email": email, "password": "nope"}, "")
	assert.Equal(t, http.StatusBadRequest, Status(resp))

	ts.Close()
	var n int64
	require.NoError(t, ts.DB.Model(&model.AuditLog{}).Where("action = ?", "user.login").Count(&n).Error)
	assert.EqualValues(t, 3, n)
}

func TestRedisBackedSessionsAndEvents(t *testing.T) {
	ts := NewRedisTestServer(t)
	token, _ := ts.NewUser(t, "redis")
	petID := ts.CreatePet(t, token, "Rex")

	assert.Equal(t, http.StatusOK, Status(ts.Put(t, "/api/mascotas/1/curar", nil, token)))
	assert.EqualValues(t, 1, petID)

	assert.Equal(t, http.StatusOK, Status(ts.PostJSON(t, "/api/auth/logout", nil, token)))
	assert.Equal(t, http.StatusUnauthorized, Status(ts.Get(t, "/api/pets", token)))
}

func TestAdminCounters(t *testing.T) {
	ts := NewTestServer(t)
	token, _ := ts.NewUser(t, "admin")
	ts.CreatePet(t, token, "Rex")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/admin/counters", nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Key", ts.Cfg.Server.AdminKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Counters map[string]int64 `json:"counters"`
	}
	ReadJSON(t, resp, &out)
	assert.EqualValues(t, 1, out.Counters["users"])
	assert.EqualValues(t, 1, out.Counters["pets"])
}
