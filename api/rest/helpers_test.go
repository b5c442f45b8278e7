package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/heropets/server/api/rest"
	"github.com/heropets/server/audit"
	"github.com/heropets/server/config"
	"github.com/heropets/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testAdminKey = "admin-key"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	r     *gin.Engine
	db    *gorm.DB
	audit *audit.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	auditSvc := audit.New(db, zap.NewNop())
	t.Cleanup(func() { auditSvc.Stop(nil) })

	cfg := &config.Config{
		Server:   config.ServerConfig{AdminKey: testAdminKey},
		Security: testutil.TestSecurity(),
		Pets:     config.PetsConfig{DefaultHappiness: 50, DefaultHunger: 0},
	}
	r := rest.NewRouter(rest.Deps{
		DB:     db,
		Cache:  c,
		PubSub: ps,
		Audit:  auditSvc,
		Config: cfg,
		Logger: zap.NewNop(),
	})
	return &testServer{r: r, db: db, audit: auditSvc}
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var b []byte
	if body != nil {
		b, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

// registerAndLogin creates an account and returns a session token for it.
func registerAndLogin(t *testing.T, r *gin.Engine, name, email string) string {
	t.Helper()
	w := postJSON(r, "/api/auth/register", map[string]string{
		"name": name, "email": email, "password": "pw",
	})
	require.Equal(t, http.StatusCreated, w.Code, "register failed: %s", w.Body.String())

	w = postJSON(r, "/api/auth/login", map[string]string{"email": email, "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code, "login failed: %s", w.Body.String())
	var resp map[string]interface{}
	decode(t, w, &resp)
	return resp["token"].(string)
}

// createPet creates a pet for the token's owner and returns its ID.
func createPet(t *testing.T, r *gin.Engine, token, name string) int64 {
	t.Helper()
	w := doRequest(r, http.MethodPost, "/api/pets", map[string]interface{}{
		"name": name, "type": "dog", "age": 2,
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, "create pet failed: %s", w.Body.String())
	var resp struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &resp)
	return resp.ID
}

func createHero(t *testing.T, r *gin.Engine, name string) int64 {
	t.Helper()
	w := postJSON(r, "/api/heroes", map[string]string{"name": name, "power": "flight"})
	require.Equal(t, http.StatusCreated, w.Code, "create hero failed: %s", w.Body.String())
	var resp struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &resp)
	return resp.ID
}
