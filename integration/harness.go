package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	apirest "github.com/heropets/server/api/rest"
	"github.com/heropets/server/audit"
	"github.com/heropets/server/cache"
	"github.com/heropets/server/config"
	"github.com/heropets/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TestServer wraps a real HTTP server with every subsystem wired together.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	Audit  *audit.Service
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	Cfg    *config.Config
}

// NewTestServer creates a fully wired server backed by the local cache.
// It mirrors the dependency wiring of the serve command.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	c, pubsub := testutil.SetupTestCache(t)
	return newTestServer(t, c, pubsub)
}

// NewRedisTestServer is NewTestServer with sessions and pet events going
// through an in-process Redis.
func NewRedisTestServer(t *testing.T) *TestServer {
	t.Helper()
	mr := miniredis.RunT(t)
	cacheCfg := config.CacheConfig{RedisAddr: mr.Addr()}
	c, err := cache.NewCache(cacheCfg)
	require.NoError(t, err)
	pubsub, err := cache.NewPubSub(cacheCfg)
	require.NoError(t, err)
	return newTestServer(t, c, pubsub)
}

func newTestServer(t *testing.T, c cache.Cache, pubsub cache.PubSub) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	auditSvc := audit.New(db, logger)

	sec := testutil.TestSecurity()
	sec.JWTSecret = "integration-test-secret"
	sec.JWTTTL = 72 * time.Hour
	cfg := &config.Config{
		Server:   config.ServerConfig{AdminKey: "integration-admin"},
		Security: sec,
		Pets:     config.PetsConfig{DefaultHappiness: 50, DefaultHunger: 0},
	}

	r := apirest.NewRouter(apirest.Deps{
		DB:     db,
		Cache:  c,
		PubSub: pubsub,
		Audit:  auditSvc,
		Config: cfg,
		Logger: logger,
	})
	srv := httptest.NewServer(r)
	ts := &TestServer{
		DB:     db,
		Cache:  c,
		PubSub: pubsub,
		Audit:  auditSvc,
		Server: srv,
		URL:    srv.URL,
		Cfg:    cfg,
	}
	t.Cleanup(ts.Close)
	return ts
}

// Close stops the HTTP server and flushes the audit log. Safe to call twice.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.Audit.Stop(nil)
}

func (ts *TestServer) do(t *testing.T, method, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON sends a POST request with a JSON body and optional auth token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, token)
}

// Get sends a GET request with optional auth token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, token)
}

// Put sends a PUT request with an optional JSON body.
func (ts *TestServer) Put(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPut, path, body, token)
}

// Delete sends a DELETE request.
func (ts *TestServer) Delete(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodDelete, path, nil, token)
}

// ReadJSON reads and decodes the response body, closing it.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// Status returns the response code and closes the body.
func Status(resp *http.Response) int {
	resp.Body.Close()
	return resp.StatusCode
}

// Register creates an account and returns its ID.
func (ts *TestServer) Register(t *testing.T, name, email, password string) int64 {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/register", map[string]string{
		"name": name, "email": email, "password": password,
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result struct {
		ID int64 `json:"id"`
	}
	ReadJSON(t, resp, &result)
	return result.ID
}

// Login performs a login and returns the token.
func (ts *TestServer) Login(t *testing.T, email, password string) string {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"email": email, "password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Token string `json:"token"`
	}
	ReadJSON(t, resp, &result)
	require.NotEmpty(t, result.Token)
	return result.Token
}

// NewUser registers a uniquely named account and logs it in.
func (ts *TestServer) NewUser(t *testing.T, prefix string) (token string, userID int64) {
	t.Helper()
	email := UniqueID(prefix) + "@example.com"
	userID = ts.Register(t, prefix, email, "testpass1234")
	return ts.Login(t, email, "testpass1234"), userID
}

// CreatePet creates a pet for the token's owner and returns its ID.
func (ts *TestServer) CreatePet(t *testing.T, token, name string) int64 {
	t.Helper()
	resp := ts.PostJSON(t, "/api/pets", map[string]interface{}{
		"name": name, "type": "dog", "age": 2,
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result struct {
		ID int64 `json:"id"`
	}
	ReadJSON(t, resp, &result)
	return result.ID
}

// CreateHero creates a hero without credentials and returns its ID.
func (ts *TestServer) CreateHero(t *testing.T, name string) int64 {
	t.Helper()
	resp := ts.PostJSON(t, "/api/heroes", map[string]string{"name": name, "power": "flight"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result struct {
		ID int64 `json:"id"`
	}
	ReadJSON(t, resp, &result)
	return result.ID
}

var testCounter uint64

// UniqueID generates a unique string for test isolation.
func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%100000, n)
}
