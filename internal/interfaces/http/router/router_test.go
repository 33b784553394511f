package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/turtacn/taskflow/internal/application/dto"
	appservice "github.com/turtacn/taskflow/internal/application/service"
	"github.com/turtacn/taskflow/internal/config"
	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/internal/domain/repository"
	"github.com/turtacn/taskflow/internal/infrastructure/cache"
	"github.com/turtacn/taskflow/internal/infrastructure/crypto"
	"github.com/turtacn/taskflow/internal/infrastructure/events"
	"github.com/turtacn/taskflow/internal/infrastructure/monitoring"
	"github.com/turtacn/taskflow/internal/infrastructure/persistence/postgres"
	redisstore "github.com/turtacn/taskflow/internal/infrastructure/persistence/redis"
	"github.com/turtacn/taskflow/internal/infrastructure/ratelimit"
	"github.com/turtacn/taskflow/internal/interfaces/http/handlers"
	"github.com/turtacn/taskflow/internal/interfaces/http/middleware"
	"github.com/turtacn/taskflow/pkg/clock"
	"github.com/turtacn/taskflow/pkg/constants"
	"github.com/turtacn/taskflow/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = dto.RegisterValidators()
}

type testStack struct {
	router *Router
	clk    *clock.Fake
	users  repository.UserRepository
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 3000},
		RateLimit: config.RateLimitConfig{
			Enabled: true,
			Auth:    config.PolicyConfig{MaxRequests: 100, WindowMS: 900000},
			API:     config.PolicyConfig{MaxRequests: 60, WindowMS: 60000},
		},
		Cache: config.CacheConfig{TaskListTTL: 60},
		CORS:  config.CORSConfig{AllowOrigins: []string{"*"}},
	}
}

// newTestStack wires the real pipeline on sqlite and miniredis.
func newTestStack(t *testing.T, cfg *config.Config) *testStack {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNoopLogger()
	clk := clock.NewFake(time.Now().UTC().Truncate(time.Second))

	conn, err := postgres.NewDBConnection(ctx, &config.DatabaseConfig{
		Driver:       "sqlite",
		SQLitePath:   "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}, log)
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(ctx))
	t.Cleanup(func() { _ = conn.Close() })

	mr := miniredis.RunT(t)
	rdb := redisstore.NewRedisConnectionFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), log)
	t.Cleanup(func() { _ = rdb.Close() })

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	tokens := crypto.NewJWTManager(crypto.JWTConfig{Secret: []byte("test-secret"), Issuer: "taskflow", TTL: time.Hour}, clk, log)
	publisher := events.NewLogPublisher(metrics, log)

	users := postgres.NewUserRepository(conn.DB(), log)
	tasks := postgres.NewTaskRepository(conn.DB(), log)
	listing := cache.NewResponseCache(clk, time.Minute, metrics)

	authSvc := appservice.NewAuthAppService(users, crypto.NewBcryptHasher(4), tokens,
		redisstore.NewResetTokenStore(rdb.GetClient()), publisher, time.Hour, log)
	taskSvc := appservice.NewTaskAppService(tasks, publisher, log)
	userSvc := appservice.NewUserAppService(users, publisher, log)

	authLimiter := ratelimit.NewFixedWindowLimiter(ratelimit.Policy{
		MaxRequests: cfg.RateLimit.Auth.MaxRequests, Window: cfg.RateLimit.Auth.Window(),
	}, clk)
	apiLimiter := ratelimit.NewFixedWindowLimiter(ratelimit.Policy{
		MaxRequests: cfg.RateLimit.API.MaxRequests, Window: cfg.RateLimit.API.Window(),
	}, clk)

	r := NewRouter(Dependencies{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics,
		Gatherer: reg,
		Tracer:   noop.NewTracerProvider().Tracer("test"),
		Tokens:   tokens,
		AuthLimiter: middleware.NewRateLimitGuard(authLimiter, constants.RateLimitScopeAuth,
			middleware.KeyByAddress, cfg.RateLimit.Enabled, metrics, log),
		APILimiter: middleware.NewRateLimitGuard(apiLimiter, constants.RateLimitScopeAPI,
			middleware.KeyByIdentity(tokens), cfg.RateLimit.Enabled, metrics, log),
		Auth:    handlers.NewAuthHandler(authSvc),
		Tasks:   handlers.NewTaskHandler(taskSvc, listing, cfg.Cache.TaskListTTL, log),
		Profile: handlers.NewProfileHandler(userSvc),
		Users:   handlers.NewUserHandler(userSvc, listing),
		Health:  handlers.NewHealthHandler(map[string]handlers.Pinger{"database": conn, "redis": rdb}, log),
	})
	return &testStack{router: r, clk: clk, users: users}
}

func (s *testStack) do(method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(constants.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.Engine().ServeHTTP(w, req)
	return w
}

// signup registers and logs in a user, returning the bearer token.
func (s *testStack) signup(t *testing.T, name string) string {
	t.Helper()
	email := name + "@example.com"
	w := s.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": name, "password": "secret123", "phone": "555-0100", "email": email,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return s.login(t, name)
}

func (s *testStack) login(t *testing.T, name string) string {
	t.Helper()
	email := name + "@example.com"
	w := s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestDispatcher_FirstMatchWins(t *testing.T) {
	mark := func(name string) gin.HandlerFunc { return func(c *gin.Context) { c.String(http.StatusOK, name) } }
	d := NewDispatcher(
		Route{Name: "tasks", Match: func(string) bool { return true }, Handler: mark("tasks")},
		Route{Name: "profile", Match: PathUnder("/profile"), Handler: mark("profile")},
		Route{Name: "random-users", Match: PathIs("/users/random"), Handler: mark("random-users")},
		Route{Name: "admin-user", Match: PathPrefix("/users/"), Handler: mark("admin-user")},
	)

	cases := map[string]string{
		"/profile":        "profile",
		"/profile/x":      "profile",
		"/profiles":       "tasks",
		"/users/random":   "random-users",
		"/users/random/1": "admin-user",
		"/users/abc":      "admin-user",
		"/users":          "tasks",
		"/tasks/1":        "tasks",
		"/nowhere":        "tasks",
	}
	for path, want := range cases {
		assert.Equal(t, want, d.Resolve(path).Name, path)
	}
}

func TestPipeline_RequiresToken(t *testing.T) {
	s := newTestStack(t, testConfig())

	for _, path := range []string{"/tasks", "/profile", "/users/random", "/users/abc", "/nowhere"} {
		w := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, map[string]interface{}{"error": "unauthorized", "message": "Unauthorized"}, decode(t, w))
	}

	w := s.do(http.MethodPost, "/tasks", "not-a-token", map[string]string{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPipeline_TaskListingCache(t *testing.T) {
	s := newTestStack(t, testConfig())
	token := s.signup(t, "alice")

	w := s.do(http.MethodPost, "/tasks", token, map[string]string{"title": "write report", "priority": "high"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/tasks", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get(constants.HeaderCache))

	w = s.do(http.MethodGet, "/tasks", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get(constants.HeaderCache))

	w = s.do(http.MethodPost, "/tasks", token, map[string]string{"title": "buy milk"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/tasks", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get(constants.HeaderCache))
	var list dto.TaskListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Tasks, 2)
	assert.EqualValues(t, 2, list.Pagination.Total)
}

func TestPipeline_TasksAreIsolatedPerOwner(t *testing.T) {
	s := newTestStack(t, testConfig())
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")

	w := s.do(http.MethodPost, "/tasks", alice, map[string]string{"title": "private"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created dto.TaskEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = s.do(http.MethodGet, "/tasks/"+created.Task.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/tasks", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.TaskListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Tasks)
}

func TestPipeline_APIRateLimit(t *testing.T) {
	s := newTestStack(t, testConfig())
	token := s.signup(t, "alice")

	for i := 1; i <= 60; i++ {
		w := s.do(http.MethodGet, "/tasks", token, nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w := s.do(http.MethodGet, "/tasks", token, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decode(t, w)
	assert.Equal(t, "rate_limit_exceeded", body["error"])
	assert.EqualValues(t, 60, body["retryAfter"])
	assert.Equal(t, "60", w.Header().Get(constants.HeaderRetryAfter))

	s.clk.Advance(60001 * time.Millisecond)
	w = s.do(http.MethodGet, "/tasks", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "59", w.Header().Get(constants.HeaderRateLimitRemaining))
}

func TestPipeline_APIRateLimitIsPerIdentity(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.API = config.PolicyConfig{MaxRequests: 2, WindowMS: 60000}
	s := newTestStack(t, cfg)
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/profile", alice, nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodGet, "/profile", alice, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/profile", bob, nil).Code)
}

func TestPipeline_AuthNamespace(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Auth = config.PolicyConfig{MaxRequests: 3, WindowMS: 900000}
	s := newTestStack(t, cfg)

	w := s.do(http.MethodGet, "/auth/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route_not_found", decode(t, w)["error"])

	w = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "x@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", decode(t, w)["message"])

	w = s.do(http.MethodGet, "/auth/register", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "unregistered methods fall through to the gate")

	w = s.do(http.MethodGet, "/auth/unknown", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	w = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "x@example.com", "password": "nope"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	s.clk.Advance(15*time.Minute + time.Millisecond)
	w = s.do(http.MethodGet, "/auth/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPipeline_UserRoutes(t *testing.T) {
	s := newTestStack(t, testConfig())
	token := s.signup(t, "alice")
	s.signup(t, "bob")

	w := s.do(http.MethodGet, "/users/random?count=5", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var random dto.RandomUsersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &random))
	assert.Equal(t, 2, random.Count)

	w = s.do(http.MethodGet, "/users/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "alice@example.com", profile["email"])

	w = s.do(http.MethodGet, "/nowhere", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route_not_found", decode(t, w)["error"])
}

func TestPipeline_AdminCannotRemoveOwnAccess(t *testing.T) {
	s := newTestStack(t, testConfig())
	s.signup(t, "root")
	s.signup(t, "bob")
	ctx := context.Background()
	root, err := s.users.FindByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	bob, err := s.users.FindByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	_, err = s.users.UpdateRole(ctx, root.ID, models.RoleAdmin)
	require.NoError(t, err)
	token := s.login(t, "root")

	w := s.do(http.MethodDelete, "/users/"+root.ID, token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decode(t, w)["error"])

	w = s.do(http.MethodPatch, "/users/"+root.ID+"/role", token, map[string]string{"role": "user"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decode(t, w)["error"])

	w = s.do(http.MethodDelete, "/users/"+bob.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, err = s.users.FindByID(ctx, bob.ID)
	assert.Error(t, err)
}

func TestPipeline_PasswordReset(t *testing.T) {
	s := newTestStack(t, testConfig())
	s.signup(t, "alice")

	w := s.do(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/auth/reset-password", "", map[string]string{"token": "bogus", "password": "newsecret"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPipeline_AuthLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Auth = config.PolicyConfig{MaxRequests: 3, WindowMS: 900000}
	s := newTestStack(t, cfg)

	login := map[string]string{"email": "x@example.com", "password": "nope"}
	for i := 1; i <= 3; i++ {
		w := s.do(http.MethodPost, "/auth/login", "", login, "X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i)
	}
	for i := 4; i <= 10; i++ {
		w := s.do(http.MethodPost, "/auth/login", "", login, "X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		assert.Equal(t, http.StatusTooManyRequests, w.Code, "attempt %d", i)
	}
}

func TestPipeline_AuthLimitHonoursTrustedProxy(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Auth = config.PolicyConfig{MaxRequests: 3, WindowMS: 900000}
	// httptest requests arrive from 192.0.2.1
	cfg.Server.TrustedProxies = []string{"192.0.2.0/24"}
	s := newTestStack(t, cfg)

	login := map[string]string{"email": "x@example.com", "password": "nope"}
	for i := 1; i <= 5; i++ {
		w := s.do(http.MethodPost, "/auth/login", "", login, "X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "client %d", i)
	}
	for i := 1; i <= 3; i++ {
		s.do(http.MethodPost, "/auth/login", "", login, "X-Forwarded-For", "198.51.100.7")
	}
	w := s.do(http.MethodPost, "/auth/login", "", login, "X-Forwarded-For", "198.51.100.7")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestPipeline_PanicIsRecordedAsServerError(t *testing.T) {
	s := newTestStack(t, testConfig())
	s.router.Engine().GET("/boom", func(c *gin.Context) { panic("boom") })

	w := s.do(http.MethodGet, "/boom", "", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", decode(t, w)["error"])

	w = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `taskflow_http_requests_total{method="GET",route="/boom",status="500"} 1`)
}

func TestPipeline_CORS(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowOrigins: []string{"https://app.example.com"}}
	s := newTestStack(t, cfg)

	w := s.do(http.MethodOptions, "/tasks", "", nil,
		"Origin", "https://app.example.com",
		"Access-Control-Request-Method", http.MethodPost,
	)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = s.do(http.MethodGet, "/tasks", "", nil, "Origin", "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPipeline_OperationalRoutes(t *testing.T) {
	s := newTestStack(t, testConfig())

	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	token := s.signup(t, "alice")
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/tasks", token, nil).Code)
	w = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fmt.Sprintf("route=%q", "tasks"))
}
