package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/taskflow/internal/application/dto"
	"github.com/turtacn/taskflow/internal/application/service"
	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/internal/infrastructure/cache"
	"github.com/turtacn/taskflow/pkg/clock"
	"github.com/turtacn/taskflow/pkg/constants"
	apperrors "github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = dto.RegisterValidators()
}

// ---------------------------------------------------------------- fakes

type mockTaskService struct{ mock.Mock }

func (m *mockTaskService) List(ctx context.Context, userID string, filter models.TaskFilter) (*dto.TaskListResponse, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TaskListResponse), args.Error(1)
}

func (m *mockTaskService) Get(ctx context.Context, userID, id string) (*dto.TaskResponse, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TaskResponse), args.Error(1)
}

func (m *mockTaskService) Create(ctx context.Context, userID string, req *dto.CreateTaskRequest) (*dto.TaskResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TaskResponse), args.Error(1)
}

func (m *mockTaskService) Update(ctx context.Context, userID, id string, req *dto.UpdateTaskRequest) (*dto.TaskResponse, error) {
	args := m.Called(ctx, userID, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TaskResponse), args.Error(1)
}

func (m *mockTaskService) Delete(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

// gatedTaskService holds List calls until release is closed.
type gatedTaskService struct {
	mockTaskService
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func newGatedTaskService() *gatedTaskService {
	return &gatedTaskService{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedTaskService) List(ctx context.Context, userID string, filter models.TaskFilter) (*dto.TaskListResponse, error) {
	g.calls.Add(1)
	g.once.Do(func() { close(g.started) })
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &dto.TaskListResponse{
		Tasks:      []dto.TaskResponse{{ID: "t1", Title: "a"}},
		Pagination: dto.NewPagination(1, 20, 1),
	}, nil
}

type mockUserService struct{ mock.Mock }

func (m *mockUserService) GetProfile(ctx context.Context, userID string) (*dto.UserResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.UserResponse), args.Error(1)
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.UserResponse), args.Error(1)
}

func (m *mockUserService) RandomUsers(ctx context.Context, count int) (*dto.RandomUsersResponse, error) {
	args := m.Called(ctx, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.RandomUsersResponse), args.Error(1)
}

func (m *mockUserService) GetUser(ctx context.Context, id string) (*dto.UserResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.UserResponse), args.Error(1)
}

func (m *mockUserService) DeleteUser(ctx context.Context, actorID, id string) (int64, error) {
	args := m.Called(ctx, actorID, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUserService) UpdateRole(ctx context.Context, actorID, id string, role models.Role) (*dto.UserResponse, error) {
	args := m.Called(ctx, actorID, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.UserResponse), args.Error(1)
}

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.RegisterResponse), args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.LoginResponse), args.Error(1)
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// ---------------------------------------------------------------- helpers

// asUser attaches an identity the way the auth guard does.
func asUser(id models.ClientIdentity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(models.ContextWithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func do(engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

var alice = models.ClientIdentity{UserID: "u1", Username: "alice", Role: models.RoleUser}

// ---------------------------------------------------------------- tasks

func newTaskEngine(svc service.TaskAppService) (*gin.Engine, *cache.ResponseCache) {
	rc := cache.NewResponseCache(clock.NewFake(time.Unix(1_700_000_000, 0)), time.Minute, nil)
	h := NewTaskHandler(svc, rc, 60, logger.NewNoopLogger())
	engine := gin.New()
	engine.NoRoute(asUser(alice), h.Handle)
	return engine, rc
}

func TestTaskHandler_ListReadsThroughCache(t *testing.T) {
	svc := new(mockTaskService)
	engine, rc := newTaskEngine(svc)
	filter := dto.ListTasksQuery{}.Filter()
	svc.On("List", mock.Anything, "u1", filter).Return(&dto.TaskListResponse{
		Tasks:      []dto.TaskResponse{{ID: "t1", Title: "a"}},
		Pagination: dto.NewPagination(1, 20, 1),
	}, nil).Once()

	first := do(engine, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get(constants.HeaderCache))

	second := do(engine, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get(constants.HeaderCache))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	_, ok := rc.Get(constants.TaskCacheKey("u1", filter.Variant()))
	assert.True(t, ok)
	svc.AssertExpectations(t)
}

func TestTaskHandler_SharedListingSurvivesFirstCallerCancel(t *testing.T) {
	svc := newGatedTaskService()
	engine, _ := newTaskEngine(svc)

	ctx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan struct{})
	go func() {
		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tasks", nil).WithContext(ctx))
		close(leaderDone)
	}()
	<-svc.started

	follower := httptest.NewRecorder()
	followerDone := make(chan struct{})
	go func() {
		engine.ServeHTTP(follower, httptest.NewRequest(http.MethodGet, "/tasks", nil))
		close(followerDone)
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(svc.release)
	<-leaderDone
	<-followerDone

	require.Equal(t, http.StatusOK, follower.Code, follower.Body.String())
	assert.Equal(t, "MISS", follower.Header().Get(constants.HeaderCache))
	assert.Contains(t, follower.Body.String(), `"t1"`)
}

func TestTaskHandler_WriteDuringListingSkipsCacheStore(t *testing.T) {
	svc := newGatedTaskService()
	svc.On("Create", mock.Anything, "u1", mock.Anything).Return(&dto.TaskResponse{ID: "t2", Title: "new"}, nil)
	engine, rc := newTaskEngine(svc)
	key := constants.TaskCacheKey("u1", dto.ListTasksQuery{}.Filter().Variant())

	listed := make(chan *httptest.ResponseRecorder, 1)
	go func() { listed <- do(engine, http.MethodGet, "/tasks", nil) }()
	<-svc.started

	w := do(engine, http.MethodPost, "/tasks", map[string]string{"title": "new", "priority": "high"})
	require.Equal(t, http.StatusCreated, w.Code)
	close(svc.release)

	first := <-listed
	require.Equal(t, http.StatusOK, first.Code)
	_, ok := rc.Get(key)
	assert.False(t, ok, "a listing computed before the write must not be cached")

	next := do(engine, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, next.Code)
	assert.Equal(t, "MISS", next.Header().Get(constants.HeaderCache))
	assert.EqualValues(t, 2, svc.calls.Load())

	again := do(engine, http.MethodGet, "/tasks", nil)
	assert.Equal(t, "HIT", again.Header().Get(constants.HeaderCache))
}

func TestTaskHandler_CreateInvalidatesNamespace(t *testing.T) {
	svc := new(mockTaskService)
	engine, rc := newTaskEngine(svc)
	rc.Set(constants.TaskCacheKey("u1", "a"), []byte(`{}`), 60)
	rc.Set(constants.TaskCacheKey("u10", "a"), []byte(`{}`), 60)

	svc.On("Create", mock.Anything, "u1", mock.MatchedBy(func(r *dto.CreateTaskRequest) bool {
		return r.Title == "new" && r.Priority == models.PriorityHigh
	})).Return(&dto.TaskResponse{ID: "t9", Title: "new", Priority: models.PriorityHigh}, nil)

	w := do(engine, http.MethodPost, "/tasks", map[string]string{"title": "new", "priority": "high"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "Task created successfully")

	_, ok := rc.Get(constants.TaskCacheKey("u1", "a"))
	assert.False(t, ok)
	_, ok = rc.Get(constants.TaskCacheKey("u10", "a"))
	assert.True(t, ok, "other namespaces survive")
}

func TestTaskHandler_Validation(t *testing.T) {
	svc := new(mockTaskService)
	engine, _ := newTaskEngine(svc)

	w := do(engine, http.MethodPost, "/tasks", map[string]string{"title": "x", "priority": "urgent"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"invalid_request"`)

	w = do(engine, http.MethodGet, "/tasks?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(engine, http.MethodGet, "/tasks?sortBy=owner", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskHandler_ItemRoutes(t *testing.T) {
	svc := new(mockTaskService)
	engine, _ := newTaskEngine(svc)
	svc.On("Get", mock.Anything, "u1", "t1").Return(&dto.TaskResponse{ID: "t1"}, nil)
	svc.On("Get", mock.Anything, "u1", "t2").Return(nil, apperrors.ErrNotFound("Task"))
	svc.On("Update", mock.Anything, "u1", "t1", mock.Anything).Return(&dto.TaskResponse{ID: "t1", Completed: true}, nil)
	svc.On("Delete", mock.Anything, "u1", "t1").Return(nil)

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/tasks/t1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(engine, http.MethodGet, "/tasks/t2", nil).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodPatch, "/tasks/t1", map[string]bool{"completed": true}).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodPut, "/tasks/t1", map[string]bool{"completed": true}).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodDelete, "/tasks/t1", nil).Code)
}

func TestTaskHandler_UnknownRoutes(t *testing.T) {
	engine, _ := newTaskEngine(new(mockTaskService))
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/unknown"},
		{http.MethodGet, "/tasks/t1/extra"},
		{http.MethodDelete, "/tasks"},
		{http.MethodPost, "/tasks/t1"},
	} {
		w := do(engine, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, tc.path)
		assert.JSONEq(t, `{"error":"route_not_found","message":"Route not found"}`, w.Body.String())
	}
}

// ---------------------------------------------------------------- users & profile

func TestUserHandler_AdminOnly(t *testing.T) {
	svc := new(mockUserService)
	h := NewUserHandler(svc, cache.NewResponseCache(clock.New(), time.Minute, nil))

	engine := gin.New()
	engine.NoRoute(asUser(alice), h.Admin)
	w := do(engine, http.MethodGet, "/users/u2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestUserHandler_AdminRoutes(t *testing.T) {
	svc := new(mockUserService)
	rc := cache.NewResponseCache(clock.New(), time.Minute, nil)
	rc.Set(constants.TaskCacheKey("u2", "v"), []byte(`{}`), 60)
	h := NewUserHandler(svc, rc)
	admin := models.ClientIdentity{UserID: "root", Role: models.RoleAdmin}

	svc.On("GetUser", mock.Anything, "u2").Return(&dto.UserResponse{ID: "u2"}, nil)
	svc.On("DeleteUser", mock.Anything, "root", "u2").Return(int64(4), nil)
	svc.On("UpdateRole", mock.Anything, "root", "u2", models.RoleAdmin).Return(&dto.UserResponse{ID: "u2", Role: models.RoleAdmin}, nil)

	engine := gin.New()
	engine.NoRoute(asUser(admin), h.Admin)

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/users/u2", nil).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodPatch, "/users/u2/role", map[string]string{"role": "admin"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(engine, http.MethodPatch, "/users/u2/role", map[string]string{"role": "root"}).Code)

	w := do(engine, http.MethodDelete, "/users/u2", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tasksDeleted":4`)
	assert.Equal(t, 0, rc.Len())

	assert.Equal(t, http.StatusNotFound, do(engine, http.MethodPost, "/users/u2", nil).Code)
}

func TestUserHandler_Random(t *testing.T) {
	svc := new(mockUserService)
	h := NewUserHandler(svc, cache.NewResponseCache(clock.New(), time.Minute, nil))
	svc.On("RandomUsers", mock.Anything, 1).Return(&dto.RandomUsersResponse{Count: 1}, nil)
	svc.On("RandomUsers", mock.Anything, 3).Return(&dto.RandomUsersResponse{Count: 3}, nil)
	svc.On("RandomUsers", mock.Anything, 50).Return(nil, apperrors.ErrInvalidRequest("count must be between 1 and 10"))

	engine := gin.New()
	engine.NoRoute(asUser(alice), h.Random)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/users/random", nil).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/users/random?count=3", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(engine, http.MethodGet, "/users/random?count=50", nil).Code)
}

func TestProfileHandler(t *testing.T) {
	svc := new(mockUserService)
	h := NewProfileHandler(svc)
	svc.On("GetProfile", mock.Anything, "u1").Return(&dto.UserResponse{ID: "u1", Username: "alice"}, nil)
	svc.On("UpdateProfile", mock.Anything, "u1", mock.Anything).Return(&dto.UserResponse{ID: "u1", Username: "al"}, nil)

	engine := gin.New()
	engine.NoRoute(asUser(alice), h.Handle)
	w := do(engine, http.MethodGet, "/profile", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodPatch, "/profile", map[string]string{"username": "al"}).Code)
	assert.Equal(t, http.StatusNotFound, do(engine, http.MethodGet, "/profile/settings", nil).Code)
}

func TestHandlersRequireIdentity(t *testing.T) {
	h := NewProfileHandler(new(mockUserService))
	engine := gin.New()
	engine.NoRoute(h.Handle)
	assert.Equal(t, http.StatusUnauthorized, do(engine, http.MethodGet, "/profile", nil).Code)
}

// ---------------------------------------------------------------- auth

func TestAuthHandler_Register(t *testing.T) {
	svc := new(mockAuthService)
	h := NewAuthHandler(svc)
	engine := gin.New()
	engine.POST("/auth/register", h.Register)

	svc.On("Register", mock.Anything, mock.MatchedBy(func(r *dto.RegisterRequest) bool { return r.Email == "a@example.com" })).
		Return(&dto.RegisterResponse{Message: "User registered successfully", UserID: "u1"}, nil)
	svc.On("Register", mock.Anything, mock.MatchedBy(func(r *dto.RegisterRequest) bool { return r.Email == "dup@example.com" })).
		Return(nil, apperrors.ErrUserExists())

	body := map[string]string{"username": "a", "password": "secret1", "phone": "555", "email": "a@example.com"}
	w := do(engine, http.MethodPost, "/auth/register", body)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"message":"User registered successfully","userId":"u1"}`, w.Body.String())

	body["email"] = "dup@example.com"
	w = do(engine, http.MethodPost, "/auth/register", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"user_exists","message":"User already exists"}`, w.Body.String())

	w = do(engine, http.MethodPost, "/auth/register", map[string]string{"username": "a", "email": "bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"Password":"required"`)
}

func TestAuthHandler_ForgotAndReset(t *testing.T) {
	svc := new(mockAuthService)
	h := NewAuthHandler(svc)
	engine := gin.New()
	engine.POST("/auth/forgot-password", h.ForgotPassword)
	engine.POST("/auth/reset-password", h.ResetPassword)

	svc.On("ForgotPassword", mock.Anything, mock.Anything).Return(nil)
	svc.On("ResetPassword", mock.Anything, mock.Anything).Return(apperrors.ErrInvalidRequest("invalid or expired reset token"))

	assert.Equal(t, http.StatusOK, do(engine, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "x@example.com"}).Code)
	w := do(engine, http.MethodPost, "/auth/reset-password", map[string]string{"token": "t", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid or expired reset token")
}

// ---------------------------------------------------------------- health

func TestHealthHandler(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	engine := gin.New()
	engine.GET("/health", NewHealthHandler(nil, logger.NewNoopLogger()).HealthCheck)
	engine.GET("/ready", NewHealthHandler(map[string]Pinger{"database": ok, "redis": ok}, logger.NewNoopLogger()).ReadinessCheck)
	engine.GET("/ready-broken", NewHealthHandler(map[string]Pinger{"database": ok, "redis": down}, logger.NewNoopLogger()).ReadinessCheck)

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/ready", nil).Code)

	w := do(engine, http.MethodGet, "/ready-broken", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"unavailable"`)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}
