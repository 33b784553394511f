package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/taskflow/internal/application/dto"
	"github.com/turtacn/taskflow/internal/application/service"
	"github.com/turtacn/taskflow/pkg/constants"
	"github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
)

// ListingCache is the cache the task handler reads through and invalidates.
type ListingCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttlSeconds int)
	Invalidate(prefix string) int
}

// TaskHandler serves /tasks and /tasks/{id}. It is the default route of the dispatcher, so
// paths no other route claims end here as route_not_found.
type TaskHandler struct {
	tasks    service.TaskAppService
	cache    ListingCache
	cacheTTL int
	flights  singleflight.Group
	log      logger.Logger

	// gens 记录每个用户的缓存代数，写操作递增；旧代数的查询结果不会写回缓存
	genMu sync.Mutex
	gens  map[string]uint64
}

// NewTaskHandler creates a new TaskHandler. cacheTTL is in seconds.
func NewTaskHandler(tasks service.TaskAppService, cache ListingCache, cacheTTL int, log logger.Logger) *TaskHandler {
	if cacheTTL <= 0 {
		cacheTTL = constants.TaskListCacheTTLSeconds
	}
	return &TaskHandler{
		tasks:    tasks,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log.WithComponent("task_handler"),
		gens:     make(map[string]uint64),
	}
}

// Handle routes a request by method and path.
func (h *TaskHandler) Handle(c *gin.Context) {
	segs := segments(c.Request.URL.Path)
	if len(segs) == 0 || segs[0] != "tasks" || len(segs) > 2 {
		routeNotFound(c)
		return
	}

	if len(segs) == 1 {
		switch c.Request.Method {
		case http.MethodGet:
			h.List(c)
		case http.MethodPost:
			h.Create(c)
		default:
			routeNotFound(c)
		}
		return
	}

	id := segs[1]
	switch c.Request.Method {
	case http.MethodGet:
		h.Get(c, id)
	case http.MethodPut, http.MethodPatch:
		h.Update(c, id)
	case http.MethodDelete:
		h.Delete(c, id)
	default:
		routeNotFound(c)
	}
}

// List serves a listing through the cache. Concurrent misses of one key share a single
// repository query. The query is detached from the first caller's cancellation so joined
// callers still get a result, and a result computed before a write is never cached.
func (h *TaskHandler) List(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	var q dto.ListTasksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, invalidInput("Invalid query parameters", err))
		return
	}
	filter := q.Filter()
	key := constants.TaskCacheKey(caller.UserID, filter.Variant())

	if cached, hit := h.cache.Get(key); hit {
		if body, ok := cached.([]byte); ok {
			c.Header(constants.HeaderCache, "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			return
		}
	}

	gen := h.generation(caller.UserID)
	ctx := context.WithoutCancel(c.Request.Context())
	v, err, _ := h.flights.Do(key+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		resp, err := h.tasks.List(ctx, caller.UserID, filter)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(resp)
		if err != nil {
			return nil, errors.ErrInternal("").WithCause(err)
		}
		h.storeIfCurrent(caller.UserID, gen, key, body)
		return body, nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header(constants.HeaderCache, "MISS")
	c.Data(http.StatusOK, "application/json; charset=utf-8", v.([]byte))
}

func (h *TaskHandler) Create(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	var req dto.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), caller.UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.invalidate(c, caller.UserID)
	c.JSON(http.StatusCreated, dto.TaskEnvelope{Message: "Task created successfully", Task: *task})
}

func (h *TaskHandler) Get(c *gin.Context, id string) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	task, err := h.tasks.Get(c.Request.Context(), caller.UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TaskEnvelope{Task: *task})
}

func (h *TaskHandler) Update(c *gin.Context, id string) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	var req dto.UpdateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), caller.UserID, id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.invalidate(c, caller.UserID)
	c.JSON(http.StatusOK, dto.TaskEnvelope{Message: "Task updated successfully", Task: *task})
}

func (h *TaskHandler) Delete(c *gin.Context, id string) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), caller.UserID, id); err != nil {
		respondError(c, err)
		return
	}
	h.invalidate(c, caller.UserID)
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Task deleted successfully"})
}

func (h *TaskHandler) generation(userID string) uint64 {
	h.genMu.Lock()
	defer h.genMu.Unlock()
	return h.gens[userID]
}

func (h *TaskHandler) storeIfCurrent(userID string, gen uint64, key string, body []byte) {
	h.genMu.Lock()
	defer h.genMu.Unlock()
	if h.gens[userID] != gen {
		return
	}
	h.cache.Set(key, body, h.cacheTTL)
}

func (h *TaskHandler) invalidate(c *gin.Context, userID string) {
	h.genMu.Lock()
	h.gens[userID]++
	removed := h.cache.Invalidate(constants.TaskCacheNamespace(userID))
	h.genMu.Unlock()
	h.log.Debug(c.Request.Context(), "Task cache invalidated",
		logger.String("user_id", userID),
		logger.Int("removed", removed),
	)
}
