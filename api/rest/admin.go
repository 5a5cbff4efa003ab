package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/nightwatch/archive"
	"github.com/kasuganosora/nightwatch/game/world"
	mw "github.com/kasuganosora/nightwatch/middleware"
	"github.com/kasuganosora/nightwatch/plugin/hook"
	"github.com/kasuganosora/nightwatch/scheduler"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	wm     *world.WorldManager
	hooks  *hook.HookCenter
	sched  *scheduler.Scheduler
	arch   *archive.Service
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler. hooks, sched and arch may be nil.
func NewAdminHandler(wm *world.WorldManager, hooks *hook.HookCenter, sched *scheduler.Scheduler, arch *archive.Service, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{wm: wm, hooks: hooks, sched: sched, arch: arch, logger: logger}
}

// Register mounts the admin routes on g behind AdminAuth(adminKey).
func (h *AdminHandler) Register(g *gin.RouterGroup, adminKey string) {
	admin := g.Group("/admin")
	admin.Use(AdminAuth(adminKey))
	admin.GET("/metrics", h.Metrics)
	admin.GET("/scheduler", h.ListSchedulerTasks)
	admin.DELETE("/rooms/:id", h.DestroyRoom)
	admin.GET("/incidents", h.ListIncidents)
}

// Metrics returns room, state and publisher counters.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	resp := gin.H{"world": h.wm.Metrics()}
	if h.hooks != nil {
		resp["hooks"] = h.hooks.Registered()
	}
	if h.sched != nil {
		resp["scheduler_tasks"] = h.sched.ListTickers()
	}
	c.JSON(http.StatusOK, resp)
}

// ListSchedulerTasks returns all registered ticker tasks with run counters.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	if h.sched == nil {
		c.JSON(http.StatusOK, gin.H{"tasks": []scheduler.TaskInfo{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}

// DestroyRoom stops and removes a room.
// DELETE /api/admin/rooms/:id
func (h *AdminHandler) DestroyRoom(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.wm.Get(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	h.wm.Destroy(id)
	h.logger.Info("admin destroyed room", zap.String("room", id), mw.TraceField(c))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListIncidents queries the incident archive.
// GET /api/admin/incidents?room=&kind=&since=<RFC3339>&limit=N
func (h *AdminHandler) ListIncidents(c *gin.Context) {
	if h.arch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "incident archive disabled: set database.mode in config"})
		return
	}
	q := archive.Query{Room: c.Query("room"), Kind: c.Query("kind")}
	if s := c.Query("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
			return
		}
		q.Since = t
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		q.Limit = n
	}
	incidents, err := h.arch.Find(c.Request.Context(), q)
	if err != nil {
		h.logger.Error("incident query failed", mw.TraceField(c), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incidents, "count": len(incidents)})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// If adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be deployed without protection by accident.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		if c.GetHeader("X-Admin-Key") != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
