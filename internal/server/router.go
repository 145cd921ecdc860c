package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/srvctl/internal/manager"
	"github.com/loykin/srvctl/internal/registry"
)

// Router exposes the engine over HTTP. Routes, relative to basePath:
//
//	GET    /healthz
//	GET    /servers                 list
//	POST   /servers                 add (server JSON)
//	GET    /servers/:name           cached status
//	GET    /servers/:name/detail    status plus live checks
//	PATCH  /servers/:name           edit (patch JSON)
//	DELETE /servers/:name           remove
//	POST   /servers/:name/start|stop|restart
//	POST   /start-all, /stop-all    bulk, always 200 with per-server results
//	POST   /reconcile               mark dead servers stopped
//	GET    /ports                   port usage report
type Router struct {
	eng      *manager.Engine
	basePath string
	log      *slog.Logger
}

// NewRouter constructs a Router. basePath may be empty or start with '/'.
func NewRouter(eng *manager.Engine, basePath string, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{eng: eng, basePath: sanitizeBase(basePath), log: log}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery(), r.accessLog())
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealth)
	group.GET("/servers", r.handleList)
	group.POST("/servers", r.handleAdd)
	group.GET("/servers/:name", r.handleGet)
	group.GET("/servers/:name/detail", r.handleDetail)
	group.PATCH("/servers/:name", r.handleUpdate)
	group.DELETE("/servers/:name", r.handleRemove)
	group.POST("/servers/:name/start", r.handleStart)
	group.POST("/servers/:name/stop", r.handleStop)
	group.POST("/servers/:name/restart", r.handleRestart)
	group.POST("/start-all", r.handleStartAll)
	group.POST("/stop-all", r.handleStopAll)
	group.POST("/reconcile", r.handleReconcile)
	group.GET("/ports", r.handlePorts)
	return g
}

// NewServer starts a standalone HTTP server on addr serving this router.
func NewServer(addr, basePath string, eng *manager.Engine, log *slog.Logger) *http.Server {
	r := NewRouter(eng, basePath, log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// restart may wait for the settle delay plus a port probe
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.log.Error("http server stopped", "addr", addr, "error", err)
		}
	}()
	return srv
}

func (r *Router) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		r.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

type okResp struct {
	OK bool `json:"ok"`
}

// ResultResponse is one entry of a bulk operation reply.
type ResultResponse struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

type reconcileResp struct {
	Lost []string `json:"lost"`
}

// reconcileFailResp is returned when lost servers were marked stopped in
// memory but the registry could not be saved.
type reconcileFailResp struct {
	ErrorResponse
	Lost []string `json:"lost,omitempty"`
}

func (r *Router) fail(c *gin.Context, err error) {
	status, code := classify(err)
	writeJSON(c, status, ErrorResponse{Error: err.Error(), Code: code})
}

func (r *Router) badRequest(c *gin.Context, msg string) {
	writeJSON(c, http.StatusBadRequest, ErrorResponse{Error: msg, Code: CodeInvalid})
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleList(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.eng.List())
}

func (r *Router) handleAdd(c *gin.Context) {
	var srv registry.Server
	if err := c.ShouldBindJSON(&srv); err != nil {
		r.badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	if !isSafeAbsPath(srv.WorkingDirectory) {
		r.badRequest(c, "working_directory must be an absolute path without traversal")
		return
	}
	if err := r.eng.Add(c.Request.Context(), srv); err != nil {
		r.fail(c, err)
		return
	}
	r.respondServer(c, http.StatusCreated, srv.Name)
}

func (r *Router) handleGet(c *gin.Context) {
	r.respondServer(c, http.StatusOK, c.Param("name"))
}

func (r *Router) handleDetail(c *gin.Context) {
	d, err := r.eng.Inspect(c.Param("name"))
	if err != nil {
		r.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (r *Router) handleUpdate(c *gin.Context) {
	var p manager.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		r.badRequest(c, "invalid JSON: "+err.Error())
		return
	}
	if p.WorkingDirectory != nil && !isSafeAbsPath(*p.WorkingDirectory) {
		r.badRequest(c, "working_directory must be an absolute path without traversal")
		return
	}
	name := c.Param("name")
	if err := r.eng.Update(c.Request.Context(), name, p); err != nil {
		r.fail(c, err)
		return
	}
	r.respondServer(c, http.StatusOK, name)
}

func (r *Router) handleRemove(c *gin.Context) {
	if err := r.eng.Remove(c.Request.Context(), c.Param("name")); err != nil {
		r.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStart(c *gin.Context) {
	r.lifecycle(c, r.eng.Start)
}

func (r *Router) handleStop(c *gin.Context) {
	r.lifecycle(c, r.eng.Stop)
}

func (r *Router) handleRestart(c *gin.Context) {
	r.lifecycle(c, r.eng.Restart)
}

func (r *Router) handleStartAll(c *gin.Context) {
	writeJSON(c, http.StatusOK, toResults(r.eng.StartAll(c.Request.Context())))
}

func (r *Router) handleStopAll(c *gin.Context) {
	writeJSON(c, http.StatusOK, toResults(r.eng.StopAll(c.Request.Context())))
}

func (r *Router) handleReconcile(c *gin.Context) {
	lost, err := r.eng.ReconcileOnce(c.Request.Context())
	if err != nil {
		r.log.Error("reconcile failed", "servers", lost, "error", err)
		status, code := classify(err)
		writeJSON(c, status, reconcileFailResp{
			ErrorResponse: ErrorResponse{Error: err.Error(), Code: code},
			Lost:          lost,
		})
		return
	}
	if lost == nil {
		lost = []string{}
	}
	writeJSON(c, http.StatusOK, reconcileResp{Lost: lost})
}

func (r *Router) handlePorts(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.eng.Ports())
}

// lifecycle runs op on the named server and replies with the resulting record.
func (r *Router) lifecycle(c *gin.Context, op func(ctx context.Context, name string) error) {
	name := c.Param("name")
	if err := op(c.Request.Context(), name); err != nil {
		r.fail(c, err)
		return
	}
	r.respondServer(c, http.StatusOK, name)
}

func (r *Router) respondServer(c *gin.Context, status int, name string) {
	srv, err := r.eng.Get(name)
	if err != nil {
		r.fail(c, err)
		return
	}
	writeJSON(c, status, srv)
}

func toResults(rs []manager.Result) []ResultResponse {
	out := make([]ResultResponse, 0, len(rs))
	for _, res := range rs {
		rr := ResultResponse{Name: res.Name, OK: res.Err == nil}
		if res.Err != nil {
			rr.Error = res.Err.Error()
			rr.Code = CodeOf(res.Err)
		}
		out = append(out, rr)
	}
	return out
}
