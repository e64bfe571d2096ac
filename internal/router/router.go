package router

import (
	"net/http"

	"attendly/internal/attendance"
	"attendly/internal/config"
	"attendly/internal/handler"
	"attendly/internal/lease"
	"attendly/internal/middleware"
	"attendly/internal/rotation"
	"attendly/internal/store"
	"attendly/internal/suggest"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the services the routes are wired to.
type Deps struct {
	Config      *config.Config
	Store       *store.Gorm
	Sessions    *attendance.Manager
	Coordinator *lease.Coordinator
	Engine      *rotation.Engine
	Suggest     *suggest.Service
	Clock       clock.Clock
	Gatherer    prometheus.Gatherer
	Log         *zap.Logger
}

// SetupRouter builds the gin engine with the attendee, organizer and ops routes.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(middleware.AccessLog(d.Log), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// ====== API ======
	api := r.Group("/api")

	// attendee endpoints (no auth)
	attendanceHandler := handler.NewAttendanceHandler(d.Sessions, cfg.Attendance.CookieMaxAge(), cfg.Server.SecureCookies(), d.Log)
	api.POST("/attendance/session", attendanceHandler.StartSession)
	api.POST("/attendance/submit", attendanceHandler.Submit)

	// organizer endpoints
	auth := middleware.AuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer)

	// lease claims, renewals and rotations repeat every few seconds and are not audited
	hosting := api.Group("", auth)

	protected := api.Group("")
	protected.Use(auth, middleware.AuditMiddleware(d.Store.DB(), cfg.Security.EncryptionKey, d.Log))

	protected.GET("/me", handler.GetMe)

	seasonHandler := handler.NewSeasonHandler(d.Store)
	protected.POST("/seasons", seasonHandler.CreateSeason)
	protected.GET("/seasons", seasonHandler.ListSeasons)

	eventHandler := handler.NewEventHandler(d.Store, cfg.Server.PublicOrigin, d.Clock, d.Coordinator.Duration())
	protected.POST("/events", eventHandler.CreateEvent)
	protected.GET("/events", eventHandler.ListEvents)
	protected.GET("/events/:id", eventHandler.GetEvent)
	protected.PUT("/events/:id", eventHandler.UpdateEvent)
	protected.POST("/events/:id/start", eventHandler.StartEvent)
	protected.POST("/events/:id/stop", eventHandler.StopEvent)
	protected.GET("/events/:id/state", eventHandler.State)

	leaseHandler := handler.NewLeaseHandler(d.Store, d.Coordinator, d.Engine)
	hosting.POST("/events/:id/lease/claim", leaseHandler.Claim)
	hosting.POST("/events/:id/lease/renew", leaseHandler.Renew)
	protected.POST("/events/:id/lease/release", leaseHandler.Release)
	hosting.POST("/events/:id/rotate", leaseHandler.Rotate)

	recordHandler := handler.NewRecordHandler(d.Store)
	protected.GET("/events/:id/records", recordHandler.ListRecords)
	protected.PUT("/records/:id/status", recordHandler.UpdateRecordStatus)
	protected.DELETE("/records/:id", recordHandler.DeleteRecord)

	suggestionHandler := handler.NewSuggestionHandler(d.Store, d.Suggest)
	protected.GET("/seasons/:id/suggestions", suggestionHandler.List)
	protected.POST("/seasons/:id/suggestions/apply", suggestionHandler.Apply)
	protected.POST("/seasons/:id/suggestions/dismiss", suggestionHandler.Dismiss)

	logHandler := handler.NewLogHandler(d.Store.DB(), cfg.Security.EncryptionKey)
	protected.GET("/logs", logHandler.ListLogs)
	protected.GET("/logs/moderation", logHandler.ListModerationHistory)

	return r
}
