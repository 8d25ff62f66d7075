package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/httpmiddleware"
	"rollcall/internal/logging"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	CORSOrigins     []string
	RateLimitPerMin int
	Production      bool
}

// NewRouter wires middleware and routes onto a gin engine.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    logging.WithComponent("http"),
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	r.Use(securityHeaders(opts.Production))
	r.Use(httpmiddleware.NewTokenBucket(opts.RateLimitPerMin, opts.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	att := r.Group("/attendance")
	{
		att.PATCH("/update", h.UpdateAttendance)
		att.POST("/bulk", h.SubmitRoll)
		att.GET("/schedule", h.PendingSchedules)
		att.GET("/schedule/history", h.StaffHistory)
		att.GET("/present/:date", h.PresentOn)
		att.GET("/summary/:date", h.Summary)
		att.GET("/all", h.AttendanceDates)
		att.GET("", h.StudentMatrix)
	}

	sch := r.Group("/schedule")
	{
		sch.POST("", h.CreateSchedule)
		sch.GET("", h.UpcomingSchedules)
		sch.GET("/history", h.ScheduleHistory)
		sch.GET("/:date", h.SchedulesOn)
		sch.DELETE("/:id", h.CancelSchedule)
		sch.POST("/sweep", h.RequestSweep)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func securityHeaders(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if production {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
