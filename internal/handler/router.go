package handler

import (
	"time"

	"github.com/gin-gonic/gin"
)

type httpRecorder interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// Router groups the HTTP handlers and mounts them on a gin engine.
type Router struct {
	students     *StudentHandler
	certificates *CertificateHandler
	coordinator  *CoordinatorHandler
	metrics      *MetricsHandler
	recorder     httpRecorder
}

// NewRouter constructs the route table. recorder may be nil.
func NewRouter(
	students *StudentHandler,
	certificates *CertificateHandler,
	coordinator *CoordinatorHandler,
	metrics *MetricsHandler,
	recorder httpRecorder,
) *Router {
	return &Router{
		students:     students,
		certificates: certificates,
		coordinator:  coordinator,
		metrics:      metrics,
		recorder:     recorder,
	}
}

// Register mounts all routes. Observability endpoints live at the root,
// everything else under prefix.
func (r *Router) Register(engine *gin.Engine, prefix string) {
	engine.GET("/health", r.metrics.Health)
	engine.GET("/ready", r.metrics.Ready)
	engine.GET("/metrics", r.metrics.Prometheus)

	api := engine.Group(prefix)
	if r.recorder != nil {
		api.Use(requestMetrics(r.recorder))
	}

	api.POST("/students", r.students.Register)
	api.GET("/students/:enrollment", r.students.Get)
	api.PUT("/students/:enrollment", r.students.Update)
	api.GET("/students/:enrollment/submissions", r.students.Submissions)
	api.GET("/students/:enrollment/statement.csv", r.students.StatementCSV)
	api.GET("/students/:enrollment/statement.pdf", r.students.StatementPDF)

	api.POST("/certificates", r.certificates.Upload)
	api.GET("/certificates/:id", r.certificates.Status)
	api.GET("/files/:token", r.certificates.Download)

	coordinator := api.Group("/coordinator")
	coordinator.GET("/pending", r.coordinator.Pending)
	coordinator.GET("/submissions/:id", r.coordinator.Details)
	coordinator.POST("/submissions/:id/approve", r.coordinator.Approve)
	coordinator.POST("/submissions/:id/reject", r.coordinator.Reject)
	coordinator.POST("/submissions/:id/override", r.coordinator.Override)
}

// requestMetrics records duration and status per route template. FullPath
// keeps the label cardinality bounded.
func requestMetrics(recorder httpRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		recorder.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
