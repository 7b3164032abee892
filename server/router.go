package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	metricsx "github.com/warin-t/salesforce-next-best-action/pkg/metrics"
)

// Config holds the HTTP listener settings.
type Config struct {
	Addr       string        `envconfig:"ADDR" split_words:"true" default:":8080"`
	Mode       string        `envconfig:"MODE" split_words:"true" default:"release"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" split_words:"true" default:"30m"`
}

// NewRouter wires the dashboard API.
func NewRouter(s *Server, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/sessions", s.createSession)
		api.DELETE("/sessions/:id", s.deleteSession)
		api.POST("/sessions/:id/account", s.loadAccount)
		api.POST("/sessions/:id/analyze", s.analyze)
		api.POST("/sessions/:id/analyze/compare", s.compare)
		api.POST("/sessions/:id/recommendations", s.recommend)
		api.POST("/sessions/:id/recommendations/select", s.selectRecommendation)
		api.POST("/sessions/:id/plan", s.buildPlan)
		api.POST("/sessions/:id/execute", s.execute)
		api.GET("/sessions/:id/report", s.report)
		api.POST("/batch/analyze", s.batchAnalyze)
		api.GET("/templates", s.listTemplates)
	}

	return r
}

// requestLogger emits one structured line per handled request and feeds the
// latency histogram.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()

		metricsx.ObserveHTTP(c.Request.Method, path, statusClass(status), elapsed)

		event := log.Info()
		if status >= 500 {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("http request")
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
