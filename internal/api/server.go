// Package api wires the HTTP surface of the gateway.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xzzpig/graph-gateway/internal/api/context"
	graphqlapi "github.com/xzzpig/graph-gateway/internal/api/graphql"
	"github.com/xzzpig/graph-gateway/internal/api/handlers"
	"github.com/xzzpig/graph-gateway/internal/api/sse"
	"github.com/xzzpig/graph-gateway/internal/core/config"
	"github.com/xzzpig/graph-gateway/internal/core/logger"
	"github.com/xzzpig/graph-gateway/internal/core/ports"
)

// Deps are the components the router serves.
type Deps struct {
	Config   *config.Config
	Executor graphqlapi.Executor
	Gates    ports.GateProvider
	Health   ports.HealthReporter
	// Events streams cost reports; nil disables /api/admission/events.
	Events *sse.CostReportBus
	// Gatherer backs the metrics endpoint; nil disables it.
	Gatherer prometheus.Gatherer
}

// SetupRouter builds the gin engine.
func SetupRouter(deps Deps) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	if cfg.App.Environment == string(logger.EnvironmentDevelopment) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(ginLogger(logger.Named("api")))
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(context.LocaleMiddleware())

	r.GET("/health", handlers.Health(deps.Health))

	if deps.Gatherer != nil && cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	gql := graphqlapi.NewHandler(deps.Executor)
	r.POST("/graphql", gql.Post)
	r.GET("/graphql", gql.Get)

	apiGroup := r.Group("/api")
	apiGroup.Use(context.OptionalAuthMiddleware(cfg))
	RegisterAPIRoutes(apiGroup, deps)

	r.NoRoute(handlers.NotFoundHandler)

	return r
}

func ginLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		if len(c.Errors) > 0 {
			for _, e := range c.Errors.Errors() {
				l.Error(e)
			}
			return
		}

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("latency", latency),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			l.Warn(path, fields...)
			return
		}
		l.Info(path, fields...)
	}
}
