package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xzzpig/graph-gateway/internal/api/handlers"
	"github.com/xzzpig/graph-gateway/internal/core/logger"
)

// routesLog returns a named logger for the api.routes package.
func routesLog() *zap.Logger {
	return logger.Named("api.routes")
}

// RegisterAPIRoutes registers the /api routes to the given router group.
func RegisterAPIRoutes(router *gin.RouterGroup, deps Deps) {
	if deps.Gates == nil {
		routesLog().Warn("No admission gate configured, /api/admission routes disabled")
		return
	}

	admissionHandler := handlers.NewAdmissionHandler(deps.Gates)

	adm := router.Group("/admission")
	{
		adm.GET("/config", admissionHandler.Config)
		adm.POST("/estimate", admissionHandler.Estimate)
		if deps.Events != nil {
			adm.GET("/events", deps.Events.Handler)
		}
	}
}
