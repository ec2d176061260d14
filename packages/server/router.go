// Package server exposes a workbook of sheets over HTTP.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const ApiVersion = "v1"

// SetupRouter wires the API routes. metrics may be nil to leave /metrics out.
func SetupRouter(controller *ApiController, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	apiRouterGroup := router.Group("/api/" + ApiVersion)
	apiRouterGroup.POST("/:sheet_id/:cell_id", controller.SetCellAction)
	apiRouterGroup.GET("/:sheet_id/:cell_id", controller.GetCellAction)
	apiRouterGroup.DELETE("/:sheet_id/:cell_id", controller.ClearCellAction)
	apiRouterGroup.GET("/:sheet_id", controller.GetSheetAction)

	router.GET("/healthcheck", func(c *gin.Context) {
		c.String(http.StatusOK, "health")
	})
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	return router
}
