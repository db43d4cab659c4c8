package query

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func RegisterRoutes(r *gin.Engine, engine QueryEngineAPI, log *zap.Logger, auth gin.HandlerFunc) {
	queryController := &QueryController{Engine: engine, Log: log}

	group := r.Group("/api/objects")
	group.Use(auth)
	{
		group.POST("/query", queryController.Query)
		group.POST("/advanced", queryController.Advanced)
		group.POST("/export", queryController.Export)
		group.GET("/:model/:dbid", queryController.GetObject)
	}
}
