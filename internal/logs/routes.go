package logs

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, logService LogServiceAPI, auth gin.HandlerFunc) {
	logController := &LogController{LogService: logService}

	group := r.Group("/api/logs")
	group.Use(auth)
	{
		group.POST("/search", logController.GetLogs)
	}
}
