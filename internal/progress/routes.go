package progress

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, broker Subscriber, auth gin.HandlerFunc) {
	progressController := &ProgressController{Broker: broker}

	group := r.Group("/api/progress")
	group.Use(auth)
	{
		group.GET("/:topic/stream", progressController.Stream)
	}
}
