package bimmodel

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, modelService ModelServiceAPI, auth gin.HandlerFunc) {
	modelController := &ModelController{ModelService: modelService}

	group := r.Group("/api/models")
	group.Use(auth)
	{
		group.GET("", modelController.GetModels)
		group.GET("/:name", modelController.GetModel)
		group.GET("/:name/history", modelController.GetModelHistory)
	}
}
