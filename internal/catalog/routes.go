package catalog

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, catalogService CatalogServiceAPI, auth gin.HandlerFunc) {
	catalogController := &CatalogController{CatalogService: catalogService}

	group := r.Group("/api/catalog")
	group.Use(auth)
	{
		group.GET("/conditions", catalogController.GetConditions)
		group.GET("/conditions/tree", catalogController.GetConditionTree)
		group.POST("/conditions", catalogController.CreateCondition)
		group.GET("/codes", catalogController.GetCodes)
		group.POST("/codes/levels/seed", catalogController.SeedLevelCodes)
	}
}
