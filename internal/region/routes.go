package region

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, svc RegionServiceAPI, auth gin.HandlerFunc) {
	rc := &RegionController{RegionService: svc}

	group := r.Group("/api/regions")
	group.Use(auth)
	{
		group.GET("", rc.GetRegions)
		group.POST("/resolve", rc.ResolveAnchors)
	}
}
