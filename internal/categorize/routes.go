package categorize

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, svc CategoryServiceAPI, auth gin.HandlerFunc) {
	cc := &CategoryController{CategoryService: svc}

	group := r.Group("/api/categories")
	group.Use(auth)
	{
		group.GET("", cc.GetCategories)
	}
}
