package ingest

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, ingestService IngestServiceAPI, jobs JobRunnerAPI, stagingDir string, auth gin.HandlerFunc) {
	ingestController := &IngestController{IngestService: ingestService, Jobs: jobs, StagingDir: stagingDir}

	group := r.Group("/api/ingest")
	group.Use(auth)
	{
		group.POST("", ingestController.StartIngest)
		group.POST("/:model/revert", ingestController.Revert)
		group.POST("/:model/reload", ingestController.Reload)
		group.GET("/jobs/:id", ingestController.GetJob)
	}

	models := r.Group("/api/models")
	models.Use(auth)
	{
		models.GET("/:name/diff", ingestController.Diff)
	}
}
