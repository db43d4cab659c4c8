package report

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, reportService ReportServiceAPI, auth gin.HandlerFunc) {
	reportController := &ReportController{ReportService: reportService}

	group := r.Group("/api/reports")
	group.Use(auth)
	{
		group.POST("/naming", reportController.Naming)
		group.GET("/cobie/:model", reportController.Cobie)
	}
}
