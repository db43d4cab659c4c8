package logs

import (
	"errors"
	"net/http"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/util"

	"github.com/gin-gonic/gin"
)

type LogController struct {
	LogService LogServiceAPI
}

// POST /api/logs/search
func (lc *LogController) GetLogs(c *gin.Context) {
	var input LogFilterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := lc.LogService.GetLogs(input)
	if err != nil {
		if errors.Is(err, util.ErrInvalidDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		apperror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        page.Rows,
		"page":        page.Page,
		"page_size":   page.PageSize,
		"total":       page.Total,
		"total_pages": page.TotalPages,
		"aggregates":  page.Aggregates,
	})
}
