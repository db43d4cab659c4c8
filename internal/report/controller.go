package report

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"bim-index-api/internal/apperror"
	"bim-index-api/internal/util"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportController struct {
	ReportService ReportServiceAPI
}

func wantsXLSX(c *gin.Context) bool {
	f := strings.ToLower(strings.TrimSpace(c.Query("format")))
	return f == "xlsx" || f == "excel"
}

func sendXLSX(c *gin.Context, name string, report Tabular) {
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_%s.xlsx"`, name, time.Now().Format("20060102_150405")))
	c.Status(http.StatusOK)
	if err := WriteXLSX(report, c.Writer); err != nil {
		_ = c.Error(err)
	}
}

// POST /api/reports/naming[?models=all|a,b][&format=xlsx]
// body: {"files": [...]} or {"models": [...]}
func (rc *ReportController) Naming(c *gin.Context) {
	var req NamingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	switch models := strings.TrimSpace(c.Query("models")); {
	case strings.EqualFold(models, "all"):
		req.All = true
	case models != "":
		req.Models = append(req.Models, util.ParseCommaSeparated(models)...)
	}

	out, err := rc.ReportService.Naming(req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	if wantsXLSX(c) {
		sendXLSX(c, "naming_compliance", out)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "data": out})
}

// GET /api/reports/cobie/:model[?format=xlsx]
func (rc *ReportController) Cobie(c *gin.Context) {
	out, err := rc.ReportService.Cobie(strings.TrimSpace(c.Param("model")))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	if wantsXLSX(c) {
		sendXLSX(c, "cobie_"+util.SanitizePart(out.Model), out)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "data": out})
}
