package query

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bim-index-api/internal/apperror"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type QueryController struct {
	Engine QueryEngineAPI
	Log    *zap.Logger
}

// POST /api/objects/query
func (qc *QueryController) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := qc.Engine.Query(c.Request.Context(), req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "success",
		"data":        page.Data,
		"page":        page.Page,
		"size":        page.Size,
		"total":       page.Total,
		"total_pages": page.TotalPages,
	})
}

// POST /api/objects/advanced
func (qc *QueryController) Advanced(c *gin.Context) {
	var req AdvancedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := qc.Engine.Advanced(c.Request.Context(), req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "success",
		"data":        page.Data,
		"page":        page.Page,
		"size":        page.Size,
		"total":       page.Total,
		"total_pages": page.TotalPages,
	})
}

// attachmentWriter sends the download headers on the first write, so a
// request that fails before producing output can still answer with JSON.
type attachmentWriter struct {
	c        *gin.Context
	format   ExportFormat
	filename string
	started  bool
}

func (a *attachmentWriter) Write(p []byte) (int, error) {
	if !a.started {
		a.started = true
		a.c.Header("Content-Type", a.format.ContentType)
		a.c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, a.filename))
		a.c.Header("Cache-Control", "no-store")
		a.c.Status(http.StatusOK)
	}
	return a.c.Writer.Write(p)
}

// POST /api/objects/export?format=csv|txt|xlsx
func (qc *QueryController) Export(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	format, err := LookupFormat(c.Query("format"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	ts := time.Now().Format("20060102_150405")
	w := &attachmentWriter{c: c, format: format, filename: fmt.Sprintf("objects_%s.%s", ts, format.Extension)}
	if err := qc.Engine.Export(c.Request.Context(), req, format.Name, w); err != nil {
		if !w.started {
			apperror.Respond(c, err)
			return
		}
		if qc.Log != nil {
			qc.Log.Error("export aborted mid-stream", zap.Error(err))
		}
		_ = c.Error(err)
	}
}

// GET /api/objects/:model/:dbid
func (qc *QueryController) GetObject(c *gin.Context) {
	dbid, err := strconv.ParseInt(c.Param("dbid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dbid"})
		return
	}

	obj, err := qc.Engine.GetObject(c.Request.Context(), strings.TrimSpace(c.Param("model")), dbid)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "data": obj})
}
