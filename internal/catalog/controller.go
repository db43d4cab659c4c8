package catalog

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"bim-index-api/internal/apperror"

	"github.com/gin-gonic/gin"
)

type CatalogController struct {
	CatalogService CatalogServiceAPI
}

// GET /api/catalog/conditions?last_modified=...
func (cc *CatalogController) GetConditions(c *gin.Context) {
	since, err := parseOptionalTime(c.Query("last_modified"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid last_modified (use RFC3339 or unix ms)"})
		return
	}

	res, err := cc.CatalogService.GetConditionsIfModified(since)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	c.Header("Last-Modified", res.LastModified.UTC().Format(time.RFC3339Nano))
	c.JSON(http.StatusOK, res)
}

func (cc *CatalogController) GetConditionTree(c *gin.Context) {
	tree, err := cc.CatalogService.ConditionTree()
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "data": tree})
}

func (cc *CatalogController) CreateCondition(c *gin.Context) {
	var in ConditionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cond, err := cc.CatalogService.CreateCondition(in)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Condition created", "data": cond})
}

func (cc *CatalogController) GetCodes(c *gin.Context) {
	codes, err := cc.CatalogService.ListCodes()
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "data": codes})
}

func (cc *CatalogController) SeedLevelCodes(c *gin.Context) {
	n, err := cc.CatalogService.SeedLevelCodes()
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Level codes initialized", "count": n})
}

func parseOptionalTime(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return &t, nil
	}

	// unix milliseconds
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		t := time.UnixMilli(ms)
		return &t, nil
	}

	return nil, strconv.ErrSyntax
}
