package region

import (
	"net/http"
	"strings"

	"bim-index-api/internal/apperror"

	"github.com/gin-gonic/gin"
)

type RegionController struct {
	RegionService RegionServiceAPI
}

// GET /api/regions?model=P01-T02-...
func (rc *RegionController) GetRegions(c *gin.Context) {
	model := strings.TrimSpace(c.Query("model"))
	if model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model is required"})
		return
	}

	regions, err := rc.RegionService.ListForModel(model)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "data": regions})
}

type resolveRequest struct {
	Regions []Selector `json:"regions"`
}

func (rc *RegionController) ResolveAnchors(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	anchors, err := rc.RegionService.Resolve(req.Regions)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "data": anchors})
}
