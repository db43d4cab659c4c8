package categorize

import (
	"net/http"
	"strconv"

	"bim-index-api/internal/apperror"

	"github.com/gin-gonic/gin"
)

type CategoryController struct {
	CategoryService CategoryServiceAPI
}

// GET /api/categories?model_id=3
func (cc *CategoryController) GetCategories(c *gin.Context) {
	raw := c.Query("model_id")
	if raw == "" {
		options, err := cc.CategoryService.Distinct()
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "success", "data": options})
		return
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model_id"})
		return
	}
	cats, err := cc.CategoryService.ListForModel(uint(id))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "data": cats})
}
