package bimmodel

import (
	"net/http"
	"strings"

	"bim-index-api/internal/apperror"

	"github.com/gin-gonic/gin"
)

type ModelController struct {
	ModelService ModelServiceAPI
}

// GET /api/models?tender=P01-T02
func (mc *ModelController) GetModels(c *gin.Context) {
	models, err := mc.ModelService.List(c.Query("tender"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "data": models})
}

func (mc *ModelController) GetModel(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	m, err := mc.ModelService.GetByName(name)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "data": m})
}

func (mc *ModelController) GetModelHistory(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model name is required"})
		return
	}

	history, err := mc.ModelService.History(name)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "success", "model": name, "data": history})
}
