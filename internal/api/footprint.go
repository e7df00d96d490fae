package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pantryloop/backend/internal/middleware"
	"github.com/pantryloop/backend/internal/models"
	"github.com/pantryloop/backend/internal/service"
	"github.com/pantryloop/backend/internal/types"
)

// FootprintHandler exposes the non-session footprint estimate path
type FootprintHandler struct {
	footprint *service.FootprintService
	idem      *service.IdempotencyService
}

func NewFootprintHandler(footprint *service.FootprintService, idem *service.IdempotencyService) *FootprintHandler {
	return &FootprintHandler{footprint: footprint, idem: idem}
}

func (h *FootprintHandler) RegisterRoutes(router *gin.RouterGroup) {
	footprint := router.Group("/footprint")
	{
		footprint.POST("/estimate", middleware.Idempotency(h.idem, "footprint.estimate"), h.Estimate)
	}
}

func (h *FootprintHandler) Estimate(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	var req types.EstimateFootprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inputs := make([]models.ConsumptionInput, len(req.Consumptions))
	for i, cr := range req.Consumptions {
		inputs[i] = models.ConsumptionInput{
			IngredientID: cr.IngredientID,
			Quantity:     cr.Quantity,
			Unit:         cr.Unit,
		}
	}

	saving, err := h.footprint.Estimate(c.Request.Context(), owner, inputs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"co2e":  saving.CO2e,
		"water": saving.Water,
		"waste": saving.WasteAvoided,
		"basis": saving.Basis,
	})
}
