package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pantryloop/backend/internal/middleware"
	"github.com/pantryloop/backend/internal/models"
	"github.com/pantryloop/backend/internal/service"
	"github.com/pantryloop/backend/internal/types"
)

// BatchHandler exposes batch intake, listing and the rescue operations
type BatchHandler struct {
	batches *service.BatchService
	rescue  *service.RescueService
	idem    *service.IdempotencyService
}

func NewBatchHandler(batches *service.BatchService, rescue *service.RescueService, idem *service.IdempotencyService) *BatchHandler {
	return &BatchHandler{batches: batches, rescue: rescue, idem: idem}
}

func (h *BatchHandler) RegisterRoutes(router *gin.RouterGroup) {
	batches := router.Group("/batches")
	{
		batches.GET("", h.ListBatches)
		batches.GET("/:id", h.GetBatch)
		batches.POST("", middleware.Idempotency(h.idem, "batches.create"), h.CreateBatch)
		batches.POST("/:id/reserve", middleware.Idempotency(h.idem, "batches.reserve"), h.ReserveBatch)
		batches.POST("/:id/freeze", middleware.Idempotency(h.idem, "batches.freeze"), h.FreezeBatch)
		batches.POST("/:id/transform", middleware.Idempotency(h.idem, "batches.transform"), h.TransformBatch)
		batches.POST("/:id/quarantine", middleware.Idempotency(h.idem, "batches.quarantine"), h.QuarantineBatch)
		batches.POST("/:id/discard", middleware.Idempotency(h.idem, "batches.discard"), h.DiscardBatch)
	}
	router.GET("/waste", h.ListWaste)
}

func (h *BatchHandler) ListBatches(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	batches, err := h.batches.ListBatches(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

func (h *BatchHandler) GetBatch(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	batch, err := h.batches.GetBatch(c.Request.Context(), owner, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

func (h *BatchHandler) CreateBatch(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	var req types.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	location := models.StorageLocation(req.Location)
	if location == "" {
		location = models.LocationPantry
	}
	batch := &models.IngredientBatch{
		IngredientID:   req.IngredientID,
		IngredientName: req.IngredientName,
		Quantity:       req.Quantity,
		Unit:           req.Unit,
		Location:       location,
		LabelType:      models.LabelType(req.LabelType),
		ExpiryDate:     req.ExpiryDate,
		Sealed:         req.Sealed,
		OwnerID:        owner,
	}

	created, err := h.batches.CreateBatch(c.Request.Context(), batch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *BatchHandler) ReserveBatch(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req types.ReserveBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, err := h.rescue.Reserve(c.Request.Context(), owner, id, req.PlannedFor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

func (h *BatchHandler) FreezeBatch(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req types.FreezeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, err := h.rescue.Freeze(c.Request.Context(), owner, id, req.NewBestBefore)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

func (h *BatchHandler) TransformBatch(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req types.TransformBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	derived, err := h.rescue.Transform(c.Request.Context(), owner, id, req.OutputType, req.YieldQty, req.Unit, req.ShelfLifeDays)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, derived)
}

func (h *BatchHandler) QuarantineBatch(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	batch, err := h.rescue.Quarantine(c.Request.Context(), owner, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

func (h *BatchHandler) DiscardBatch(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req types.DiscardBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.rescue.Discard(c.Request.Context(), owner, id, req.EstimatedWeight, req.Unit, models.WasteReason(req.Reason))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"waste_id":    result.Waste.ID,
		"co2e_wasted": result.CO2eWasted,
	})
}

func (h *BatchHandler) ListWaste(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	entries, err := h.rescue.ListWaste(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"waste": entries})
}
