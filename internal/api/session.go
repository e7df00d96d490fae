package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pantryloop/backend/internal/middleware"
	"github.com/pantryloop/backend/internal/models"
	"github.com/pantryloop/backend/internal/service"
	"github.com/pantryloop/backend/internal/types"
)

// SessionHandler exposes the guided cooking session lifecycle
type SessionHandler struct {
	sessions *service.CookingSessionService
	idem     *service.IdempotencyService
}

func NewSessionHandler(sessions *service.CookingSessionService, idem *service.IdempotencyService) *SessionHandler {
	return &SessionHandler{sessions: sessions, idem: idem}
}

func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	sessions := router.Group("/sessions")
	{
		sessions.GET("/:id", h.GetSession)
		sessions.POST("", middleware.Idempotency(h.idem, "sessions.start"), h.StartSession)
		sessions.POST("/:id/steps/complete", middleware.Idempotency(h.idem, "sessions.complete_step"), h.CompleteStep)
		sessions.POST("/:id/finish", middleware.Idempotency(h.idem, "sessions.finish"), h.FinishSession)
		sessions.POST("/:id/leftovers", middleware.Idempotency(h.idem, "sessions.leftovers"), h.CreateLeftover)
	}
	leftovers := router.Group("/leftovers")
	{
		leftovers.GET("", h.ListLeftovers)
		leftovers.POST("/:id/consume", middleware.Idempotency(h.idem, "leftovers.consume"), h.ConsumeLeftover)
	}
}

func (h *SessionHandler) StartSession(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	var req types.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessions.Start(c.Request.Context(), owner, req.RecipeID, req.Servings, req.Level)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.ID,
		"status":     session.Status,
		"steps":      session.Steps,
	})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), owner, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) CompleteStep(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req types.CompleteStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	consumptions := make([]service.StepConsumption, len(req.Consumptions))
	for i, cr := range req.Consumptions {
		consumptions[i] = service.StepConsumption{
			IngredientID: cr.IngredientID,
			LotID:        cr.LotID,
			Quantity:     cr.Quantity,
			Unit:         cr.Unit,
		}
	}

	result, err := h.sessions.CompleteStep(c.Request.Context(), owner, id, req.StepID, consumptions, req.ElapsedSeconds)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":                 true,
		"updated_quantities": result.UpdatedQuantities,
		"warnings":           result.Warnings,
	})
}

func (h *SessionHandler) FinishSession(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req types.FinishSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.sessions.Finish(c.Request.Context(), owner, id, req.Notes, req.PhotoURL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"environmental_saving": gin.H{
			"co2e":  result.Saving.CO2e,
			"water": result.Saving.Water,
			"waste": result.Saving.WasteAvoided,
		},
		"leftover_suggestion": result.Suggestion,
	})
}

func (h *SessionHandler) CreateLeftover(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req types.CreateLeftoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	leftover, err := h.sessions.CreateLeftover(c.Request.Context(), owner, id, req.Portions, models.StorageLocation(req.Location))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, leftover)
}

func (h *SessionHandler) ListLeftovers(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	items, err := h.sessions.ListLeftovers(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leftovers": items})
}

func (h *SessionHandler) ConsumeLeftover(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	item, err := h.sessions.ConsumeLeftover(c.Request.Context(), owner, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}
