package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-academics/internal/dto"
	"github.com/noah-isme/sis-academics/pkg/response"
)

type promotionService interface {
	Preview(ctx context.Context, req dto.PromotionSetupRequest) (*dto.PromotionPreview, error)
	Execute(ctx context.Context, actorID string, req dto.PromotionExecuteRequest) (*dto.PromotionResult, error)
	SuggestTarget(ctx context.Context, sourceClassID string) (*dto.TargetSuggestion, error)
}

// PromotionHandler exposes the promotion engine.
type PromotionHandler struct {
	promotions promotionService
}

// NewPromotionHandler constructs PromotionHandler.
func NewPromotionHandler(promotions promotionService) *PromotionHandler {
	return &PromotionHandler{promotions: promotions}
}

// Preview godoc
// @Summary Preview a promotion
// @Description Lists the active students of the source class and whether the action applies to each. Never writes.
// @Tags Promotions
// @Accept json
// @Produce json
// @Param payload body dto.PromotionSetupRequest true "Promotion setup"
// @Success 200 {object} response.Envelope{data=dto.PromotionPreview}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /promotions/preview [post]
func (h *PromotionHandler) Preview(c *gin.Context) {
	var req dto.PromotionSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	preview, err := h.promotions.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Execute godoc
// @Summary Execute a promotion
// @Description Applies the action to the selected students. Each student commits on its own; failures are itemised.
// @Tags Promotions
// @Accept json
// @Produce json
// @Param payload body dto.PromotionExecuteRequest true "Promotion execute"
// @Success 200 {object} response.Envelope{data=dto.PromotionResult}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /promotions/execute [post]
func (h *PromotionHandler) Execute(c *gin.Context) {
	var req dto.PromotionExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.promotions.Execute(c.Request.Context(), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SuggestTarget godoc
// @Summary Suggest a target class
// @Tags Promotions
// @Produce json
// @Param source_class_id query string true "Source class"
// @Success 200 {object} response.Envelope{data=dto.TargetSuggestion}
// @Failure 404 {object} response.Envelope
// @Router /promotions/suggest-target [get]
func (h *PromotionHandler) SuggestTarget(c *gin.Context) {
	suggestion, err := h.promotions.SuggestTarget(c.Request.Context(), c.Query("source_class_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestion, nil)
}
