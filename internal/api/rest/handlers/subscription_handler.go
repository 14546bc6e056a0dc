package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planlogic/subscription-service/internal/api/rest/middleware"
	"github.com/planlogic/subscription-service/internal/service"
	"github.com/planlogic/subscription-service/pkg/logger"
)

// SubscriptionHandler обработчики пользовательских операций с подписками
type SubscriptionHandler struct {
	service service.SubscriptionService
	log     *logger.Logger
}

// NewSubscriptionHandler создает новый обработчик подписок
func NewSubscriptionHandler(svc service.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: svc,
		log:     log,
	}
}

type createSubscriptionRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

// CreateSubscription создает подписку у платежного провайдера и возвращает
// ссылку на оплату
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}

	gwSub, err := h.service.CreateSubscription(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		h.log.Errorw("Failed to create subscription", "error", err, "userID", userID, "planID", req.PlanID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"subscription_id": gwSub.ID,
		"short_url":       gwSub.ShortURL,
		"status":          gwSub.Status,
	})
}

// GetStatus возвращает производное состояние подписки пользователя
func (h *SubscriptionHandler) GetStatus(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	report, err := h.service.CheckSubscriptionStatus(c.Request.Context(), userID)
	if err != nil {
		h.log.Errorw("Failed to check subscription status", "error", err, "userID", userID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Cancel отменяет подписку пользователя
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	h.changeStatus(c, h.service.CancelSubscription, "cancelled")
}

// Pause приостанавливает подписку пользователя
func (h *SubscriptionHandler) Pause(c *gin.Context) {
	h.changeStatus(c, h.service.PauseSubscription, "paused")
}

// Resume возобновляет подписку пользователя
func (h *SubscriptionHandler) Resume(c *gin.Context) {
	h.changeStatus(c, h.service.ResumeSubscription, "active")
}

func (h *SubscriptionHandler) changeStatus(c *gin.Context, op func(ctx context.Context, userID string) error, status string) {
	userID := middleware.UserIDFromContext(c)

	if err := op(c.Request.Context(), userID); err != nil {
		h.log.Errorw("Failed to change subscription status",
			"error", err, "userID", userID, "target", status)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

// GetPaymentHistory возвращает историю платежей пользователя
func (h *SubscriptionHandler) GetPaymentHistory(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	payments, err := h.service.GetPaymentHistory(c.Request.Context(), userID, 50)
	if err != nil {
		h.log.Errorw("Failed to get payment history", "error", err, "userID", userID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// GetPlans возвращает доступные тарифные планы
func (h *SubscriptionHandler) GetPlans(c *gin.Context) {
	plans, err := h.service.GetPlans(c.Request.Context())
	if err != nil {
		h.log.Errorw("Failed to get plans", "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}
