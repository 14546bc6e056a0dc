package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/planlogic/subscription-service/internal/api/rest/middleware"
	"github.com/planlogic/subscription-service/internal/service"
	"github.com/planlogic/subscription-service/pkg/logger"
)

// AdminHandler обработчики административных операций с подписками
type AdminHandler struct {
	service service.SubscriptionService
	log     *logger.Logger
}

// NewAdminHandler создает новый обработчик административных операций
func NewAdminHandler(svc service.SubscriptionService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		service: svc,
		log:     log,
	}
}

type changePlanRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
	Reason string `json:"reason"`
}

// ChangePlan принудительно меняет план пользователя
func (h *AdminHandler) ChangePlan(c *gin.Context) {
	adminID := middleware.UserIDFromContext(c)
	userID := c.Param("userId")

	var req changePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}

	result, err := h.service.AdminChangePlan(c.Request.Context(), userID, req.PlanID, adminID, req.Reason)
	if err != nil {
		h.log.Errorw("Admin plan change failed",
			"error", err, "userID", userID, "planID", req.PlanID, "adminID", adminID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type extendRequest struct {
	Days   int    `json:"days" binding:"required"`
	Reason string `json:"reason"`
}

// Extend продлевает подписку пользователя на указанное число дней
func (h *AdminHandler) Extend(c *gin.Context) {
	adminID := middleware.UserIDFromContext(c)
	userID := c.Param("userId")

	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days is required"})
		return
	}

	sub, err := h.service.AdminExtendSubscription(c.Request.Context(), userID, req.Days, adminID, req.Reason)
	if err != nil {
		h.log.Errorw("Admin extension failed",
			"error", err, "userID", userID, "days", req.Days, "adminID", adminID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

type lifetimeRequest struct {
	Enabled *bool  `json:"enabled" binding:"required"`
	Reason  string `json:"reason"`
}

// SetLifetime включает или выключает пожизненный доступ
func (h *AdminHandler) SetLifetime(c *gin.Context) {
	adminID := middleware.UserIDFromContext(c)
	userID := c.Param("userId")

	var req lifetimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
		return
	}

	sub, err := h.service.AdminSetLifetimeAccess(c.Request.Context(), userID, *req.Enabled, adminID, req.Reason)
	if err != nil {
		h.log.Errorw("Lifetime access update failed",
			"error", err, "userID", userID, "enabled", *req.Enabled, "adminID", adminID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// GetUserStatus возвращает состояние подписки произвольного пользователя
func (h *AdminHandler) GetUserStatus(c *gin.Context) {
	userID := c.Param("userId")

	report, err := h.service.CheckSubscriptionStatus(c.Request.Context(), userID)
	if err != nil {
		h.log.Errorw("Failed to check subscription status", "error", err, "userID", userID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetUserPayments возвращает историю платежей произвольного пользователя
func (h *AdminHandler) GetUserPayments(c *gin.Context) {
	userID := c.Param("userId")

	payments, err := h.service.GetPaymentHistory(c.Request.Context(), userID, 100)
	if err != nil {
		h.log.Errorw("Failed to get payment history", "error", err, "userID", userID)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}
