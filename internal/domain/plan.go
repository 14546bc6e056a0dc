package domain

import (
	"strings"
	"time"
)

// Идентификаторы тарифных планов (канонически в нижнем регистре)
const (
	PlanFree         = "free"
	PlanStarter      = "starter"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

// Длительности планов в днях. Единственное место, где они определены:
// любые вычисления срока действия подписки обязаны использовать эти константы.
const (
	FreePlanDurationDays = 6
	PaidPlanDurationDays = 30
)

// Plan представляет собой тарифный план. Справочные данные, создаются и
// редактируются административным инструментарием; сервис их только читает.
type Plan struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Price          int64     `json:"price"` // в минимальных единицах валюты (пайсы)
	DurationDays   int       `json:"duration_days"`
	RazorpayPlanID string    `json:"razorpay_plan_id,omitempty"` // соответствие плану провайдера, задается конфигурацией
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NormalizePlanID приводит идентификатор плана к каноническому виду.
// Сравнение планов во всем сервисе регистронезависимое.
func NormalizePlanID(planID string) string {
	return strings.ToLower(strings.TrimSpace(planID))
}

// PlanDurationDays возвращает длительность плана в днях: 6 для бесплатного,
// 30 для всех платных.
func PlanDurationDays(planID string) int {
	if NormalizePlanID(planID) == PlanFree {
		return FreePlanDurationDays
	}
	return PaidPlanDurationDays
}

// IsPlanChange определяет, является ли переход сменой плана (upgrade) или
// продлением того же плана (renewal). Сравнение регистронезависимое.
func IsPlanChange(oldPlanID, newPlanID string) bool {
	return NormalizePlanID(oldPlanID) != NormalizePlanID(newPlanID)
}
