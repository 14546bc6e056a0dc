package domain

import (
	"time"
)

// SubscriptionStatus статус подписки
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCompleted SubscriptionStatus = "completed"
)

// Usage счетчики потребления за текущий период подписки
type Usage struct {
	ChatbotsCount     int       `json:"chatbots_count"`
	MessagesThisMonth int       `json:"messages_this_month"`
	FileUploads       int       `json:"file_uploads"`
	LastReset         time.Time `json:"last_reset"`
}

// Subscription представляет собой подписку пользователя.
// На одного пользователя существует не более одной записи (ключ — UserID).
type Subscription struct {
	UserID                 string             `json:"user_id"`
	PlanID                 string             `json:"plan_id"`
	Status                 SubscriptionStatus `json:"status"`
	StartedAt              time.Time          `json:"started_at"`
	ExpiresAt              *time.Time         `json:"expires_at,omitempty"` // nil только при LifetimeAccess
	LifetimeAccess         bool               `json:"lifetime_access"`
	AutoRenew              bool               `json:"auto_renew"`
	Usage                  Usage              `json:"usage"`
	RazorpaySubscriptionID string             `json:"razorpay_subscription_id,omitempty"` // справочная ссылка на объект провайдера
	AdminChangedBy         string             `json:"admin_changed_by,omitempty"`
	AdminChangeReason      string             `json:"admin_change_reason,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// IsExpiredAt проверяет, истекла ли подписка на указанный момент времени.
// Статус в хранилище при истечении срока не меняется: "expired" — производное
// состояние, вычисляемое при чтении.
func (s *Subscription) IsExpiredAt(now time.Time) bool {
	if s.LifetimeAccess {
		return false
	}
	if s.ExpiresAt == nil {
		return true
	}
	return !s.ExpiresAt.After(now)
}

// DaysRemainingAt возвращает количество полных дней до истечения подписки
// (0, если подписка уже истекла).
func (s *Subscription) DaysRemainingAt(now time.Time) int {
	if s.LifetimeAccess || s.ExpiresAt == nil {
		return 0
	}
	if !s.ExpiresAt.After(now) {
		return 0
	}
	return int(s.ExpiresAt.Sub(now).Hours() / 24)
}

// StatusReport производное представление состояния подписки для чтения
type StatusReport struct {
	Exists         bool               `json:"exists"`
	IsExpired      bool               `json:"is_expired"`
	IsExpiringSoon bool               `json:"is_expiring_soon"`
	DaysRemaining  int                `json:"days_remaining"`
	ExpiresAt      *time.Time         `json:"expires_at,omitempty"`
	PlanID         string             `json:"plan_id,omitempty"`
	Status         SubscriptionStatus `json:"status,omitempty"`
}
