package domain

import "time"

// SubscriptionEventType тип события жизненного цикла подписки
type SubscriptionEventType string

const (
	EventPaymentProcessed     SubscriptionEventType = "payment.processed"
	EventSubscriptionCreated  SubscriptionEventType = "subscription.created"
	EventSubscriptionChanged  SubscriptionEventType = "subscription.changed"
	EventSubscriptionCanceled SubscriptionEventType = "subscription.cancelled"
	EventSubscriptionPaused   SubscriptionEventType = "subscription.paused"
	EventSubscriptionResumed  SubscriptionEventType = "subscription.resumed"
	EventSubscriptionDone     SubscriptionEventType = "subscription.completed"
)

// SubscriptionEvent событие, публикуемое в шину после изменения подписки.
// События одного пользователя упорядочены (ключ партиционирования — UserID).
type SubscriptionEvent struct {
	Type       SubscriptionEventType `json:"type"`
	UserID     string                `json:"user_id"`
	PlanID     string                `json:"plan_id,omitempty"`
	PaymentID  string                `json:"payment_id,omitempty"`
	ActionType PaymentAction         `json:"action_type,omitempty"`
	ExpiresAt  *time.Time            `json:"expires_at,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
}
