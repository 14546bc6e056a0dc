package domain

import (
	"time"
)

// PaymentAction тип перехода подписки, вызванного платежным событием
type PaymentAction string

const (
	PaymentActionNew         PaymentAction = "new"
	PaymentActionUpgrade     PaymentAction = "upgrade"
	PaymentActionRenewal     PaymentAction = "renewal"
	PaymentActionAdminChange PaymentAction = "admin_change"
)

// PaymentSource канал, через который платеж попал в сервис
type PaymentSource string

const (
	PaymentSourceWebhook  PaymentSource = "webhook"
	PaymentSourceCallback PaymentSource = "callback"
	PaymentSourceVerify   PaymentSource = "verify_payment"
	PaymentSourceAdmin    PaymentSource = "admin"
)

// ProcessedPayment запись журнала идемпотентности. Создается ровно один раз
// на каждый уникальный PaymentID в момент успешного применения платежа и
// больше никогда не изменяется и не удаляется (журнал только для добавления).
type ProcessedPayment struct {
	PaymentID          string        `json:"payment_id"`
	UserID             string        `json:"user_id"`
	PlanID             string        `json:"plan_id"`
	ActionType         PaymentAction `json:"action_type"`
	Source             PaymentSource `json:"source"`
	ProcessedAt        time.Time     `json:"processed_at"`
	ResultingExpiresAt *time.Time    `json:"resulting_expires_at,omitempty"`
	// Снимок подписки на момент применения платежа; возвращается повторным
	// доставкам того же платежа.
	SubscriptionSnapshot *Subscription `json:"subscription_snapshot,omitempty"`
}

// PaymentResultStatus итог обработки платежа
type PaymentResultStatus string

const (
	PaymentResultProcessed        PaymentResultStatus = "processed"
	PaymentResultAlreadyProcessed PaymentResultStatus = "already_processed"
)

// PaymentResult результат обработки платежного события
type PaymentResult struct {
	Status       PaymentResultStatus `json:"status"`
	Subscription *Subscription       `json:"subscription,omitempty"`
	ActionType   PaymentAction       `json:"action_type,omitempty"`
	DurationDays int                 `json:"duration_days,omitempty"`
	ProcessedAt  time.Time           `json:"processed_at"`
}
