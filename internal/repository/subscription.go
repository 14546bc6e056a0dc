package repository

import (
	"context"

	"github.com/planlogic/subscription-service/internal/domain"
)

// SubscriptionRepository интерфейс хранилища подписок.
// В таблице хранится не более одной записи на пользователя.
type SubscriptionRepository interface {
	// GetByUserID возвращает подписку пользователя
	GetByUserID(ctx context.Context, userID string) (*domain.Subscription, error)

	// Upsert создает или полностью замещает подписку пользователя
	Upsert(ctx context.Context, subscription *domain.Subscription) error

	// UpdateStatus обновляет только статус подписки (cancel/pause/resume/complete)
	UpdateStatus(ctx context.Context, userID string, status domain.SubscriptionStatus, autoRenew bool) error

	// SetRazorpaySubscriptionID обновляет справочную ссылку на объект провайдера.
	// Запись best-effort: поле никогда не используется для решений о сроке
	// действия или плане.
	SetRazorpaySubscriptionID(ctx context.Context, userID, razorpaySubscriptionID string) error
}

// ProcessedPaymentRepository журнал идемпотентности обработанных платежей.
// Вставка — единственный источник истины: при гонке двух обработчиков одного
// payment_id проигравший получает ErrDuplicate от самой вставки, а не от
// предварительной проверки.
type ProcessedPaymentRepository interface {
	// GetByPaymentID возвращает запись журнала по payment_id
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.ProcessedPayment, error)

	// Create добавляет запись журнала. Возвращает ErrDuplicate, если
	// payment_id уже зарегистрирован.
	Create(ctx context.Context, payment *domain.ProcessedPayment) error

	// ListByUserID возвращает историю платежей пользователя (новые первыми)
	ListByUserID(ctx context.Context, userID string, limit int) ([]domain.ProcessedPayment, error)
}

// PlanRepository справочник тарифных планов (только чтение со стороны сервиса)
type PlanRepository interface {
	// GetByID возвращает план по идентификатору (регистронезависимо)
	GetByID(ctx context.Context, planID string) (*domain.Plan, error)

	// GetAll возвращает все планы
	GetAll(ctx context.Context) ([]domain.Plan, error)
}

// UserRepository доступ к профилю пользователя в части, затрагиваемой
// подписками: plan_id в профиле дублирует план подписки для быстрых проверок.
type UserRepository interface {
	// SetPlan записывает идентификатор плана в профиль пользователя
	SetPlan(ctx context.Context, userID, planID string) error
}
