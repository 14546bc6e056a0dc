package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/planlogic/subscription-service/internal/domain"
	"github.com/planlogic/subscription-service/internal/metrics"
	"github.com/planlogic/subscription-service/internal/repository"
	"github.com/planlogic/subscription-service/pkg/logger"
)

// Подписка считается скоро истекающей за это число дней до конца срока
const expiringSoonDays = 3

// GatewaySubscription подписка, созданная на стороне платежного провайдера
type GatewaySubscription struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url,omitempty"`
	Status   string `json:"status,omitempty"`
}

// PaymentGateway операции платежного провайдера, нужные сервису подписок
type PaymentGateway interface {
	CreateSubscription(ctx context.Context, plan *domain.Plan, userID string) (*GatewaySubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	PauseSubscription(ctx context.Context, subscriptionID string) error
	ResumeSubscription(ctx context.Context, subscriptionID string) error
}

// EventPublisher публикует события подписок во внешнюю шину
type EventPublisher interface {
	Publish(ctx context.Context, event domain.SubscriptionEvent) error
}

// ProcessPaymentInput входные данные платежного события
type ProcessPaymentInput struct {
	PaymentID string
	UserID    string
	PlanID    string
	Source    domain.PaymentSource
	// Идентификатор подписки у провайдера, если событие его несет.
	// Справочное поле, на вычисление срока не влияет.
	GatewaySubscriptionID string
}

// SubscriptionService интерфейс сервиса подписок
type SubscriptionService interface {
	// ProcessPayment применяет платежное событие к подписке пользователя.
	// Повторная доставка того же PaymentID не является ошибкой: возвращается
	// результат со статусом already_processed и снимком подписки на момент
	// первого применения.
	ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*domain.PaymentResult, error)

	// CheckSubscriptionStatus возвращает производное состояние подписки
	CheckSubscriptionStatus(ctx context.Context, userID string) (*domain.StatusReport, error)

	// CreateSubscription создает подписку у платежного провайдера и
	// возвращает ссылку на оплату
	CreateSubscription(ctx context.Context, userID, planID string) (*GatewaySubscription, error)

	// CancelSubscription отменяет подписку (доступ сохраняется до конца
	// оплаченного срока)
	CancelSubscription(ctx context.Context, userID string) error

	// PauseSubscription приостанавливает активную подписку
	PauseSubscription(ctx context.Context, userID string) error

	// ResumeSubscription возобновляет приостановленную подписку
	ResumeSubscription(ctx context.Context, userID string) error

	// CompleteSubscription помечает подписку завершенной: провайдер исчерпал
	// все запланированные списания
	CompleteSubscription(ctx context.Context, userID string) error

	// AdminChangePlan принудительно меняет план пользователя. Счетчики
	// потребления сохраняются: административная правка не должна наказывать
	// пользователя сбросом лимитов.
	AdminChangePlan(ctx context.Context, userID, planID, adminID, reason string) (*domain.PaymentResult, error)

	// AdminExtendSubscription продлевает подписку на указанное число дней.
	// Для подписок с пожизненным доступом операция не имеет смысла и
	// отклоняется.
	AdminExtendSubscription(ctx context.Context, userID string, days int, adminID, reason string) (*domain.Subscription, error)

	// AdminSetLifetimeAccess включает или выключает пожизненный доступ
	AdminSetLifetimeAccess(ctx context.Context, userID string, enabled bool, adminID, reason string) (*domain.Subscription, error)

	// GetPaymentHistory возвращает историю платежей пользователя
	GetPaymentHistory(ctx context.Context, userID string, limit int) ([]domain.ProcessedPayment, error)

	// GetPlans возвращает доступные тарифные планы
	GetPlans(ctx context.Context) ([]domain.Plan, error)
}

type subscriptionService struct {
	subscriptions repository.SubscriptionRepository
	payments      repository.ProcessedPaymentRepository
	plans         repository.PlanRepository
	users         repository.UserRepository
	gateway       PaymentGateway
	publisher     EventPublisher
	calculator    *DurationCalculator
	userLock      *UserLock
	metrics       metrics.PaymentMetrics
	log           *logger.Logger
	now           func() time.Time
}

// NewSubscriptionService создает новый сервис подписок.
// Gateway и publisher могут быть nil: соответствующие операции тогда
// недоступны либо пропускаются.
func NewSubscriptionService(
	subscriptions repository.SubscriptionRepository,
	payments repository.ProcessedPaymentRepository,
	plans repository.PlanRepository,
	users repository.UserRepository,
	gateway PaymentGateway,
	publisher EventPublisher,
	paymentMetrics metrics.PaymentMetrics,
	log *logger.Logger,
) SubscriptionService {
	return &subscriptionService{
		subscriptions: subscriptions,
		payments:      payments,
		plans:         plans,
		users:         users,
		gateway:       gateway,
		publisher:     publisher,
		calculator:    NewDurationCalculator(),
		userLock:      NewUserLock(),
		metrics:       paymentMetrics,
		log:           log,
		now:           time.Now,
	}
}

// ProcessPayment применяет платежное событие к подписке пользователя
func (s *subscriptionService) ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*domain.PaymentResult, error) {
	start := time.Now()

	if input.PaymentID == "" || input.UserID == "" || input.PlanID == "" {
		return nil, fmt.Errorf("%w: payment_id, user_id and plan_id are required", domain.ErrInvalidInput)
	}
	if input.Source == "" {
		input.Source = domain.PaymentSourceWebhook
	}

	plan, err := s.plans.GetByID(ctx, input.PlanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPlanNotFound, input.PlanID)
		}
		return nil, err
	}

	// Блокировка пользователя удерживается на весь цикл
	// чтение-вычисление-запись-журнал
	unlock := s.userLock.Lock(input.UserID)
	defer unlock()

	// Быстрая проверка журнала: повторная доставка не должна доходить до записи
	existing, err := s.payments.GetByPaymentID(ctx, input.PaymentID)
	if err == nil {
		s.metrics.IncDuplicatePayment(string(input.Source))
		s.log.Infow("Duplicate payment delivery ignored",
			"paymentID", input.PaymentID, "userID", input.UserID, "source", input.Source)
		return alreadyProcessedResult(existing), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()

	current, err := s.subscriptions.GetByUserID(ctx, input.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		current = nil
	}

	// Единственное место, где различаются upgrade и renewal
	action := resolvePaymentAction(current, plan.ID)
	expiresAt, durationDays := s.calculator.CalculateExpiry(current, plan.ID, action, now)

	updated := s.buildSubscription(input.UserID, current, plan.ID, action, now, expiresAt)

	if err := s.subscriptions.Upsert(ctx, updated); err != nil {
		return nil, domain.NewPaymentError("subscription_save_failed", "failed to save subscription", input.PaymentID, err)
	}

	record := &domain.ProcessedPayment{
		PaymentID:            input.PaymentID,
		UserID:               input.UserID,
		PlanID:               plan.ID,
		ActionType:           action,
		Source:               input.Source,
		ProcessedAt:          now,
		ResultingExpiresAt:   updated.ExpiresAt,
		SubscriptionSnapshot: updated,
	}

	if err := s.payments.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Проигравшая сторона гонки по payment_id: подписку уже применил
			// победитель, возвращаем его результат
			s.metrics.IncDuplicatePayment(string(input.Source))
			s.log.Warnw("Lost payment insert race, returning recorded result",
				"paymentID", input.PaymentID, "userID", input.UserID)

			winner, getErr := s.payments.GetByPaymentID(ctx, input.PaymentID)
			if getErr != nil {
				return nil, domain.NewPaymentError("ledger_read_failed", "failed to load racing payment record", input.PaymentID, getErr)
			}
			return alreadyProcessedResult(winner), nil
		}
		return nil, domain.NewPaymentError("ledger_write_failed", "failed to record processed payment", input.PaymentID, err)
	}

	// Профиль пользователя обновляется best-effort: источник истины — подписка
	if err := s.users.SetPlan(ctx, input.UserID, plan.ID); err != nil {
		s.log.Warnw("Failed to sync plan to user profile",
			"error", err, "userID", input.UserID, "planID", plan.ID)
	}

	// Ссылка на объект провайдера — справочная и тоже best-effort
	if input.GatewaySubscriptionID != "" && input.GatewaySubscriptionID != updated.RazorpaySubscriptionID {
		if err := s.subscriptions.SetRazorpaySubscriptionID(ctx, input.UserID, input.GatewaySubscriptionID); err != nil {
			s.log.Warnw("Failed to store gateway subscription reference",
				"error", err, "userID", input.UserID, "gatewaySubscriptionID", input.GatewaySubscriptionID)
		}
	}

	s.publishEvent(ctx, domain.SubscriptionEvent{
		Type:       domain.EventPaymentProcessed,
		UserID:     input.UserID,
		PlanID:     plan.ID,
		PaymentID:  input.PaymentID,
		ActionType: action,
		ExpiresAt:  updated.ExpiresAt,
		OccurredAt: now,
	})

	s.metrics.IncPaymentProcessed(string(input.Source), string(action))
	s.metrics.ObserveProcessingDuration(time.Since(start).Seconds())

	s.log.Infow("Payment processed",
		"paymentID", input.PaymentID,
		"userID", input.UserID,
		"planID", plan.ID,
		"action", action,
		"durationDays", durationDays,
		"expiresAt", updated.ExpiresAt,
		"source", input.Source)

	return &domain.PaymentResult{
		Status:       domain.PaymentResultProcessed,
		Subscription: updated,
		ActionType:   action,
		DurationDays: durationDays,
		ProcessedAt:  now,
	}, nil
}

// CheckSubscriptionStatus возвращает производное состояние подписки
func (s *subscriptionService) CheckSubscriptionStatus(ctx context.Context, userID string) (*domain.StatusReport, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}

	sub, err := s.subscriptions.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &domain.StatusReport{Exists: false, IsExpired: true}, nil
		}
		return nil, err
	}

	now := s.now().UTC()
	daysRemaining := sub.DaysRemainingAt(now)
	isExpired := sub.IsExpiredAt(now)

	return &domain.StatusReport{
		Exists:         true,
		IsExpired:      isExpired,
		IsExpiringSoon: !isExpired && !sub.LifetimeAccess && daysRemaining <= expiringSoonDays,
		DaysRemaining:  daysRemaining,
		ExpiresAt:      sub.ExpiresAt,
		PlanID:         sub.PlanID,
		Status:         sub.Status,
	}, nil
}

// CreateSubscription регистрирует подписку: создает объект у платежного
// провайдера и локальную запись с новым сроком от текущего момента.
// Остаток и счетчики прежней подписки не переносятся.
func (s *subscriptionService) CreateSubscription(ctx context.Context, userID, planID string) (*GatewaySubscription, error) {
	if userID == "" || planID == "" {
		return nil, fmt.Errorf("%w: user_id and plan_id are required", domain.ErrInvalidInput)
	}
	if s.gateway == nil {
		return nil, domain.NewGatewayError("create_subscription", "payment gateway is not configured", nil)
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPlanNotFound, planID)
		}
		return nil, err
	}
	if plan.RazorpayPlanID == "" {
		return nil, fmt.Errorf("%w: plan %s has no gateway mapping", domain.ErrInvalidOperation, plan.ID)
	}

	unlock := s.userLock.Lock(userID)
	defer unlock()

	gwSub, err := s.gateway.CreateSubscription(ctx, plan, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	current, err := s.subscriptions.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		current = nil
	}

	expiresAt, _ := s.calculator.CalculateExpiry(current, plan.ID, domain.PaymentActionNew, now)
	sub := s.buildSubscription(userID, current, plan.ID, domain.PaymentActionNew, now, expiresAt)
	sub.RazorpaySubscriptionID = gwSub.ID

	if err := s.subscriptions.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	if err := s.users.SetPlan(ctx, userID, plan.ID); err != nil {
		s.log.Warnw("Failed to sync plan to user profile",
			"error", err, "userID", userID, "planID", plan.ID)
	}

	s.publishEvent(ctx, domain.SubscriptionEvent{
		Type:       domain.EventSubscriptionCreated,
		UserID:     userID,
		PlanID:     plan.ID,
		ExpiresAt:  sub.ExpiresAt,
		OccurredAt: now,
	})

	s.log.Infow("Subscription created",
		"userID", userID, "planID", plan.ID,
		"gatewaySubscriptionID", gwSub.ID, "expiresAt", sub.ExpiresAt)

	return gwSub, nil
}

// CancelSubscription отменяет подписку пользователя
func (s *subscriptionService) CancelSubscription(ctx context.Context, userID string) error {
	return s.changeStatus(ctx, userID, domain.SubscriptionStatusCancelled)
}

// PauseSubscription приостанавливает подписку пользователя
func (s *subscriptionService) PauseSubscription(ctx context.Context, userID string) error {
	return s.changeStatus(ctx, userID, domain.SubscriptionStatusPaused)
}

// ResumeSubscription возобновляет подписку пользователя
func (s *subscriptionService) ResumeSubscription(ctx context.Context, userID string) error {
	return s.changeStatus(ctx, userID, domain.SubscriptionStatusActive)
}

// CompleteSubscription помечает подписку завершенной
func (s *subscriptionService) CompleteSubscription(ctx context.Context, userID string) error {
	return s.changeStatus(ctx, userID, domain.SubscriptionStatusCompleted)
}

func (s *subscriptionService) changeStatus(ctx context.Context, userID string, target domain.SubscriptionStatus) error {
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}

	unlock := s.userLock.Lock(userID)
	defer unlock()

	sub, err := s.subscriptions.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrSubscriptionNotFound
		}
		return err
	}

	if !isStatusTransitionAllowed(sub.Status, target) {
		return fmt.Errorf("%w: cannot change status from %s to %s",
			domain.ErrInvalidOperation, sub.Status, target)
	}

	// Статус у провайдера синхронизируется best-effort: локальная подписка —
	// источник истины для доступа
	if s.gateway != nil && sub.RazorpaySubscriptionID != "" {
		var gwErr error
		switch target {
		case domain.SubscriptionStatusCancelled:
			gwErr = s.gateway.CancelSubscription(ctx, sub.RazorpaySubscriptionID)
		case domain.SubscriptionStatusPaused:
			gwErr = s.gateway.PauseSubscription(ctx, sub.RazorpaySubscriptionID)
		case domain.SubscriptionStatusActive:
			gwErr = s.gateway.ResumeSubscription(ctx, sub.RazorpaySubscriptionID)
		}
		if gwErr != nil {
			s.log.Warnw("Failed to sync subscription status to gateway",
				"error", gwErr, "userID", userID, "target", target)
		}
	}

	autoRenew := sub.AutoRenew
	if target == domain.SubscriptionStatusCancelled || target == domain.SubscriptionStatusCompleted {
		autoRenew = false
	}

	if err := s.subscriptions.UpdateStatus(ctx, userID, target, autoRenew); err != nil {
		return err
	}

	now := s.now().UTC()
	s.publishEvent(ctx, domain.SubscriptionEvent{
		Type:       statusEventType(target),
		UserID:     userID,
		PlanID:     sub.PlanID,
		OccurredAt: now,
	})

	s.log.Infow("Subscription status changed",
		"userID", userID, "from", sub.Status, "to", target)

	return nil
}

// AdminChangePlan принудительно меняет план пользователя
func (s *subscriptionService) AdminChangePlan(ctx context.Context, userID, planID, adminID, reason string) (*domain.PaymentResult, error) {
	if userID == "" || planID == "" || adminID == "" {
		return nil, fmt.Errorf("%w: user_id, plan_id and admin_id are required", domain.ErrInvalidInput)
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPlanNotFound, planID)
		}
		return nil, err
	}

	unlock := s.userLock.Lock(userID)
	defer unlock()

	now := s.now().UTC()

	current, err := s.subscriptions.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		current = nil
	}

	action := domain.PaymentActionAdminChange
	expiresAt, durationDays := s.calculator.CalculateExpiry(current, plan.ID, action, now)

	updated := s.buildSubscription(userID, current, plan.ID, action, now, expiresAt)
	updated.AdminChangedBy = adminID
	updated.AdminChangeReason = reason

	if err := s.subscriptions.Upsert(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	// Административная смена плана проходит через тот же журнал, что и
	// платежи: синтетический payment_id делает операцию видимой в истории
	record := &domain.ProcessedPayment{
		PaymentID:            "admin_" + uuid.New().String(),
		UserID:               userID,
		PlanID:               plan.ID,
		ActionType:           action,
		Source:               domain.PaymentSourceAdmin,
		ProcessedAt:          now,
		ResultingExpiresAt:   updated.ExpiresAt,
		SubscriptionSnapshot: updated,
	}
	if err := s.payments.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record admin plan change: %w", err)
	}

	if err := s.users.SetPlan(ctx, userID, plan.ID); err != nil {
		s.log.Warnw("Failed to sync plan to user profile",
			"error", err, "userID", userID, "planID", plan.ID)
	}

	s.publishEvent(ctx, domain.SubscriptionEvent{
		Type:       domain.EventSubscriptionChanged,
		UserID:     userID,
		PlanID:     plan.ID,
		PaymentID:  record.PaymentID,
		ActionType: action,
		ExpiresAt:  updated.ExpiresAt,
		OccurredAt: now,
	})

	s.metrics.IncPaymentProcessed(string(domain.PaymentSourceAdmin), string(action))

	s.log.Infow("Admin plan change applied",
		"userID", userID, "planID", plan.ID, "adminID", adminID, "reason", reason)

	return &domain.PaymentResult{
		Status:       domain.PaymentResultProcessed,
		Subscription: updated,
		ActionType:   action,
		DurationDays: durationDays,
		ProcessedAt:  now,
	}, nil
}

// AdminExtendSubscription продлевает подписку на указанное число дней
func (s *subscriptionService) AdminExtendSubscription(ctx context.Context, userID string, days int, adminID, reason string) (*domain.Subscription, error) {
	if userID == "" || adminID == "" {
		return nil, fmt.Errorf("%w: user_id and admin_id are required", domain.ErrInvalidInput)
	}
	if days <= 0 {
		return nil, fmt.Errorf("%w: extension days must be positive", domain.ErrInvalidInput)
	}

	unlock := s.userLock.Lock(userID)
	defer unlock()

	sub, err := s.subscriptions.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}

	if sub.LifetimeAccess {
		return nil, fmt.Errorf("%w: cannot extend a lifetime subscription", domain.ErrInvalidOperation)
	}

	now := s.now().UTC()

	// Истекшая подписка продлевается от текущего момента, действующая —
	// от даты истечения
	base := now
	if sub.ExpiresAt != nil && sub.ExpiresAt.After(now) {
		base = *sub.ExpiresAt
	}
	newExpiry := base.Add(time.Duration(days) * 24 * time.Hour)

	sub.ExpiresAt = &newExpiry
	sub.AdminChangedBy = adminID
	sub.AdminChangeReason = reason

	if err := s.subscriptions.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	s.publishEvent(ctx, domain.SubscriptionEvent{
		Type:       domain.EventSubscriptionChanged,
		UserID:     userID,
		PlanID:     sub.PlanID,
		ExpiresAt:  sub.ExpiresAt,
		OccurredAt: now,
	})

	s.log.Infow("Subscription extended",
		"userID", userID, "days", days, "expiresAt", newExpiry, "adminID", adminID)

	return sub, nil
}

// AdminSetLifetimeAccess включает или выключает пожизненный доступ
func (s *subscriptionService) AdminSetLifetimeAccess(ctx context.Context, userID string, enabled bool, adminID, reason string) (*domain.Subscription, error) {
	if userID == "" || adminID == "" {
		return nil, fmt.Errorf("%w: user_id and admin_id are required", domain.ErrInvalidInput)
	}

	unlock := s.userLock.Lock(userID)
	defer unlock()

	sub, err := s.subscriptions.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}

	now := s.now().UTC()

	if enabled {
		sub.LifetimeAccess = true
		sub.ExpiresAt = nil
	} else {
		// Отзыв пожизненного доступа возвращает подписку к обычному сроку
		// текущего плана, отсчитанному от момента отзыва
		sub.LifetimeAccess = false
		newExpiry := now.Add(time.Duration(domain.PlanDurationDays(sub.PlanID)) * 24 * time.Hour)
		sub.ExpiresAt = &newExpiry
	}
	sub.AdminChangedBy = adminID
	sub.AdminChangeReason = reason

	if err := s.subscriptions.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	s.publishEvent(ctx, domain.SubscriptionEvent{
		Type:       domain.EventSubscriptionChanged,
		UserID:     userID,
		PlanID:     sub.PlanID,
		ExpiresAt:  sub.ExpiresAt,
		OccurredAt: now,
	})

	s.log.Infow("Lifetime access updated",
		"userID", userID, "enabled", enabled, "adminID", adminID, "reason", reason)

	return sub, nil
}

// GetPaymentHistory возвращает историю платежей пользователя
func (s *subscriptionService) GetPaymentHistory(ctx context.Context, userID string, limit int) ([]domain.ProcessedPayment, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}
	return s.payments.ListByUserID(ctx, userID, limit)
}

// GetPlans возвращает доступные тарифные планы
func (s *subscriptionService) GetPlans(ctx context.Context) ([]domain.Plan, error) {
	return s.plans.GetAll(ctx)
}

// buildSubscription собирает новое состояние подписки после платежа или
// административной смены плана. Каждый примененный переход начинает новый
// срок: started_at всегда устанавливается в момент применения. Счетчики
// потребления сохраняются при продлении и административной правке; новая
// подписка и смена плана начинают период с чистыми счетчиками.
func (s *subscriptionService) buildSubscription(userID string, current *domain.Subscription, planID string, action domain.PaymentAction, now time.Time, expiresAt time.Time) *domain.Subscription {
	sub := &domain.Subscription{
		UserID:    userID,
		PlanID:    planID,
		Status:    domain.SubscriptionStatusActive,
		StartedAt: now,
		AutoRenew: true,
	}

	if current != nil {
		sub.AutoRenew = current.AutoRenew
		sub.RazorpaySubscriptionID = current.RazorpaySubscriptionID
		sub.AdminChangedBy = current.AdminChangedBy
		sub.AdminChangeReason = current.AdminChangeReason
		sub.CreatedAt = current.CreatedAt
	}

	switch action {
	case domain.PaymentActionRenewal, domain.PaymentActionAdminChange:
		if current != nil {
			sub.Usage = current.Usage
		}
		if sub.Usage.LastReset.IsZero() {
			sub.Usage.LastReset = now
		}
	default:
		sub.Usage = domain.Usage{LastReset: now}
	}

	// Пожизненный доступ переживает платежи: снять его может только
	// администратор
	if current != nil && current.LifetimeAccess {
		sub.LifetimeAccess = true
		sub.ExpiresAt = nil
	} else {
		expiry := expiresAt
		sub.ExpiresAt = &expiry
	}

	return sub
}

func (s *subscriptionService) publishEvent(ctx context.Context, event domain.SubscriptionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warnw("Failed to publish subscription event",
			"error", err, "type", event.Type, "userID", event.UserID)
	}
}

// resolvePaymentAction определяет тип перехода по текущей подписке и целевому
// плану. Это единственная точка, где платеж классифицируется как new,
// upgrade или renewal.
func resolvePaymentAction(current *domain.Subscription, planID string) domain.PaymentAction {
	if current == nil {
		return domain.PaymentActionNew
	}
	if domain.IsPlanChange(current.PlanID, planID) {
		return domain.PaymentActionUpgrade
	}
	return domain.PaymentActionRenewal
}

func isStatusTransitionAllowed(from, to domain.SubscriptionStatus) bool {
	switch to {
	case domain.SubscriptionStatusCancelled:
		return from == domain.SubscriptionStatusActive || from == domain.SubscriptionStatusPaused
	case domain.SubscriptionStatusPaused:
		return from == domain.SubscriptionStatusActive
	case domain.SubscriptionStatusActive:
		return from == domain.SubscriptionStatusPaused
	case domain.SubscriptionStatusCompleted:
		return from == domain.SubscriptionStatusActive
	default:
		return false
	}
}

func statusEventType(status domain.SubscriptionStatus) domain.SubscriptionEventType {
	switch status {
	case domain.SubscriptionStatusCancelled:
		return domain.EventSubscriptionCanceled
	case domain.SubscriptionStatusPaused:
		return domain.EventSubscriptionPaused
	case domain.SubscriptionStatusCompleted:
		return domain.EventSubscriptionDone
	default:
		return domain.EventSubscriptionResumed
	}
}

func alreadyProcessedResult(record *domain.ProcessedPayment) *domain.PaymentResult {
	return &domain.PaymentResult{
		Status:       domain.PaymentResultAlreadyProcessed,
		Subscription: record.SubscriptionSnapshot,
		ActionType:   record.ActionType,
		ProcessedAt:  record.ProcessedAt,
	}
}
