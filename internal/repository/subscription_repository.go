package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planlogic/subscription-service/internal/domain"
	"github.com/planlogic/subscription-service/pkg/logger"
)

// InMemorySubscriptionRepository реализация хранилища подписок в памяти
type InMemorySubscriptionRepository struct {
	subscriptions map[string]domain.Subscription
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewInMemorySubscriptionRepository создает новое хранилище подписок в памяти
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subscriptions: make(map[string]domain.Subscription),
		log:           log,
	}
}

// GetByUserID возвращает подписку пользователя
func (r *InMemorySubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	subscription, exists := r.subscriptions[userID]
	if !exists {
		return nil, ErrNotFound
	}

	return &subscription, nil
}

// Upsert создает или полностью замещает подписку пользователя
func (r *InMemorySubscriptionRepository) Upsert(ctx context.Context, subscription *domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored := *subscription
	now := time.Now().UTC()
	if existing, exists := r.subscriptions[subscription.UserID]; exists {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.subscriptions[subscription.UserID] = stored

	subscription.CreatedAt = stored.CreatedAt
	subscription.UpdatedAt = stored.UpdatedAt
	return nil
}

// UpdateStatus обновляет только статус подписки
func (r *InMemorySubscriptionRepository) UpdateStatus(ctx context.Context, userID string, status domain.SubscriptionStatus, autoRenew bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	subscription, exists := r.subscriptions[userID]
	if !exists {
		return ErrNotFound
	}

	subscription.Status = status
	subscription.AutoRenew = autoRenew
	subscription.UpdatedAt = time.Now().UTC()
	r.subscriptions[userID] = subscription

	return nil
}

// SetRazorpaySubscriptionID обновляет справочную ссылку на объект провайдера
func (r *InMemorySubscriptionRepository) SetRazorpaySubscriptionID(ctx context.Context, userID, razorpaySubscriptionID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	subscription, exists := r.subscriptions[userID]
	if !exists {
		return ErrNotFound
	}

	subscription.RazorpaySubscriptionID = razorpaySubscriptionID
	subscription.UpdatedAt = time.Now().UTC()
	r.subscriptions[userID] = subscription

	return nil
}

// PostgresSubscriptionRepository реализация хранилища подписок через PostgreSQL
type PostgresSubscriptionRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новое хранилище подписок через PostgreSQL
func NewPostgresSubscriptionRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{
		db:  db,
		log: log,
	}
}

// GetByUserID возвращает подписку пользователя из базы данных
func (r *PostgresSubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `
		SELECT
			user_id, plan_id, status, started_at, expires_at,
			lifetime_access, auto_renew, usage,
			razorpay_subscription_id, admin_changed_by, admin_change_reason,
			created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`

	var subscription domain.Subscription
	var usageBytes []byte

	err := r.db.QueryRow(ctx, query, userID).Scan(
		&subscription.UserID,
		&subscription.PlanID,
		&subscription.Status,
		&subscription.StartedAt,
		&subscription.ExpiresAt,
		&subscription.LifetimeAccess,
		&subscription.AutoRenew,
		&usageBytes,
		&subscription.RazorpaySubscriptionID,
		&subscription.AdminChangedBy,
		&subscription.AdminChangeReason,
		&subscription.CreatedAt,
		&subscription.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	if len(usageBytes) > 0 {
		if err := json.Unmarshal(usageBytes, &subscription.Usage); err != nil {
			return nil, fmt.Errorf("failed to unmarshal usage counters: %w", err)
		}
	}

	return &subscription, nil
}

// Upsert создает или полностью замещает подписку пользователя в базе данных.
// Уникальность по user_id гарантирует единственную запись на пользователя.
func (r *PostgresSubscriptionRepository) Upsert(ctx context.Context, subscription *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			user_id, plan_id, status, started_at, expires_at,
			lifetime_access, auto_renew, usage,
			razorpay_subscription_id, admin_changed_by, admin_change_reason,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12
		)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			expires_at = EXCLUDED.expires_at,
			lifetime_access = EXCLUDED.lifetime_access,
			auto_renew = EXCLUDED.auto_renew,
			usage = EXCLUDED.usage,
			razorpay_subscription_id = EXCLUDED.razorpay_subscription_id,
			admin_changed_by = EXCLUDED.admin_changed_by,
			admin_change_reason = EXCLUDED.admin_change_reason,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`

	usageBytes, err := json.Marshal(subscription.Usage)
	if err != nil {
		return fmt.Errorf("failed to marshal usage counters: %w", err)
	}

	now := time.Now().UTC()
	err = r.db.QueryRow(
		ctx,
		query,
		subscription.UserID,
		subscription.PlanID,
		subscription.Status,
		subscription.StartedAt,
		subscription.ExpiresAt,
		subscription.LifetimeAccess,
		subscription.AutoRenew,
		usageBytes,
		subscription.RazorpaySubscriptionID,
		subscription.AdminChangedBy,
		subscription.AdminChangeReason,
		now,
	).Scan(&subscription.CreatedAt, &subscription.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	return nil
}

// UpdateStatus обновляет только статус подписки в базе данных
func (r *PostgresSubscriptionRepository) UpdateStatus(ctx context.Context, userID string, status domain.SubscriptionStatus, autoRenew bool) error {
	query := `
		UPDATE subscriptions
		SET status = $1, auto_renew = $2, updated_at = $3
		WHERE user_id = $4
	`

	result, err := r.db.Exec(ctx, query, status, autoRenew, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SetRazorpaySubscriptionID обновляет справочную ссылку на объект провайдера
func (r *PostgresSubscriptionRepository) SetRazorpaySubscriptionID(ctx context.Context, userID, razorpaySubscriptionID string) error {
	query := `
		UPDATE subscriptions
		SET razorpay_subscription_id = $1, updated_at = $2
		WHERE user_id = $3
	`

	result, err := r.db.Exec(ctx, query, razorpaySubscriptionID, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to set razorpay subscription id: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
