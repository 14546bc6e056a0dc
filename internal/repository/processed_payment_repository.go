package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planlogic/subscription-service/internal/domain"
	"github.com/planlogic/subscription-service/pkg/logger"
)

// InMemoryProcessedPaymentRepository журнал идемпотентности в памяти
type InMemoryProcessedPaymentRepository struct {
	payments map[string]domain.ProcessedPayment
	mutex    sync.RWMutex
	log      *logger.Logger
}

// NewInMemoryProcessedPaymentRepository создает новый журнал идемпотентности в памяти
func NewInMemoryProcessedPaymentRepository(log *logger.Logger) *InMemoryProcessedPaymentRepository {
	return &InMemoryProcessedPaymentRepository{
		payments: make(map[string]domain.ProcessedPayment),
		log:      log,
	}
}

// GetByPaymentID возвращает запись журнала по payment_id
func (r *InMemoryProcessedPaymentRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.ProcessedPayment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	payment, exists := r.payments[paymentID]
	if !exists {
		return nil, ErrNotFound
	}

	return &payment, nil
}

// Create добавляет запись журнала. Проверка и вставка выполняются под одной
// блокировкой, поэтому из двух конкурентных вставок одного payment_id ровно
// одна получает ErrDuplicate.
func (r *InMemoryProcessedPaymentRepository) Create(ctx context.Context, payment *domain.ProcessedPayment) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.payments[payment.PaymentID]; exists {
		return ErrDuplicate
	}

	if payment.ProcessedAt.IsZero() {
		payment.ProcessedAt = time.Now().UTC()
	}
	r.payments[payment.PaymentID] = *payment

	return nil
}

// ListByUserID возвращает историю платежей пользователя (новые первыми)
func (r *InMemoryProcessedPaymentRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]domain.ProcessedPayment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []domain.ProcessedPayment
	for _, payment := range r.payments {
		if payment.UserID == userID {
			result = append(result, payment)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ProcessedAt.After(result[j].ProcessedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// PostgresProcessedPaymentRepository журнал идемпотентности через PostgreSQL.
// Уникальный индекс по payment_id делает вставку атомарной проверкой.
type PostgresProcessedPaymentRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresProcessedPaymentRepository создает новый журнал идемпотентности через PostgreSQL
func NewPostgresProcessedPaymentRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresProcessedPaymentRepository {
	return &PostgresProcessedPaymentRepository{
		db:  db,
		log: log,
	}
}

// GetByPaymentID возвращает запись журнала по payment_id
func (r *PostgresProcessedPaymentRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.ProcessedPayment, error) {
	query := `
		SELECT
			payment_id, user_id, plan_id, action_type, source,
			processed_at, resulting_expires_at, subscription_snapshot
		FROM processed_payments
		WHERE payment_id = $1
	`

	payment, err := r.scanPayment(r.db.QueryRow(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get processed payment: %w", err)
	}

	return payment, nil
}

// Create добавляет запись журнала. Нарушение уникального индекса по payment_id
// транслируется в ErrDuplicate: это единственный механизм обнаружения гонки.
func (r *PostgresProcessedPaymentRepository) Create(ctx context.Context, payment *domain.ProcessedPayment) error {
	query := `
		INSERT INTO processed_payments (
			payment_id, user_id, plan_id, action_type, source,
			processed_at, resulting_expires_at, subscription_snapshot
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if payment.ProcessedAt.IsZero() {
		payment.ProcessedAt = time.Now().UTC()
	}

	var snapshotBytes []byte
	if payment.SubscriptionSnapshot != nil {
		var err error
		snapshotBytes, err = json.Marshal(payment.SubscriptionSnapshot)
		if err != nil {
			return fmt.Errorf("failed to marshal subscription snapshot: %w", err)
		}
	}

	_, err := r.db.Exec(
		ctx,
		query,
		payment.PaymentID,
		payment.UserID,
		payment.PlanID,
		payment.ActionType,
		payment.Source,
		payment.ProcessedAt,
		payment.ResultingExpiresAt,
		snapshotBytes,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create processed payment: %w", err)
	}

	return nil
}

// ListByUserID возвращает историю платежей пользователя (новые первыми)
func (r *PostgresProcessedPaymentRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]domain.ProcessedPayment, error) {
	query := `
		SELECT
			payment_id, user_id, plan_id, action_type, source,
			processed_at, resulting_expires_at, subscription_snapshot
		FROM processed_payments
		WHERE user_id = $1
		ORDER BY processed_at DESC
		LIMIT $2
	`

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed payments: %w", err)
	}
	defer rows.Close()

	var result []domain.ProcessedPayment
	for rows.Next() {
		payment, err := r.scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan processed payment: %w", err)
		}
		result = append(result, *payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate processed payments: %w", err)
	}

	return result, nil
}

func (r *PostgresProcessedPaymentRepository) scanPayment(row pgx.Row) (*domain.ProcessedPayment, error) {
	var payment domain.ProcessedPayment
	var snapshotBytes []byte

	err := row.Scan(
		&payment.PaymentID,
		&payment.UserID,
		&payment.PlanID,
		&payment.ActionType,
		&payment.Source,
		&payment.ProcessedAt,
		&payment.ResultingExpiresAt,
		&snapshotBytes,
	)
	if err != nil {
		return nil, err
	}

	if len(snapshotBytes) > 0 {
		payment.SubscriptionSnapshot = &domain.Subscription{}
		if err := json.Unmarshal(snapshotBytes, payment.SubscriptionSnapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subscription snapshot: %w", err)
		}
	}

	return &payment, nil
}
