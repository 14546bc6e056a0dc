package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planlogic/subscription-service/pkg/logger"
)

// InMemoryUserRepository профили пользователей в памяти
type InMemoryUserRepository struct {
	plans map[string]string
	mutex sync.RWMutex
	log   *logger.Logger
}

// NewInMemoryUserRepository создает хранилище профилей в памяти
func NewInMemoryUserRepository(log *logger.Logger) *InMemoryUserRepository {
	return &InMemoryUserRepository{
		plans: make(map[string]string),
		log:   log,
	}
}

// SetPlan записывает идентификатор плана в профиль пользователя
func (r *InMemoryUserRepository) SetPlan(ctx context.Context, userID, planID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.plans[userID] = planID
	return nil
}

// GetPlan возвращает план из профиля пользователя (для тестов)
func (r *InMemoryUserRepository) GetPlan(userID string) (string, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	planID, exists := r.plans[userID]
	return planID, exists
}

// PostgresUserRepository профили пользователей через PostgreSQL
type PostgresUserRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresUserRepository создает хранилище профилей через PostgreSQL
func NewPostgresUserRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresUserRepository {
	return &PostgresUserRepository{
		db:  db,
		log: log,
	}
}

// SetPlan записывает идентификатор плана в профиль пользователя
func (r *PostgresUserRepository) SetPlan(ctx context.Context, userID, planID string) error {
	query := `
		UPDATE users
		SET plan_id = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.Exec(ctx, query, planID, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to set user plan: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
