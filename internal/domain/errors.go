package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrPlanNotFound целевой план не найден
	ErrPlanNotFound = errors.New("plan not found")

	// ErrSubscriptionNotFound подписка пользователя не найдена
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrInvalidOperation неверная операция для текущего состояния подписки
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrWebhookValidationFailed не удалось проверить подпись вебхука
	ErrWebhookValidationFailed = errors.New("webhook validation failed")

	// ErrGatewayUnavailable платежный шлюз недоступен
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// PaymentError представляет ошибку обработки платежа
type PaymentError struct {
	Code        string
	Message     string
	PaymentID   string
	OriginalErr error
}

// Error реализует интерфейс error
func (e *PaymentError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("payment error [%s]: %s: %v (payment_id: %s)", e.Code, e.Message, e.OriginalErr, e.PaymentID)
	}
	return fmt.Sprintf("payment error [%s]: %s (payment_id: %s)", e.Code, e.Message, e.PaymentID)
}

// Unwrap возвращает оригинальную ошибку
func (e *PaymentError) Unwrap() error {
	return e.OriginalErr
}

// NewPaymentError создает новую ошибку обработки платежа
func NewPaymentError(code, message, paymentID string, err error) *PaymentError {
	return &PaymentError{
		Code:        code,
		Message:     message,
		PaymentID:   paymentID,
		OriginalErr: err,
	}
}

// GatewayError представляет ошибку внешнего платежного шлюза
type GatewayError struct {
	Operation   string
	Message     string
	OriginalErr error
}

// Error реализует интерфейс error
func (e *GatewayError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("razorpay %s failed: %s: %v", e.Operation, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("razorpay %s failed: %s", e.Operation, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *GatewayError) Unwrap() error {
	return e.OriginalErr
}

// Is позволяет сопоставлять ошибку шлюза с ErrGatewayUnavailable
func (e *GatewayError) Is(target error) bool {
	return target == ErrGatewayUnavailable
}

// NewGatewayError создает новую ошибку платежного шлюза
func NewGatewayError(operation, message string, err error) *GatewayError {
	return &GatewayError{
		Operation:   operation,
		Message:     message,
		OriginalErr: err,
	}
}
