package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/planlogic/subscription-service/pkg/logger"
)

// PaymentMetrics интерфейс для метрик обработки платежей
type PaymentMetrics interface {
	IncPaymentProcessed(source, action string)
	IncDuplicatePayment(source string)
	ObserveProcessingDuration(seconds float64)
	IncWebhookEvent(event, status string)
}

type paymentMetrics struct {
	log                *logger.Logger
	paymentsProcessed  *prometheus.CounterVec
	duplicatePayments  *prometheus.CounterVec
	processingDuration prometheus.Histogram
	webhookEvents      *prometheus.CounterVec
}

// NewPaymentMetrics создает новые метрики обработки платежей
func NewPaymentMetrics(registry *prometheus.Registry, log *logger.Logger) PaymentMetrics {
	paymentsProcessed := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_processed_total",
			Help: "The total number of processed payments by source and resulting action",
		},
		[]string{"source", "action"},
	)

	duplicatePayments := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "duplicate_payments_total",
			Help: "The total number of duplicate payment deliveries",
		},
		[]string{"source"},
	)

	processingDuration := promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_processing_seconds",
			Help:    "Payment processing duration distribution",
			Buckets: prometheus.DefBuckets,
		},
	)

	webhookEvents := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "The total number of received webhook events by type and handling status",
		},
		[]string{"event", "status"},
	)

	return &paymentMetrics{
		log:                log,
		paymentsProcessed:  paymentsProcessed,
		duplicatePayments:  duplicatePayments,
		processingDuration: processingDuration,
		webhookEvents:      webhookEvents,
	}
}

// IncPaymentProcessed увеличивает счетчик примененных платежей
func (m *paymentMetrics) IncPaymentProcessed(source, action string) {
	m.paymentsProcessed.WithLabelValues(source, action).Inc()
}

// IncDuplicatePayment увеличивает счетчик повторных доставок платежей
func (m *paymentMetrics) IncDuplicatePayment(source string) {
	m.duplicatePayments.WithLabelValues(source).Inc()
}

// ObserveProcessingDuration записывает длительность обработки платежа
func (m *paymentMetrics) ObserveProcessingDuration(seconds float64) {
	m.processingDuration.Observe(seconds)
}

// IncWebhookEvent увеличивает счетчик вебхук-событий
func (m *paymentMetrics) IncWebhookEvent(event, status string) {
	m.webhookEvents.WithLabelValues(event, status).Inc()
}
