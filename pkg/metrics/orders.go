package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes used as the result label.
const (
	CheckoutResultSuccess             = "success"
	CheckoutResultEmptyCart           = "empty_cart"
	CheckoutResultUnavailableProduct  = "unavailable_product"
	CheckoutResultInsufficientBalance = "insufficient_balance"
	CheckoutResultConflict            = "conflict"
	CheckoutResultError               = "error"
)

// OrderMetrics tracks checkout and cancellation activity.
type OrderMetrics struct {
	checkouts     *prometheus.CounterVec
	duration      prometheus.Histogram
	retries       prometheus.Counter
	cancellations prometheus.Counter
}

// NewOrderMetrics registers order metrics on reg. A nil registerer yields a
// no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkouts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_checkout_duration_seconds",
		Help:    "Wall time of checkout including retries.",
		Buckets: prometheus.DefBuckets,
	})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_checkout_retries_total",
		Help: "Checkout transactions retried after a concurrent balance update.",
	})
	cancellations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_order_cancellations_total",
		Help: "Orders cancelled with stock and balance reversed.",
	})
	reg.MustRegister(checkouts, duration, retries, cancellations)
	return &OrderMetrics{
		checkouts:     checkouts,
		duration:      duration,
		retries:       retries,
		cancellations: cancellations,
	}
}

// ObserveCheckout counts one checkout outcome and its duration.
func (m *OrderMetrics) ObserveCheckout(result string, elapsed time.Duration) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *OrderMetrics) IncCheckoutRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

func (m *OrderMetrics) IncCancellation() {
	if m == nil || m.cancellations == nil {
		return
	}
	m.cancellations.Inc()
}
