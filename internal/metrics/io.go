package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registerDegradedWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "register",
		Name:      "degraded_writes_total",
		Help:      "Register writes applied without the register lock after a lock timeout",
	}, []string{"register"})

	mailboxPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mailbox",
		Name:      "pushes_total",
		Help:      "Items pushed into a mailbox",
	}, []string{"mailbox"})

	mailboxEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mailbox",
		Name:      "evictions_total",
		Help:      "Unread items dropped to make room for a newer one",
	}, []string{"mailbox"})

	mailboxPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "mailbox",
		Name:      "pending",
		Help:      "Items currently held in a mailbox",
	}, []string{"mailbox"})

	listenerUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "uart",
		Name:      "listener_up",
		Help:      "Whether the UART listener loop is running",
	}, []string{"port"})

	listenerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "uart",
		Name:      "listener_errors_total",
		Help:      "Stream errors that ended a UART listener",
	}, []string{"port"})
)

// IncRegisterDegraded counts a write that bypassed the register lock.
func IncRegisterDegraded(register string) {
	registerDegradedWrites.WithLabelValues(register).Inc()
}

// ObserveMailboxPush counts a push and whether it evicted an unread item.
func ObserveMailboxPush(mailbox string, evicted bool) {
	mailboxPushes.WithLabelValues(mailbox).Inc()
	if evicted {
		mailboxEvictions.WithLabelValues(mailbox).Inc()
	}
}

// SetMailboxPending sets the number of items held in a mailbox.
func SetMailboxPending(mailbox string, n int) {
	mailboxPending.WithLabelValues(mailbox).Set(float64(n))
}

// SetListenerUp records whether a listener loop is running.
func SetListenerUp(port string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	listenerUp.WithLabelValues(port).Set(v)
}

// IncListenerErrors counts a stream error that ended a listener.
func IncListenerErrors(port string) {
	listenerErrors.WithLabelValues(port).Inc()
	listenerUp.WithLabelValues(port).Set(0)
}
