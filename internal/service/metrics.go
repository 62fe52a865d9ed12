package service

import (
	"errors"

	"accountd/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// AuthEvents counts authentication events by kind and outcome. The outcome is
// "success" or the domain error code of the failure.
var AuthEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "accountd_auth_events_total",
		Help: "Total number of authentication events",
	},
	[]string{"event", "outcome"},
)

// RegisterMetrics registers service metrics with reg. Panics on duplicate registration.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthEvents)
}

func recordAuthEvent(event string, err error) {
	AuthEvents.WithLabelValues(event, outcome(err)).Inc()
}

var outcomeErrors = []error{
	domain.ErrValidation,
	domain.ErrConflict,
	domain.ErrInvalidCredentials,
	domain.ErrAccountInactive,
	domain.ErrNotFound,
	domain.ErrResetTokenUsed,
	domain.ErrResetTokenExpired,
	domain.ErrInvalidToken,
	domain.ErrTokenExpired,
}

func outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	for _, target := range outcomeErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return OutcomeError
}
