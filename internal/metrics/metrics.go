// metrics — счётчики Prometheus для ключевых событий auth-ядра.
// Регистрируются в реестре по умолчанию; встраивающее приложение
// отдаёт их через promhttp на своём /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginsTotal — успешные входы.
	LoginsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Total number of successful logins.",
	})

	// RotationsTotal — успешные ротации refresh-токенов.
	RotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_rotations_total",
		Help: "Total number of successful refresh token rotations.",
	})

	// ReplayRevocationsTotal — полные отзывы семейства сессий
	// по признаку повторного использования refresh-токена.
	ReplayRevocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_replay_revocations_total",
		Help: "Total number of full session family revocations triggered by refresh token replay.",
	})
)
