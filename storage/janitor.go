package storage

import (
	"context"
	"log/slog"
	"time"
)

// StartJanitor запускает фоновую горутину, которая периодически удаляет
// просроченные refresh-сессии. Сам Session Manager сессии не удаляет;
// очистка — операционная задача встраивающего приложения, которое решает,
// запускать её или нет. Горутина завершается по отмене контекста.
func StartJanitor(ctx context.Context, s RefreshSessionStorage, log *slog.Logger, period time.Duration) {
	if period <= 0 {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := s.DeleteExpiredSessions(ctx, time.Now().UTC()); err != nil {
					log.Error("session_janitor_failed", slog.String("err", err.Error()))
				}
			}
		}
	}()
}
