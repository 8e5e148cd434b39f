package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshSession — одна выданная refresh-сессия аккаунта.
//
// На сервере хранится только хэш refresh-токена (bcrypt поверх
// sha256-дайджеста исходного токена), сам токен — никогда.
// Revoked монотонен: однажды отозванная сессия не возвращается в строй
// и не участвует в выпуске новых токенов. Строки не удаляются ядром,
// только помечаются отозванными; физическая очистка — операционная
// задача (см. storage.StartJanitor).
type RefreshSession struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	TokenHash string
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
