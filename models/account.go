package models

import (
	"time"

	"github.com/google/uuid"
)

// Role — роль аккаунта в системе.
type Role string

const (
	// RoleUser — обычный пользователь.
	RoleUser Role = "user"
	// RoleAdmin — администратор.
	RoleAdmin Role = "admin"
)

// Account — учётная запись пользователя.
//
// Описание:
//   - ID — неизменяемый идентификатор аккаунта;
//   - Username — уникальное имя (регистронезависимо на уровне БД);
//   - PasswordHash — bcrypt-хэш пароля, исходный пароль нигде не хранится;
//   - Email — уникальный, опциональный (пустая строка — не привязан);
//   - IsVerified — флаг подтверждения, бизнес-логикой ядра не используется.
type Account struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         Role
	Email        string
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
