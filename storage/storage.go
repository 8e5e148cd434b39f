// storage задаёт контракты хранилищ auth-ядра: учётные записи
// и refresh-сессии. Реализация поверх PostgreSQL — в подпакете postgres.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/notes-keeper/auth-service/models"
)

var (
	// ErrNotFound — запись не найдена (аккаунт/сессия).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (username/email).
	ErrAlreadyExists = errors.New("already exists")
)

// AccountStorage выполняет операции над учётными записями.
type AccountStorage interface {
	// SaveAccount создаёт новую учётную запись.
	SaveAccount(ctx context.Context, account *models.Account) error
	// AccountByID находит учётную запись по идентификатору.
	AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	// AccountByUsername находит учётную запись по имени пользователя.
	AccountByUsername(ctx context.Context, username string) (*models.Account, error)
	// AccountByEmail находит учётную запись по email.
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
	// UpdateAccount сохраняет изменённые поля существующей учётной записи.
	UpdateAccount(ctx context.Context, account *models.Account) error
}

// RefreshSessionStorage выполняет операции над refresh-сессиями.
type RefreshSessionStorage interface {
	// SaveSession сохраняет новую refresh-сессию.
	SaveSession(ctx context.Context, session *models.RefreshSession) error
	// ActiveSessionsByAccount возвращает неотозванные сессии аккаунта.
	// Фильтрация по сроку действия — на стороне вызывающего.
	ActiveSessionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.RefreshSession, error)
	// RevokeSessionIfActive отзывает сессию, если она ещё не отозвана.
	// Возвращает:
	//
	//	(true, nil)  — сессия была активна и отозвана сейчас этим вызовом;
	//	(false, nil) — сессия существует, но уже была отозвана;
	//	(false, ErrNotFound) — сессия не найдена.
	RevokeSessionIfActive(ctx context.Context, id uuid.UUID) (bool, error)
	// RevokeAllByAccount отзывает все сессии аккаунта.
	// Отсутствие сессий ошибкой не считается.
	RevokeAllByAccount(ctx context.Context, accountID uuid.UUID) error
	// DeleteExpiredSessions удаляет все просроченные сессии.
	// Единственная операция физического удаления; ядром не вызывается,
	// только операционной очисткой (см. StartJanitor).
	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

// Storage задаёт полный контракт работы с БД.
type Storage interface {
	AccountStorage
	RefreshSessionStorage
	Close()
}
