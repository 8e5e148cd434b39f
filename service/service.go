// service содержит бизнес-логику управления сессиями и учётными данными:
// регистрацию и аутентификацию, выпуск/проверку токенов, ротацию refresh-сессий
// с обнаружением повторного использования и работу с хранилищем через
// интерфейсы из пакета storage.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//   - Атомарность "проверил совпадение — отозвал" обеспечивается условным
//     UPDATE по флагу revoked в хранилище, а не блокировками: дорогая
//     bcrypt-проверка никогда не выполняется под блокировкой строк.
//   - Ошибки возвращаются сентинелами ниже и далее маппятся вызывающим
//     слоем (HTTP-приложением) на его коды ответов.
package service

import (
	"errors"

	"github.com/pribylovaa/notes-keeper/auth-service/cache"
	"github.com/pribylovaa/notes-keeper/auth-service/config"
	"github.com/pribylovaa/notes-keeper/auth-service/storage"
)

var (
	// ErrUsernameTaken — имя пользователя уже занято (HTTP 409).
	ErrUsernameTaken = errors.New("username already exists")

	// ErrAccountNotFound — учётная запись не найдена (HTTP 404).
	// ВАЖНО: на HTTP-границе вызывающий обязан отдавать для ErrAccountNotFound
	// и ErrInvalidCredentials одно общее сообщение, чтобы по ответу нельзя
	// было перечислять существующие имена пользователей.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidCredentials — пароль не подошёл (HTTP 401/409 у вызывающего).
	// См. замечание к ErrAccountNotFound.
	ErrInvalidCredentials = errors.New("username or password does not match")

	// ErrNoActiveSessions — у аккаунта нет ни одной активной refresh-сессии
	// (HTTP 401).
	ErrNoActiveSessions = errors.New("no valid refresh sessions")

	// ErrInvalidRefreshToken — предъявленный refresh-токен не найден среди
	// активных непросроченных сессий: повтор, кража или просрочка.
	// Возврату этой ошибки из Rotate всегда предшествует отзыв всего
	// семейства сессий аккаунта (HTTP 401).
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrSessionNotFound — нет активной сессии под предъявленный токен
	// при выходе; повторный logout тем же токеном — тоже эта ошибка (HTTP 404).
	ErrSessionNotFound = errors.New("no session found to revoke")

	// ErrEmailTaken — email уже привязан к другой учётной записи (HTTP 409).
	ErrEmailTaken = errors.New("email already in use")

	// ErrEmailUnchanged — email уже привязан к этой же учётной записи (HTTP 400).
	ErrEmailUnchanged = errors.New("email already bound to this account")

	// ErrTokenExpired — срок действия подписанного токена истёк (HTTP 401).
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken — токен некорректен по формату/подписи (HTTP 401).
	ErrInvalidToken = errors.New("invalid token")
)

// Service — менеджер сессий и учётных данных.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	scache  cache.SessionCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
	}
}

// SetSessionCache устанавливает кэш активных сессий (опционально).
func (s *Service) SetSessionCache(c cache.SessionCache) {
	s.scache = c
}
