package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/notes-keeper/auth-service/internal/metrics"
	"github.com/pribylovaa/notes-keeper/auth-service/internal/pkg/log"
	"github.com/pribylovaa/notes-keeper/auth-service/internal/pkg/redact"
	"github.com/pribylovaa/notes-keeper/auth-service/models"
	"github.com/pribylovaa/notes-keeper/auth-service/storage"
	"golang.org/x/crypto/bcrypt"
)

// Register регистрирует нового пользователя с ролью user.
func (s *Service) Register(ctx context.Context, username, password string) error {
	return s.register(ctx, username, password, models.RoleUser)
}

// RegisterAdmin регистрирует учётную запись с ролью admin.
// Вызывается только административным слоем приложения.
func (s *Service) RegisterAdmin(ctx context.Context, username, password string) error {
	return s.register(ctx, username, password, models.RoleAdmin)
}

func (s *Service) register(ctx context.Context, username, password string, role models.Role) error {
	const op = "service.auth.register"

	_, err := s.storage.AccountByUsername(ctx, username)
	if err == nil {
		return fmt.Errorf("%s: %w", op, ErrUsernameTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := s.hashPassword(password)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	account := &models.Account{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hashedPassword,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveAccount(ctx, account); err != nil {
		// Гонка двух регистраций: уникальный индекс добивает то,
		// что пропустила предварительная проверка. Conflict не маскируется.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("%s: %w", op, ErrUsernameTaken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("account_registered",
		slog.String("op", op),
		slog.String("username", redact.Username(username)),
		slog.String("role", string(role)),
	)

	return nil
}

// Login выполняет вход по имени пользователя и паролю и выпускает
// новую пару токенов с новой refresh-сессией.
func (s *Service) Login(ctx context.Context, username, password string) (*models.TokenPair, error) {
	const op = "service.auth.Login"

	account, err := s.storage.AccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(account.PasswordHash, password) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.issueTokenPair(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.LoginsTotal.Inc()

	log.From(ctx).Info("login_ok",
		slog.String("op", op),
		slog.String("account_id", account.ID.String()),
	)

	return pair, nil
}

// BindEmail привязывает email к учётной записи.
func (s *Service) BindEmail(ctx context.Context, accountID uuid.UUID, email string) error {
	const op = "service.auth.BindEmail"

	account, err := s.storage.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if account.Email == email {
		return fmt.Errorf("%s: %w", op, ErrEmailUnchanged)
	}

	owner, err := s.storage.AccountByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if owner != nil && owner.ID != account.ID {
		return fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}

	account.Email = email
	if err := s.storage.UpdateAccount(ctx, account); err != nil {
		// Гонка двух привязок одного email закрывается уникальным индексом.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("email_bound",
		slog.String("op", op),
		slog.String("account_id", accountID.String()),
		slog.String("email", redact.Email(email)),
	)

	return nil
}

// hashPassword хэширует пароль с помощью bcrypt с настроенной стоимостью.
func (s *Service) hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	cost := s.cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
