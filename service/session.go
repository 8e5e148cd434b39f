package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/notes-keeper/auth-service/cache"
	"github.com/pribylovaa/notes-keeper/auth-service/internal/metrics"
	"github.com/pribylovaa/notes-keeper/auth-service/internal/pkg/log"
	"github.com/pribylovaa/notes-keeper/auth-service/models"
	"github.com/pribylovaa/notes-keeper/auth-service/storage"
)

// Rotate обменивает предъявленный refresh-токен на новую пару токенов.
//
// Гарантии:
//   - не более одной успешной ротации на один выданный токен: отзыв
//     совпавшей сессии идёт условным UPDATE по флагу revoked, проигравший
//     гонку конкурент попадает в ветку replay;
//   - предъявление токена, не найденного среди активных непросроченных
//     сессий (повтор после ротации, подделка, просрочка), отзывает все
//     сессии аккаунта и только затем возвращает ErrInvalidRefreshToken;
//   - отозванная при успешной ротации строка не воскрешается, даже если
//     выпуск новой пары после этого не удался: вызывающий наблюдает либо
//     полный успех, либо фактически разлогиненную сессию.
func (s *Service) Rotate(ctx context.Context, accountID uuid.UUID, rawRefresh string) (*models.TokenPair, error) {
	const op = "service.session.Rotate"

	lg := log.From(ctx)

	sessions, err := s.activeSessions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(sessions) == 0 {
		lg.Warn("rotate_no_active_sessions",
			slog.String("op", op),
			slog.String("account_id", accountID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrNoActiveSessions)
	}

	now := time.Now().UTC()

	var match *models.RefreshSession
	for i := range sessions {
		candidate := &sessions[i]
		if candidate.ExpiresAt.After(now) && matchRefreshToken(candidate.TokenHash, rawRefresh) {
			match = candidate
			break
		}
	}

	if match == nil {
		// Токен корректно подписан, но не найден среди активных
		// непросроченных строк: он либо уже употреблён, либо подделан.
		// В обоих случаях семейство сжигается целиком.
		if err := s.revokeFamily(ctx, accountID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		lg.Warn("rotate_replay_detected",
			slog.String("op", op),
			slog.String("account_id", accountID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	revokedNow, err := s.storage.RevokeSessionIfActive(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateCache(ctx, accountID)

	if !revokedNow {
		// Проигранная гонка: конкурент успел употребить тот же токен.
		if err := s.revokeFamily(ctx, accountID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		lg.Warn("rotate_lost_race",
			slog.String("op", op),
			slog.String("account_id", accountID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	account, err := s.storage.AccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issueTokenPair(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.RotationsTotal.Inc()

	lg.Info("refresh_rotated",
		slog.String("op", op),
		slog.String("account_id", accountID.String()),
	)

	return pair, nil
}

// Logout отзывает одну сессию — ту, чей хэш совпал с предъявленным токеном.
// Остальные сессии аккаунта (другие устройства) не затрагиваются.
// Повторный выход тем же токеном — ErrSessionNotFound: активной сессии
// под него уже нет.
func (s *Service) Logout(ctx context.Context, accountID uuid.UUID, rawRefresh string) error {
	const op = "service.session.Logout"

	sessions, err := s.activeSessions(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var match *models.RefreshSession
	for i := range sessions {
		if matchRefreshToken(sessions[i].TokenHash, rawRefresh) {
			match = &sessions[i]
			break
		}
	}

	if match == nil {
		return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}

	revokedNow, err := s.storage.RevokeSessionIfActive(ctx, match.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateCache(ctx, accountID)

	if !revokedNow {
		return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}

	log.From(ctx).Info("logout_ok",
		slog.String("op", op),
		slog.String("account_id", accountID.String()),
	)

	return nil
}

// RevokeAll отзывает все сессии аккаунта. Используется защитно
// (отсутствующий refresh-токен у клиента, обнаруженный повтор) и никогда
// не падает из-за того, что отзывать нечего.
func (s *Service) RevokeAll(ctx context.Context, accountID uuid.UUID) error {
	const op = "service.session.RevokeAll"

	if err := s.storage.RevokeAllByAccount(ctx, accountID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateCache(ctx, accountID)

	log.From(ctx).Info("all_sessions_revoked",
		slog.String("op", op),
		slog.String("account_id", accountID.String()),
	)

	return nil
}

// issueTokenPair выпускает новую пару access+refresh и сохраняет
// refresh-сессию. Хранится только хэш токена.
func (s *Service) issueTokenPair(ctx context.Context, account *models.Account) (*models.TokenPair, error) {
	const op = "service.session.issueTokenPair"

	now := time.Now().UTC()

	accessToken, err := s.generateAccessToken(account.ID, account.Username, account.Email, string(account.Role), now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := s.generateRefreshToken(account.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tokenHash, err := hashRefreshToken(refreshToken, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	session := &models.RefreshSession{
		ID:        uuid.New(),
		AccountID: account.ID,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL.Std()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storage.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateCache(ctx, account.ID)

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL.Std()),
	}, nil
}

// revokeFamily сжигает все сессии аккаунта по сигналу компрометации.
func (s *Service) revokeFamily(ctx context.Context, accountID uuid.UUID) error {
	const op = "service.session.revokeFamily"

	if err := s.storage.RevokeAllByAccount(ctx, accountID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateCache(ctx, accountID)
	metrics.ReplayRevocationsTotal.Inc()

	return nil
}

// activeSessions возвращает активные сессии аккаунта, при наличии кэша —
// через него. Ошибки кэша деградируют до чтения из хранилища.
func (s *Service) activeSessions(ctx context.Context, accountID uuid.UUID) ([]models.RefreshSession, error) {
	const op = "service.session.activeSessions"

	lg := log.From(ctx)

	if s.scache != nil {
		sessions, ok, err := s.scache.ActiveSessions(ctx, accountID)
		if err != nil {
			lg.Warn("session_cache_read_failed",
				slog.String("op", op),
				attrErr(err),
			)
		} else if ok {
			return sessions, nil
		}
	}

	sessions, err := s.storage.ActiveSessionsByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.scache != nil {
		if err := s.scache.SetActiveSessions(ctx, accountID, sessions, cache.DefaultTTL); err != nil {
			lg.Warn("session_cache_write_failed",
				slog.String("op", op),
				attrErr(err),
			)
		}
	}

	return sessions, nil
}

// invalidateCache сбрасывает кэш сессий аккаунта после любой мутации.
func (s *Service) invalidateCache(ctx context.Context, accountID uuid.UUID) {
	if s.scache == nil {
		return
	}

	if err := s.scache.Invalidate(ctx, accountID); err != nil {
		log.From(ctx).Warn("session_cache_invalidate_failed",
			slog.String("op", "service.session.invalidateCache"),
			attrErr(err),
		)
	}
}
