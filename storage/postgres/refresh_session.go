package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pribylovaa/notes-keeper/auth-service/models"
	"github.com/pribylovaa/notes-keeper/auth-service/storage"
)

// SaveSession сохраняет новую refresh-сессию.
func (s *Storage) SaveSession(ctx context.Context, session *models.RefreshSession) error {
	const op = "storage.postgres.SaveSession"

	query := `
		INSERT INTO refresh_sessions(refresh_id, account_id, token_hash, revoked, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.Exec(ctx, query,
		session.ID,
		session.AccountID,
		session.TokenHash,
		session.Revoked,
		session.ExpiresAt,
		session.CreatedAt,
		session.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ActiveSessionsByAccount возвращает неотозванные сессии аккаунта.
// Просроченные строки не фильтруются: решение о сроке — за вызывающим.
func (s *Storage) ActiveSessionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.RefreshSession, error) {
	const op = "storage.postgres.ActiveSessionsByAccount"

	query := `
		SELECT refresh_id, account_id, token_hash, revoked, expires_at, created_at, updated_at
		FROM refresh_sessions
		WHERE account_id = $1 AND revoked = FALSE
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var sessions []models.RefreshSession
	for rows.Next() {
		var session models.RefreshSession
		if err := rows.Scan(
			&session.ID,
			&session.AccountID,
			&session.TokenHash,
			&session.Revoked,
			&session.ExpiresAt,
			&session.CreatedAt,
			&session.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sessions, nil
}

// RevokeSessionIfActive отзывает сессию, если она ещё не была отозвана.
// Условный UPDATE по флагу revoked — гарантия "ровно одной" успешной
// ротации на строку при конкурентных запросах.
// Возвращает:
//
//	(true, nil)  — сессия была активна и отозвана сейчас;
//	(false, nil) — сессия существует, но уже была отозвана;
//	(false, ErrNotFound) — сессия не найдена.
func (s *Storage) RevokeSessionIfActive(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "storage.postgres.RevokeSessionIfActive"

	const upd = `
		UPDATE refresh_sessions
		SET revoked = TRUE, updated_at = now()
		WHERE refresh_id = $1 AND revoked = FALSE
		RETURNING account_id
	`

	var accountID uuid.UUID
	err := s.db.QueryRow(ctx, upd, id).Scan(&accountID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	const sel = `
		SELECT revoked
		FROM refresh_sessions
		WHERE refresh_id = $1
	`

	var revoked bool
	err = s.db.QueryRow(ctx, sel, id).Scan(&revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

// RevokeAllByAccount отзывает все сессии аккаунта (включая уже отозванные —
// UPDATE по ним идемпотентен). Ноль затронутых строк — не ошибка.
func (s *Storage) RevokeAllByAccount(ctx context.Context, accountID uuid.UUID) error {
	const op = "storage.postgres.RevokeAllByAccount"

	query := `
		UPDATE refresh_sessions
		SET revoked = TRUE, updated_at = now()
		WHERE account_id = $1 AND revoked = FALSE
	`

	if _, err := s.db.Exec(ctx, query, accountID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteExpiredSessions удаляет все просроченные сессии.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.DeleteExpiredSessions"

	query := `
		DELETE FROM refresh_sessions
		WHERE expires_at <= $1
	`

	if _, err := s.db.Exec(ctx, query, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
