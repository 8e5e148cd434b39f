package service

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AccessClaims — полезная нагрузка access-токена: идентичность и роль.
// Проверяется вызывающим слоем на каждом защищённом запросе.
type AccessClaims struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// refreshClaims несёт только идентификатор аккаунта: перехваченный
// refresh-токен не может быть предъявлен как доказательство привилегий.
type refreshClaims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

// generateAccessToken подписывает access-токен секретом access-контекста.
func (s *Service) generateAccessToken(accountID uuid.UUID, username, email string, role string, now time.Time) (string, error) {
	const op = "service.token.generateAccessToken"

	claims := AccessClaims{
		AccountID: accountID.String(),
		Username:  username,
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL.Std())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Subject:   accountID.String(),
			Audience:  jwt.ClaimStrings(s.cfg.Audience),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.AccessSecret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// generateRefreshToken подписывает refresh-токен независимым секретом
// refresh-контекста со своим TTL.
func (s *Service) generateRefreshToken(accountID uuid.UUID, now time.Time) (string, error) {
	const op = "service.token.generateRefreshToken"

	claims := refreshClaims{
		AccountID: accountID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			// Уникальный jti: два токена одного аккаунта, выпущенные в одну
			// секунду, не должны совпадать байт в байт — иначе «новый» токен
			// равен употреблённому и одноразовость ротации теряется.
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.RefreshTokenTTL.Std())),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Subject:   accountID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.RefreshSecret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// ParseAccessToken проверяет подпись и срок access-токена и возвращает claims.
// Проверка закрыта по умолчанию: просрочка — ErrTokenExpired, любая иная
// некорректность (подпись, алгоритм, issuer, audience) — ErrInvalidToken.
func (s *Service) ParseAccessToken(tokenStr string) (*AccessClaims, error) {
	const op = "service.token.ParseAccessToken"

	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.AccessSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience...),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if _, err := uuid.Parse(claims.AccountID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// ParseRefreshToken проверяет подпись и срок refresh-токена и возвращает
// идентификатор аккаунта. Ротации достаточно признака "сейчас не валиден":
// вызывающий передаёт в Rotate только токены, прошедшие эту проверку.
func (s *Service) ParseRefreshToken(tokenStr string) (uuid.UUID, error) {
	const op = "service.token.ParseRefreshToken"

	token, err := jwt.ParseWithClaims(tokenStr, &refreshClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.RefreshSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*refreshClaims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	accountID, err := uuid.Parse(claims.AccountID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return accountID, nil
}

// hashRefreshToken хэширует refresh-токен для хранения: bcrypt со свежей
// солью поверх sha256-дайджеста. Дайджест нужен из-за ограничения bcrypt
// на 72 байта входа — подписанные токены длиннее.
func hashRefreshToken(raw string, cost int) (string, error) {
	const op = "service.token.hashRefreshToken"

	sum := sha256.Sum256([]byte(raw))
	hash, err := bcrypt.GenerateFromPassword(sum[:], cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(hash), nil
}

// matchRefreshToken сравнивает предъявленный токен с хранимым хэшем.
// bcrypt даёт семантику сравнения за константное время.
func matchRefreshToken(hash, raw string) bool {
	sum := sha256.Sum256([]byte(raw))
	return bcrypt.CompareHashAndPassword([]byte(hash), sum[:]) == nil
}

// attrErr — единообразный атрибут ошибки для логов.
func attrErr(err error) slog.Attr {
	return slog.String("err", err.Error())
}
