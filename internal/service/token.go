package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-session-service/internal/models"
	"github.com/pribylovaa/go-session-service/internal/pkg/log"
)

// accessClaims — клеймы access-токена: идентичность плюс email и роль
// для авторизации запросов без похода в БД.
type accessClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// refreshClaims — клеймы refresh-токена. Только идентичность:
// перехваченный refresh-токен не должен раскрывать ничего лишнего.
type refreshClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// registeredClaims — единая заготовка стандартных клеймов.
// Access и refresh отличаются только набором кастомных полей,
// секретом подписи и TTL — сам путь подписи/проверки общий.
func (s *Service) registeredClaims(userID uuid.UUID, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    s.cfg.Issuer,
		Subject:   userID.String(),
	}
}

// signToken подписывает клеймы HS256 заданным секретом.
func signToken(claims jwt.Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseToken разбирает и проверяет токен заданным секретом.
// Различает истёкший токен и все прочие дефекты (подпись/формат/issuer).
func (s *Service) parseToken(tokenStr, secret string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalidToken
			}

			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}

		return ErrInvalidToken
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}

// generateAccessToken выпускает access-токен (клеймы: id, email, роль).
func (s *Service) generateAccessToken(ctx context.Context, user *models.User, now time.Time) (string, error) {
	const op = "service.token.generateAccessToken"

	claims := accessClaims{
		UserID:           user.ID.String(),
		Email:            user.Email,
		Role:             string(user.Role),
		RegisteredClaims: s.registeredClaims(user.ID, now, s.cfg.AccessTTL.Duration()),
	}

	signed, err := signToken(claims, s.cfg.AccessSecret)
	if err != nil {
		log.From(ctx).Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// generateRefreshToken выпускает refresh-токен (клеймы: только id).
// Подписывается отдельным секретом: компрометация refresh-секрета
// не позволяет подделать access-токены, и наоборот.
func (s *Service) generateRefreshToken(ctx context.Context, userID uuid.UUID, now time.Time) (string, error) {
	const op = "service.token.generateRefreshToken"

	claims := refreshClaims{
		UserID:           userID.String(),
		RegisteredClaims: s.registeredClaims(userID, now, s.cfg.RefreshTTL.Duration()),
	}

	signed, err := signToken(claims, s.cfg.RefreshSecret)
	if err != nil {
		log.From(ctx).Error("refresh_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// validateAccessToken валидирует access-токен и возвращает идентичность с клеймами.
func (s *Service) validateAccessToken(tokenStr string) (uuid.UUID, *accessClaims, error) {
	const op = "service.token.validateAccessToken"

	claims := &accessClaims{}
	if err := s.parseToken(tokenStr, s.cfg.AccessSecret, claims); err != nil {
		return uuid.Nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return uid, claims, nil
}

// validateRefreshToken валидирует refresh-токен и возвращает идентичность.
func (s *Service) validateRefreshToken(tokenStr string) (uuid.UUID, error) {
	const op = "service.token.validateRefreshToken"

	claims := &refreshClaims{}
	if err := s.parseToken(tokenStr, s.cfg.RefreshSecret, claims); err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return uid, nil
}

// fingerprint возвращает отпечаток refresh-токена: base64url(sha256(token)).
// В БД хранится только отпечаток, поэтому компрометация БД не даёт
// работоспособных refresh-токенов.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
