package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-session-service/internal/models"
	"github.com/pribylovaa/go-session-service/internal/pkg/log"
	"github.com/pribylovaa/go-session-service/internal/pkg/redact"
	"github.com/pribylovaa/go-session-service/internal/storage"
)

// dummyPasswordHash — bcrypt-хэш случайной строки. Против него сверяется
// пароль, когда пользователь не найден: путь "нет такого email" занимает
// столько же времени, сколько "неверный пароль", и не выдаёт существование
// учётной записи по таймингу.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// SignUp регистрирует нового пользователя.
// Пароль хранится только в виде bcrypt-хэша; наружу запись уходит без него.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (*models.User, error) {
	const op = "service.auth.SignUp"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByEmail(ctx, normEmail)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        normEmail,
		Name:         strings.TrimSpace(name),
		PasswordHash: hashedPassword,
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		// Гонка двух регистраций: уникальный индекс в БД — последняя линия защиты.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_registered",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	return user, nil
}

// SignIn выполняет вход по email+пароль и выпускает новую пару токенов.
//
// Порядок жёсткий: отпечаток нового refresh-токена сначала фиксируется в БД,
// и только потом пара возвращается вызывающему. Если запись не удалась
// (в том числе из-за отмены контекста) — токены наружу не уходят,
// сессия не считается установленной.
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.User, *models.TokenPair, error) {
	const op = "service.auth.SignIn"

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrMissingCredentials)
	}

	// Кривой формат email здесь не отличается от неизвестного пользователя.
	normEmail, err := validateEmail(email)
	if err != nil {
		checkPassword(dummyPasswordHash, password)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			checkPassword(dummyPasswordHash, password)
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_signed_in",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
	)

	return user, pair, nil
}

// RefreshSession выпускает новую пару токенов по действующему refresh-токену.
// Токен обязан пройти проверку подписи/срока и совпасть отпечатком
// с сохранённым; после ротации прежний refresh-токен мёртв.
func (s *Service) RefreshSession(ctx context.Context, refreshToken string) (*models.User, *models.TokenPair, error) {
	const op = "service.auth.RefreshSession"

	uid, err := s.validateRefreshToken(refreshToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	fp := fingerprint(refreshToken)

	// Кэш — только подсказка. Расхождение с кэшированным отпечатком обычно
	// значит, что токен уже ротирован, но кэш мог и устареть (неудачный Set
	// при прошлой ротации), поэтому решение об отказе принимает только БД.
	var cacheStale bool
	if s.fpcache != nil {
		cached, ok, cerr := s.fpcache.Get(ctx, uid)
		if cerr != nil {
			log.From(ctx).Warn("fingerprint_cache_get_failed",
				slog.String("op", op),
				slog.String("err", cerr.Error()),
			)
		} else if ok && subtle.ConstantTimeCompare([]byte(cached), []byte(fp)) != 1 {
			cacheStale = true
		}
	}

	user, err := s.storage.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.RefreshFingerprint == "" ||
		subtle.ConstantTimeCompare([]byte(user.RefreshFingerprint), []byte(fp)) != 1 {
		log.From(ctx).Warn("refresh_fingerprint_mismatch",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	// БД подтвердила токен при расхождении с кэшем: запись в кэше устарела.
	// Ротация ниже перезапишет её отпечатком нового токена.
	if cacheStale {
		log.From(ctx).Warn("fingerprint_cache_stale",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
		)
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, pair, nil
}

// SignOut завершает сессию: сбрасывает сохранённый отпечаток refresh-токена.
// Операция идемпотентна: невалидный или уже ротированный токен — не ошибка,
// cookie в любом случае будут очищены транспортом.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	const op = "service.auth.SignOut"

	if refreshToken == "" {
		return nil
	}

	uid, err := s.validateRefreshToken(refreshToken)
	if err != nil {
		return nil
	}

	if err := s.storage.ClearRefreshFingerprint(ctx, uid); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if s.fpcache != nil {
		if cerr := s.fpcache.Delete(ctx, uid); cerr != nil {
			log.From(ctx).Warn("fingerprint_cache_delete_failed",
				slog.String("op", op),
				slog.String("err", cerr.Error()),
			)
		}
	}

	log.From(ctx).Info("user_signed_out",
		slog.String("op", op),
		slog.String("user_id", uid.String()),
	)

	return nil
}

// Authenticate проверяет access-токен и возвращает пользователя.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "service.auth.Authenticate"

	uid, _, err := s.validateAccessToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// issueTokenPair выпускает пару access+refresh и фиксирует отпечаток
// нового refresh-токена в БД до возврата пары. Запись одна и атомарная:
// прежний отпечаток заменяется целиком.
func (s *Service) issueTokenPair(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	const op = "service.auth.issueTokenPair"

	now := time.Now().UTC()

	accessToken, err := s.generateAccessToken(ctx, user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := s.generateRefreshToken(ctx, user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	fp := fingerprint(refreshToken)
	if err := s.storage.UpdateRefreshFingerprint(ctx, user.ID, fp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.fpcache != nil {
		if cerr := s.fpcache.Set(ctx, user.ID, fp, s.cfg.RefreshTTL.Duration()); cerr != nil {
			log.From(ctx).Warn("fingerprint_cache_set_failed",
				slog.String("op", op),
				slog.String("err", cerr.Error()),
			)
		}
	}

	return &models.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now.Add(s.cfg.AccessTTL.Duration()),
		RefreshExpiresAt: now.Add(s.cfg.RefreshTTL.Duration()),
	}, nil
}

// hashPassword хэширует пароль с помощью bcrypt (cost 10, соль внутри хэша).
func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем (bcrypt, константное время).
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет минимальные требования к паролю: длина >= 8 символов.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
