// service содержит бизнес-логику сервиса сессий:
// регистрацию/аутентификацию пользователей, выпуск/проверку пары токенов
// и ротацию отпечатка refresh-токена через интерфейсы пакета storage.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//   - Отпечаток refresh-токена один на пользователя; каждый успешный вход
//     заменяет его целиком (last-write-wins при конкурентных входах).
//   - Ошибки возвращаются сентинелами и далее маппятся
//     транспортом на HTTP-статусы (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"

	"github.com/pribylovaa/go-session-service/internal/cache"
	"github.com/pribylovaa/go-session-service/internal/config"
	"github.com/pribylovaa/go-session-service/internal/storage"
)

var (
	// ErrMissingCredentials — в запросе нет email или пароля.
	// Транспорт: 400 Bad Request.
	ErrMissingCredentials = errors.New("missing email or password")

	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// Намеренно неразличимо: ответ (и его тайминг) не должен выдавать,
	// существует ли пользователь. Транспорт: 401 Unauthorized.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — токен (access/refresh) некорректен по формату/подписи
	// или его отпечаток не совпадает с сохранённым. Транспорт: 401 Unauthorized.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк.
	// Транспорт: 401 Unauthorized.
	ErrTokenExpired = errors.New("token expired")

	// ErrEmailTaken — e-mail уже занят другим пользователем.
	// Транспорт: 409 Conflict.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidEmail — e-mail имеет некорректный формат.
	// Транспорт: 400 Bad Request.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль короче минимально допустимой длины.
	// Транспорт: 400 Bad Request.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой.
	// Транспорт: 400 Bad Request.
	ErrEmptyPassword = errors.New("password is empty")
)

// Service описывает бизнес-логику сервиса сессий.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	fpcache cache.FingerprintCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
	}
}

// SetFingerprintCache устанавливает кэш отпечатков refresh-токенов (опционально).
func (s *Service) SetFingerprintCache(c cache.FingerprintCache) {
	s.fpcache = c
}
