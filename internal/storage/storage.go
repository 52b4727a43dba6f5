package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-session-service/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя в БД.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SessionStorage управляет отпечатком refresh-токена пользователя.
//
// Отпечаток один на пользователя: UpdateRefreshFingerprint безусловно
// заменяет предыдущее значение (last-write-wins). При конкурентных входах
// с двух устройств валидным остаётся refresh-токен последнего завершившегося
// входа — осознанное упрощение, а не гонка.
type SessionStorage interface {
	// UpdateRefreshFingerprint атомарно записывает новый отпечаток refresh-токена.
	UpdateRefreshFingerprint(ctx context.Context, id uuid.UUID, fingerprint string) error
	// ClearRefreshFingerprint сбрасывает отпечаток (выход из системы).
	ClearRefreshFingerprint(ctx context.Context, id uuid.UUID) error
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	SessionStorage
	Close()
}
