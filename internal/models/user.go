package models

import (
	"time"

	"github.com/google/uuid"
)

// Role — роль пользователя в системе.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User — модель пользователя в системе.
//
// RefreshFingerprint — хэш действующего refresh-токена (sha256, base64url).
// Пустая строка означает отсутствие активной сессии. На пользователя
// хранится ровно один отпечаток: ротация заменяет его целиком.
type User struct {
	ID                 uuid.UUID
	Email              string
	Name               string
	PasswordHash       string
	Role               Role
	RefreshFingerprint string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
