package models

import "time"

// TokenPair — пара токенов, выдаваемая при аутентификации/регистрации.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API (клеймы: id, email, role);
//   - RefreshToken — долгоживущий JWT с минимальными клеймами (только id),
//     подписанный отдельным секретом; на сервере хранится только его отпечаток;
//   - AccessExpiresAt/RefreshExpiresAt — моменты истечения (UTC), по ним же
//     выставляется Max-Age сессионных cookie.
type TokenPair struct {
	// AccessToken — JWT для авторизации запросов.
	AccessToken string
	// RefreshToken — JWT для обновления пары без повторного входа.
	RefreshToken string
	// AccessExpiresAt — время истечения действия access-токена (UTC).
	AccessExpiresAt time.Time
	// RefreshExpiresAt — время истечения действия refresh-токена (UTC).
	RefreshExpiresAt time.Time
}
