package http

import (
	"net/http"
	"time"

	"github.com/pribylovaa/go-session-service/internal/config"
	"github.com/pribylovaa/go-session-service/internal/models"
)

// Имена сессионных cookie — часть wire-контракта с фронтом.
const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
)

// CookieCodec сериализует выпущенную пару токенов в транспортные cookie
// и разбирает их на последующих запросах. Кодек работает только с форматом:
// подпись токена он не проверяет (это обязанность сервисного слоя).
//
// Атрибуты каждой cookie: HttpOnly (недоступна скриптам), Secure (вне
// локальной разработки), SameSite=Lax, Path из конфигурации, Max-Age равен
// TTL соответствующего токена.
type CookieCodec struct {
	secure     bool
	path       string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCookieCodec собирает кодек из конфигурации cookie и токенов.
func NewCookieCodec(cookies config.CookieConfig, auth config.AuthConfig) CookieCodec {
	path := cookies.Path
	if path == "" {
		path = "/"
	}

	return CookieCodec{
		secure:     cookies.Secure,
		path:       path,
		accessTTL:  auth.AccessTTL.Duration(),
		refreshTTL: auth.RefreshTTL.Duration(),
	}
}

// Write выставляет обе сессионные cookie по выпущенной паре токенов.
func (c CookieCodec) Write(w http.ResponseWriter, pair *models.TokenPair) {
	http.SetCookie(w, c.cookie(AccessCookieName, pair.AccessToken, int(c.accessTTL.Seconds())))
	http.SetCookie(w, c.cookie(RefreshCookieName, pair.RefreshToken, int(c.refreshTTL.Seconds())))
}

// Read извлекает сырые значения токенов из cookie запроса.
// Отсутствующая cookie даёт пустую строку.
func (c CookieCodec) Read(r *http.Request) (accessToken, refreshToken string) {
	if ck, err := r.Cookie(AccessCookieName); err == nil {
		accessToken = ck.Value
	}
	if ck, err := r.Cookie(RefreshCookieName); err == nil {
		refreshToken = ck.Value
	}

	return accessToken, refreshToken
}

// Clear выставляет cookie с немедленным истечением — завершение сессии.
func (c CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(AccessCookieName, "", -1))
	http.SetCookie(w, c.cookie(RefreshCookieName, "", -1))
}

func (c CookieCodec) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
