// transport/http содержит REST-эндпоинты сервиса сессий.
// Здесь выполняется только маппинг данных и ошибок доменного слоя (service) в HTTP.
// Вся валидация и бизнес-логика находятся в пакете service.
//
// Принципы:
//   - Контекст запроса прокидывается в сервис без потерь;
//   - Cookie пишутся только ПОСЛЕ успешного ответа сервиса: пока отпечаток
//     refresh-токена не зафиксирован в БД, сессия не существует и никакая
//     частичная cookie наружу не уходит;
//   - Ошибки сервиса транслируются в статусы через internal/errors;
//     для 500 наружу не утекают детали внутренних ошибок.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pribylovaa/go-session-service/internal/models"
)

// AuthService — контракт доменного слоя, который потребляет транспорт.
type AuthService interface {
	SignUp(ctx context.Context, name, email, password string) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (*models.User, *models.TokenPair, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.User, *models.TokenPair, error)
	SignOut(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// Handlers агрегирует зависимости эндпоинтов.
type Handlers struct {
	service AuthService
	cookies CookieCodec
}

func NewHandlers(svc AuthService, cookies CookieCodec) *Handlers {
	return &Handlers{service: svc, cookies: cookies}
}

// userPayload — проекция пользователя для ответов API.
// Пароль и отпечаток refresh-токена наружу не сериализуются никогда.
type userPayload struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	Role      string     `json:"role"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// userEnvelope — корневой объект успешного ответа.
type userEnvelope struct {
	User userPayload `json:"user"`
}

// toPayload собирает безопасную проекцию; created_at отдаём только при создании.
func toPayload(u *models.User, withCreatedAt bool) userEnvelope {
	p := userPayload{
		ID:    u.ID.String(),
		Email: u.Email,
		Name:  u.Name,
		Role:  string(u.Role),
	}

	if withCreatedAt {
		createdAt := u.CreatedAt
		p.CreatedAt = &createdAt
	}

	return userEnvelope{User: p}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}
