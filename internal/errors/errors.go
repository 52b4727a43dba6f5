// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход он принимает ошибку доменного слоя (сентинелы пакета service),
// а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Таксономия: bad_request (клиент может исправить), invalid_credentials /
// unauthenticated (намеренно расплывчато — без перечисления пользователей),
// conflict (дубликат при создании), internal (не чинится клиентом).
// Детали внутренних ошибок наружу не уходят — только в логи.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/go-session-service/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// ErrMalformedRequest — тело запроса не разобралось (битый JSON, неизвестные поля).
// Транспорт: 400 Bad Request.
var ErrMalformedRequest = stderrors.New("malformed request body")

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку доменного слоя в HTTP-статус и
// унифицированный ответ для фронта.
//
// Поведение:
//   - err == nil — это программная ошибка вызова: возвращаем 500/internal,
//     чтобы не послать "200 OK" с телом ошибки и не маскировать баг;
//   - "пользователь не найден" и "неверный пароль" оба дают один и тот же
//     401/invalid_credentials — ответы неразличимы;
//   - прочее -> 500/internal (без утечки деталей).
func ToHTTP(err error) (int, ErrorResponse) {
	switch {
	case err == nil:
		return respond(http.StatusInternalServerError, "internal", "internal error")

	case stderrors.Is(err, ErrMalformedRequest):
		return respond(http.StatusBadRequest, "bad_request", "malformed request body")

	case stderrors.Is(err, service.ErrMissingCredentials):
		return respond(http.StatusBadRequest, "bad_request", "missing email or password")

	case stderrors.Is(err, service.ErrInvalidEmail),
		stderrors.Is(err, service.ErrWeakPassword),
		stderrors.Is(err, service.ErrEmptyPassword):
		return respond(http.StatusBadRequest, "bad_request", "invalid email or password format")

	case stderrors.Is(err, service.ErrInvalidCredentials):
		return respond(http.StatusUnauthorized, "invalid_credentials", "invalid credentials")

	case stderrors.Is(err, service.ErrInvalidToken),
		stderrors.Is(err, service.ErrTokenExpired):
		return respond(http.StatusUnauthorized, "unauthenticated", "unauthenticated")

	case stderrors.Is(err, service.ErrEmailTaken):
		return respond(http.StatusConflict, "conflict", "already exists")

	case stderrors.Is(err, context.Canceled):
		return respond(StatusClientClosedRequest, "canceled", "canceled")

	case stderrors.Is(err, context.DeadlineExceeded):
		return respond(http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded")

	default:
		return respond(http.StatusInternalServerError, "internal", "internal error")
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	// Прокидываем request_id для фронта, чтобы он мог репортить баги с привязкой.
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func respond(status int, code, msg string) (int, ErrorResponse) {
	return status, ErrorResponse{Error: APIError{Code: code, Message: msg}}
}
