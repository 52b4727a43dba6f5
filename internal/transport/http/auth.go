package http

import (
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/go-session-service/internal/errors"
	"github.com/pribylovaa/go-session-service/internal/service"
)

type signUpRequest struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp регистрирует пользователя: 201 с проекцией записи (включая created_at),
// 409 при дубликате email, 400 при битом входе.
func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var in signUpRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrMalformedRequest)
		return
	}

	user, err := h.service.SignUp(r.Context(), in.Name, in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPayload(user, true))
}

// SignIn аутентифицирует по email+пароль и устанавливает сессионные cookie.
// Cookie пишутся только после того, как сервис зафиксировал отпечаток
// refresh-токена в БД.
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var in signInRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrMalformedRequest)
		return
	}

	user, pair, err := h.service.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.cookies.Write(w, pair)
	writeJSON(w, http.StatusOK, toPayload(user, false))
}

// Refresh ротирует пару токенов по refresh-cookie и переустанавливает cookie.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	_, refreshToken := h.cookies.Read(r)
	if refreshToken == "" {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	user, pair, err := h.service.RefreshSession(r.Context(), refreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.cookies.Write(w, pair)
	writeJSON(w, http.StatusOK, toPayload(user, false))
}

// Logout сбрасывает отпечаток refresh-токена и очищает cookie.
// Идемпотентен: без валидной сессии всё равно отвечает 204 с clear-cookie.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	_, refreshToken := h.cookies.Read(r)

	if err := h.service.SignOut(r.Context(), refreshToken); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me возвращает профиль владельца access-токена.
// Токен берётся из cookie; Authorization: Bearer — запасной вариант
// для не-браузерных клиентов.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	accessToken, _ := h.cookies.Read(r)
	if accessToken == "" {
		accessToken = bearerToken(r)
	}

	if accessToken == "" {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	user, err := h.service.Authenticate(r.Context(), accessToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPayload(user, false))
}

// bearerToken достаёт токен из заголовка Authorization.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")

	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) && len(auth) > len(prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}

	return ""
}
