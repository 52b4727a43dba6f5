package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout ограничивает обработку запроса общим дедлайном d.
// Уже установленный дедлайн (например, от вышестоящего прокси) не
// перекрывается; d <= 0 отключает мидлвар целиком.
func Timeout(d time.Duration) Middleware {
	if d <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
