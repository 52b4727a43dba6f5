// log прокидывает request-scoped *slog.Logger через context.Context:
// HTTP-мидлвар кладёт логгер с request_id, сервисный слой достаёт его
// через From и пишет записи, привязанные к конкретному запросу.
package log

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// Into возвращает контекст с привязанным логгером.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From достаёт логгер из контекста; без логгера (или с мусором под ключом)
// возвращает slog.Default(), чтобы вызывающему не требовалась проверка на nil.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}

	return slog.Default()
}
