// Package identity отвечает на вопрос "кто автор запроса".
// Идентификатор кладёт в контекст JWT middleware, ядро читает его через Provider.
package identity

import "context"

type callerIDKey struct{}

// Provider возвращает идентификатор текущего пользователя, если он известен
type Provider interface {
	CurrentCallerID(ctx context.Context) (string, bool)
}

// ContextProvider читает идентификатор из контекста запроса
type ContextProvider struct{}

func (ContextProvider) CurrentCallerID(ctx context.Context) (string, bool) {
	return CallerIDFromContext(ctx)
}

// WithCallerID возвращает контекст с идентификатором пользователя.
// Пустой id не сохраняется.
func WithCallerID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, callerIDKey{}, id)
}

func CallerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callerIDKey{}).(string)
	return id, ok && id != ""
}

// Static всегда возвращает один и тот же идентификатор; используется сидером и в тестах
type Static string

func (s Static) CurrentCallerID(context.Context) (string, bool) {
	return string(s), s != ""
}
