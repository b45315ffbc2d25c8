package api

import (
	"context"
	"net/http"
	"strings"

	"AgriDataHub/api/constants"
)

type ctxKey string

const actorKey ctxKey = "actor"

// WithActor stores the acting user on the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromCtx returns the user the gateway attached to the request, if any.
func ActorFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey).(string); ok {
		return v
	}
	return ""
}

// RequestedBy resolves the acting user: an explicit imported_by form or
// query value wins over the X-User-Id header.
func RequestedBy(r *http.Request) string {
	if v := strings.TrimSpace(r.FormValue(constants.KeyImportedBy)); v != "" {
		return v
	}
	return ActorFromCtx(r.Context())
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}
