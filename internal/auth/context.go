package auth

import (
	"context"

	"motorlane/internal/models"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Principal is the authenticated user resolved from a validated access token,
// together with the claims it was carried in.
type Principal struct {
	User   *models.User
	Claims Claims
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
