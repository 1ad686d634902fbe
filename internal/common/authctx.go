package common

import "context"

// AuthContext identifies the operator behind a request. It is carried
// explicitly on the request context instead of being read from ambient
// storage so the engine stays testable without a simulated session store.
type AuthContext struct {
	OperatorID string
	Role       string
	// Token is the raw bearer token, forwarded verbatim to the sales API.
	Token string
}

type ctxKey string

const authKey ctxKey = "auth/operator"

// WithAuth stores the operator identity on the provided context.
func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authKey, ac)
}

// Auth extracts the operator identity from the context if present.
func Auth(ctx context.Context) (AuthContext, bool) {
	v := ctx.Value(authKey)
	if v == nil {
		return AuthContext{}, false
	}
	ac, ok := v.(AuthContext)
	return ac, ok
}
