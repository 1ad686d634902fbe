// Package auth validates operator bearer tokens minted by the external auth
// API. No credentials live in this service; it only checks signatures and
// extracts the operator identity and role.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Roles known to the register service.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RolePharmacist = "pharmacist"
	RoleCashier    = "cashier"
)

var ErrInvalidToken = errors.New("auth: invalid token")

// Identity is what a validated token asserts about the operator.
type Identity struct {
	OperatorID string
	Role       string
}

// TokenValidator parses and validates HS256 operator tokens.
type TokenValidator struct {
	Secret    []byte
	Issuer    string
	ClockSkew time.Duration
	Now       func() time.Time
}

// Parse verifies the signature and standard claims and extracts the identity.
func (v TokenValidator) Parse(raw string) (Identity, error) {
	if len(v.Secret) == 0 {
		return Identity{}, errors.New("auth: validator secret not configured")
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}

	options := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, v.Secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now() })),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}

	tok, err := jwt.Parse([]byte(raw), options...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	operatorID := strings.TrimSpace(tok.Subject())
	if operatorID == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role, err := roleClaim(tok)
	if err != nil {
		return Identity{}, err
	}
	return Identity{OperatorID: operatorID, Role: role}, nil
}

func roleClaim(tok jwt.Token) (string, error) {
	raw, ok := tok.Get("role")
	if !ok {
		return "", fmt.Errorf("%w: missing role claim", ErrInvalidToken)
	}
	role, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: malformed role claim", ErrInvalidToken)
	}
	switch role = strings.ToLower(strings.TrimSpace(role)); role {
	case RoleAdmin, RoleManager, RolePharmacist, RoleCashier:
		return role, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
}
