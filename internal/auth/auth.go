// Copyright 2026 Mandatevault Ltd.

// Package auth contains bearer-token authentication for the API
// surface and the identity it establishes.
package auth

import (
	"context"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/mandatevault/mvault/internal/errors"
)

// AdminRole is the role claim value that waives tenant-equality checks.
const AdminRole = "administrator"

// An Identity is the authenticated principal of a request.
type Identity struct {
	// Subject is the principal identifier from the token's sub claim.
	Subject string

	// TenantID is the tenant the principal belongs to.
	TenantID string

	// Admin principals may operate across tenants.
	Admin bool
}

// AllowedTenant reports whether the identity may operate on the given
// tenant's data.
func (i *Identity) AllowedTenant(tenantID string) bool {
	return i.Admin || i.TenantID == tenantID
}

// An Authenticator validates bearer tokens presented to the API. The
// tokens are HMAC-signed JWTs whose claims carry the tenant and role.
type Authenticator struct {
	key jwk.Key
}

// NewAuthenticator returns an authenticator that validates tokens
// signed with the given shared secret.
func NewAuthenticator(secret []byte) (*Authenticator, error) {
	const op = errors.Op("auth.NewAuthenticator")
	if len(secret) == 0 {
		return nil, errors.E(op, errors.CodeServerConfiguration, "empty authentication secret")
	}
	key, err := jwk.FromRaw(secret)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return &Authenticator{key: key}, nil
}

// Authenticate validates the given Authorization header value and
// returns the identity it establishes. An error with a code of
// errors.CodeUnauthorized is returned if the header is missing or the
// token does not validate.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*Identity, error) {
	const op = errors.Op("auth.Authenticate")

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errors.E(op, errors.CodeUnauthorized, "no authorization token")
	}
	token, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256, a.key), jwt.WithValidate(true))
	if err != nil {
		return nil, errors.E(op, errors.CodeUnauthorized, "invalid authorization token")
	}
	identity := Identity{
		Subject: token.Subject(),
	}
	if v, ok := token.Get("tenant_id"); ok {
		identity.TenantID, _ = v.(string)
	}
	if v, ok := token.Get("role"); ok {
		role, _ := v.(string)
		identity.Admin = role == AdminRole
	}
	if identity.TenantID == "" && !identity.Admin {
		return nil, errors.E(op, errors.CodeUnauthorized, "token has no tenant")
	}
	return &identity, nil
}

type identityKey struct{}

// ContextWithIdentity returns a context with the given identity
// attached.
func ContextWithIdentity(ctx context.Context, i *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, i)
}

// IdentityFromContext returns the identity attached to the context, or
// nil if the request is unauthenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	i, _ := ctx.Value(identityKey{}).(*Identity)
	return i
}
