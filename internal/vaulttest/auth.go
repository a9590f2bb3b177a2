// Copyright 2026 Mandatevault Ltd.

package vaulttest

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/mandatevault/mvault/internal/auth"
)

// NewIdentity returns an identity for the given tenant. Roles may
// include auth.AdminRole.
func NewIdentity(subject, tenantID string, roles ...string) *auth.Identity {
	id := &auth.Identity{
		Subject:  subject,
		TenantID: tenantID,
	}
	for _, r := range roles {
		if r == auth.AdminRole {
			id.Admin = true
		}
	}
	return id
}

// BearerToken mints a signed bearer token accepted by an
// auth.Authenticator constructed with the same secret.
func BearerToken(t Tester, secret, subject, tenantID, role string) string {
	tok, err := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Claim("tenant_id", tenantID).
		Claim("role", role).
		Build()
	if err != nil {
		t.Fatalf("cannot build token: %s", err)
	}
	key, err := jwk.FromRaw([]byte(secret))
	if err != nil {
		t.Fatalf("cannot create key: %s", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, key))
	if err != nil {
		t.Fatalf("cannot sign token: %s", err)
	}
	return string(signed)
}
