// Copyright 2026 Mandatevault Ltd.

package vaulttest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// An IssuerKey is a signing key pair for a test issuer.
type IssuerKey struct {
	// Private is the signing key, with kid and alg set.
	Private jwk.Key

	// Public is the public key set published by the issuer.
	Public jwk.Set
}

// NewIssuerKey generates an RSA signing key pair with the given key
// id.
func NewIssuerKey(t Tester, kid string) IssuerKey {
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("cannot generate key: %s", err)
	}
	priv, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("cannot create JWK: %s", err)
	}
	if err := priv.Set(jwk.KeyIDKey, kid); err != nil {
		t.Fatalf("cannot set kid: %s", err)
	}
	if err := priv.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		t.Fatalf("cannot set alg: %s", err)
	}
	pub, err := priv.PublicKey()
	if err != nil {
		t.Fatalf("cannot derive public key: %s", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		t.Fatalf("cannot build key set: %s", err)
	}
	return IssuerKey{Private: priv, Public: set}
}

// SignJWT signs the given claims as a compact JWS using the issuer
// key.
func SignJWT(t Tester, key IssuerKey, claims map[string]interface{}) string {
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("cannot marshal claims: %s", err)
	}
	signed, err := jws.Sign(payload, jws.WithKey(jwa.RS256, key.Private))
	if err != nil {
		t.Fatalf("cannot sign token: %s", err)
	}
	return string(signed)
}

// JWTVCPayload wraps a compact JWS in the envelope accepted by the
// JWT-VC protocol.
func JWTVCPayload(t Tester, token string) json.RawMessage {
	buf, err := json.Marshal(map[string]string{"vc_jwt": token})
	if err != nil {
		t.Fatalf("cannot marshal payload: %s", err)
	}
	return buf
}

// VCClaims returns a standard claim set for a test credential issued
// by the given issuer, expiring at the given time.
func VCClaims(issuer string, expires time.Time) map[string]interface{} {
	now := time.Now().Unix()
	return map[string]interface{}{
		"iss":          issuer,
		"sub":          "did:example:subject-1",
		"iat":          now,
		"exp":          expires.Unix(),
		"jti":          fmt.Sprintf("jti-%d", now),
		"scope":        "payment.recurring",
		"amount_limit": "5000.00 USD",
	}
}

// DelegatedToken returns a well-formed delegated token document. The
// given overrides replace or, when the value is nil, delete fields.
func DelegatedToken(t Tester, overrides map[string]interface{}) json.RawMessage {
	token := map[string]interface{}{
		"token_id":    "t1",
		"psp_id":      "psp-a",
		"merchant_id": "m-acme",
		"max_amount":  "100.00",
		"currency":    "USD",
		"expires_at":  time.Now().UTC().Add(7 * 24 * time.Hour).Format(time.RFC3339),
	}
	for k, v := range overrides {
		if v == nil {
			delete(token, k)
			continue
		}
		token[k] = v
	}
	buf, err := json.Marshal(token)
	if err != nil {
		t.Fatalf("cannot marshal token: %s", err)
	}
	return buf
}
