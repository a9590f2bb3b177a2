// Copyright 2026 Mandatevault Ltd.

package verifier_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/mandatevault/mvault/internal/truststore"
	"github.com/mandatevault/mvault/internal/vaulttest"
	"github.com/mandatevault/mvault/internal/verifier"
)

const testIssuer = "did:example:issuer-1"

func newTrustedVerifier(c *qt.C) (*verifier.JWTVCVerifier, vaulttest.IssuerKey) {
	key := vaulttest.NewIssuerKey(c, "key-1")
	store := truststore.NewStore(truststore.Params{})
	err := store.RegisterIssuer(testIssuer, key.Public)
	c.Assert(err, qt.IsNil)
	return &verifier.JWTVCVerifier{Trust: store}, key
}

func TestJWTVCVerifyValid(t *testing.T) {
	c := qt.New(t)
	v, key := newTrustedVerifier(c)

	expires := time.Now().Add(24 * time.Hour)
	claims := vaulttest.VCClaims(testIssuer, expires)
	token := vaulttest.SignJWT(c, key, claims)

	result := v.Verify(context.Background(), []byte(token), verifier.Options{})
	c.Check(result.Status, qt.Equals, verifier.StatusValid)
	c.Check(result.Issuer, qt.Equals, testIssuer)
	c.Check(result.Subject, qt.Equals, "did:example:subject-1")
	c.Check(result.TokenRef, qt.Equals, claims["jti"])
	c.Check(result.ExpiresAt, qt.Equals, time.Unix(expires.Unix(), 0).UTC())
	c.Check(result.Scope, qt.DeepEquals, map[string]interface{}{"scope": "payment.recurring"})
	c.Check(result.Details["amount_limit"], qt.Equals, "5000.00 USD")
}

func TestJWTVCVerifyStructure(t *testing.T) {
	c := qt.New(t)
	v, _ := newTrustedVerifier(c)
	ctx := context.Background()

	result := v.Verify(ctx, []byte("only.two"), verifier.Options{})
	c.Check(result.Status, qt.Equals, verifier.StatusInvalidFormat)

	result = v.Verify(ctx, []byte("!!!.AAAA.AAAA"), verifier.Options{})
	c.Check(result.Status, qt.Equals, verifier.StatusInvalidFormat)

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256"}`))
	result = v.Verify(ctx, []byte(header+".!!!.AAAA"), verifier.Options{})
	c.Check(result.Status, qt.Equals, verifier.StatusInvalidFormat)
}

func TestJWTVCVerifyMissingClaims(t *testing.T) {
	c := qt.New(t)
	v, key := newTrustedVerifier(c)

	claims := vaulttest.VCClaims(testIssuer, time.Now().Add(time.Hour))
	delete(claims, "sub")
	delete(claims, "exp")
	token := vaulttest.SignJWT(c, key, claims)

	result := v.Verify(context.Background(), []byte(token), verifier.Options{})
	c.Check(result.Status, qt.Equals, verifier.StatusMissingRequiredField)
	c.Check(result.Reason, qt.Equals, "missing required claims: exp, sub")
}

func TestJWTVCVerifyBadSignature(t *testing.T) {
	c := qt.New(t)
	v, _ := newTrustedVerifier(c)

	// Sign with a key the trust store has never seen.
	rogue := vaulttest.NewIssuerKey(c, "rogue")
	token := vaulttest.SignJWT(c, rogue, vaulttest.VCClaims(testIssuer, time.Now().Add(time.Hour)))

	result := v.Verify(context.Background(), []byte(token), verifier.Options{})
	c.Check(result.Status, qt.Equals, verifier.StatusSigInvalid)
}

func TestJWTVCVerifyTamperedPayload(t *testing.T) {
	c := qt.New(t)
	v, key := newTrustedVerifier(c)

	claims := vaulttest.VCClaims(testIssuer, time.Now().Add(time.Hour))
	token := vaulttest.SignJWT(c, key, claims)
	claims["amount_limit"] = "999999.00 USD"
	forged := vaulttest.SignJWT(c, key, claims)
	segments := strings.Split(token, ".")
	forgedSegments := strings.Split(forged, ".")
	tampered := segments[0] + "." + forgedSegments[1] + "." + segments[2]

	result := v.Verify(context.Background(), []byte(tampered), verifier.Options{})
	c.Check(result.Status, qt.Equals, verifier.StatusSigInvalid)
}

func TestJWTVCVerifyUnknownIssuer(t *testing.T) {
	c := qt.New(t)
	key := vaulttest.NewIssuerKey(c, "key-1")
	store := truststore.NewStore(truststore.Params{})
	v := &verifier.JWTVCVerifier{Trust: store}

	token := vaulttest.SignJWT(c, key, vaulttest.VCClaims("did:example:unknown", time.Now().Add(time.Hour)))
	result := v.Verify(context.Background(), []byte(token), verifier.Options{})
	c.Check(result.Status, qt.Equals, verifier.StatusIssuerUnknown)
	c.Check(result.Issuer, qt.Equals, "did:example:unknown")
}

func TestJWTVCVerifyExpired(t *testing.T) {
	c := qt.New(t)
	v, key := newTrustedVerifier(c)

	token := vaulttest.SignJWT(c, key, vaulttest.VCClaims(testIssuer, time.Now().Add(-time.Minute)))
	result := v.Verify(context.Background(), []byte(token), verifier.Options{})
	c.Check(result.Status, qt.Equals, verifier.StatusExpired)
	// The extracted fields are still populated for the audit record.
	c.Check(result.Issuer, qt.Equals, testIssuer)
	c.Check(result.ExpiresAt.IsZero(), qt.IsFalse)
}

func TestJWTVCVerifyScopeMismatch(t *testing.T) {
	c := qt.New(t)
	v, key := newTrustedVerifier(c)

	token := vaulttest.SignJWT(c, key, vaulttest.VCClaims(testIssuer, time.Now().Add(time.Hour)))
	result := v.Verify(context.Background(), []byte(token), verifier.Options{
		ExpectedScope: "payment.single",
	})
	c.Check(result.Status, qt.Equals, verifier.StatusScopeInvalid)

	result = v.Verify(context.Background(), []byte(token), verifier.Options{
		ExpectedScope: "payment.recurring",
	})
	c.Check(result.Status, qt.Equals, verifier.StatusValid)
}
