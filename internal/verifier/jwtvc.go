// Copyright 2026 Mandatevault Ltd.

package verifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/truststore"
)

// A JWTVCVerifier verifies compact-serialized JWT verifiable
// credentials. Signatures are checked against the trust store's cached
// issuer keys.
type JWTVCVerifier struct {
	Trust *truststore.Store
}

// jwtClaims is the claim set of a JWT-VC credential.
type jwtClaims struct {
	Issuer      string      `json:"iss"`
	Subject     string      `json:"sub"`
	IssuedAt    *float64    `json:"iat"`
	Expiry      *float64    `json:"exp"`
	JWTID       string      `json:"jti"`
	Scope       string      `json:"scope"`
	AmountLimit string      `json:"amount_limit"`
	VC          interface{} `json:"vc"`
}

// Verify implements Verifier. The checks run in a fixed order and the
// first failure short-circuits: structure, required claims, signature,
// expiry, then the caller's expected scope.
func (v *JWTVCVerifier) Verify(ctx context.Context, payload []byte, opts Options) Result {
	token := strings.TrimSpace(string(payload))

	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return Result{
			Status: StatusInvalidFormat,
			Reason: "token must have three dot-separated segments",
		}
	}
	headerJSON, err := base64.RawURLEncoding.DecodeString(segments[0])
	if err != nil {
		return Result{
			Status: StatusInvalidFormat,
			Reason: "cannot decode token header",
		}
	}
	var header map[string]interface{}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Result{
			Status: StatusInvalidFormat,
			Reason: "token header is not valid JSON",
		}
	}
	claimsJSON, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return Result{
			Status: StatusInvalidFormat,
			Reason: "cannot decode token payload",
		}
	}
	var claims jwtClaims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return Result{
			Status: StatusInvalidFormat,
			Reason: "token payload is not valid JSON",
		}
	}

	var missing []string
	if claims.Issuer == "" {
		missing = append(missing, "iss")
	}
	if claims.Subject == "" {
		missing = append(missing, "sub")
	}
	if claims.IssuedAt == nil {
		missing = append(missing, "iat")
	}
	if claims.Expiry == nil {
		missing = append(missing, "exp")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Result{
			Status:  StatusMissingRequiredField,
			Reason:  "missing required claims: " + strings.Join(missing, ", "),
			Issuer:  claims.Issuer,
			Subject: claims.Subject,
		}
	}

	expiresAt := time.Unix(int64(*claims.Expiry), 0).UTC()
	result := Result{
		Issuer:    claims.Issuer,
		Subject:   claims.Subject,
		TokenRef:  claims.JWTID,
		ExpiresAt: expiresAt,
		Details:   map[string]interface{}{},
	}
	if claims.Scope != "" {
		result.Scope = map[string]interface{}{"scope": claims.Scope}
	}
	if claims.AmountLimit != "" {
		result.Details["amount_limit"] = claims.AmountLimit
	}

	if err := v.Trust.VerifySignature(ctx, []byte(token), claims.Issuer); err != nil {
		if errors.ErrorCode(err) == truststore.CodeIssuerUntrusted {
			result.Status = StatusIssuerUnknown
			result.Reason = fmt.Sprintf("issuer %q is not trusted", claims.Issuer)
			return result
		}
		result.Status = StatusSigInvalid
		result.Reason = "signature verification failed"
		return result
	}

	if !expiresAt.After(time.Now()) {
		result.Status = StatusExpired
		result.Reason = "credential has expired"
		return result
	}

	if opts.ExpectedScope != "" && claims.Scope != opts.ExpectedScope {
		result.Status = StatusScopeInvalid
		result.Reason = fmt.Sprintf("scope %q does not match expected scope %q", claims.Scope, opts.ExpectedScope)
		return result
	}

	result.Status = StatusValid
	result.Reason = "credential verified"
	return result
}
