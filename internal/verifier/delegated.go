// Copyright 2026 Mandatevault Ltd.

package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// A DelegatedTokenVerifier verifies the JSON delegated-token form. No
// signature is checked in this version: trust derives from the
// presenter's authenticated session.
type DelegatedTokenVerifier struct{}

// delegatedToken is the wire shape of a delegated token.
type delegatedToken struct {
	TokenID     string                 `json:"token_id"`
	PSPID       string                 `json:"psp_id"`
	MerchantID  string                 `json:"merchant_id"`
	MaxAmount   json.Number            `json:"max_amount"`
	Currency    string                 `json:"currency"`
	ExpiresAt   string                 `json:"expires_at"`
	Constraints map[string]interface{} `json:"constraints"`
}

// forbiddenIDChars are characters never allowed in delegated-token
// identifiers.
const forbiddenIDChars = "<>\"'\\\x00\r\n"

func validIdentifier(s string) bool {
	if len(s) < 1 || len(s) > 255 {
		return false
	}
	return !strings.ContainsAny(s, forbiddenIDChars)
}

// Verify implements Verifier. The schema check runs first and any
// failure is INVALID_FORMAT; the remaining checks then run in order:
// expiry, amount sanity, constraint coherence.
func (v *DelegatedTokenVerifier) Verify(ctx context.Context, payload []byte, opts Options) Result {
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	dec.UseNumber()
	var token delegatedToken
	if err := dec.Decode(&token); err != nil {
		return Result{
			Status: StatusInvalidFormat,
			Reason: "payload is not a valid delegated token document",
		}
	}

	for _, id := range []struct {
		name  string
		value string
	}{
		{"token_id", token.TokenID},
		{"psp_id", token.PSPID},
		{"merchant_id", token.MerchantID},
	} {
		if !validIdentifier(id.value) {
			return Result{
				Status: StatusInvalidFormat,
				Reason: fmt.Sprintf("invalid %s", id.name),
			}
		}
	}
	if len(token.Currency) != 3 || token.Currency != strings.ToUpper(token.Currency) || !KnownCurrency(token.Currency) {
		return Result{
			Status: StatusInvalidFormat,
			Reason: "unrecognized currency",
		}
	}
	amount, err := decimal.NewFromString(token.MaxAmount.String())
	if err != nil || !ValidAmount(amount) {
		return Result{
			Status: StatusInvalidFormat,
			Reason: "max_amount must be positive with at most two fractional digits",
		}
	}
	expiresAt, err := time.Parse(time.RFC3339, token.ExpiresAt)
	if err != nil {
		return Result{
			Status: StatusInvalidFormat,
			Reason: "expires_at is not a valid timestamp",
		}
	}

	scope := map[string]interface{}{}
	if token.Constraints != nil {
		scope["constraints"] = token.Constraints
	}
	result := Result{
		Issuer:      token.PSPID,
		Subject:     token.MerchantID,
		TokenRef:    token.TokenID,
		AmountLimit: decimal.NullDecimal{Decimal: amount, Valid: true},
		Currency:    token.Currency,
		ExpiresAt:   expiresAt.UTC(),
		Scope:       scope,
		Details:     map[string]interface{}{},
	}

	if !expiresAt.After(time.Now()) {
		result.Status = StatusExpired
		result.Reason = "token has expired"
		return result
	}

	// Unreachable on input that passed the schema check, but the rule
	// is defined for robustness when the schema stage is bypassed.
	if !amount.IsPositive() {
		result.Status = StatusRevoked
		result.Reason = "token amount limit is not positive"
		result.Details["error_code"] = "INVALID_LIMIT"
		return result
	}

	if merchant, ok := token.Constraints["merchant"]; ok {
		if s, ok := merchant.(string); !ok || s != token.MerchantID {
			result.Status = StatusScopeInvalid
			result.Reason = "constraints.merchant does not match merchant_id"
			result.Details["error_code"] = "MERCHANT_MISMATCH"
			return result
		}
	}

	result.Status = StatusValid
	result.Reason = "token verified"
	return result
}
