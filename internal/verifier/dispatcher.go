// Copyright 2026 Mandatevault Ltd.

package verifier

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/servermon"
	"github.com/mandatevault/mvault/internal/truststore"
)

// A Dispatcher selects the verifier for a protocol tag and normalizes
// the result into the uniform shape. The protocol map is built once at
// startup.
type Dispatcher struct {
	verifiers map[string]Verifier
}

// NewDispatcher returns a dispatcher covering the supported protocols,
// verifying JWT-VC signatures against the given trust store.
func NewDispatcher(trust *truststore.Store) *Dispatcher {
	return &Dispatcher{
		verifiers: map[string]Verifier{
			dbmodel.ProtocolJWTVC:          &JWTVCVerifier{Trust: trust},
			dbmodel.ProtocolDelegatedToken: &DelegatedTokenVerifier{},
		},
	}
}

// Verify verifies the given payload with the verifier for the given
// protocol tag. An unknown protocol yields INVALID_FORMAT. For JWT-VC
// the compact token is lifted out of the payload envelope's vc_jwt
// field.
func (d *Dispatcher) Verify(ctx context.Context, protocol string, payload []byte, opts Options) Result {
	v, ok := d.verifiers[protocol]
	if !ok {
		return Result{
			Status: StatusInvalidFormat,
			Reason: "unknown protocol " + protocol,
		}
	}

	if protocol == dbmodel.ProtocolJWTVC {
		var envelope struct {
			VCJWT string `json:"vc_jwt"`
		}
		if err := json.Unmarshal(payload, &envelope); err != nil || envelope.VCJWT == "" {
			return Result{
				Status: StatusMissingRequiredField,
				Reason: "payload has no vc_jwt field",
			}
		}
		payload = []byte(envelope.VCJWT)
	}

	result := v.Verify(ctx, payload, opts)
	normalize(&result)
	servermon.VerificationCount.WithLabelValues(protocol, string(result.Status)).Inc()
	return result
}

// normalize lifts protocol-specific layouts into the uniform result
// fields. JWT-VC credentials carry their amount limit as a freeform
// "<amount> <currency>" string.
func normalize(r *Result) {
	if r.AmountLimit.Valid {
		return
	}
	raw, ok := r.Details["amount_limit"].(string)
	if !ok {
		return
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 || len(fields) > 2 {
		return
	}
	amount, err := decimal.NewFromString(fields[0])
	if err != nil || !ValidAmount(amount) {
		return
	}
	currency := ""
	if len(fields) == 2 {
		currency = strings.ToUpper(fields[1])
		if !KnownCurrency(currency) {
			return
		}
	}
	r.AmountLimit = decimal.NullDecimal{Decimal: amount, Valid: true}
	if currency != "" {
		r.Currency = currency
	}
}
