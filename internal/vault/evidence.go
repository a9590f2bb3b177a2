// Copyright 2026 Mandatevault Ltd.

package vault

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mandatevault/mvault/internal/auth"
	"github.com/mandatevault/mvault/internal/db"
	"github.com/mandatevault/mvault/internal/dbmodel"
	"github.com/mandatevault/mvault/internal/errors"
)

// BuildEvidencePack assembles a compliance archive for an
// authorization: the raw credential, its verification metadata and its
// full audit trail. The archive is a ZIP with stored entries. An
// EXPORTED audit event is appended as a side effect.
func (v *Vault) BuildEvidencePack(ctx context.Context, id *auth.Identity, tenantID, authorizationID string) ([]byte, string, error) {
	const op = errors.Op("vault.BuildEvidencePack")

	a, err := v.loadAuthorization(ctx, id, tenantID, authorizationID, true)
	if err != nil {
		return nil, "", errors.E(op, err)
	}
	events, err := v.AuditTrail(ctx, a.TenantID, a.ID, time.Time{}, time.Time{})
	if err != nil {
		return nil, "", errors.E(op, err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	name, body := credentialEntry(a)
	if err := addStored(zw, name, body); err != nil {
		return nil, "", errors.E(op, err)
	}
	verification, err := json.MarshalIndent(map[string]interface{}{
		"status":      a.VerificationStatus,
		"reason":      a.VerificationReason,
		"details":     a.VerificationDetails,
		"verified_at": a.VerifiedAt.Time,
	}, "", "  ")
	if err != nil {
		return nil, "", errors.E(op, err)
	}
	if err := addStored(zw, "verification.json", verification); err != nil {
		return nil, "", errors.E(op, err)
	}
	trail, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, "", errors.E(op, err)
	}
	if err := addStored(zw, "audit.json", trail); err != nil {
		return nil, "", errors.E(op, err)
	}
	if err := addStored(zw, "summary.txt", summary(a, db.Now().Time)); err != nil {
		return nil, "", errors.E(op, err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", errors.E(op, err)
	}

	v.audit(ctx, a.ID, a.TenantID, dbmodel.EventExported, map[string]interface{}{
		"actor": id.Subject,
	})
	filename := fmt.Sprintf("evidence-%s-%s.zip", a.ID, time.Now().UTC().Format("20060102150405"))
	return buf.Bytes(), filename, nil
}

// credentialEntry returns the archive entry for the raw credential. A
// JWT-VC is written as the bare compact serialization with a .txt
// extension; everything else is the raw JSON payload.
func credentialEntry(a *dbmodel.Authorization) (string, []byte) {
	if a.Protocol == dbmodel.ProtocolJWTVC {
		var envelope struct {
			VCJWT string `json:"vc_jwt"`
		}
		if err := json.Unmarshal([]byte(a.RawPayload), &envelope); err == nil && envelope.VCJWT != "" {
			return "credential.txt", []byte(envelope.VCJWT)
		}
	}
	return "credential.json", []byte(a.RawPayload)
}

// addStored writes an uncompressed entry to the archive.
func addStored(zw *zip.Writer, name string, body []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// summary renders the human-readable synopsis entry.
func summary(a *dbmodel.Authorization, now time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Authorization %s\n", a.ID)
	fmt.Fprintf(&buf, "Tenant:       %s\n", a.TenantID)
	fmt.Fprintf(&buf, "Protocol:     %s\n", a.Protocol)
	fmt.Fprintf(&buf, "Issuer:       %s\n", a.Issuer)
	fmt.Fprintf(&buf, "Subject:      %s\n", a.Subject)
	if a.AmountLimit.Valid {
		fmt.Fprintf(&buf, "Amount limit: %s %s\n", a.AmountLimit.Decimal.StringFixed(2), a.Currency)
	}
	fmt.Fprintf(&buf, "Expires:      %s\n", a.ExpiresAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Status:       %s\n", a.EffectiveStatus(now))
	fmt.Fprintf(&buf, "Created:      %s by %s\n", a.CreatedAt.UTC().Format(time.RFC3339), a.CreatedBy)
	return buf.Bytes()
}
