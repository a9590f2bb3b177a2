// Copyright 2026 Mandatevault Ltd.

package mvault_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	mvault "github.com/mandatevault/mvault"
	"github.com/mandatevault/mvault/api/params"
	"github.com/mandatevault/mvault/internal/vaulthttp"
	"github.com/mandatevault/mvault/internal/vaulttest"
	"github.com/mandatevault/mvault/internal/webhook"
)

const (
	testAuthSecret    = "test-auth-secret-test-auth-secret!!!"
	testInboundSecret = "inbound-shared-secret"
	testIssuer        = "did:example:issuer-1"
)

var serviceCount int64

func newTestService(c *qt.C) *httptest.Server {
	svc, err := mvault.NewService(context.Background(), mvault.Params{
		DSN:                    fmt.Sprintf("file:svc%d?mode=memory&cache=shared", atomic.AddInt64(&serviceCount, 1)),
		AuthJWTSecret:          testAuthSecret,
		DelegatedTokensEnabled: true,
		InboundSharedSecret:    testInboundSecret,
	})
	c.Assert(err, qt.IsNil)
	c.Cleanup(svc.Cleanup)
	srv := httptest.NewServer(svc)
	c.Cleanup(srv.Close)
	return srv
}

// do sends a JSON request, decoding the response into resp when it is
// non-nil, and returns the status code.
func do(c *qt.C, method, url, token string, body, resp interface{}) int {
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		c.Assert(err, qt.IsNil)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	c.Assert(err, qt.IsNil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer res.Body.Close()
	if resp != nil {
		err = json.NewDecoder(res.Body).Decode(resp)
		c.Assert(err, qt.IsNil)
	}
	return res.StatusCode
}

func registerIssuer(c *qt.C, srv *httptest.Server, key vaulttest.IssuerKey) {
	admin := vaulttest.BearerToken(c, testAuthSecret, "root", "", "administrator")
	jwks, err := json.Marshal(key.Public)
	c.Assert(err, qt.IsNil)
	status := do(c, "POST", srv.URL+"/trust/issuers", admin, params.RegisterIssuerRequest{
		Issuer: testIssuer,
		JWKS:   jwks,
	}, nil)
	c.Assert(status, qt.Equals, http.StatusCreated)
}

func TestRequestsRequireAuthentication(t *testing.T) {
	c := qt.New(t)
	srv := newTestService(c)

	var apiError params.Error
	status := do(c, "GET", srv.URL+"/authorizations/a-1", "", nil, &apiError)
	c.Check(status, qt.Equals, http.StatusUnauthorized)
	c.Check(apiError.Code, qt.Equals, "unauthorized")
}

func TestEndToEndJWTVC(t *testing.T) {
	c := qt.New(t)
	srv := newTestService(c)
	key := vaulttest.NewIssuerKey(c, "key-1")
	registerIssuer(c, srv, key)

	operator := vaulttest.BearerToken(c, testAuthSecret, "alice", "t-1", "operator")
	token := vaulttest.SignJWT(c, key, vaulttest.VCClaims(testIssuer, time.Now().Add(24*time.Hour)))

	var created params.Authorization
	status := do(c, "POST", srv.URL+"/authorizations", operator, params.CreateAuthorizationRequest{
		Protocol:      "JWT-VC",
		Payload:       vaulttest.JWTVCPayload(c, token),
		TenantID:      "t-1",
		RetentionDays: 30,
	}, &created)
	c.Assert(status, qt.Equals, http.StatusCreated)
	c.Check(created.ID, qt.Not(qt.Equals), "")
	c.Check(created.Issuer, qt.Equals, testIssuer)
	c.Check(created.Status, qt.Equals, "VALID")
	c.Check(created.AmountLimit, qt.Equals, "5000.00")
	c.Check(created.Verification.Status, qt.Equals, "VALID")

	var fetched params.Authorization
	status = do(c, "GET", srv.URL+"/authorizations/"+created.ID, operator, nil, &fetched)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Check(fetched.ID, qt.Equals, created.ID)

	var verification params.Verification
	status = do(c, "POST", srv.URL+"/authorizations/"+created.ID+"/verify", operator, nil, &verification)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Check(verification.Status, qt.Equals, "VALID")

	var page params.SearchAuthorizationsResponse
	status = do(c, "POST", srv.URL+"/authorizations/search", operator, params.SearchAuthorizationsRequest{
		Issuer: testIssuer,
	}, &page)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Check(page.Count, qt.Equals, 1)

	req, err := http.NewRequest("GET", srv.URL+"/authorizations/"+created.ID+"/evidence-pack", nil)
	c.Assert(err, qt.IsNil)
	req.Header.Set("Authorization", "Bearer "+operator)
	res, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer res.Body.Close()
	c.Check(res.StatusCode, qt.Equals, http.StatusOK)
	c.Check(res.Header.Get("Content-Type"), qt.Equals, "application/zip")
	c.Check(res.Header.Get("Content-Disposition"), qt.Matches, `attachment; filename="evidence-.*\.zip"`)
}

func TestEndToEndTamperedToken(t *testing.T) {
	c := qt.New(t)
	srv := newTestService(c)
	key := vaulttest.NewIssuerKey(c, "key-1")
	registerIssuer(c, srv, key)

	operator := vaulttest.BearerToken(c, testAuthSecret, "alice", "t-1", "operator")
	rogue := vaulttest.NewIssuerKey(c, "rogue")
	token := vaulttest.SignJWT(c, rogue, vaulttest.VCClaims(testIssuer, time.Now().Add(time.Hour)))

	var apiError params.Error
	status := do(c, "POST", srv.URL+"/authorizations", operator, params.CreateAuthorizationRequest{
		Protocol: "JWT-VC",
		Payload:  vaulttest.JWTVCPayload(c, token),
		TenantID: "t-1",
	}, &apiError)
	c.Check(status, qt.Equals, http.StatusBadRequest)
	c.Check(apiError.Code, qt.Equals, "verification failed")

	var page params.SearchAuthorizationsResponse
	status = do(c, "POST", srv.URL+"/authorizations/search", operator, params.SearchAuthorizationsRequest{}, &page)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Check(page.Count, qt.Equals, 0)
}

func TestEndToEndMerchantMismatch(t *testing.T) {
	c := qt.New(t)
	srv := newTestService(c)

	operator := vaulttest.BearerToken(c, testAuthSecret, "alice", "t-1", "operator")
	var apiError params.Error
	status := do(c, "POST", srv.URL+"/authorizations", operator, params.CreateAuthorizationRequest{
		Protocol: "DelegatedToken",
		Payload: vaulttest.DelegatedToken(c, map[string]interface{}{
			"constraints": map[string]interface{}{"merchant": "m-other"},
		}),
		TenantID: "t-1",
	}, &apiError)
	c.Check(status, qt.Equals, http.StatusBadRequest)
	c.Check(apiError.Code, qt.Equals, "verification failed")
}

func TestEndToEndInboundRevocation(t *testing.T) {
	c := qt.New(t)
	srv := newTestService(c)

	operator := vaulttest.BearerToken(c, testAuthSecret, "alice", "t-1", "operator")
	var created params.Authorization
	status := do(c, "POST", srv.URL+"/authorizations", operator, params.CreateAuthorizationRequest{
		Protocol: "DelegatedToken",
		Payload:  vaulttest.DelegatedToken(c, nil),
		TenantID: "t-1",
	}, &created)
	c.Assert(status, qt.Equals, http.StatusCreated)

	event, err := json.Marshal(params.InboundEvent{
		EventID:   "evt-1",
		EventType: "token.revoked",
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"token_id": created.TokenRef,
			"reason":   "customer dispute",
		},
	})
	c.Assert(err, qt.IsNil)

	// A bad signature is rejected before the body is interpreted.
	req, err := http.NewRequest("POST", srv.URL+"/acp/webhook", bytes.NewReader(event))
	c.Assert(err, qt.IsNil)
	req.Header.Set(vaulthttp.InboundSignatureHeader, "ffff")
	res, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	res.Body.Close()
	c.Check(res.StatusCode, qt.Equals, http.StatusUnauthorized)

	post := func() params.InboundEventResponse {
		req, err := http.NewRequest("POST", srv.URL+"/acp/webhook", bytes.NewReader(event))
		c.Assert(err, qt.IsNil)
		req.Header.Set(vaulthttp.InboundSignatureHeader, webhook.Sign(testInboundSecret, event))
		res, err := http.DefaultClient.Do(req)
		c.Assert(err, qt.IsNil)
		defer res.Body.Close()
		c.Assert(res.StatusCode, qt.Equals, http.StatusOK)
		var out params.InboundEventResponse
		err = json.NewDecoder(res.Body).Decode(&out)
		c.Assert(err, qt.IsNil)
		return out
	}

	c.Check(post().Status, qt.Equals, params.StatusProcessed)

	var fetched params.Authorization
	status = do(c, "GET", srv.URL+"/authorizations/"+created.ID, operator, nil, &fetched)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Check(fetched.Status, qt.Equals, "REVOKED")
	c.Check(fetched.RevocationReason, qt.Equals, "customer dispute")

	// Replaying the same event id is a no-op.
	c.Check(post().Status, qt.Equals, params.StatusAlreadyProcessed)
}

func TestEndToEndLifecycle(t *testing.T) {
	c := qt.New(t)
	srv := newTestService(c)

	operator := vaulttest.BearerToken(c, testAuthSecret, "alice", "t-1", "operator")
	var created params.Authorization
	status := do(c, "POST", srv.URL+"/authorizations", operator, params.CreateAuthorizationRequest{
		Protocol:      "DelegatedToken",
		Payload:       vaulttest.DelegatedToken(c, nil),
		TenantID:      "t-1",
		RetentionDays: 30,
	}, &created)
	c.Assert(status, qt.Equals, http.StatusCreated)

	status = do(c, "POST", srv.URL+"/authorizations/"+created.ID+"/soft-delete", operator, nil, nil)
	c.Assert(status, qt.Equals, http.StatusOK)

	status = do(c, "GET", srv.URL+"/authorizations/"+created.ID, operator, nil, nil)
	c.Check(status, qt.Equals, http.StatusNotFound)

	status = do(c, "POST", srv.URL+"/authorizations/"+created.ID+"/restore", operator, nil, nil)
	c.Assert(status, qt.Equals, http.StatusOK)

	status = do(c, "DELETE", srv.URL+"/authorizations/"+created.ID, operator, params.RevokeAuthorizationRequest{
		Reason: "no longer needed",
	}, nil)
	c.Assert(status, qt.Equals, http.StatusOK)

	var fetched params.Authorization
	status = do(c, "GET", srv.URL+"/authorizations/"+created.ID, operator, nil, &fetched)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Check(fetched.Status, qt.Equals, "REVOKED")
	c.Check(fetched.RevocationReason, qt.Equals, "no longer needed")
}

func TestTrustEndpointsRequireAdmin(t *testing.T) {
	c := qt.New(t)
	srv := newTestService(c)

	operator := vaulttest.BearerToken(c, testAuthSecret, "alice", "t-1", "operator")
	var apiError params.Error
	status := do(c, "GET", srv.URL+"/trust/status", operator, nil, &apiError)
	c.Check(status, qt.Equals, http.StatusForbidden)
	c.Check(apiError.Code, qt.Equals, "forbidden")
}

func TestWebhookSubscriptionAPI(t *testing.T) {
	c := qt.New(t)
	srv := newTestService(c)

	operator := vaulttest.BearerToken(c, testAuthSecret, "alice", "t-1", "operator")

	var created params.WebhookSubscription
	status := do(c, "POST", srv.URL+"/webhook-subscriptions", operator, params.AddWebhookSubscriptionRequest{
		Name:   "billing hooks",
		URL:    "https://example.com/hook",
		Events: []string{"MandateCreated", "MandateRevoked"},
		Secret: "hook-secret",
	}, &created)
	c.Assert(status, qt.Equals, http.StatusCreated)
	c.Check(created.ID, qt.Not(qt.Equals), "")
	c.Check(created.Active, qt.IsTrue)

	// The secret never appears in responses.
	var subs []params.WebhookSubscription
	status = do(c, "GET", srv.URL+"/webhook-subscriptions", operator, nil, &subs)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(subs, qt.HasLen, 1)
	c.Check(subs[0].ID, qt.Equals, created.ID)

	status = do(c, "DELETE", srv.URL+"/webhook-subscriptions/"+created.ID, operator, nil, nil)
	c.Assert(status, qt.Equals, http.StatusNoContent)

	status = do(c, "GET", srv.URL+"/webhook-subscriptions", operator, nil, &subs)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Check(subs, qt.HasLen, 0)
}

func TestDebugEndpoints(t *testing.T) {
	c := qt.New(t)
	srv := newTestService(c)

	res, err := http.Get(srv.URL + "/debug/info")
	c.Assert(err, qt.IsNil)
	res.Body.Close()
	c.Check(res.StatusCode, qt.Equals, http.StatusOK)

	res, err = http.Get(srv.URL + "/debug/status")
	c.Assert(err, qt.IsNil)
	defer res.Body.Close()
	c.Assert(res.StatusCode, qt.Equals, http.StatusOK)
	var checks map[string]struct {
		Passed bool
	}
	err = json.NewDecoder(res.Body).Decode(&checks)
	c.Assert(err, qt.IsNil)
	c.Check(checks["database"].Passed, qt.IsTrue)
	c.Check(checks["start_time"].Passed, qt.IsTrue)
}
