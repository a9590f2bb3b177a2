// Copyright 2026 Mandatevault Ltd.

// Package truststore maintains a TTL-cached mapping from issuer
// identifier to a JWK set and verifies JWS signatures against it.
package truststore

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/juju/zaputil/zapctx"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mandatevault/mvault/internal/errors"
	"github.com/mandatevault/mvault/internal/servermon"
)

// DefaultRefreshInterval is the TTL applied to fetched issuer key sets
// when no interval is configured.
const DefaultRefreshInterval = time.Hour

// Error codes returned by the trust store.
const (
	CodeIssuerUntrusted  errors.Code = "issuer untrusted"
	CodeInvalidSignature errors.Code = "invalid signature"
)

// Params contains the parameters needed to construct a Store.
type Params struct {
	// RefreshInterval is the TTL for cached issuer key sets. If zero,
	// DefaultRefreshInterval is used.
	RefreshInterval time.Duration

	// Client is the HTTP client used to fetch JWKS documents. If nil,
	// http.DefaultClient is used.
	Client *http.Client

	// ExampleIssuerBaseURL is the base URL that did:example issuer
	// identifiers resolve against.
	ExampleIssuerBaseURL string
}

// issuerEntry is a cached key set for a single issuer.
type issuerEntry struct {
	keys      jwk.Set
	fetchedAt time.Time

	// static entries were registered out-of-band and are never
	// refreshed over HTTP.
	static bool
}

// A Store is a process-wide cache of issuer signing keys. It is safe
// for concurrent use; concurrent refreshes for the same issuer coalesce
// into a single outbound fetch.
type Store struct {
	ttl        time.Duration
	client     *http.Client
	exampleURL string

	mu      sync.RWMutex
	issuers map[string]*issuerEntry

	group singleflight.Group
}

// NewStore returns a new issuer trust store.
func NewStore(p Params) *Store {
	ttl := p.RefreshInterval
	if ttl == 0 {
		ttl = DefaultRefreshInterval
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Store{
		ttl:        ttl,
		client:     client,
		exampleURL: strings.TrimSuffix(p.ExampleIssuerBaseURL, "/"),
		issuers:    make(map[string]*issuerEntry),
	}
}

// GetKeys returns the key set for the given issuer. A cached set is
// returned if it is still within its TTL; otherwise the set is
// refreshed from the issuer's JWKS endpoint. A refresh failure
// preserves a previously cached set; if no set was ever fetched an
// error with a code of CodeIssuerUntrusted is returned.
func (s *Store) GetKeys(ctx context.Context, issuer string) (jwk.Set, error) {
	const op = errors.Op("truststore.GetKeys")

	s.mu.RLock()
	e := s.issuers[issuer]
	if e != nil && (e.static || time.Since(e.fetchedAt) < s.ttl) {
		keys := e.keys
		s.mu.RUnlock()
		return keys, nil
	}
	s.mu.RUnlock()

	keys, err := s.refresh(ctx, issuer)
	if err != nil {
		// A stale cached set is better than none at all.
		s.mu.RLock()
		e := s.issuers[issuer]
		s.mu.RUnlock()
		if e != nil {
			zapctx.Warn(ctx, "serving stale issuer keys after refresh failure",
				zap.String("issuer", issuer), zap.Error(err))
			return e.keys, nil
		}
		return nil, errors.E(op, CodeIssuerUntrusted, err, "issuer is not trusted")
	}
	return keys, nil
}

// refresh fetches the issuer's JWKS document. Concurrent refreshes for
// the same issuer share a single in-flight fetch; all waiters observe
// its result.
func (s *Store) refresh(ctx context.Context, issuer string) (jwk.Set, error) {
	const op = errors.Op("truststore.refresh")

	v, err, _ := s.group.Do(issuer, func() (interface{}, error) {
		defer servermon.DurationObserver(servermon.TrustStoreRefreshDurationHistogram, issuer)()
		jwksURL, err := s.jwksURL(issuer)
		if err != nil {
			servermon.TrustStoreRefreshCount.WithLabelValues("error").Inc()
			return nil, err
		}
		keys, err := jwk.Fetch(ctx, jwksURL, jwk.WithHTTPClient(s.client))
		if err != nil {
			servermon.TrustStoreRefreshCount.WithLabelValues("error").Inc()
			return nil, errors.E(op, err)
		}
		if err := ValidateKeySet(keys); err != nil {
			servermon.TrustStoreRefreshCount.WithLabelValues("invalid").Inc()
			return nil, errors.E(op, err)
		}
		s.mu.Lock()
		s.issuers[issuer] = &issuerEntry{
			keys:      keys,
			fetchedAt: time.Now().UTC(),
		}
		s.mu.Unlock()
		servermon.TrustStoreRefreshCount.WithLabelValues("success").Inc()
		zapctx.Debug(ctx, "refreshed issuer keys", zap.String("issuer", issuer))
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(jwk.Set), nil
}

// VerifySignature verifies the JWS signature of the given compact token
// against the issuer's key set. The key is selected by the kid in the
// token's protected header. Expiry is not checked here: an expired but
// correctly signed token verifies successfully, expiry is a separate
// concern for the protocol verifiers.
func (s *Store) VerifySignature(ctx context.Context, token []byte, issuer string) error {
	const op = errors.Op("truststore.VerifySignature")

	keys, err := s.GetKeys(ctx, issuer)
	if err != nil {
		return errors.E(op, err)
	}

	msg, err := jws.Parse(token)
	if err != nil {
		return errors.E(op, CodeInvalidSignature, err, "cannot parse token")
	}
	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return errors.E(op, CodeInvalidSignature, "token has no signature")
	}
	headers := sigs[0].ProtectedHeaders()
	key, ok := keys.LookupKeyID(headers.KeyID())
	if !ok {
		return errors.E(op, CodeInvalidSignature, "no key found for kid")
	}
	alg := headers.Algorithm()
	if key.Algorithm().String() != "" {
		alg = jwa.SignatureAlgorithm(key.Algorithm().String())
	}
	if _, err := jws.Verify(token, jws.WithKey(alg, key)); err != nil {
		return errors.E(op, CodeInvalidSignature, err, "signature verification failed")
	}
	return nil
}

// RegisterIssuer adds or replaces the key set for an issuer. Registered
// key sets are static: they are served until removed and are never
// refreshed over HTTP.
func (s *Store) RegisterIssuer(issuer string, keys jwk.Set) error {
	const op = errors.Op("truststore.RegisterIssuer")
	if issuer == "" {
		return errors.E(op, errors.CodeBadRequest, "missing issuer")
	}
	if err := ValidateKeySet(keys); err != nil {
		return errors.E(op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issuers[issuer] = &issuerEntry{
		keys:      keys,
		fetchedAt: time.Now().UTC(),
		static:    true,
	}
	return nil
}

// RemoveIssuer evicts the issuer from the store.
func (s *Store) RemoveIssuer(issuer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.issuers, issuer)
}

// IssuerStatus describes a single cached issuer.
type IssuerStatus struct {
	Keys        int       `json:"keys"`
	LastRefresh time.Time `json:"last_refresh"`
	Static      bool      `json:"static"`
}

// Status reports the cached issuers and their last refresh times.
func (s *Store) Status() map[string]IssuerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := make(map[string]IssuerStatus, len(s.issuers))
	for issuer, e := range s.issuers {
		status[issuer] = IssuerStatus{
			Keys:        e.keys.Len(),
			LastRefresh: e.fetchedAt,
			Static:      e.static,
		}
	}
	return status
}

// StartRefresher starts a routine which refreshes all non-static cached
// issuers on every tick. It is expected that this routine will be
// cleaned up alongside other background services sharing the same
// cancellable context.
func (s *Store) StartRefresher(ctx context.Context, tick <-chan time.Time) {
	go func() {
		for {
			select {
			case <-tick:
				s.mu.RLock()
				var stale []string
				for issuer, e := range s.issuers {
					if !e.static && time.Since(e.fetchedAt) >= s.ttl {
						stale = append(stale, issuer)
					}
				}
				s.mu.RUnlock()
				for _, issuer := range stale {
					if _, err := s.refresh(ctx, issuer); err != nil {
						zapctx.Warn(ctx, "scheduled issuer refresh failed",
							zap.String("issuer", issuer), zap.Error(err))
					}
				}
			case <-ctx.Done():
				zapctx.Debug(ctx, "shutdown for trust store refresher complete")
				return
			}
		}
	}()
}

// jwksURL resolves an issuer identifier to the URL of its JWKS
// document. Two schemes are understood:
//
//	did:web:<host>[:<path>...] -> https://<host>/<path>/.well-known/jwks.json
//	did:example:<id>           -> <configured base URL>/<id>/jwks.json
func (s *Store) jwksURL(issuer string) (string, error) {
	const op = errors.Op("truststore.jwksURL")
	switch {
	case strings.HasPrefix(issuer, "did:web:"):
		parts := strings.Split(strings.TrimPrefix(issuer, "did:web:"), ":")
		for i, p := range parts {
			unescaped, err := url.PathUnescape(p)
			if err != nil {
				return "", errors.E(op, errors.CodeBadRequest, "invalid did:web issuer")
			}
			parts[i] = unescaped
		}
		return "https://" + strings.Join(parts, "/") + "/.well-known/jwks.json", nil
	case strings.HasPrefix(issuer, "did:example:"):
		if s.exampleURL == "" {
			return "", errors.E(op, errors.CodeServerConfiguration, "no base URL configured for did:example issuers")
		}
		return s.exampleURL + "/" + strings.TrimPrefix(issuer, "did:example:") + "/jwks.json", nil
	}
	return "", errors.E(op, CodeIssuerUntrusted, "unsupported issuer scheme")
}
