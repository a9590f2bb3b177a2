// Copyright 2026 Mandatevault Ltd.

package truststore

import (
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/mandatevault/mvault/internal/errors"
)

// ValidateKeySet checks that the given key set is usable for signature
// verification. The set must be non-empty, every key must have a
// supported key type with its required parameters, and any declared
// algorithm must be compatible with the key type.
func ValidateKeySet(keys jwk.Set) error {
	const op = errors.Op("truststore.ValidateKeySet")
	if keys == nil || keys.Len() == 0 {
		return errors.E(op, errors.CodeBadRequest, "empty key set")
	}
	for i := 0; i < keys.Len(); i++ {
		key, _ := keys.Key(i)
		switch key.KeyType() {
		case jwa.RSA:
			k, ok := key.(jwk.RSAPublicKey)
			if !ok || len(k.N()) == 0 || len(k.E()) == 0 {
				return errors.E(op, errors.CodeBadRequest, "RSA key missing n or e")
			}
		case jwa.EC:
			k, ok := key.(jwk.ECDSAPublicKey)
			if !ok || k.Crv().String() == "" || len(k.X()) == 0 || len(k.Y()) == 0 {
				return errors.E(op, errors.CodeBadRequest, "EC key missing crv, x or y")
			}
		case jwa.OctetSeq:
		default:
			return errors.E(op, errors.CodeBadRequest, "unsupported key type "+key.KeyType().String())
		}
		if alg := key.Algorithm().String(); alg != "" {
			if !algCompatible(key.KeyType(), alg) {
				return errors.E(op, errors.CodeBadRequest, "algorithm "+alg+" incompatible with key type "+key.KeyType().String())
			}
		}
	}
	return nil
}

// algCompatible reports whether the declared signing algorithm can be
// used with keys of the given type.
func algCompatible(kty jwa.KeyType, alg string) bool {
	switch kty {
	case jwa.RSA:
		return strings.HasPrefix(alg, "RS") || strings.HasPrefix(alg, "PS")
	case jwa.EC:
		return strings.HasPrefix(alg, "ES")
	case jwa.OctetSeq:
		return strings.HasPrefix(alg, "HS")
	}
	return false
}
