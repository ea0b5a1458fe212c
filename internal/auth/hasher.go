// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

// Package auth provides authentication primitives for Lexiduel.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"math/big"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2-HMAC-SHA256 parameters.
const (
	// PasswordIterations is the derivation cost for account passwords.
	PasswordIterations = 260000

	// OTPIterations is the lighter cost used for short-lived numeric OTP
	// codes. The gateway round-trip already dominates verification latency.
	OTPIterations = 100000

	saltLen = 16 // salt length in bytes
	keyLen  = 32 // derived key length in bytes
)

// OTP code constraints.
const (
	DefaultOTPLength = 6
	MinOTPLength     = 4
)

// ErrEmptySecret is returned when attempting to derive an empty secret.
var ErrEmptySecret = oops.Code("AUTH_EMPTY_SECRET").Errorf("secret cannot be empty")

// Derived holds the output of a key derivation: the salt and digest are
// base64 encoded for storage, alongside the iteration count used.
type Derived struct {
	SaltB64    string
	HashB64    string
	Iterations int
}

// DeriveSecret derives a storage digest from a secret using
// PBKDF2-HMAC-SHA256. When saltB64 is empty a fresh 16-byte random salt is
// generated; otherwise the supplied salt is reused so the caller can
// recompute an existing digest.
func DeriveSecret(secret, saltB64 string, iterations int) (Derived, error) {
	if secret == "" {
		return Derived{}, ErrEmptySecret
	}
	if iterations <= 0 {
		return Derived{}, oops.Code("AUTH_INVALID_PARAMETER").
			With("iterations", iterations).
			Errorf("iteration count must be positive")
	}

	var salt []byte
	if saltB64 == "" {
		salt = make([]byte, saltLen)
		if _, err := rand.Read(salt); err != nil {
			return Derived{}, oops.Code("AUTH_SALT_FAILED").Wrap(err)
		}
		saltB64 = base64.StdEncoding.EncodeToString(salt)
	} else {
		var err error
		salt, err = base64.StdEncoding.DecodeString(saltB64)
		if err != nil {
			return Derived{}, oops.Code("AUTH_INVALID_PARAMETER").
				With("operation", "decode salt").
				Wrap(err)
		}
	}

	dk := pbkdf2.Key([]byte(secret), salt, iterations, keyLen, sha256.New)

	return Derived{
		SaltB64:    saltB64,
		HashB64:    base64.StdEncoding.EncodeToString(dk),
		Iterations: iterations,
	}, nil
}

// VerifySecret checks a secret against a stored salt/digest pair.
// The comparison runs over the derived digests in constant time; PBKDF2
// itself has no data-dependent early exit, so the derivation step does not
// leak either.
// Returns (true, nil) on match, (false, nil) on mismatch, or an error when
// the stored parameters are unusable.
func VerifySecret(secret, saltB64, hashB64 string, iterations int) (bool, error) {
	derived, err := DeriveSecret(secret, saltB64, iterations)
	if err != nil {
		return false, err
	}

	expected, err := base64.StdEncoding.DecodeString(hashB64)
	if err != nil {
		return false, oops.Code("AUTH_INVALID_DIGEST").
			With("operation", "decode stored digest").
			Wrap(err)
	}

	computed, err := base64.StdEncoding.DecodeString(derived.HashB64)
	if err != nil {
		return false, oops.Code("AUTH_INVALID_DIGEST").Wrap(err)
	}

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// GenerateOTPCode returns a uniformly random decimal code of the given
// length, drawn from crypto/rand. Lengths below MinOTPLength are rejected.
func GenerateOTPCode(length int) (string, error) {
	if length < MinOTPLength {
		return "", oops.Code("AUTH_INVALID_PARAMETER").
			With("length", length).
			With("min", MinOTPLength).
			Errorf("OTP length must be at least %d digits", MinOTPLength)
	}

	// Uniform over [10^(n-1), 10^n - 1] so the code always has n digits.
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	high := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	span := new(big.Int).Sub(high, low)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", oops.Code("AUTH_OTP_GENERATE_FAILED").Wrap(err)
	}

	return new(big.Int).Add(n, low).String(), nil
}
