// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// # Password Hashing

// Hashing parameters. These are fixed per deployment: changing them
// invalidates every stored hash.
const (
	// saltLength is the byte length of the random per-user salt.
	saltLength = 16

	// pbkdf2Iterations follows the current OWASP recommendation for PBKDF2-SHA256.
	pbkdf2Iterations = 600_000

	// hashLength is the byte length of the derived key.
	hashLength = 32
)

// GenerateSalt returns a fresh random salt, hex encoded.
func GenerateSalt() (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("sec: failed to generate salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

// HashPassword derives a deterministic hash from a plain-text password and a
// hex-encoded salt using PBKDF2-SHA256.
//
// The salt is stored alongside the hash so the derivation can be repeated at
// login time. Given the same (password, salt) pair the output is always equal.
func HashPassword(plainTextPassword, salt string) (string, error) {
	saltBytes, err := hex.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("sec: invalid salt encoding: %w", err)
	}

	derived := pbkdf2.Key([]byte(plainTextPassword), saltBytes, pbkdf2Iterations, hashLength, sha256.New)
	return hex.EncodeToString(derived), nil
}

// CheckPasswordHash re-derives the hash for the candidate password and compares
// it to the stored value in constant time.
//
// Any internal failure (bad salt encoding, corrupt hash) reports a mismatch
// rather than an error so callers cannot distinguish corrupt records from
// wrong passwords.
func CheckPasswordHash(plainTextPassword, salt, existingHash string) bool {
	candidate, err := HashPassword(plainTextPassword, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(existingHash)) == 1
}

// # Secure Tokens

// GenerateSecureToken returns a random token of the given byte length, hex encoded.
func GenerateSecureToken(byteLength int) (string, error) {
	buffer := make([]byte, byteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to generate token: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}
