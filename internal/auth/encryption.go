// Stevedore - Resilient Session and API Client for the Freightmesh Admin Platform
// Copyright 2026 Freightmesh Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/freightmesh/stevedore

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Errors returned by the token cipher.
var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

const (
	// cipherContext binds derived keys to this use so the same master key
	// can safely serve other purposes later.
	cipherContext = "stevedore-refresh-token-v1"

	minMasterKeyBytes = 16
	derivedKeyBytes   = 32
)

// TokenCipher encrypts the refresh token before it reaches the store.
// A nil *TokenCipher is valid and passes values through unchanged, which is
// the disabled state when no encryption key is configured.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher builds a cipher from a base64-encoded master key. An empty
// key returns (nil, nil): encryption disabled.
func NewTokenCipher(masterKey string) (*TokenCipher, error) {
	if masterKey == "" {
		return nil, nil
	}

	secret, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
	}
	if len(secret) < minMasterKeyBytes {
		return nil, fmt.Errorf("encryption key too short: %d bytes, need at least %d", len(secret), minMasterKeyBytes)
	}

	key, err := deriveKey(secret, cipherContext)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &TokenCipher{aead: aead}, nil
}

// Encrypt seals plaintext with a random nonce and returns base64. Nil
// receiver and empty input pass through unchanged.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if c == nil || plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values that look like raw JWTs pass through so
// sessions persisted before encryption was enabled keep working.
func (c *TokenCipher) Decrypt(stored string) (string, error) {
	if c == nil || stored == "" {
		return stored, nil
	}
	if looksLikeJWT(stored) {
		return stored, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("%w: not base64", ErrInvalidCiphertext)
	}
	if len(sealed) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrInvalidCiphertext)
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// GenerateEncryptionKey returns a fresh random master key in the base64
// form NewTokenCipher expects.
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, derivedKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func deriveKey(secret []byte, context string) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, []byte(context))
	key := make([]byte, derivedKeyBytes)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// looksLikeJWT reports whether s has the three dot-separated segments of a
// serialized JWT.
func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	return parts[0] != "" && parts[1] != ""
}
