package server

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var (
	// ErrShortSecret is returned when a cookie secret is too short to be used.
	ErrShortSecret = errors.New("cookie secret must be at least 16 bytes")

	// ErrInvalidSeal is returned when a sealed value was tampered with or
	// was sealed under another key.
	ErrInvalidSeal = errors.New("sealed value is invalid")
)

// MinSecretLength is the shortest accepted cookie secret.
const MinSecretLength = 16

// Sealer encrypts and authenticates cookie values with NaCl secretbox.
type Sealer struct {
	key [32]byte
}

// NewSealer derives a sealing key from secret.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrShortSecret
	}
	return &Sealer{key: sha256.Sum256(secret)}, nil
}

// NewRandomSealer returns a Sealer with a random key. Values it seals
// cannot be opened after the process exits.
func NewRandomSealer() (*Sealer, error) {
	s := &Sealer{}
	if _, err := rand.Read(s.key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate cookie key: %w", err)
	}
	return s, nil
}

// Seal encrypts plaintext and returns it as URL-safe base64.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], plaintext, &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

// Open reverses Seal.
func (s *Sealer) Open(value string) ([]byte, error) {
	box, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return nil, ErrInvalidSeal
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plaintext, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrInvalidSeal
	}
	return plaintext, nil
}
