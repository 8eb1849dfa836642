// Package tokencodec turns token identity records into opaque ciphertext strings and back.
//
// A token string is base64url(nonce || AES-GCM(JSON identity)). Anyone holding the key
// can read the username and client ID out of a token, so the key must stay in process.
package tokencodec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// ErrInvalidToken is returned for token strings that cannot be decoded
var ErrInvalidToken = errors.New("invalid token")

// Identity is the record embedded in every token
type Identity struct {
	Username string `json:"u"`
	ClientID string `json:"c"`
	Nonce    string `json:"n"`
}

// Codec encrypts and decrypts identities with a key generated at construction
type Codec struct {
	aead cipher.AEAD
}

// New generates a fresh AES key of keyBits (128, 192 or 256) and returns a codec using it
func New(keyBits int) (*Codec, error) {
	key, err := GenerateKey(keyBits)
	if err != nil {
		return nil, err
	}
	return NewWithKey(key)
}

// NewWithKey returns a codec for an existing 16, 24 or 32 byte key
func NewWithKey(key []byte) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// GenerateKey generates a random AES key of the given strength
func GenerateKey(keyBits int) ([]byte, error) {
	switch keyBits {
	case 128, 192, 256:
	default:
		return nil, fmt.Errorf("unsupported key size %d", keyBits)
	}

	key := make([]byte, keyBits/8)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// NewIdentity builds an identity with a fresh random nonce
func NewIdentity(username, clientID string) (Identity, error) {
	nonce, err := uuid.NewRandom()
	if err != nil {
		return Identity{}, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return Identity{Username: username, ClientID: clientID, Nonce: nonce.String()}, nil
}

// Encode encrypts the identity into a URL-safe token string
func (c *Codec) Encode(identity Identity) (string, error) {
	plaintext, err := json.Marshal(identity)
	if err != nil {
		return "", fmt.Errorf("failed to marshal identity: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends to nonce, giving [nonce][ciphertext]
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode decrypts a token string. Every failure wraps ErrInvalidToken.
func (c *Codec) Decode(token string) (Identity, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return Identity{}, fmt.Errorf("%w: ciphertext too short", ErrInvalidToken)
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var identity Identity
	if err := json.Unmarshal(plaintext, &identity); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return identity, nil
}
