// Package secretx seals credentials at rest with NaCl secretbox.
package secretx

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const prefix = "sb1$"

// ErrOpen is returned when a sealed value cannot be decrypted.
var ErrOpen = errors.New("secretx: cannot open sealed value")

// Sealer encrypts and decrypts short secrets such as API keys.
type Sealer struct {
	key [32]byte
}

// NewSealer builds a Sealer. A 64 char hex key is used as is; any other
// non-empty passphrase is stretched with Argon2id.
func NewSealer(key string) (*Sealer, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("secretx: empty key")
	}
	s := &Sealer{}
	if raw, err := hex.DecodeString(key); err == nil && len(raw) == 32 {
		copy(s.key[:], raw)
		return s, nil
	}
	derived := argon2.IDKey([]byte(key), []byte("ai-content-publisher/secretx"), 3, 64*1024, 2, 32)
	copy(s.key[:], derived)
	return s, nil
}

// Seal encrypts plaintext with a random nonce.
func (s *Sealer) Seal(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secretx: nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return prefix + base64.RawStdEncoding.EncodeToString(box), nil
}

// Open decrypts a value produced by Seal. Values without the sealed prefix
// are returned unchanged so rows written before sealing still load.
func (s *Sealer) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, prefix) {
		return sealed, nil
	}
	box, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(sealed, prefix))
	if err != nil || len(box) < 24+secretbox.Overhead {
		return "", ErrOpen
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	out, ok := secretbox.Open(nil, box[24:], &nonce, &s.key)
	if !ok {
		return "", ErrOpen
	}
	return string(out), nil
}
