package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Sealer encrypts records at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(blob []byte) ([]byte, error)
}

var ErrInvalidKeyLength = errors.New("invalid key length")

// XChaChaSealer seals with XChaCha20-Poly1305. The output is nonce followed
// by ciphertext.
type XChaChaSealer struct {
	key []byte
	ad  []byte
}

// NewXChaChaSealer uses a raw 32-byte key. The service name is bound as
// associated data so a blob cannot be moved between services.
func NewXChaChaSealer(key []byte, service string) (*XChaChaSealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKeyLength
	}
	return &XChaChaSealer{
		key: append([]byte(nil), key...),
		ad:  []byte(service),
	}, nil
}

// DeriveKey stretches a device secret into a sealing key with HKDF-SHA256.
func DeriveKey(secret []byte, service string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("secret required")
	}
	h := hkdf.New(sha256.New, secret, nil, []byte("credential-seal:"+service))
	out := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *XChaChaSealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, s.ad), nil
}

func (s *XChaChaSealer) Open(blob []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	ns := aead.NonceSize()
	if len(blob) < ns+aead.Overhead() {
		return nil, errors.New("ciphertext too short")
	}
	return aead.Open(nil, blob[:ns], blob[ns:], s.ad)
}
