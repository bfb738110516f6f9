package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// sealedPrefix marks payloads produced by Seal so Open can pass through bytes
// that were stored before encryption was enabled.
var sealedPrefix = []byte("OBENC1")

var ErrCiphertextTooShort = errors.New("ciphertext too short")

type Service struct {
	aead cipher.AEAD
}

// New builds an AES-256-GCM service. An empty key yields a pass-through service.
func New(key string) (*Service, error) {
	if key == "" {
		return &Service{}, nil
	}
	decoded, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	if len(decoded) != 32 {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY must be 32 bytes after decoding")
	}
	block, err := aes.NewCipher(decoded)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Service{aead: aead}, nil
}

func (s *Service) Configured() bool {
	return s != nil && s.aead != nil
}

// Seal encrypts plain and binds it to aad (typically the storage key).
func (s *Service) Seal(plain, aad []byte) ([]byte, error) {
	if !s.Configured() {
		return plain, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(sealedPrefix)+len(nonce)+len(plain)+s.aead.Overhead())
	out = append(out, sealedPrefix...)
	out = append(out, nonce...)
	return s.aead.Seal(out, nonce, plain, aad), nil
}

// Open reverses Seal. Payloads without the sealed prefix are returned as is.
func (s *Service) Open(payload, aad []byte) ([]byte, error) {
	if !bytes.HasPrefix(payload, sealedPrefix) {
		return payload, nil
	}
	if !s.Configured() {
		return nil, errors.New("payload is encrypted but no DATA_ENCRYPTION_KEY is configured")
	}
	body := payload[len(sealedPrefix):]
	if len(body) < s.aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce := body[:s.aead.NonceSize()]
	plain, err := s.aead.Open(nil, nonce, body[s.aead.NonceSize():], aad)
	if err != nil {
		return nil, fmt.Errorf("decrypt payload: %w", err)
	}
	return plain, nil
}

func decodeKey(raw string) ([]byte, error) {
	if len(raw) == 64 {
		decoded, err := hex.DecodeString(raw)
		if err == nil {
			return decoded, nil
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(raw); err == nil {
		return decoded, nil
	}
	return []byte(raw), nil
}
