package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	cryptoutil "onboarding/internal/platform/crypto"
)

// Encrypted seals object bytes before handing them to the wrapped backend.
// Objects are buffered in memory, so callers must bound the body size.
type Encrypted struct {
	inner  Storage
	crypto *cryptoutil.Service
}

func NewEncrypted(inner Storage, crypto *cryptoutil.Service) Storage {
	if crypto == nil || !crypto.Configured() {
		return inner
	}
	return &Encrypted{inner: inner, crypto: crypto}
}

func (e *Encrypted) Put(ctx context.Context, key string, body io.Reader, contentType string) (int64, error) {
	plain, err := io.ReadAll(body)
	if err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}
	sealed, err := e.crypto.Seal(plain, []byte(key))
	if err != nil {
		return 0, fmt.Errorf("encrypt object: %w", err)
	}
	if _, err := e.inner.Put(ctx, key, bytes.NewReader(sealed), contentType); err != nil {
		return 0, err
	}
	return int64(len(plain)), nil
}

func (e *Encrypted) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	rc, _, err := e.inner.Open(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, 0, fmt.Errorf("read object: %w", err)
	}
	plain, err := e.crypto.Open(payload, []byte(key))
	if err != nil {
		return nil, 0, err
	}
	return io.NopCloser(bytes.NewReader(plain)), int64(len(plain)), nil
}

func (e *Encrypted) Delete(ctx context.Context, key string) error {
	return e.inner.Delete(ctx, key)
}
