package crypto

import (
	"bytes"
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestSealOpenRoundTrip(t *testing.T) {
	svc, err := New(testKey)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !svc.Configured() {
		t.Fatal("expected configured service")
	}

	plain := []byte("passport scan bytes")
	sealed, err := svc.Seal(plain, []byte("e1/passport/scan.pdf"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Fatal("sealed payload leaks plaintext")
	}

	opened, err := svc.Open(sealed, []byte("e1/passport/scan.pdf"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatalf("round trip mismatch: %q", opened)
	}
}

func TestOpenRejectsWrongAAD(t *testing.T) {
	svc, _ := New(testKey)
	sealed, err := svc.Seal([]byte("data"), []byte("a"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := svc.Open(sealed, []byte("b")); err == nil {
		t.Fatal("expected error when aad differs")
	}
}

func TestOpenPassesThroughPlainPayload(t *testing.T) {
	svc, _ := New(testKey)
	got, err := svc.Open([]byte("legacy"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(got) != "legacy" {
		t.Fatalf("unexpected payload %q", got)
	}
}

func TestUnconfiguredService(t *testing.T) {
	svc, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if svc.Configured() {
		t.Fatal("expected unconfigured service")
	}
	out, err := svc.Seal([]byte("x"), nil)
	if err != nil || string(out) != "x" {
		t.Fatalf("expected pass-through, got %q %v", out, err)
	}

	keyed, _ := New(testKey)
	sealed, _ := keyed.Seal([]byte("x"), nil)
	if _, err := svc.Open(sealed, nil); err == nil {
		t.Fatal("expected error opening sealed payload without key")
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New("short")
	if err == nil || !strings.Contains(err.Error(), "32 bytes") {
		t.Fatalf("expected key length error, got %v", err)
	}
}
