package session

import (
	"testing"
	"time"
)

func TestEncodeRejectsOversizedFields(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := Encode(&Session{Username: string(long)}); err == nil {
		t.Fatal("expected error for username over 255 bytes")
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	if _, err := Decode([]byte{9}); err == nil {
		t.Fatal("expected version error")
	}
}

func TestEncodeDecodePreservesNanoseconds(t *testing.T) {
	exp := time.Date(2024, 5, 1, 0, 0, 0, 123456789, time.UTC)
	data, err := Encode(&Session{AccountID: "a", Username: "u", Origin: "o", CreatedAt: exp.Add(-time.Hour), ExpiresAt: exp})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.ExpiresAt.Equal(exp) {
		t.Fatalf("expected %v, got %v", exp, got.ExpiresAt)
	}
	if got.ExpiredAt(exp) {
		t.Fatal("session must still be valid exactly at expiry")
	}
	if !got.ExpiredAt(exp.Add(time.Nanosecond)) {
		t.Fatal("session must be expired one nanosecond after expiry")
	}
}

// FuzzSessionDecode exercises the binary decoder with arbitrary inputs.
func FuzzSessionDecode(f *testing.F) {
	encoded, err := Encode(&Session{
		AccountID: "acc-1",
		Username:  "fuzz",
		Origin:    "127.0.0.1",
		CreatedAt: time.Unix(1700000000, 0),
		ExpiresAt: time.Unix(1700003600, 0),
	})
	if err == nil {
		f.Add(encoded)
		f.Add(encoded[:10])
	}
	f.Add([]byte{})
	f.Add([]byte{1})
	f.Add([]byte{1, 255, 255})

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			return
		}
		if s == nil {
			t.Fatal("nil session without error")
		}
	})
}
