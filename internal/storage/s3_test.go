package storage

import (
	"bytes"
	"testing"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	plain := []byte("%PDF-1.4 pretend merged output")
	enc, err := encrypt(plain, "correct horse")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(enc, plain) {
		t.Error("ciphertext must not contain the plaintext")
	}

	dec, err := Decrypt(enc, "correct horse")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(dec, plain) {
		t.Error("round trip must return the original bytes")
	}
}

func TestDecrypt_WrongPassphrase(t *testing.T) {
	enc, err := encrypt([]byte("secret"), "right")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(enc, "wrong"); err == nil {
		t.Error("expected an error for the wrong passphrase")
	}
}

func TestDecrypt_RejectsGarbage(t *testing.T) {
	if _, err := Decrypt([]byte("definitely not sealed"), "any"); err == nil {
		t.Error("expected an error for a payload without the magic prefix")
	}
	if _, err := Decrypt([]byte("PBND1"), "any"); err == nil {
		t.Error("expected an error for a truncated payload")
	}
}

func TestEncrypt_SaltsDiffer(t *testing.T) {
	a, err := encrypt([]byte("same input"), "pass")
	if err != nil {
		t.Fatal(err)
	}
	b, err := encrypt([]byte("same input"), "pass")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same input must differ")
	}
}
