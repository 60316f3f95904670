package vault

import (
	"bytes"
	"testing"
)

func TestSealOpen(t *testing.T) {
	v := New("correct horse battery staple")

	plaintext := []byte("tg-bot-token-12345")
	ciphertext, nonce, err := v.Seal(plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := v.Open(ciphertext, nonce)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch: got %q", got)
	}
}

func TestDeterministicKey(t *testing.T) {
	v1 := New("same passphrase")
	v2 := New("same passphrase")

	ciphertext, nonce, err := v1.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	// A vault recreated from the same passphrase must open it.
	got, err := v2.Open(ciphertext, nonce)
	if err != nil {
		t.Fatalf("open with rederived key: %v", err)
	}
	if string(got) != "secret" {
		t.Errorf("got %q", got)
	}
}

func TestWrongPassphraseFails(t *testing.T) {
	v := New("right")
	ciphertext, nonce, err := v.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := New("wrong").Open(ciphertext, nonce); err == nil {
		t.Fatal("expected open to fail with wrong passphrase")
	}
}

func TestTamperedCiphertextFails(t *testing.T) {
	v := New("pass")
	ciphertext, nonce, err := v.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	ciphertext[0] ^= 0xff
	if _, err := v.Open(ciphertext, nonce); err == nil {
		t.Fatal("expected open to fail on tampered ciphertext")
	}
}
