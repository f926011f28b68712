package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	vault, err := NewVault(testKey(t))
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	token := "gho_example_access_token_value"
	ciphertext, err := vault.Encrypt(token)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ciphertext == token {
		t.Fatal("ciphertext must differ from plaintext")
	}

	plaintext, err := vault.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plaintext != token {
		t.Errorf("Decrypt = %q, want %q", plaintext, token)
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	vault, err := NewVault(testKey(t))
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	a, _ := vault.Encrypt("same input")
	b, _ := vault.Encrypt("same input")
	if a == b {
		t.Error("two encryptions of the same input produced the same ciphertext; nonce is not random")
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	vault, err := NewVault(testKey(t))
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	ciphertext, _ := vault.Encrypt("secret")
	raw, _ := base64.StdEncoding.DecodeString(ciphertext)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := vault.Decrypt(tampered); err == nil {
		t.Error("Decrypt should reject tampered ciphertext")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	vaultA, _ := NewVault(testKey(t))
	vaultB, _ := NewVault(testKey(t))

	ciphertext, _ := vaultA.Encrypt("secret")
	if _, err := vaultB.Decrypt(ciphertext); err == nil {
		t.Error("Decrypt should fail under a different key")
	}
}

func TestNewVaultValidatesKey(t *testing.T) {
	if _, err := NewVault(""); err == nil {
		t.Error("NewVault should reject an empty key")
	}
	if _, err := NewVault("not-base64!!"); err == nil {
		t.Error("NewVault should reject non-base64 keys")
	}
	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	if _, err := NewVault(short); err == nil {
		t.Error("NewVault should reject keys that are not 32 bytes")
	}
}
