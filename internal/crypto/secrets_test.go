package crypto

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	store := NewSecretStore("instance-secret", salt)

	ciphertext, err := store.Encrypt("torznab-api-key")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !strings.HasPrefix(ciphertext, EncryptedPrefix) {
		t.Errorf("ciphertext = %q, missing prefix", ciphertext)
	}
	if strings.Contains(ciphertext, "torznab-api-key") {
		t.Error("ciphertext contains plaintext")
	}

	plaintext, err := store.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if plaintext != "torznab-api-key" {
		t.Errorf("Decrypt() = %q, want original", plaintext)
	}
}

func TestDecryptPassthrough(t *testing.T) {
	salt, _ := GenerateSalt()
	store := NewSecretStore("s", salt)

	// Unencrypted legacy values come back untouched.
	got, err := store.Decrypt("plain-key")
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if got != "plain-key" {
		t.Errorf("Decrypt(plain) = %q", got)
	}

	if got, _ := store.Decrypt(""); got != "" {
		t.Errorf("Decrypt(empty) = %q", got)
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	salt, _ := GenerateSalt()
	store := NewSecretStore("s", salt)

	ciphertext, err := store.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	tampered := ciphertext[:len(ciphertext)-2] + "xx"
	if _, err := store.Decrypt(tampered); err == nil {
		t.Error("Decrypt(tampered) error = nil, want failure")
	}

	if store.MustDecrypt(tampered) != tampered {
		t.Error("MustDecrypt(tampered) should return input unchanged")
	}
}

func TestEncryptEmptyIsEmpty(t *testing.T) {
	salt, _ := GenerateSalt()
	store := NewSecretStore("s", salt)

	got, err := store.Encrypt("")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if got != "" {
		t.Errorf("Encrypt(empty) = %q, want empty", got)
	}
}

func TestLoadOrCreateSecretStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instance.secret")

	first, err := LoadOrCreateSecretStore(path)
	if err != nil {
		t.Fatalf("LoadOrCreateSecretStore() error = %v", err)
	}

	ciphertext, err := first.Encrypt("api-key")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// A second load reads the same secret and can decrypt.
	second, err := LoadOrCreateSecretStore(path)
	if err != nil {
		t.Fatalf("LoadOrCreateSecretStore() reload error = %v", err)
	}
	plaintext, err := second.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if plaintext != "api-key" {
		t.Errorf("Decrypt() = %q, want api-key", plaintext)
	}
}

func TestIsEncrypted(t *testing.T) {
	if IsEncrypted("plain") {
		t.Error("IsEncrypted(plain) = true")
	}
	if !IsEncrypted(EncryptedPrefix + "abc") {
		t.Error("IsEncrypted(prefixed) = false")
	}
}
