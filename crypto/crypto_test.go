package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

// TestNewCryptoService tests the creation of a new CryptoService
func TestNewCryptoService(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		t.Fatalf("Failed to generate random key: %v", err)
	}

	cs := NewCryptoService(key)
	if cs == nil {
		t.Fatal("NewCryptoService returned nil")
	}
	if !bytes.Equal(cs.serverKey, key) {
		t.Error("CryptoService key does not match provided key")
	}
}

// TestEncryptDecrypt tests basic encryption and decryption round trip
func TestEncryptDecrypt(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		t.Fatalf("Failed to generate random key: %v", err)
	}

	cs := NewCryptoService(key)
	plaintext := []byte("session payload")

	ciphertext, err := cs.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if bytes.Equal(ciphertext, plaintext) {
		t.Error("Ciphertext should not equal plaintext")
	}

	decrypted, err := cs.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}

	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("Decrypted text does not match original.\nExpected: %s\nGot: %s", plaintext, decrypted)
	}
}

// TestEncryptRandomness tests that encryption produces different ciphertexts for the same plaintext
func TestEncryptRandomness(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		t.Fatalf("Failed to generate random key: %v", err)
	}

	cs := NewCryptoService(key)
	plaintext := []byte("Same plaintext")

	ciphertext1, err := cs.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("First encrypt failed: %v", err)
	}

	ciphertext2, err := cs.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Second encrypt failed: %v", err)
	}

	// Random nonces mean the same plaintext never seals to the same bytes
	if bytes.Equal(ciphertext1, ciphertext2) {
		t.Error("Two encryptions of the same plaintext should produce different ciphertexts")
	}

	decrypted1, _ := cs.Decrypt(ciphertext1)
	decrypted2, _ := cs.Decrypt(ciphertext2)
	if !bytes.Equal(decrypted1, plaintext) || !bytes.Equal(decrypted2, plaintext) {
		t.Error("Both ciphertexts should decrypt to the same plaintext")
	}
}

// TestDecryptInvalidCiphertext tests decryption with invalid data
func TestDecryptInvalidCiphertext(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		t.Fatalf("Failed to generate random key: %v", err)
	}

	cs := NewCryptoService(key)

	// Test with too-short ciphertext
	_, err = cs.Decrypt([]byte("short"))
	if err == nil {
		t.Error("Decrypt should fail with too-short ciphertext")
	}

	// Test with corrupted ciphertext
	plaintext := []byte("Valid plaintext")
	ciphertext, _ := cs.Encrypt(plaintext)
	ciphertext[len(ciphertext)-1] ^= 0xFF // Corrupt last byte
	_, err = cs.Decrypt(ciphertext)
	if err == nil {
		t.Error("Decrypt should fail with corrupted ciphertext")
	}
}

// TestEmptyPlaintext tests encryption and decryption of empty data
func TestEmptyPlaintext(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		t.Fatalf("Failed to generate random key: %v", err)
	}

	cs := NewCryptoService(key)
	plaintext := []byte("")

	ciphertext, err := cs.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt empty plaintext failed: %v", err)
	}

	decrypted, err := cs.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt empty plaintext failed: %v", err)
	}

	if !bytes.Equal(decrypted, plaintext) {
		t.Error("Empty plaintext encryption/decryption failed")
	}
}

// BenchmarkEncrypt benchmarks the encryption performance
func BenchmarkEncrypt(b *testing.B) {
	key := make([]byte, 32)
	rand.Read(key)
	cs := NewCryptoService(key)
	plaintext := []byte("Benchmark plaintext data for encryption testing")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cs.Encrypt(plaintext)
	}
}

// BenchmarkDecrypt benchmarks the decryption performance
func BenchmarkDecrypt(b *testing.B) {
	key := make([]byte, 32)
	rand.Read(key)
	cs := NewCryptoService(key)
	plaintext := []byte("Benchmark plaintext data for decryption testing")
	ciphertext, _ := cs.Encrypt(plaintext)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cs.Decrypt(ciphertext)
	}
}
