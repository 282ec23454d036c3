package crypto

import (
	"crypto/rand"
	"strings"
	"testing"
)

// TestHashPassword tests password hashing functionality
func TestHashPassword(t *testing.T) {
	password := "SecurePassword123!"
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	if err != nil {
		t.Fatalf("Failed to generate salt: %v", err)
	}

	hash := HashPassword(password, salt)

	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Error("Hash should start with $argon2id$")
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Errorf("Hash should have 6 parts, got %d", len(parts))
	}

	if parts[1] != "argon2id" {
		t.Errorf("Expected algorithm argon2id, got %s", parts[1])
	}
}

// TestHashPasswordDeterministic tests that same password and salt produce same hash
func TestHashPasswordDeterministic(t *testing.T) {
	password := "TestPassword123"
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	if err != nil {
		t.Fatalf("Failed to generate salt: %v", err)
	}

	hash1 := HashPassword(password, salt)
	hash2 := HashPassword(password, salt)

	if hash1 != hash2 {
		t.Error("Same password and salt should produce same hash")
	}
}

// TestHashPasswordDifferentSalts tests that different salts produce different hashes
func TestHashPasswordDifferentSalts(t *testing.T) {
	password := "SamePassword123"

	salt1 := make([]byte, 16)
	_, err := rand.Read(salt1)
	if err != nil {
		t.Fatalf("Failed to generate salt1: %v", err)
	}

	salt2 := make([]byte, 16)
	_, err = rand.Read(salt2)
	if err != nil {
		t.Fatalf("Failed to generate salt2: %v", err)
	}

	hash1 := HashPassword(password, salt1)
	hash2 := HashPassword(password, salt2)

	if hash1 == hash2 {
		t.Error("Different salts should produce different hashes")
	}
}

// TestVerifyPassword tests password verification with correct password
func TestVerifyPassword(t *testing.T) {
	password := "CorrectPassword123!"
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	if err != nil {
		t.Fatalf("Failed to generate salt: %v", err)
	}

	hash := HashPassword(password, salt)

	if !VerifyPassword(password, hash) {
		t.Error("VerifyPassword should return true for correct password")
	}
}

// TestVerifyPasswordIncorrect tests password verification with incorrect password
func TestVerifyPasswordIncorrect(t *testing.T) {
	password := "CorrectPassword123!"
	wrongPassword := "WrongPassword123!"
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	if err != nil {
		t.Fatalf("Failed to generate salt: %v", err)
	}

	hash := HashPassword(password, salt)

	if VerifyPassword(wrongPassword, hash) {
		t.Error("VerifyPassword should return false for incorrect password")
	}
}

// TestVerifyPasswordCaseSensitive tests that password verification is case-sensitive
func TestVerifyPasswordCaseSensitive(t *testing.T) {
	password := "CaseSensitive123"
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	if err != nil {
		t.Fatalf("Failed to generate salt: %v", err)
	}

	hash := HashPassword(password, salt)

	if VerifyPassword("casesensitive123", hash) {
		t.Error("Password verification should be case-sensitive")
	}

	if VerifyPassword("CASESENSITIVE123", hash) {
		t.Error("Password verification should be case-sensitive")
	}
}

// TestVerifyPasswordInvalidFormat tests verification with malformed hash
func TestVerifyPasswordInvalidFormat(t *testing.T) {
	password := "SomePassword123"

	testCases := []struct {
		name string
		hash string
	}{
		{"empty hash", ""},
		{"invalid format", "not-a-valid-hash"},
		{"too few parts", "$argon2id$v=19$m=65536"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=4$salt$hash"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if VerifyPassword(password, tc.hash) {
				t.Errorf("VerifyPassword should return false for %s", tc.name)
			}
		})
	}
}

// TestHashPasswordSpecialCharacters tests password with special characters
func TestHashPasswordSpecialCharacters(t *testing.T) {
	passwords := []string{
		"P@ssw0rd!",
		"Test#123$%^",
		"Unicode密码测试",
		"Newline\nPassword",
	}

	for _, password := range passwords {
		t.Run(password, func(t *testing.T) {
			salt := make([]byte, 16)
			_, err := rand.Read(salt)
			if err != nil {
				t.Fatalf("Failed to generate salt: %v", err)
			}

			hash := HashPassword(password, salt)

			if !VerifyPassword(password, hash) {
				t.Errorf("Password with special characters should verify: %s", password)
			}
		})
	}
}

// TestGenerateTempPassword tests one-time password generation
func TestGenerateTempPassword(t *testing.T) {
	pw, err := GenerateTempPassword()
	if err != nil {
		t.Fatalf("GenerateTempPassword failed: %v", err)
	}

	if len(pw) != 12 {
		t.Errorf("Temp password should be 12 characters, got %d", len(pw))
	}

	if strings.ContainsAny(pw, "+/=\n ") {
		t.Errorf("Temp password should be URL-safe, got %q", pw)
	}
}

// TestGenerateTempPasswordUnique tests that generated passwords do not repeat
func TestGenerateTempPasswordUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		pw, err := GenerateTempPassword()
		if err != nil {
			t.Fatalf("GenerateTempPassword failed: %v", err)
		}
		if seen[pw] {
			t.Fatalf("Duplicate temp password generated: %s", pw)
		}
		seen[pw] = true
	}
}

// BenchmarkHashPassword benchmarks password hashing performance
func BenchmarkHashPassword(b *testing.B) {
	password := "BenchmarkPassword123!"
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		b.Fatalf("Failed to generate random data: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = HashPassword(password, salt)
	}
}

// BenchmarkVerifyPassword benchmarks password verification performance
func BenchmarkVerifyPassword(b *testing.B) {
	password := "BenchmarkPassword123!"
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		b.Fatalf("Failed to generate random data: %v", err)
	}
	hash := HashPassword(password, salt)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = VerifyPassword(password, hash)
	}
}
