package crypto

import "golang.org/x/crypto/bcrypt"

// bcrypt ignores input past 72 bytes, and recent library versions reject
// longer passwords outright. Truncate before hashing and verification so
// both sides agree on long passwords.
const maxPasswordBytes = 72

func truncatePassword(password string) []byte {
	raw := []byte(password)
	if len(raw) > maxPasswordBytes {
		raw = raw[:maxPasswordBytes]
	}
	return raw
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncatePassword(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword returns nil when the password matches the stored hash.
// Comparison runs in constant time.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncatePassword(password))
}
