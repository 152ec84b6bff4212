package hash

import "golang.org/x/crypto/bcrypt"

// HashPassword returns the bcrypt hash of p. Used to produce the ops
// password hash kept in configuration.
func HashPassword(p string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword reports whether plain matches hashed. A malformed hash never matches.
func CheckPassword(hashed, plain string) bool {
	if hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
