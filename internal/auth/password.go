// internal/auth/password.go
package auth

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted on register and reset.
const MinPasswordLength = 6

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// NormalizeEmail lower-cases and trims an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var collapseSpace = regexp.MustCompile(`\s+`)

// SanitizeName trims a display name, collapses inner whitespace and upper-cases
// the first letter.
func SanitizeName(name string) string {
	cleaned := collapseSpace.ReplaceAllString(strings.TrimSpace(name), " ")
	if cleaned == "" {
		return ""
	}
	r := []rune(cleaned)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
