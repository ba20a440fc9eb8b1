package middleware

import (
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// PINHeader carries the kiosk PIN on command requests.
const PINHeader = "X-Kiosk-PIN"

// HashPIN returns the bcrypt hash stored in configuration for a kiosk PIN.
// The PIN must be 4 to 8 digits.
func HashPIN(pin string) (string, error) {
	if len(pin) < 4 || len(pin) > 8 || !isDigits(pin) {
		return "", fmt.Errorf("PIN must be 4-8 digits")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash PIN: %w", err)
	}
	return string(hash), nil
}

// RequireKioskPIN rejects requests whose PIN header does not match pinHash.
// An empty pinHash disables the check.
func RequireKioskPIN(pinHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if pinHash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pin := r.Header.Get(PINHeader)
			if pin == "" {
				http.Error(w, "PIN required", http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(pinHash), []byte(pin)); err != nil {
				http.Error(w, "Invalid PIN", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
