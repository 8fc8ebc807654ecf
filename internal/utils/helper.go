package utils

import (
	"encoding/json"
	"math"
	"net/http"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
)

var nonDigitRegex = regexp.MustCompile(`[^0-9]+`)

func ParseInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func WriteJSONError(w http.ResponseWriter, message string, code int) {
	WriteJSON(w, code, map[string]string{"error": message})
}

// IsValidEmail accepts bare addresses only ("a@b.c"), not "Name <a@b.c>".
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at:], ".")
}

func DigitsOnly(s string) string {
	return nonDigitRegex.ReplaceAllString(s, "")
}

// NormalizePhoneFR converts French numbers to E.164 ("06 12 34 56 78" -> "+33612345678").
// Numbers already carrying a country prefix are returned digits-only with a leading '+'.
func NormalizePhoneFR(phone string) string {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return ""
	}
	digits := DigitsOnly(trimmed)

	switch {
	case strings.HasPrefix(trimmed, "+"):
		return "+" + digits
	case strings.HasPrefix(digits, "00"):
		return "+" + digits[2:]
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		return "+33" + digits[1:]
	default:
		return digits
	}
}

// ToCents rounds a euro amount to integer cents.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
