package registry

import (
	"strconv"
	"strings"

	"paylive-be/internal/utils"
)

// laPosteSIREN is the SIREN of La Poste, whose establishments do not follow
// the Luhn rule.
const laPosteSIREN = "356000000"

// NormalizeSIRET strips spaces and dots.
func NormalizeSIRET(s string) string {
	return utils.DigitsOnly(s)
}

func ValidSIRET(siret string) bool {
	if len(siret) != 14 || utils.DigitsOnly(siret) != siret {
		return false
	}

	if strings.HasPrefix(siret, laPosteSIREN) {
		sum := 0
		for _, r := range siret {
			sum += int(r - '0')
		}
		return sum%5 == 0
	}
	return luhn(siret)
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// NormalizeBCE accepts "0123.456.789", "BE 0123 456 789" or the 9-digit
// legacy form and returns ten digits.
func NormalizeBCE(s string) string {
	digits := utils.DigitsOnly(s)
	if len(digits) == 9 {
		digits = "0" + digits
	}
	return digits
}

// ValidBCE checks the Belgian enterprise number: the last two digits equal
// 97 minus the first eight modulo 97.
func ValidBCE(number string) bool {
	if len(number) != 10 || utils.DigitsOnly(number) != number {
		return false
	}
	if number[0] != '0' && number[0] != '1' {
		return false
	}

	base, err := strconv.Atoi(number[:8])
	if err != nil {
		return false
	}
	check, err := strconv.Atoi(number[8:])
	if err != nil {
		return false
	}
	return 97-base%97 == check
}
