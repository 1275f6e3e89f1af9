// Package identifier validates and normalizes Swedish national identifiers:
// personnummer (including coordination numbers) and organisationsnummer.
// Validation fails closed: any format, date, or checksum violation returns an
// error, and malformed input never panics.
package identifier

// luhnCheckDigit computes the check digit for a string of base digits using
// the modulo-10 rule applied by Skatteverket: double the digits at even
// positions (0-based, from the left), subtract 9 from any result above 9,
// sum everything, and take (10 - sum mod 10) mod 10.
func luhnCheckDigit(digits []int) int {
	sum := 0
	for i, d := range digits {
		v := d
		if i%2 == 0 {
			v *= 2
			if v > 9 {
				v -= 9
			}
		}
		sum += v
	}
	return (10 - sum%10) % 10
}

// luhnValid reports whether the last digit is the correct check digit for
// the digits preceding it.
func luhnValid(digits []int) bool {
	if len(digits) < 2 {
		return false
	}
	n := len(digits)
	return luhnCheckDigit(digits[:n-1]) == digits[n-1]
}

// parseDigits converts an all-digit string into a digit slice, returning
// false on any non-digit byte.
func parseDigits(s string) ([]int, bool) {
	out := make([]int, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return nil, false
		}
		out = append(out, int(c-'0'))
	}
	return out, true
}
