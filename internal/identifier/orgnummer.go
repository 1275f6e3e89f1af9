package identifier

import (
	"fmt"
	"strings"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

// Orgnummer is a validated Swedish organisation number in canonical form.
type Orgnummer struct {
	GroupDigit int // first digit, identifies the legal form group

	digits [10]int
}

// ValidateOrgnummer parses and validates an organisationsnummer in 10-digit
// form (optional dash before the last four digits) or 12-digit form with the
// fixed "16" prefix. The middle pair (positions three and four) must be 20
// or above, which is what separates organisation numbers from personal ones.
func ValidateOrgnummer(raw string) (*Orgnummer, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, model.Validationf("orgnummer: empty input")
	}

	compact := s
	if n := len(s); n >= 5 && s[n-5] == '-' {
		compact = s[:n-5] + s[n-4:]
	}

	digits, ok := parseDigits(compact)
	if !ok {
		return nil, model.Validationf("orgnummer: non-digit characters in %q", raw)
	}

	switch len(digits) {
	case 10:
	case 12:
		if digits[0] != 1 || digits[1] != 6 {
			return nil, model.Validationf("orgnummer: 12-digit form %q must start with 16", raw)
		}
		digits = digits[2:]
	default:
		return nil, model.Validationf("orgnummer: %q has %d digits, want 10 or 12", raw, len(digits))
	}

	if group := digits[2]*10 + digits[3]; group < 20 {
		return nil, model.Validationf("orgnummer: %q middle pair %02d below 20", raw, group)
	}

	if !luhnValid(digits) {
		return nil, model.Validationf("orgnummer: checksum failure in %q", raw)
	}

	o := &Orgnummer{GroupDigit: digits[0]}
	copy(o.digits[:], digits)
	return o, nil
}

// String formats the canonical dashed form, e.g. "556036-0793".
func (o *Orgnummer) String() string {
	var b strings.Builder
	for i, d := range o.digits {
		if i == 6 {
			b.WriteByte('-')
		}
		fmt.Fprintf(&b, "%d", d)
	}
	return b.String()
}

// Long formats the 12-digit form with the "16" prefix.
func (o *Orgnummer) Long() string {
	return "16" + strings.ReplaceAll(o.String(), "-", "")
}
