package identifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

// Personnummer is a validated Swedish personal identity number in canonical
// form. BirthDate always holds the real calendar date: for coordination
// numbers the day+60 offset has already been removed.
type Personnummer struct {
	BirthDate      time.Time
	Gender         string // "M" or "F" from the parity of the second-to-last digit
	IsCoordination bool
	Centenarian    bool // born 100+ years before the validation reference time

	digits [10]int // YYMMDDNNNC, day still offset for coordination numbers
}

// ValidatePersonnummer parses and validates a personnummer in 10-digit
// (with optional "-" or "+" separator) or 12-digit form. now anchors the
// century disambiguation for 10-digit input.
func ValidatePersonnummer(raw string, now time.Time) (*Personnummer, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, model.Validationf("personnummer: empty input")
	}

	sep := ""
	compact := s
	// A separator may appear before the last four digits.
	if n := len(s); n >= 5 && (s[n-5] == '-' || s[n-5] == '+') {
		sep = string(s[n-5])
		compact = s[:n-5] + s[n-4:]
	}

	digits, ok := parseDigits(compact)
	if !ok {
		return nil, model.Validationf("personnummer: non-digit characters in %q", raw)
	}

	var century int
	var short []int
	switch len(digits) {
	case 10:
		century = resolveCentury(digits[0]*10+digits[1], sep, now)
		short = digits
	case 12:
		if sep == "+" {
			return nil, model.Validationf("personnummer: %q mixes century prefix with + separator", raw)
		}
		century = digits[0]*10 + digits[1]
		short = digits[2:]
	default:
		return nil, model.Validationf("personnummer: %q has %d digits, want 10 or 12", raw, len(digits))
	}

	if !luhnValid(short) {
		return nil, model.Validationf("personnummer: checksum failure in %q", raw)
	}

	year := century*100 + short[0]*10 + short[1]
	month := short[2]*10 + short[3]
	day := short[4]*10 + short[5]

	coordination := false
	if day > 60 {
		coordination = true
		day -= 60
	}

	birth, err := calendarDate(year, month, day)
	if err != nil {
		return nil, model.Validationf("personnummer: %q: %v", raw, err)
	}
	if birth.After(now) {
		return nil, model.Validationf("personnummer: %q has birth date in the future", raw)
	}

	gender := "F"
	if short[8]%2 == 1 {
		gender = "M"
	}

	p := &Personnummer{
		BirthDate:      birth,
		Gender:         gender,
		IsCoordination: coordination,
		Centenarian:    now.AddDate(-100, 0, 0).After(birth) || now.AddDate(-100, 0, 0).Equal(birth),
	}
	copy(p.digits[:], short)
	return p, nil
}

// resolveCentury applies the Skatteverket rule for 10-digit input: a
// two-digit year at or below the current two-digit year belongs to the
// 2000s, anything above to the 1900s. A "+" separator marks a centenarian
// and shifts the resolved century back by one.
func resolveCentury(yy int, sep string, now time.Time) int {
	century := 19
	if yy <= now.Year()%100 {
		century = 20
	}
	if sep == "+" {
		century--
	}
	return century
}

// calendarDate builds a date and rejects impossible month/day combinations.
func calendarDate(year, month, day int) (time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month %d out of range", month)
	}
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("day %d out of range", day)
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, fmt.Errorf("%04d-%02d-%02d is not a calendar date", year, month, day)
	}
	return d, nil
}

// String formats the canonical dashed 10-digit form, using "+" as the
// separator for centenarians.
func (p *Personnummer) String() string {
	sep := "-"
	if p.Centenarian {
		sep = "+"
	}
	return fmt.Sprintf("%d%d%d%d%d%d%s%d%d%d%d",
		p.digits[0], p.digits[1], p.digits[2], p.digits[3], p.digits[4], p.digits[5],
		sep,
		p.digits[6], p.digits[7], p.digits[8], p.digits[9])
}

// Long formats the 12-digit form with explicit century.
func (p *Personnummer) Long() string {
	return fmt.Sprintf("%04d%02d%d%d%d%d%d%d",
		p.BirthDate.Year(),
		int(p.BirthDate.Month()),
		p.digits[4], p.digits[5],
		p.digits[6], p.digits[7], p.digits[8], p.digits[9])
}
