package identifier

import (
	"time"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

// Normalized is the scheme-tagged canonical form of a validated identifier.
type Normalized struct {
	Scheme    string
	Canonical string
	Person    *Personnummer // set when Scheme is personnummer
	Org       *Orgnummer    // set when Scheme is organisationsnummer
}

// Normalize validates raw against both identifier schemes and returns the
// canonical form. The middle digit pair disambiguates: 20 or above can only
// be an organisation number, below 20 only a personal number (coordination
// day offsets stop at 91).
func Normalize(raw string, now time.Time) (*Normalized, error) {
	if p, err := ValidatePersonnummer(raw, now); err == nil {
		return &Normalized{
			Scheme:    model.SchemePersonnummer,
			Canonical: p.Long(),
			Person:    p,
		}, nil
	}
	if o, err := ValidateOrgnummer(raw); err == nil {
		return &Normalized{
			Scheme:    model.SchemeOrgnummer,
			Canonical: o.String(),
			Org:       o,
		}, nil
	}
	return nil, model.Validationf("identifier: %q is neither a valid personnummer nor organisationsnummer", raw)
}

// NormalizeAll validates a batch of raw identifiers, dropping the invalid
// ones. Resolution carries only identifiers that survive validation.
func NormalizeAll(raws []string, now time.Time) []Normalized {
	out := make([]Normalized, 0, len(raws))
	for _, r := range raws {
		n, err := Normalize(r, now)
		if err != nil {
			continue
		}
		out = append(out, *n)
	}
	return out
}
