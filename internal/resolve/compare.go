package resolve

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

// Comparison is the result of scoring one pair: every contributing feature
// score plus the deterministic weighted overall. Sub-scores are retained on
// the ResolutionDecision for audit.
type Comparison struct {
	Features model.FeatureScores `json:"features"`
	Overall  float64             `json:"overall"`
}

// record is the comparable projection of a mention or entity.
type record struct {
	name        string
	street      string
	postalCode  string
	birthDate   string
	identifiers []string
}

func mentionRecord(m *model.Mention) record {
	name := m.NormalizedForm
	if name == "" {
		name = NormalizeName(m.SurfaceForm)
	}
	return record{
		name:        name,
		street:      NormalizeStreet(m.Attributes.StreetLine()),
		postalCode:  NormalizePostalCode(m.Attributes.PostalCode()),
		birthDate:   m.Attributes.BirthDate(),
		identifiers: m.Identifiers,
	}
}

func entityRecord(e *model.Entity) record {
	values := make([]string, 0, len(e.Identifiers))
	for _, id := range e.Identifiers {
		values = append(values, id.Value)
	}
	return record{
		name:        NormalizeName(e.Name),
		street:      NormalizeStreet(e.Attributes.StreetLine()),
		postalCode:  NormalizePostalCode(e.Attributes.PostalCode()),
		birthDate:   e.Attributes.BirthDate(),
		identifiers: values,
	}
}

// Compare scores a mention against a candidate entity. Pure: no side
// effects, no I/O; identical inputs produce identical outputs.
func Compare(m *model.Mention, e *model.Entity, cfg *model.ResolutionConfig) Comparison {
	return compareRecords(mentionRecord(m), entityRecord(e), cfg.WeightsFor(m.Type))
}

// CompareMentions scores two mentions of the same type against each other,
// used when clustering unresolved mentions.
func CompareMentions(a, b *model.Mention, cfg *model.ResolutionConfig) Comparison {
	return compareRecords(mentionRecord(a), mentionRecord(b), cfg.WeightsFor(a.Type))
}

func compareRecords(a, b record, w model.FeatureWeights) Comparison {
	features := make(model.FeatureScores)
	weights := make(map[string]float64)

	if a.name != "" && b.name != "" {
		features[model.FeatureName] = nameSimilarity(a.name, b.name)
		weights[model.FeatureName] = w.Name
		if p := phoneticSimilarity(a.name, b.name); w.Phonetic > 0 {
			features[model.FeaturePhonetic] = p
			weights[model.FeaturePhonetic] = w.Phonetic
		}
	}
	if (a.street != "" || a.postalCode != "") && (b.street != "" || b.postalCode != "") {
		features[model.FeatureAddress] = addressSimilarity(a, b)
		weights[model.FeatureAddress] = w.Address
	}
	if a.birthDate != "" && b.birthDate != "" {
		features[model.FeatureBirthDate] = birthDateSimilarity(a.birthDate, b.birthDate)
		weights[model.FeatureBirthDate] = w.BirthDate
	}
	if len(a.identifiers) > 0 && len(b.identifiers) > 0 {
		features[model.FeatureIdentifier] = identifierSimilarity(a.identifiers, b.identifiers)
		weights[model.FeatureIdentifier] = w.Identifier
	}

	// Weighted average over the features both records could contribute;
	// renormalizing keeps sparse records comparable to rich ones.
	var sum, totalWeight float64
	for f, score := range features {
		sum += score * weights[f]
		totalWeight += weights[f]
	}

	c := Comparison{Features: features}
	if totalWeight > 0 {
		c.Overall = sum / totalWeight
	}
	return c
}

// nameSimilarity blends edit-distance, Jaro-Winkler, and token-overlap
// similarity over normalized names.
func nameSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	lev := levenshteinSimilarity(a, b)
	jw := jaroWinkler(a, b)
	tok := tokenOverlap(a, b)
	return 0.30*lev + 0.20*jw + 0.50*tok
}

func levenshteinSimilarity(a, b string) float64 {
	// The distance is rune-based, so the denominator must be too or
	// multi-byte letters (å, ä, ö) inflate the similarity.
	maxLen := float64(max(utf8.RuneCountInString(a), utf8.RuneCountInString(b)))
	if maxLen == 0 {
		return 1.0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(d)/maxLen
}

// tokenOverlap is the Jaccard similarity of the two token sets, with
// single-letter tokens treated as initials that match any token sharing
// the letter ("A." vs "ANNA").
func tokenOverlap(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	matched := make([]bool, len(tb))
	overlap := 0
	for _, x := range ta {
		for j, y := range tb {
			if matched[j] {
				continue
			}
			if x == y || initialMatch(x, y) {
				matched[j] = true
				overlap++
				break
			}
		}
	}
	union := len(ta) + len(tb) - overlap
	return float64(overlap) / float64(union)
}

func initialMatch(a, b string) bool {
	if len(a) == 1 && len(b) > 1 {
		return a[0] == b[0]
	}
	if len(b) == 1 && len(a) > 1 {
		return b[0] == a[0]
	}
	return false
}

// phoneticSimilarity is the containment of the smaller phonetic code set in
// the larger: abbreviated forms should not be penalized for the tokens they
// lack.
func phoneticSimilarity(a, b string) float64 {
	ca := phoneticSet(a)
	cb := phoneticSet(b)
	if len(ca) == 0 || len(cb) == 0 {
		return 0
	}
	overlap := 0
	for code := range ca {
		if cb[code] {
			overlap++
		}
	}
	return float64(overlap) / float64(min(len(ca), len(cb)))
}

// phoneticSet gathers codes for the multi-letter tokens of a name; initials
// carry no phonetic signal.
func phoneticSet(name string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokens(name) {
		if len(tok) < 2 {
			continue
		}
		if code := PhoneticCode(tok); code != "" {
			set[code] = true
		}
	}
	return set
}

func addressSimilarity(a, b record) float64 {
	var street, postal float64
	havePostal := a.postalCode != "" && b.postalCode != ""
	haveStreet := a.street != "" && b.street != ""

	if haveStreet {
		street = nameSimilarity(a.street, b.street)
	}
	if havePostal {
		if a.postalCode == b.postalCode {
			postal = 1.0
		} else if len(a.postalCode) >= 3 && len(b.postalCode) >= 3 && a.postalCode[:3] == b.postalCode[:3] {
			// Same postal area.
			postal = 0.5
		}
	}

	switch {
	case haveStreet && havePostal:
		return 0.6*street + 0.4*postal
	case haveStreet:
		return street
	default:
		return postal
	}
}

// birthDateSimilarity compares ISO dates with graded proximity rather than
// strict equality, since registry extracts disagree on day precision.
func birthDateSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) >= 7 && len(b) >= 7 && a[:7] == b[:7] {
		return 0.8
	}
	if len(a) >= 4 && len(b) >= 4 && a[:4] == b[:4] {
		return 0.5
	}
	return 0
}

// identifierSimilarity scores shared identifier values: an exact shared
// value is conclusive, a shared six-digit prefix (birth date or
// organisation base) is a strong fragment signal.
func identifierSimilarity(a, b []string) float64 {
	best := 0.0
	for _, x := range a {
		dx := digitsOnly(x)
		for _, y := range b {
			dy := digitsOnly(y)
			switch {
			case dx != "" && dx == dy:
				return 1.0
			case len(dx) >= 6 && len(dy) >= 6 && dx[:6] == dy[:6]:
				best = math.Max(best, 0.6)
			}
		}
	}
	return best
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// jaroWinkler computes Jaro-Winkler similarity over runes with the standard
// 0.1 prefix scaling over at most four leading runes.
func jaroWinkler(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	r1, r2 := []rune(s1), []rune(s2)
	len1, len2 := len(r1), len(r2)
	if len1 == 0 || len2 == 0 {
		return 0
	}

	matchWindow := max(len1, len2)/2 - 1
	if matchWindow < 0 {
		matchWindow = 0
	}

	r1Matches := make([]bool, len1)
	r2Matches := make([]bool, len2)
	matches := 0
	for i := 0; i < len1; i++ {
		start := max(0, i-matchWindow)
		end := min(len2, i+matchWindow+1)
		for j := start; j < end; j++ {
			if r2Matches[j] || r1[i] != r2[j] {
				continue
			}
			r1Matches[i] = true
			r2Matches[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < len1; i++ {
		if !r1Matches[i] {
			continue
		}
		for !r2Matches[k] {
			k++
		}
		if r1[i] != r2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	jaro := (m/float64(len1) + m/float64(len2) + (m-float64(transpositions)/2)/m) / 3.0

	prefix := 0
	for i := 0; i < min(min(len1, len2), 4); i++ {
		if r1[i] != r2[i] {
			break
		}
		prefix++
	}
	return jaro + 0.1*float64(prefix)*(1.0-jaro)
}
