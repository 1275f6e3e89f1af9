// Package resolve implements the resolution pipeline: identifier-based exact
// matching, blocked candidate generation, multi-feature comparison,
// transitive clustering, and the threshold decision policy.
package resolve

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes lists Swedish legal entity suffixes stripped during name
// normalization.
var legalSuffixes = []string{
	" AKTIEBOLAG", " AB", " (PUBL)", " PUBL",
	" HANDELSBOLAG", " HB",
	" KOMMANDITBOLAG", " KB",
	" EKONOMISK FÖRENING", " EK FÖR", " EK. FÖR.",
	" ENSKILD FIRMA", " EF",
	" FILIAL",
	" STIFTELSEN",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeName standardizes a name for matching by:
//  1. Unicode NFC normalization and whitespace trimming
//  2. Uppercasing
//  3. Removing Swedish legal suffixes (AB, HB, KB, etc.)
//  4. Stripping punctuation and mapping "&" to "OCH"
//  5. Collapsing repeated spaces
//
// Swedish letters (å, ä, ö) are preserved; ASCII folding happens separately
// in FoldASCII for blocking keys and phonetic codes.
func NormalizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", " OCH ",
		"-", " ",
		"/", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// asciiFolder decomposes to NFD, drops combining marks, and recomposes.
// This turns Å/Ä into A and Ö into O, which keeps blocking keys stable
// across transliterated registry extracts.
var asciiFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldASCII strips diacritics from a normalized name. Characters that do not
// decompose (ø, æ) are mapped explicitly.
func FoldASCII(s string) string {
	out, _, err := transform.String(asciiFolder, s)
	if err != nil {
		out = s
	}
	return strings.NewReplacer(
		"Ø", "O", "ø", "o",
		"Æ", "AE", "æ", "ae",
		"Þ", "TH", "þ", "th",
		"Ð", "D", "ð", "d",
	).Replace(out)
}

// NormalizeStreet standardizes an address line: normalized like a name, with
// common Swedish street-type abbreviations expanded.
func NormalizeStreet(street string) string {
	s := NormalizeName(street)
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	for i, f := range fields {
		switch f {
		case "G", "GT":
			fields[i] = "GATAN"
		case "V", "VÄG":
			fields[i] = "VÄGEN"
		case "GR":
			fields[i] = "GRÄND"
		}
	}
	return strings.Join(fields, " ")
}

// NormalizePostalCode strips spaces from a postal code ("113 55" -> "11355").
func NormalizePostalCode(code string) string {
	return strings.ReplaceAll(strings.TrimSpace(code), " ", "")
}

// Tokens splits a normalized name into its word tokens.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}
