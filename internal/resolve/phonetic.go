package resolve

import "strings"

// phoneticGroups maps consonants to soundex digit groups. Applied to the
// ASCII-folded form, so Swedish vowels have already collapsed to a/o.
var phoneticGroups = map[byte]byte{
	'B': '1', 'F': '1', 'P': '1', 'V': '1', 'W': '1',
	'C': '2', 'G': '2', 'J': '2', 'K': '2', 'Q': '2', 'S': '2', 'X': '2', 'Z': '2',
	'D': '3', 'T': '3',
	'L': '4',
	'M': '5', 'N': '5',
	'R': '6',
}

// PhoneticCode computes a four-character soundex-style code for a single
// token. It folds diacritics first, keeps the leading letter, and encodes
// the remaining consonants by sound group, dropping repeats.
func PhoneticCode(token string) string {
	t := strings.ToUpper(FoldASCII(strings.TrimSpace(token)))
	if t == "" {
		return ""
	}

	var first byte
	var rest []byte
	var prev byte
	for i := 0; i < len(t); i++ {
		c := t[i]
		if c < 'A' || c > 'Z' {
			continue
		}
		if first == 0 {
			first = c
			prev = phoneticGroups[c]
			continue
		}
		g, ok := phoneticGroups[c]
		if !ok {
			// Vowels and H break runs of the same group.
			prev = 0
			continue
		}
		if g == prev {
			continue
		}
		rest = append(rest, g)
		prev = g
		if len(rest) == 3 {
			break
		}
	}
	if first == 0 {
		return ""
	}

	code := string(first) + string(rest)
	for len(code) < 4 {
		code += "0"
	}
	return code
}
