package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"uppercase and trim", "  anna andersson ", "ANNA ANDERSSON"},
		{"strip AB suffix", "Volvo Personvagnar AB", "VOLVO PERSONVAGNAR"},
		{"strip aktiebolag suffix", "Nordström Bygg Aktiebolag", "NORDSTRÖM BYGG"},
		{"strip HB suffix", "Bröderna Nilsson HB", "BRÖDERNA NILSSON"},
		{"ampersand to och", "Larsson & Söner", "LARSSON OCH SÖNER"},
		{"hyphen to space", "Karl-Erik Johansson", "KARL ERIK JOHANSSON"},
		{"strip punctuation", "A. Andersson", "A ANDERSSON"},
		{"collapse spaces", "ANNA   ANDERSSON", "ANNA ANDERSSON"},
		{"swedish letters preserved", "Åke Öström", "ÅKE ÖSTRÖM"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestFoldASCII(t *testing.T) {
	assert.Equal(t, "AKE OSTROM", FoldASCII("ÅKE ÖSTRÖM"))
	assert.Equal(t, "ANGSTROM", FoldASCII("ÄNGSTRÖM"))
	assert.Equal(t, "SOREN", FoldASCII("SØREN"))
	assert.Equal(t, "AERO", FoldASCII("ÆRO"))
	assert.Equal(t, "PLAIN", FoldASCII("PLAIN"))
}

func TestNormalizeStreet(t *testing.T) {
	assert.Equal(t, "STORGATAN 12", NormalizeStreet("Storgatan 12"))
	assert.Equal(t, "KUNGSGATAN 4", NormalizeStreet("Kungsgatan 4"))
	assert.Equal(t, "RING VÄGEN 8", NormalizeStreet("Ring v. 8"))
}

func TestNormalizePostalCode(t *testing.T) {
	assert.Equal(t, "11355", NormalizePostalCode("113 55"))
	assert.Equal(t, "11355", NormalizePostalCode(" 11355 "))
	assert.Equal(t, "", NormalizePostalCode("  "))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"ANNA", "ANDERSSON"}, Tokens("ANNA ANDERSSON"))
	assert.Empty(t, Tokens(""))
}
