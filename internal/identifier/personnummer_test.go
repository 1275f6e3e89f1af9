package identifier

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A fixed clock keeps century disambiguation deterministic.
var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func TestValidatePersonnummer_TwelveDigit(t *testing.T) {
	p, err := ValidatePersonnummer("198112189876", testNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(1981, 12, 18, 0, 0, 0, 0, time.UTC), p.BirthDate)
	assert.Equal(t, "M", p.Gender)
	assert.False(t, p.IsCoordination)
	assert.Equal(t, "811218-9876", p.String())
	assert.Equal(t, "198112189876", p.Long())
}

func TestValidatePersonnummer_TenDigitCentury(t *testing.T) {
	// 81 > 26, so the birth year falls in the 1900s.
	p, err := ValidatePersonnummer("811218-9876", testNow)
	require.NoError(t, err)
	assert.Equal(t, 1981, p.BirthDate.Year())

	// 12 <= 26 resolves to the 2000s.
	p, err = ValidatePersonnummer("121218-9870", testNow)
	require.NoError(t, err)
	assert.Equal(t, 2012, p.BirthDate.Year())
}

func TestValidatePersonnummer_PlusSeparatorShiftsCentury(t *testing.T) {
	p, err := ValidatePersonnummer("121218+9870", testNow)
	require.NoError(t, err)
	assert.Equal(t, 1912, p.BirthDate.Year())
	assert.True(t, p.Centenarian)
	assert.Equal(t, "121218+9870", p.String())
}

func TestValidatePersonnummer_NoSeparator(t *testing.T) {
	p, err := ValidatePersonnummer("8112189876", testNow)
	require.NoError(t, err)
	assert.Equal(t, 1981, p.BirthDate.Year())
}

func TestValidatePersonnummer_Gender(t *testing.T) {
	p, err := ValidatePersonnummer("196408233226", testNow)
	require.NoError(t, err)
	assert.Equal(t, "F", p.Gender)

	p, err = ValidatePersonnummer("198112189876", testNow)
	require.NoError(t, err)
	assert.Equal(t, "M", p.Gender)
}

func TestValidatePersonnummer_Coordination(t *testing.T) {
	// Day 78 encodes a coordination number for the real day 18.
	p, err := ValidatePersonnummer("198112789873", testNow)
	require.NoError(t, err)
	assert.True(t, p.IsCoordination)
	assert.Equal(t, 18, p.BirthDate.Day())
	assert.Equal(t, time.December, p.BirthDate.Month())
}

func TestValidatePersonnummer_RoundTrip(t *testing.T) {
	for _, input := range []string{"198112189876", "811218-9876", "121218+9870", "196408233226"} {
		p, err := ValidatePersonnummer(input, testNow)
		require.NoError(t, err, input)

		again, err := ValidatePersonnummer(p.String(), testNow)
		require.NoError(t, err, p.String())
		assert.Equal(t, p.BirthDate, again.BirthDate, input)
		assert.Equal(t, p.Gender, again.Gender, input)
		assert.Equal(t, p.String(), again.String(), input)
	}
}

func TestValidatePersonnummer_UniqueCheckDigit(t *testing.T) {
	// Exactly one check digit in [0,9] completes any 9-digit base.
	base := "811218987"
	valid := 0
	for d := 0; d <= 9; d++ {
		if _, err := ValidatePersonnummer(fmt.Sprintf("%s%d", base, d), testNow); err == nil {
			valid++
		}
	}
	assert.Equal(t, 1, valid)
}

func TestValidatePersonnummer_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"letters", "81121a-9876"},
		{"too short", "811218-987"},
		{"too long", "19811218987612"},
		{"bad checksum", "811218-9875"},
		{"month 13", "811318-9872"},
		{"day zero", "811200-9873"},
		{"feb 30", "810230-9871"},
		{"twelve digit with plus", "19811218+9876"},
		{"future birth", "202712189873"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidatePersonnummer(tt.input, testNow)
			assert.Error(t, err, tt.input)
		})
	}
}
