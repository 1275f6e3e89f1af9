package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

func TestValidateJustification_Accepts(t *testing.T) {
	valid := []string{
		"Same person: identical personnummer and address in both registries.",
		"Birth date and street match, surname spelling variant only.",
		"Olika födelsedatum, kan inte vara samma person.",
	}
	for _, v := range valid {
		assert.NoError(t, ValidateJustification(v), v)
	}
}

func TestValidateJustification_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"too short", "ok", "too short"},
		{"empty", "   ", "too short"},
		{"placeholder", "approved  ", "too short"},
		{"keyboard pattern", "asdfgh asdfgh", "keyboard pattern"},
		{"digit run", "123456 123456", "keyboard pattern"},
		{"single real word", "ok duplicated", "two real words"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateJustification(tc.text)
			require.Error(t, err)
			assert.True(t, model.IsCompliance(err))
			assert.Contains(t, err.Error(), tc.reason)
		})
	}
}
