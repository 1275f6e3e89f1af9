//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

func writeExtract(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extract.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadExtract_FillsDefaults(t *testing.T) {
	path := writeExtract(t, `[
		{"type": "PERSON", "surface_form": "Anna Andersson", "identifiers": ["198112189876"]},
		{"id": "m-keep", "type": "COMPANY", "surface_form": "Nordkraft AB", "provenance_id": "prov-keep", "status": "AUTO_MATCHED"}
	]`)

	mentions, err := readExtract(path)
	require.NoError(t, err)
	require.Len(t, mentions, 2)

	assert.NotEmpty(t, mentions[0].ID)
	assert.NotEmpty(t, mentions[0].ProvenanceID)
	assert.False(t, mentions[0].CreatedAt.IsZero())
	assert.Equal(t, model.StatusPending, mentions[0].Status)

	// Supplied ids survive; status is always forced back to pending.
	assert.Equal(t, "m-keep", mentions[1].ID)
	assert.Equal(t, "prov-keep", mentions[1].ProvenanceID)
	assert.Equal(t, model.StatusPending, mentions[1].Status)
}

func TestReadExtract_UnknownType(t *testing.T) {
	path := writeExtract(t, `[{"type": "VESSEL", "surface_form": "M/S Estelle"}]`)

	_, err := readExtract(path)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestReadExtract_MissingSurfaceForm(t *testing.T) {
	path := writeExtract(t, `[{"type": "PERSON"}]`)

	_, err := readExtract(path)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestReadExtract_BadJSON(t *testing.T) {
	path := writeExtract(t, `{not json`)

	_, err := readExtract(path)
	require.Error(t, err)
}

func TestReadExtract_MissingFile(t *testing.T) {
	_, err := readExtract(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
