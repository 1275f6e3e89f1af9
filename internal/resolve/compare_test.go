package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

func testConfig(t *testing.T) *model.ResolutionConfig {
	t.Helper()
	cfg, err := model.NewResolutionConfig(1, 0.90, 0.75, 0.70, 0.90)
	require.NoError(t, err)
	return cfg
}

func TestNameSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, nameSimilarity("ANNA ANDERSSON", "ANNA ANDERSSON"))
	assert.Greater(t, nameSimilarity("ANNA ANDERSSON", "A ANDERSSON"), 0.85)
	assert.Less(t, nameSimilarity("ANNA ANDERSSON", "ZLATAN IBRAHIMOVIC"), 0.30)
	// Transposed given/family order still overlaps on tokens.
	assert.Greater(t, nameSimilarity("ANDERSSON ANNA", "ANNA ANDERSSON"), 0.70)
}

func TestTokenOverlap_Initials(t *testing.T) {
	assert.Equal(t, 1.0, tokenOverlap("A ANDERSSON", "ANNA ANDERSSON"))
	assert.InDelta(t, 1.0/3.0, tokenOverlap("MARIA SVENSSON", "MARIA SVENSON"), 1e-9)
	assert.Equal(t, 0.0, tokenOverlap("", "ANNA"))
}

func TestPhoneticSimilarity(t *testing.T) {
	// Abbreviated form is contained, not penalized.
	assert.Equal(t, 1.0, phoneticSimilarity("A ANDERSSON", "ANNA ANDERSSON"))
	assert.Equal(t, 1.0, phoneticSimilarity("SVENSSON", "SVENSON"))
	assert.Equal(t, 0.0, phoneticSimilarity("BERG", "LUNDGREN"))
}

func TestBirthDateSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"1981-12-18", "1981-12-18", 1.0},
		{"1981-12-18", "1981-12-01", 0.8},
		{"1981-12-18", "1981-03-18", 0.5},
		{"1981-12-18", "1982-12-18", 0.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, birthDateSimilarity(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}

func TestIdentifierSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, identifierSimilarity([]string{"19811218-9876"}, []string{"198112189876"}))
	assert.Equal(t, 0.6, identifierSimilarity([]string{"811218-9876"}, []string{"811218-1234"}))
	assert.Equal(t, 0.0, identifierSimilarity([]string{"556036-0793"}, []string{"811218-9876"}))
}

func TestJaroWinkler(t *testing.T) {
	assert.Equal(t, 1.0, jaroWinkler("MARTHA", "MARTHA"))
	assert.InDelta(t, 0.961, jaroWinkler("MARTHA", "MARHTA"), 0.001)
	assert.Equal(t, 0.0, jaroWinkler("", "MARTHA"))
}

func TestLevenshteinSimilarity_MultiByteLetters(t *testing.T) {
	// One substitution out of seven runes; the two-byte Ö must not stretch
	// the denominator.
	assert.InDelta(t, 1.0-1.0/7.0, levenshteinSimilarity("SJÖGREN", "SJOGREN"), 1e-9)
	// The score only depends on rune positions, not encoding width.
	assert.Equal(t,
		levenshteinSimilarity("SJQGREN", "SJOGREN"),
		levenshteinSimilarity("SJÖGREN", "SJOGREN"))
}

func TestJaroWinkler_MultiByteLetters(t *testing.T) {
	assert.Equal(t, 1.0, jaroWinkler("ÅSA ÖSTLUND", "ÅSA ÖSTLUND"))
	assert.Equal(t,
		jaroWinkler("SJQGREN", "SJOGREN"),
		jaroWinkler("SJÖGREN", "SJOGREN"))
}

func TestCompare_AbbreviatedPersonScoresAboveAutoThreshold(t *testing.T) {
	cfg := testConfig(t)
	a := &model.Mention{
		ID: "m-1", Type: model.MentionPerson, SurfaceForm: "Anna Andersson",
		Attributes: model.Attributes{Person: &model.PersonAttributes{
			BirthDate: "1981-12-18", Street: "Storgatan 1", PostalCode: "113 55",
		}},
	}
	b := &model.Mention{
		ID: "m-2", Type: model.MentionPerson, SurfaceForm: "A. Andersson",
		Attributes: model.Attributes{Person: &model.PersonAttributes{
			BirthDate: "1981-12-18", Street: "Storgatan 1", PostalCode: "113 55",
		}},
	}
	cmp := CompareMentions(a, b, cfg)
	assert.GreaterOrEqual(t, cmp.Overall, cfg.AutoMatchThreshold)
	assert.Contains(t, cmp.Features, model.FeatureName)
	assert.Contains(t, cmp.Features, model.FeatureBirthDate)
	assert.NotContains(t, cmp.Features, model.FeatureIdentifier)
}

func TestCompare_SharedNameOnlyLandsInReviewBand(t *testing.T) {
	cfg := testConfig(t)
	m := &model.Mention{
		ID: "m-1", Type: model.MentionPerson, SurfaceForm: "Maria Svenson",
		Attributes: model.Attributes{Person: &model.PersonAttributes{PostalCode: "114 55"}},
	}
	e := &model.Entity{
		ID: "e-1", Type: model.MentionPerson, Status: model.EntityActive,
		Name:       "Maria Svensson",
		Attributes: model.Attributes{Person: &model.PersonAttributes{PostalCode: "114 55"}},
	}
	cmp := Compare(m, e, cfg)
	assert.GreaterOrEqual(t, cmp.Overall, cfg.AutoRejectThreshold)
	assert.Less(t, cmp.Overall, cfg.AutoMatchThreshold)
}

func TestCompare_MissingFeaturesRenormalized(t *testing.T) {
	cfg := testConfig(t)
	m := &model.Mention{ID: "m-1", Type: model.MentionPerson, SurfaceForm: "Anna Andersson"}
	e := &model.Entity{
		ID: "e-1", Type: model.MentionPerson, Status: model.EntityActive,
		Name: "Anna Andersson",
	}
	cmp := Compare(m, e, cfg)
	// Name and phonetic agree perfectly; nothing else is present to drag
	// the renormalized overall down.
	assert.Equal(t, 1.0, cmp.Overall)
	assert.NotContains(t, cmp.Features, model.FeatureAddress)
}

func TestCompare_Deterministic(t *testing.T) {
	cfg := testConfig(t)
	m := &model.Mention{ID: "m-1", Type: model.MentionCompany, SurfaceForm: "Nordström Bygg AB"}
	e := &model.Entity{ID: "e-1", Type: model.MentionCompany, Name: "Nordström Bygg Aktiebolag"}
	first := Compare(m, e, cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Compare(m, e, cfg))
	}
	assert.Equal(t, 1.0, first.Features[model.FeatureName])
}
