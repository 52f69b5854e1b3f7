package suggest

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procedure-suggest-server/internal/domain"
)

func newTestProvider(t *testing.T) *LocalProvider {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewLocalProvider(logger)
}

func proc(controlName, description string) domain.ProcedureDefinition {
	return domain.ProcedureDefinition{
		ControlName: controlName,
		Description: description,
		CategoryID:  "test",
	}
}

// testCatalog returns a small catalog with no variant collisions.
func testCatalog() []domain.ProcedureDefinition {
	return []domain.ProcedureDefinition{
		proc("chest_tube", "Chest Tube Placement"),
		proc("thoracentesis", "Thoracentesis"),
		proc("paracentesis", "Paracentesis"),
		proc("picc_line", "PICC Line Placement"),
		proc("drain_check", "Drain Check"),
	}
}

func TestGetSuggestions_EmptySession(t *testing.T) {
	provider := newTestProvider(t)

	data := domain.NewPredictionData()
	data.ProcedureAddCounts["chest_tube"] = 10
	data.CoOccurrences["chest_tube"] = map[string]int{"thoracentesis": 5}

	result := provider.GetSuggestions(context.Background(), nil, testCatalog(), data, 0, 10)

	assert.Empty(t, result)
}

func TestGetSuggestions_NoSelfOrSessionMembers(t *testing.T) {
	provider := newTestProvider(t)

	data := domain.NewPredictionData()
	data.ProcedureAddCounts["chest_tube"] = 10
	data.ProcedureAddCounts["thoracentesis"] = 10
	// An anchor pointing back at itself and at another session member.
	data.CoOccurrences["chest_tube"] = map[string]int{
		"chest_tube":    9,
		"thoracentesis": 9,
		"paracentesis":  5,
	}

	result := provider.GetSuggestions(context.Background(),
		[]string{"chest_tube", "thoracentesis"}, testCatalog(), data, 0, 10)

	require.Len(t, result, 1)
	assert.Equal(t, "paracentesis", result[0].Procedure.ControlName)
}

func TestGetSuggestions_MinSampleSizeGating(t *testing.T) {
	provider := newTestProvider(t)

	// Anchor seen only once: below MinSampleSize, so even a perfect
	// co-occurrence ratio contributes nothing.
	data := domain.NewPredictionData()
	data.ProcedureAddCounts["chest_tube"] = 1
	data.CoOccurrences["chest_tube"] = map[string]int{"thoracentesis": 1}

	result := provider.GetSuggestions(context.Background(),
		[]string{"chest_tube"}, testCatalog(), data, 0, 10)

	assert.Empty(t, result)
}

func TestGetSuggestions_MissingAddCount(t *testing.T) {
	provider := newTestProvider(t)

	// Co-occurrence rows without a matching add count are ignored.
	data := domain.NewPredictionData()
	data.CoOccurrences["chest_tube"] = map[string]int{"thoracentesis": 50}

	result := provider.GetSuggestions(context.Background(),
		[]string{"chest_tube"}, testCatalog(), data, 0, 10)

	assert.Empty(t, result)
}

func TestGetSuggestions_UnknownCandidateSkipped(t *testing.T) {
	provider := newTestProvider(t)

	data := domain.NewPredictionData()
	data.ProcedureAddCounts["chest_tube"] = 10
	data.CoOccurrences["chest_tube"] = map[string]int{
		"retired_procedure": 8, // no longer in the catalog
		"thoracentesis":     5,
	}

	result := provider.GetSuggestions(context.Background(),
		[]string{"chest_tube"}, testCatalog(), data, 0, 10)

	require.Len(t, result, 1)
	assert.Equal(t, "thoracentesis", result[0].Procedure.ControlName)
}

func TestGetSuggestions_NoisyORCombination(t *testing.T) {
	provider := newTestProvider(t)

	// Anchors A and B both point at thoracentesis: 4/10 and 3/10.
	// Combined: 1 - 0.6*0.7 = 0.58 -> 58.
	data := domain.NewPredictionData()
	data.ProcedureAddCounts["chest_tube"] = 10
	data.ProcedureAddCounts["paracentesis"] = 10
	data.CoOccurrences["chest_tube"] = map[string]int{"thoracentesis": 4}
	data.CoOccurrences["paracentesis"] = map[string]int{"thoracentesis": 3}

	result := provider.GetSuggestions(context.Background(),
		[]string{"chest_tube", "paracentesis"}, testCatalog(), data, 0, 10)

	require.Len(t, result, 1)
	assert.Equal(t, "thoracentesis", result[0].Procedure.ControlName)
	assert.Equal(t, 58, result[0].Confidence)
	assert.Equal(t, 7, result[0].CoOccurrenceCount)
	assert.Equal(t, 2, result[0].ContributingProcedures)
}

func TestGetSuggestions_NoisyORMonotonicity(t *testing.T) {
	provider := newTestProvider(t)

	// Three anchors at 30% each: 1 - 0.7^3 = 0.657 -> 66, strictly above
	// the two-anchor 1 - 0.7^2 = 0.51 -> 51.
	two := domain.NewPredictionData()
	two.ProcedureAddCounts["chest_tube"] = 10
	two.ProcedureAddCounts["paracentesis"] = 10
	two.CoOccurrences["chest_tube"] = map[string]int{"thoracentesis": 3}
	two.CoOccurrences["paracentesis"] = map[string]int{"thoracentesis": 3}

	three := domain.NewPredictionData()
	three.Merge(two)
	three.ProcedureAddCounts["picc_line"] = 10
	three.CoOccurrences["picc_line"] = map[string]int{"thoracentesis": 3}

	twoResult := provider.GetSuggestions(context.Background(),
		[]string{"chest_tube", "paracentesis"}, testCatalog(), two, 0, 10)
	threeResult := provider.GetSuggestions(context.Background(),
		[]string{"chest_tube", "paracentesis", "picc_line"}, testCatalog(), three, 0, 10)

	require.Len(t, twoResult, 1)
	require.Len(t, threeResult, 1)
	assert.Equal(t, 51, twoResult[0].Confidence)
	assert.Equal(t, 66, threeResult[0].Confidence)
	assert.Greater(t, threeResult[0].Confidence, twoResult[0].Confidence)
}

func TestGetSuggestions_ThresholdBoundary(t *testing.T) {
	provider := newTestProvider(t)

	// thoracentesis sits exactly at 50%, paracentesis at 49%.
	data := domain.NewPredictionData()
	data.ProcedureAddCounts["chest_tube"] = 100
	data.CoOccurrences["chest_tube"] = map[string]int{
		"thoracentesis": 50,
		"paracentesis":  49,
	}

	result := provider.GetSuggestions(context.Background(),
		[]string{"chest_tube"}, testCatalog(), data, 50, 10)

	require.Len(t, result, 1)
	assert.Equal(t, "thoracentesis", result[0].Procedure.ControlName)
	assert.Equal(t, 50, result[0].Confidence)
}

func TestGetSuggestions_VariantSuppression(t *testing.T) {
	provider := newTestProvider(t)

	catalog := []domain.ProcedureDefinition{
		proc("lp_under5", "Lumbar Puncture < 5 years old"),
		proc("lp_over5", "Lumbar Puncture >= 5 years old"),
		proc("sedation", "Moderate Sedation"),
	}

	// Strong historical evidence for the sibling age bracket must still be
	// suppressed while its variant is in the session.
	data := domain.NewPredictionData()
	data.ProcedureAddCounts["lp_under5"] = 10
	data.CoOccurrences["lp_under5"] = map[string]int{
		"lp_over5": 9,
		"sedation": 5,
	}

	result := provider.GetSuggestions(context.Background(),
		[]string{"lp_under5"}, catalog, data, 0, 10)

	require.Len(t, result, 1)
	assert.Equal(t, "sedation", result[0].Procedure.ControlName)
}

func TestGetSuggestions_CustomVariantPredicate(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	// A predicate that never matches disables suppression entirely.
	provider := NewLocalProvider(logger, WithVariantPredicate(
		func(a, b domain.ProcedureDefinition) bool { return false },
	))

	catalog := []domain.ProcedureDefinition{
		proc("lp_under5", "Lumbar Puncture < 5 years old"),
		proc("lp_over5", "Lumbar Puncture >= 5 years old"),
	}

	data := domain.NewPredictionData()
	data.ProcedureAddCounts["lp_under5"] = 10
	data.CoOccurrences["lp_under5"] = map[string]int{"lp_over5": 9}

	result := provider.GetSuggestions(context.Background(),
		[]string{"lp_under5"}, catalog, data, 0, 10)

	require.Len(t, result, 1)
	assert.Equal(t, "lp_over5", result[0].Procedure.ControlName)
}

func TestGetSuggestions_RankingTieBreaks(t *testing.T) {
	provider := newTestProvider(t)

	catalog := []domain.ProcedureDefinition{
		proc("anchor_a", "Anchor A"),
		proc("anchor_b", "Anchor B"),
		proc("anchor_c", "Anchor C"),
		proc("single_source", "Single Source Candidate"),
		proc("dual_source", "Dual Source Candidate"),
	}

	// Both candidates combine to exactly 50% confidence:
	//   single_source: one anchor at 1/2.
	//   dual_source:   1 - (3/4)*(2/3) = 1/2 from two anchors.
	// Equal confidence, so the two-contributor candidate ranks first.
	data := domain.NewPredictionData()
	data.ProcedureAddCounts["anchor_a"] = 4
	data.ProcedureAddCounts["anchor_b"] = 3
	data.ProcedureAddCounts["anchor_c"] = 2
	data.CoOccurrences["anchor_a"] = map[string]int{"dual_source": 1}
	data.CoOccurrences["anchor_b"] = map[string]int{"dual_source": 1}
	data.CoOccurrences["anchor_c"] = map[string]int{"single_source": 1}

	result := provider.GetSuggestions(context.Background(),
		[]string{"anchor_a", "anchor_b", "anchor_c"}, catalog, data, 0, 10)

	require.Len(t, result, 2)
	assert.Equal(t, result[0].Confidence, result[1].Confidence)
	assert.Equal(t, "dual_source", result[0].Procedure.ControlName)
	assert.Equal(t, "single_source", result[1].Procedure.ControlName)
}

func TestGetSuggestions_RawSumTieBreak(t *testing.T) {
	provider := newTestProvider(t)

	catalog := []domain.ProcedureDefinition{
		proc("anchor_a", "Anchor A"),
		proc("anchor_b", "Anchor B"),
		proc("heavy_evidence", "Heavy Evidence Candidate"),
		proc("light_evidence", "Light Evidence Candidate"),
	}

	// Same 50% confidence and one contributor each, but 5 raw observations
	// beat 1.
	data := domain.NewPredictionData()
	data.ProcedureAddCounts["anchor_a"] = 10
	data.ProcedureAddCounts["anchor_b"] = 2
	data.CoOccurrences["anchor_a"] = map[string]int{"heavy_evidence": 5}
	data.CoOccurrences["anchor_b"] = map[string]int{"light_evidence": 1}

	result := provider.GetSuggestions(context.Background(),
		[]string{"anchor_a", "anchor_b"}, catalog, data, 0, 10)

	require.Len(t, result, 2)
	assert.Equal(t, "heavy_evidence", result[0].Procedure.ControlName)
	assert.Equal(t, "light_evidence", result[1].Procedure.ControlName)
}

func TestGetSuggestions_MaxResultsTruncation(t *testing.T) {
	provider := newTestProvider(t)

	catalog := []domain.ProcedureDefinition{proc("anchor", "Anchor")}
	data := domain.NewPredictionData()
	data.ProcedureAddCounts["anchor"] = 10
	data.CoOccurrences["anchor"] = map[string]int{}

	// Five candidates with strictly decreasing confidence.
	for i, name := range []string{"c1", "c2", "c3", "c4", "c5"} {
		catalog = append(catalog, proc(name, "Candidate "+name))
		data.CoOccurrences["anchor"][name] = 9 - i
	}

	full := provider.GetSuggestions(context.Background(),
		[]string{"anchor"}, catalog, data, 0, 10)
	require.Len(t, full, 5)

	truncated := provider.GetSuggestions(context.Background(),
		[]string{"anchor"}, catalog, data, 0, 3)
	require.Len(t, truncated, 3)

	// Truncation keeps the head of the ranking untouched.
	for i := range truncated {
		assert.Equal(t, full[i].Procedure.ControlName, truncated[i].Procedure.ControlName)
		assert.Equal(t, full[i].Confidence, truncated[i].Confidence)
	}
}

func TestGetSuggestions_DefaultMaxResults(t *testing.T) {
	provider := newTestProvider(t)

	catalog := []domain.ProcedureDefinition{proc("anchor", "Anchor")}
	data := domain.NewPredictionData()
	data.ProcedureAddCounts["anchor"] = 100
	data.CoOccurrences["anchor"] = map[string]int{}

	for i := 0; i < 15; i++ {
		name := "cand_" + string(rune('a'+i))
		catalog = append(catalog, proc(name, "Candidate "+name))
		data.CoOccurrences["anchor"][name] = 90 - i
	}

	// maxResults <= 0 selects the default cap of 10.
	result := provider.GetSuggestions(context.Background(),
		[]string{"anchor"}, catalog, data, 0, 0)
	assert.Len(t, result, DefaultMaxSuggestions)
}

func TestGetSuggestions_ColdStart(t *testing.T) {
	provider := newTestProvider(t)

	result := provider.GetSuggestions(context.Background(),
		[]string{"chest_tube"}, testCatalog(), domain.NewPredictionData(), 0, 10)

	assert.Empty(t, result)
}
