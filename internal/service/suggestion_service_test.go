package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procedure-suggest-server/internal/cache"
	"github.com/procedure-suggest-server/internal/catalog"
	"github.com/procedure-suggest-server/internal/domain"
	"github.com/procedure-suggest-server/internal/prediction"
)

func testCatalogStore() catalog.Store {
	return catalog.NewMemoryStore([]domain.ProcedureDefinition{
		{ControlName: "chest_tube", Description: "Chest Tube Placement", CategoryID: "thoracic"},
		{ControlName: "thoracentesis", Description: "Thoracentesis", CategoryID: "thoracic"},
		{ControlName: "pleural_biopsy", Description: "Pleural Biopsy", CategoryID: "thoracic"},
	}, []domain.Category{{ID: "thoracic", Name: "Thoracic"}})
}

func newTestService(t *testing.T, settings domain.SuggestionSettings, withCache bool) *SuggestionService {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store, err := prediction.NewSQLiteStore(filepath.Join(t.TempDir(), "predictions.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})

	var responses *cache.SuggestionCache
	if withCache {
		responses, err = cache.NewSuggestionCache(cache.SuggestionCacheConfig{
			MaxEntries: 16,
			MemoryTTL:  time.Minute,
		}, logger)
		require.NoError(t, err)
		t.Cleanup(func() {
			responses.Close()
		})
	}

	return NewSuggestionService(settings, testCatalogStore(), store, responses, logger)
}

func seedSessions(t *testing.T, svc *SuggestionService, sessions [][]string) {
	t.Helper()
	ctx := context.Background()
	for _, names := range sessions {
		require.NoError(t, svc.RecordSession(ctx, names))
	}
}

func TestSuggestionService_Suggest(t *testing.T) {
	svc := newTestService(t, domain.DefaultSuggestionSettings(), false)
	ctx := context.Background()

	// chest_tube was added 4 times; thoracentesis followed it 3 times.
	seedSessions(t, svc, [][]string{
		{"chest_tube", "thoracentesis"},
		{"chest_tube", "thoracentesis"},
		{"chest_tube", "thoracentesis"},
		{"chest_tube"},
	})

	suggestions, err := svc.Suggest(ctx, SuggestRequest{SessionIDs: []string{"chest_tube"}})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "thoracentesis", suggestions[0].Procedure.ControlName)
	assert.Equal(t, 75, suggestions[0].Confidence)
}

func TestSuggestionService_SuggestDisabled(t *testing.T) {
	settings := domain.DefaultSuggestionSettings()
	settings.Enabled = false
	svc := newTestService(t, settings, false)

	seedSessions(t, svc, [][]string{
		{"chest_tube", "thoracentesis"},
		{"chest_tube", "thoracentesis"},
	})

	suggestions, err := svc.Suggest(context.Background(), SuggestRequest{SessionIDs: []string{"chest_tube"}})
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestSuggestionService_SuggestEmptySession(t *testing.T) {
	svc := newTestService(t, domain.DefaultSuggestionSettings(), false)

	suggestions, err := svc.Suggest(context.Background(), SuggestRequest{})
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestSuggestionService_ThresholdOverride(t *testing.T) {
	svc := newTestService(t, domain.DefaultSuggestionSettings(), false)
	ctx := context.Background()

	// 1 co-occurrence out of 4 adds: 25%, below the default 30 threshold.
	seedSessions(t, svc, [][]string{
		{"chest_tube", "thoracentesis"},
		{"chest_tube"},
		{"chest_tube"},
		{"chest_tube"},
	})

	suggestions, err := svc.Suggest(ctx, SuggestRequest{SessionIDs: []string{"chest_tube"}})
	require.NoError(t, err)
	assert.Empty(t, suggestions)

	lower := 20.0
	suggestions, err = svc.Suggest(ctx, SuggestRequest{
		SessionIDs: []string{"chest_tube"},
		Threshold:  &lower,
	})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, 25, suggestions[0].Confidence)
}

func TestSuggestionService_CacheInvalidatedByRecord(t *testing.T) {
	svc := newTestService(t, domain.DefaultSuggestionSettings(), true)
	ctx := context.Background()

	seedSessions(t, svc, [][]string{
		{"chest_tube", "thoracentesis"},
		{"chest_tube", "thoracentesis"},
	})

	first, err := svc.Suggest(ctx, SuggestRequest{SessionIDs: []string{"chest_tube"}})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 100, first[0].Confidence)

	// New evidence shifts the ratio; the revision bump must bypass the
	// cached 100% answer.
	seedSessions(t, svc, [][]string{
		{"chest_tube"},
		{"chest_tube"},
	})

	second, err := svc.Suggest(ctx, SuggestRequest{SessionIDs: []string{"chest_tube"}})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 50, second[0].Confidence)
}

func TestSuggestionService_PredictionStats(t *testing.T) {
	svc := newTestService(t, domain.DefaultSuggestionSettings(), false)
	ctx := context.Background()

	seedSessions(t, svc, [][]string{
		{"chest_tube", "thoracentesis"},
		{"chest_tube"},
	})

	stats, err := svc.PredictionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TrackedProcedures)
	assert.Equal(t, int64(2), stats.Revision)
	assert.Equal(t, 3, stats.TotalAdds)
}

func TestSuggestionService_ExportImport(t *testing.T) {
	source := newTestService(t, domain.DefaultSuggestionSettings(), false)
	target := newTestService(t, domain.DefaultSuggestionSettings(), false)
	ctx := context.Background()

	seedSessions(t, source, [][]string{
		{"chest_tube", "thoracentesis"},
		{"chest_tube", "thoracentesis"},
	})

	var buf bytes.Buffer
	require.NoError(t, source.ExportPredictions(ctx, &buf))

	procedures, pairs, err := target.ImportPredictions(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, procedures)
	assert.Equal(t, 1, pairs)

	suggestions, err := target.Suggest(ctx, SuggestRequest{SessionIDs: []string{"chest_tube"}})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, 100, suggestions[0].Confidence)
}
