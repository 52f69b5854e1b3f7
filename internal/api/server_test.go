package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procedure-suggest-server/internal/catalog"
	"github.com/procedure-suggest-server/internal/domain"
	"github.com/procedure-suggest-server/internal/prediction"
	"github.com/procedure-suggest-server/internal/service"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store, err := prediction.NewSQLiteStore(filepath.Join(t.TempDir(), "predictions.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})

	catalogStore := catalog.NewMemoryStore([]domain.ProcedureDefinition{
		{ControlName: "chest_tube", Description: "Chest Tube Placement", CategoryID: "thoracic"},
		{ControlName: "thoracentesis", Description: "Thoracentesis", CategoryID: "thoracic"},
	}, []domain.Category{{ID: "thoracic", Name: "Thoracic"}})

	svc := service.NewSuggestionService(domain.DefaultSuggestionSettings(), catalogStore, store, nil, logger)
	return NewServer(ServerConfig{}, svc, logger)
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func recordSessions(t *testing.T, server *Server, sessions [][]string) {
	t.Helper()
	for _, names := range sessions {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/sessions", jsonBody{"control_names": names})
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	}
}

type jsonBody = map[string]any

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestSuggestionsEndpoint(t *testing.T) {
	server := newTestServer(t)

	recordSessions(t, server, [][]string{
		{"chest_tube", "thoracentesis"},
		{"chest_tube", "thoracentesis"},
		{"chest_tube", "thoracentesis"},
		{"chest_tube"},
	})

	rec := doJSON(t, server, http.MethodPost, "/api/v1/suggestions", jsonBody{
		"session_ids": []string{"chest_tube"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Suggestions []domain.ProcedureSuggestion `json:"suggestions"`
		Count       int                          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "thoracentesis", body.Suggestions[0].Procedure.ControlName)
	assert.Equal(t, 75, body.Suggestions[0].Confidence)
}

func TestSuggestionsEndpoint_EmptySession(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/suggestions", jsonBody{
		"session_ids": []string{},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Count)
}

func TestSuggestionsEndpoint_InvalidThreshold(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/suggestions", jsonBody{
		"session_ids": []string{"chest_tube"},
		"threshold":   150,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordSessionEndpoint_Validation(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/sessions", jsonBody{
		"control_names": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader("not json"))
	rec2 := httptest.NewRecorder()
	server.Router().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/catalog/procedures", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/catalog/categories", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPredictionStatsEndpoint(t *testing.T) {
	server := newTestServer(t)

	recordSessions(t, server, [][]string{
		{"chest_tube", "thoracentesis"},
	})

	rec := doJSON(t, server, http.MethodGet, "/api/v1/predictions/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats service.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.TrackedProcedures)
	assert.Equal(t, 2, stats.TotalAdds)
}

func TestExportImportEndpoints(t *testing.T) {
	source := newTestServer(t)
	target := newTestServer(t)

	recordSessions(t, source, [][]string{
		{"chest_tube", "thoracentesis"},
		{"chest_tube", "thoracentesis"},
	})

	exportRec := doJSON(t, source, http.MethodGet, "/api/v1/predictions/export", nil)
	require.Equal(t, http.StatusOK, exportRec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predictions/import", bytes.NewReader(exportRec.Body.Bytes()))
	rec := httptest.NewRecorder()
	target.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Procedures int `json:"procedures"`
		Pairs      int `json:"pairs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Procedures)
	assert.Equal(t, 1, body.Pairs)
}

func TestImportEndpoint_RejectsGarbage(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predictions/import", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	server := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec2 := httptest.NewRecorder()
	server.Router().ServeHTTP(rec2, req)
	assert.Equal(t, "fixed-id", rec2.Header().Get("X-Request-ID"))
}

func TestRateLimiting(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store, err := prediction.NewSQLiteStore(filepath.Join(t.TempDir(), "predictions.db"))
	require.NoError(t, err)
	defer store.Close()

	catalogStore := catalog.NewMemoryStore(nil, nil)
	svc := service.NewSuggestionService(domain.DefaultSuggestionSettings(), catalogStore, store, nil, logger)
	server := NewServer(ServerConfig{RateLimitRPS: 1, RateBurst: 2}, svc, logger)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		rec := doJSON(t, server, http.MethodGet, "/health", nil)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[3])
}

func TestLiveSuggestionsWebSocket(t *testing.T) {
	server := newTestServer(t)

	recordSessions(t, server, [][]string{
		{"chest_tube", "thoracentesis"},
		{"chest_tube", "thoracentesis"},
	})

	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/suggestions/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"session_ids": []string{"chest_tube"},
	}))

	var update struct {
		Suggestions []domain.ProcedureSuggestion `json:"suggestions"`
		Count       int                          `json:"count"`
		Error       string                       `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&update))
	assert.Empty(t, update.Error)
	require.Equal(t, 1, update.Count)
	assert.Equal(t, "thoracentesis", update.Suggestions[0].Procedure.ControlName)
	assert.Equal(t, 100, update.Suggestions[0].Confidence)

	// A second snapshot on the same socket gets a fresh answer.
	require.NoError(t, conn.WriteJSON(map[string]any{
		"session_ids": []string{"thoracentesis"},
	}))
	require.NoError(t, conn.ReadJSON(&update))
	assert.Zero(t, update.Count)
}
