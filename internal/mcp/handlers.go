package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/procedure-suggest-server/internal/service"
)

// SuggestProceduresParams defines parameters for the suggest_procedures tool
type SuggestProceduresParams struct {
	SessionProcedures []string `json:"session_procedures"`
	Threshold         *float64 `json:"threshold,omitempty"`
	MaxResults        *int     `json:"max_results,omitempty"`
}

// SuggestProceduresResult defines the result structure for suggest_procedures
type SuggestProceduresResult struct {
	Suggestions []SuggestionEntry `json:"suggestions"`
	Count       int               `json:"count"`
}

// SuggestionEntry is one ranked suggestion in tool output form
type SuggestionEntry struct {
	ControlName            string `json:"control_name"`
	Description            string `json:"description"`
	Confidence             int    `json:"confidence"`
	CoOccurrenceCount      int    `json:"co_occurrence_count"`
	ContributingProcedures int    `json:"contributing_procedures"`
}

// RecordSessionParams defines parameters for the record_session tool
type RecordSessionParams struct {
	ControlNames []string `json:"control_names"`
	FacilityType string   `json:"facility_type,omitempty"`
}

// PredictionStatsResult defines the result structure for prediction_stats
type PredictionStatsResult struct {
	TrackedProcedures int64 `json:"tracked_procedures"`
	Revision          int64 `json:"revision"`
	TotalAdds         int   `json:"total_adds"`
}

// ListProceduresResult defines the result structure for list_procedures
type ListProceduresResult struct {
	Procedures []ProcedureEntry `json:"procedures"`
	Count      int              `json:"count"`
}

// ProcedureEntry is one catalog procedure in tool output form
type ProcedureEntry struct {
	ControlName   string `json:"control_name"`
	Description   string `json:"description"`
	CategoryID    string `json:"category_id"`
	SubcategoryID string `json:"subcategory_id,omitempty"`
}

// unmarshalArgs converts the SDK's loosely typed tool arguments into a typed
// parameter struct by round-tripping through JSON.
func unmarshalArgs(args any, v any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// handleSuggestProcedures handles the suggest_procedures tool invocation
func (s *LiteServer) handleSuggestProcedures(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "suggest_procedures").Info("Tool invoked")

	var params SuggestProceduresParams
	if err := unmarshalArgs(req.Params.Arguments, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}

	if len(params.SessionProcedures) == 0 {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("session_procedures is required")), nil
	}
	if params.Threshold != nil && (*params.Threshold < 0 || *params.Threshold > 100) {
		return s.createErrorResult("Invalid parameter", fmt.Errorf("threshold must be between 0 and 100")), nil
	}
	if params.MaxResults != nil && *params.MaxResults < 0 {
		return s.createErrorResult("Invalid parameter", fmt.Errorf("max_results must not be negative")), nil
	}

	suggestions, err := s.suggestions.Suggest(ctx, service.SuggestRequest{
		SessionIDs: params.SessionProcedures,
		Threshold:  params.Threshold,
		MaxResults: params.MaxResults,
	})
	if err != nil {
		return s.createErrorResult("Suggestion query failed", err), nil
	}

	result := SuggestProceduresResult{
		Suggestions: make([]SuggestionEntry, 0, len(suggestions)),
		Count:       len(suggestions),
	}
	names := make([]string, 0, len(suggestions))
	for _, sg := range suggestions {
		result.Suggestions = append(result.Suggestions, SuggestionEntry{
			ControlName:            sg.Procedure.ControlName,
			Description:            sg.Procedure.Description,
			Confidence:             sg.Confidence,
			CoOccurrenceCount:      sg.CoOccurrenceCount,
			ContributingProcedures: sg.ContributingProcedures,
		})
		names = append(names, fmt.Sprintf("%s (%d%%)", sg.Procedure.ControlName, sg.Confidence))
	}

	text := "No additional procedures suggested for this session"
	if len(names) > 0 {
		text = fmt.Sprintf("Suggested procedures: %s", strings.Join(names, ", "))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		Meta: map[string]interface{}{
			"result": result,
		},
	}, nil
}

// handleRecordSession handles the record_session tool invocation
func (s *LiteServer) handleRecordSession(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "record_session").Info("Tool invoked")

	var params RecordSessionParams
	if err := unmarshalArgs(req.Params.Arguments, &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}

	if len(params.ControlNames) == 0 {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("control_names is required")), nil
	}

	if err := s.suggestions.RecordSession(ctx, params.ControlNames); err != nil {
		return s.createErrorResult("Failed to record session", err), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("Recorded session with %d procedures", len(params.ControlNames)),
			},
		},
		Meta: map[string]interface{}{
			"recorded": len(params.ControlNames),
		},
	}, nil
}

// handlePredictionStats handles the prediction_stats tool invocation
func (s *LiteServer) handlePredictionStats(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "prediction_stats").Info("Tool invoked")

	stats, err := s.suggestions.PredictionStats(ctx)
	if err != nil {
		return s.createErrorResult("Failed to read prediction stats", err), nil
	}

	result := PredictionStatsResult{
		TrackedProcedures: stats.TrackedProcedures,
		Revision:          stats.Revision,
		TotalAdds:         stats.TotalAdds,
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("Tracking %d procedures across %d recorded adds (revision %d)",
					result.TrackedProcedures, result.TotalAdds, result.Revision),
			},
		},
		Meta: map[string]interface{}{
			"result": result,
		},
	}, nil
}

// handleListProcedures handles the list_procedures tool invocation
func (s *LiteServer) handleListProcedures(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "list_procedures").Info("Tool invoked")

	procedures, err := s.catalogStore.AllProcedures(ctx)
	if err != nil {
		return s.createErrorResult("Failed to load catalog", err), nil
	}

	result := ListProceduresResult{
		Procedures: make([]ProcedureEntry, 0, len(procedures)),
		Count:      len(procedures),
	}
	for _, p := range procedures {
		result.Procedures = append(result.Procedures, ProcedureEntry{
			ControlName:   p.ControlName,
			Description:   p.Description,
			CategoryID:    p.CategoryID,
			SubcategoryID: p.SubcategoryID,
		})
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("Catalog contains %d procedures", result.Count),
			},
		},
		Meta: map[string]interface{}{
			"result": result,
		},
	}, nil
}

// createErrorResult creates a standardized error result for tool calls
func (s *LiteServer) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
