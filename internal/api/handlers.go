package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/procedure-suggest-server/internal/domain"
	"github.com/procedure-suggest-server/internal/repository"
	"github.com/procedure-suggest-server/internal/service"
)

// recordSessionRequest is the POST /sessions body.
type recordSessionRequest struct {
	ControlNames []string `json:"control_names" binding:"required"`
	FacilityType string   `json:"facility_type"`
}

// handleSuggestions computes suggestions for the posted session snapshot.
func (s *Server) handleSuggestions(c *gin.Context) {
	var req service.SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Threshold != nil && (*req.Threshold < 0 || *req.Threshold > 100) {
		s.badRequest(c, "threshold must be between 0 and 100")
		return
	}
	if req.MaxResults != nil && *req.MaxResults < 0 {
		s.badRequest(c, "max_results must not be negative")
		return
	}

	suggestions, err := s.suggestions.Suggest(c.Request.Context(), req)
	if err != nil {
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

// handleRecordSession folds a completed session into the counters.
func (s *Server) handleRecordSession(c *gin.Context) {
	var req recordSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if len(req.ControlNames) == 0 {
		s.badRequest(c, "control_names must not be empty")
		return
	}

	if err := s.suggestions.RecordSession(c.Request.Context(), req.ControlNames); err != nil {
		s.internalError(c, err)
		return
	}

	// Append to the raw session log when configured. A log failure does not
	// fail the request: the counters already hold the session.
	if s.sessions != nil {
		record := &repository.SessionRecord{
			FacilityType: req.FacilityType,
			ControlNames: req.ControlNames,
		}
		if err := s.sessions.Save(c.Request.Context(), record); err != nil {
			s.log.WithError(err).Warn("Failed to append session to log")
		}
	}

	c.JSON(http.StatusAccepted, gin.H{
		"recorded": len(req.ControlNames),
	})
}

// handleListSessions pages through the session log, newest first.
func (s *Server) handleListSessions(c *gin.Context) {
	if s.sessions == nil {
		s.sessionLogUnavailable(c)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		s.badRequest(c, "limit must be between 1 and 500")
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		s.badRequest(c, "offset must not be negative")
		return
	}

	records, err := s.sessions.ListRecent(c.Request.Context(), limit, offset)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if records == nil {
		records = []*repository.SessionRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": records,
		"count":    len(records),
	})
}

// handleGetSession returns one session log entry by ID.
func (s *Server) handleGetSession(c *gin.Context) {
	if s.sessions == nil {
		s.sessionLogUnavailable(c)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.badRequest(c, "invalid session id")
		return
	}

	record, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, domain.NewServiceError(
				domain.ErrRecordMissing,
				"session not found",
				"",
				c.GetString("request_id"),
			))
			return
		}
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleRebuildPredictions replays the session log into a fresh aggregate
// and replaces the counter store contents with it.
func (s *Server) handleRebuildPredictions(c *gin.Context) {
	if s.sessions == nil {
		s.sessionLogUnavailable(c)
		return
	}

	data, err := s.sessions.Rebuild(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}

	if err := s.suggestions.ReplacePredictions(c.Request.Context(), data); err != nil {
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"procedures": len(data.ProcedureAddCounts),
	})
}

func (s *Server) sessionLogUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, domain.NewServiceError(
		domain.ErrDatabaseError,
		"session log is not configured",
		"",
		c.GetString("request_id"),
	))
}

// handleListProcedures returns every catalog procedure.
func (s *Server) handleListProcedures(c *gin.Context) {
	procedures, err := s.suggestions.Catalog().AllProcedures(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"procedures": procedures,
		"count":      len(procedures),
	})
}

// handleListCategories returns the category tree.
func (s *Server) handleListCategories(c *gin.Context) {
	categories, err := s.suggestions.Catalog().Categories(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
	})
}

// handlePredictionStats returns counter store statistics.
func (s *Server) handlePredictionStats(c *gin.Context) {
	stats, err := s.suggestions.PredictionStats(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// handleExportPredictions streams the aggregate as a JSON download.
func (s *Server) handleExportPredictions(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="predictions.json"`)

	if err := s.suggestions.ExportPredictions(c.Request.Context(), c.Writer); err != nil {
		s.log.WithError(err).Error("Failed to export predictions")
		// Headers are gone; nothing more to send.
	}
}

// handleImportPredictions merges an uploaded aggregate into the store.
func (s *Server) handleImportPredictions(c *gin.Context) {
	procedures, pairs, err := s.suggestions.ImportPredictions(c.Request.Context(), c.Request.Body)
	if err != nil {
		s.badRequest(c, "invalid prediction data: "+err.Error())
		return
	}

	s.log.WithFields(logrus.Fields{
		"procedures": procedures,
		"pairs":      pairs,
	}).Info("Prediction data imported")

	c.JSON(http.StatusOK, gin.H{
		"procedures": procedures,
		"pairs":      pairs,
	})
}

func (s *Server) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, domain.NewServiceError(
		domain.ErrInvalidInput,
		message,
		"",
		c.GetString("request_id"),
	))
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.log.WithError(err).WithField("request_id", c.GetString("request_id")).Error("Request failed")
	c.JSON(http.StatusInternalServerError, domain.NewServiceError(
		domain.ErrInternalServer,
		"internal server error",
		"",
		c.GetString("request_id"),
	))
}
