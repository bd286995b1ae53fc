package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/prospect-reports/internal/ingestion"
	"github.com/jonathan/prospect-reports/internal/server/middleware"
	"github.com/jonathan/prospect-reports/internal/types"
)

// maxListLimit caps the page size of GET /reports.
const maxListLimit = 500

// CreateBatchResponse is returned by POST /batches.
type CreateBatchResponse struct {
	BatchID  string                  `json:"batch_id"`
	Jobs     []types.Job             `json:"jobs"`
	Rejected []ingestion.RejectedRow `json:"rejected"`
}

// InsightsResponse is returned by POST /reports/{id}/insights.
type InsightsResponse struct {
	ReportID string `json:"report_id"`
	Company  string `json:"company_name"`
	Insights string `json:"insights"`
}

// handleCreateBatch parses an uploaded company list and starts a batch.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.GetOwnerID(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errorResponse(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	parsed, err := ingestion.ParseRecords(string(body))
	if err != nil {
		s.respondError(w, err)
		return
	}

	batch, err := s.batches.Start(s.baseCtx, ownerID, parsed.Records)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.registry.add(batch)
	if s.events != nil {
		// outlives the server context so the cancellation of running
		// jobs on shutdown is still published
		forwarded := s.events.Go(context.WithoutCancel(s.baseCtx), batch)
		s.forwarding.Add(1)
		go func() {
			defer s.forwarding.Done()
			<-forwarded
		}()
	}

	s.logger.Info("server: batch accepted",
		zap.String("batch_id", batch.ID),
		zap.String("owner_id", ownerID),
		zap.Int("records", len(parsed.Records)),
		zap.Int("rejected", len(parsed.Rejected)))

	rejected := parsed.Rejected
	if rejected == nil {
		rejected = []ingestion.RejectedRow{}
	}
	s.jsonResponse(w, http.StatusAccepted, CreateBatchResponse{
		BatchID:  batch.ID,
		Jobs:     batch.Snapshot().Jobs,
		Rejected: rejected,
	})
}

// handleGetBatch returns the current snapshot of a batch.
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.GetOwnerID(r)
	batch, ok := s.registry.get(r.PathValue("id"), ownerID)
	if !ok {
		s.respondError(w, ErrBatchNotFound)
		return
	}
	s.jsonResponse(w, http.StatusOK, batch.Snapshot())
}

// handleBatchEvents streams a batch snapshot followed by its progress events.
func (s *Server) handleBatchEvents(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.GetOwnerID(r)
	batch, ok := s.registry.get(r.PathValue("id"), ownerID)
	if !ok {
		s.respondError(w, ErrBatchNotFound)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	snap, events, cancel := batch.Subscribe()
	defer cancel()

	if err := sse.WriteEvent("snapshot", snap); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				sse.WriteComplete(batch.ID, batch.Summary())
				return
			}
			if err := sse.WriteEvent("progress", ev); err != nil {
				s.logger.Debug("server: event stream closed", zap.String("batch_id", batch.ID), zap.Error(err))
				return
			}
		}
	}
}

// handleListReports lists stored outcomes for an owner, newest first.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		s.respondError(w, ErrStoreDisabled)
		return
	}

	ownerID := strings.TrimSpace(r.URL.Query().Get("owner"))
	if ownerID == "" {
		ownerID = strings.TrimSpace(r.Header.Get(middleware.OwnerHeader))
	}
	if ownerID == "" {
		s.errorResponse(w, http.StatusBadRequest, "owner is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			s.errorResponse(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		limit = n
	}

	outcomes, err := s.reports.ListOutcomes(r.Context(), ownerID, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if outcomes == nil {
		outcomes = []types.StoredOutcome{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"owner_id": ownerID,
		"reports":  outcomes,
	})
}

// handleGetReport returns one stored outcome.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	stored, err := s.loadReport(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stored)
}

// handleReportInsights extracts actionable insights from a completed report.
func (s *Server) handleReportInsights(w http.ResponseWriter, r *http.Request) {
	stored, err := s.loadReport(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if s.insights == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "insights are not configured")
		return
	}
	if stored.Status != types.JobCompleted || strings.TrimSpace(stored.FormattedReport) == "" {
		s.respondError(w, &ErrReportNotReady{Status: stored.Status})
		return
	}

	text, err := s.insights.Insights(r.Context(), stored.FormattedReport)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, InsightsResponse{
		ReportID: stored.ID,
		Company:  stored.CompanyName,
		Insights: text,
	})
}

func (s *Server) loadReport(r *http.Request) (*types.StoredOutcome, error) {
	if s.reports == nil {
		return nil, ErrStoreDisabled
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return nil, ErrReportNotFound
	}
	stored, err := s.reports.GetOutcome(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrReportNotFound
	}
	return stored, nil
}
