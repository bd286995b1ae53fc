package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jonathan/prospect-reports/internal/db"
	"github.com/jonathan/prospect-reports/internal/ingestion"
	"github.com/jonathan/prospect-reports/internal/pipeline"
	"github.com/jonathan/prospect-reports/internal/reports"
	"github.com/jonathan/prospect-reports/internal/types"
)

// Handler-level errors.
var (
	ErrBatchNotFound  = errors.New("batch not found")
	ErrReportNotFound = errors.New("report not found")
	ErrStoreDisabled  = errors.New("report storage is not configured")
)

// ErrReportNotReady indicates insights were requested for a report without a
// formatted body.
type ErrReportNotReady struct {
	Status types.JobStatus
}

func (e *ErrReportNotReady) Error() string {
	return "report is not available for insights (status " + string(e.Status) + ")"
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		formatErr   *ingestion.FormatError
		validErr    *types.ValidationError
		notReadyErr *ErrReportNotReady
		writeErr    *db.WriteError
		apiErr      *reports.APICallError
	)

	switch {
	case errors.As(err, &formatErr), errors.As(err, &validErr),
		errors.Is(err, pipeline.ErrEmptyBatch), errors.Is(err, pipeline.ErrOwnerRequired):
		return http.StatusBadRequest
	case errors.Is(err, ErrBatchNotFound), errors.Is(err, ErrReportNotFound), db.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &notReadyErr):
		return http.StatusConflict
	case errors.Is(err, ErrStoreDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.As(err, &writeErr):
		return writeErrorStatus(writeErr)
	default:
		return http.StatusInternalServerError
	}
}

func writeErrorStatus(err *db.WriteError) int {
	switch err.Code {
	case db.CodeInvalid, db.CodeConstraint:
		return http.StatusBadRequest
	case db.CodePermission:
		return http.StatusForbidden
	case db.CodeConflict:
		return http.StatusConflict
	case db.CodeNotFound:
		return http.StatusNotFound
	case db.CodeUnavailable:
		return http.StatusServiceUnavailable
	case db.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// storeRetryAfter is the Retry-After hint sent when storage is temporarily
// unavailable.
const storeRetryAfter = "5"

// respondError writes err with the status HTTPStatus assigns to it. Server
// errors are logged and their details withheld.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	var writeErr *db.WriteError
	if errors.As(err, &writeErr) && writeErr.Temporary() {
		w.Header().Set("Retry-After", storeRetryAfter)
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusBadGateway {
		s.logger.Error("server: request failed", zap.Error(err))
		s.errorResponse(w, status, http.StatusText(status))
		return
	}
	s.errorResponse(w, status, err.Error())
}
