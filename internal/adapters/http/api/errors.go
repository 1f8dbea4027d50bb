package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/tally/internal/domain/assignment"
	"github.com/okian/tally/internal/domain/errs"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Error codes returned in the body of failed requests.
const (
	CodeValidation     = "validation_error"
	CodeNotFound       = "not_found"
	CodeAlreadyExists  = "already_exists"
	CodeBusinessRule   = "business_rule_violation"
	CodePartialFailure = "partial_failure"
	CodeInternal       = "internal_error"
)

type errorResponse struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Created []model.Assignment `json:"created,omitempty"`
}

// statusOf maps a domain error kind to its HTTP status and code.
func statusOf(err error) (int, string) {
	switch {
	case errs.IsValidation(err):
		return http.StatusBadRequest, CodeValidation
	case errs.IsNotFound(err):
		return http.StatusNotFound, CodeNotFound
	case errs.IsAlreadyExists(err):
		return http.StatusConflict, CodeAlreadyExists
	case errs.IsBusinessRule(err):
		return http.StatusUnprocessableEntity, CodeBusinessRule
	}
	return http.StatusInternalServerError, CodeInternal
}

// messageOf strips the operation prefix from domain errors and hides the
// details of infrastructure failures.
func messageOf(err error, status int) string {
	var de *errs.Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}

// base carries what every handler shares.
type base struct {
	log logger.Logger
	loc *time.Location
}

// fail writes err as an error response. A partial fan-out is always a
// server failure, whatever stopped it, and reports the committed rows.
func (b base) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		resp   errorResponse
		batch  *assignment.BatchError
	)
	if errors.As(err, &batch) {
		status = http.StatusInternalServerError
		msg := fmt.Sprintf("assignment fan-out stopped at person %d after %d rows",
			batch.FailedPersonID, len(batch.Created))
		resp = errorResponse{Code: CodePartialFailure, Message: msg, Created: batch.Created}
	} else {
		var code string
		status, code = statusOf(err)
		resp = errorResponse{Code: code, Message: messageOf(err, status)}
	}

	if status >= http.StatusInternalServerError {
		b.log.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	} else {
		metrics.RecordRejected(resp.Code)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
