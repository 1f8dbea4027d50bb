package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/tally/internal/domain/assignment"
	"github.com/okian/tally/internal/domain/dedupe"
	"github.com/okian/tally/internal/domain/errs"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/metrics"
)

// Idempotency headers of POST /assignments.
const (
	IdempotencyKeyHeader     = "Idempotency-Key"
	IdempotentReplayedHeader = "Idempotent-Replayed"
)

// AssignmentsHandler serves /assignments.
type AssignmentsHandler struct {
	base
	svc  AssignmentService
	keys *dedupe.Tracker[[]model.Assignment]
}

// HandleCreate handles POST /assignments. A request repeated with the same
// Idempotency-Key gets the rows of the first one instead of new rows.
func (h *AssignmentsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_assignments"
	var req assignment.CreateRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key != "" {
		rows, seen, err := h.keys.SeenAndRecord(r.Context(), key)
		if errors.Is(err, dedupe.ErrInFlight) {
			h.fail(w, r, errs.AlreadyExistsf(op, "%v", err))
			return
		}
		if seen {
			w.Header().Set(IdempotentReplayedHeader, "true")
			writeJSON(w, http.StatusCreated, rows)
			return
		}
	}

	rows, err := h.svc.Create(r.Context(), req)
	if err != nil {
		if key != "" {
			h.keys.Unrecord(r.Context(), key)
		}
		h.fail(w, r, err)
		return
	}
	if key != "" {
		h.keys.Complete(r.Context(), key, rows)
	}
	metrics.RecordAssignmentsCreated(string(req.ItemType), len(rows))
	writeJSON(w, http.StatusCreated, rows)
}

// HandleValidate handles POST /assignments/validate.
func (h *AssignmentsHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	const op = "api.validate_assignments"
	var req assignment.CreateRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Validate(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleList handles GET /assignments with at most one filter:
// ?personId=, ?start=&end= or ?recent=.
func (h *AssignmentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_assignments"
	rows, err := h.list(r, op)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *AssignmentsHandler) list(r *http.Request, op string) ([]model.Assignment, error) {
	personID, byPerson, err := queryInt64(r, op, "personId")
	if err != nil {
		return nil, err
	}
	recent, byRecent, err := queryInt64(r, op, "recent")
	if err != nil {
		return nil, err
	}
	start, hasStart, err := queryTime(r, op, "start", h.loc)
	if err != nil {
		return nil, err
	}
	end, hasEnd, err := queryTime(r, op, "end", h.loc)
	if err != nil {
		return nil, err
	}
	byRange := hasStart || hasEnd

	filters := 0
	for _, on := range []bool{byPerson, byRecent, byRange} {
		if on {
			filters++
		}
	}
	switch {
	case filters > 1:
		return nil, errs.Validationf(op, "use only one of personId, start/end or recent")
	case byRange && !(hasStart && hasEnd):
		return nil, errs.Validationf(op, "start and end must be given together")
	case byPerson:
		return h.svc.ListByPerson(r.Context(), personID)
	case byRecent:
		return h.svc.Recent(r.Context(), int(recent))
	case byRange:
		return h.svc.ListByDateRange(r.Context(), start, end)
	}
	return h.svc.List(r.Context())
}

// HandleStats handles GET /assignments/stats.
func (h *AssignmentsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleGet handles GET /assignments/{id}.
func (h *AssignmentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "api.get_assignment")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleDelete handles DELETE /assignments/{id}.
func (h *AssignmentsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "api.delete_assignment")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	metrics.RecordAssignmentDeleted()
	w.WriteHeader(http.StatusNoContent)
}
