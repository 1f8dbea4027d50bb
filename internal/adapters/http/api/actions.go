package api

import (
	"net/http"

	"github.com/okian/tally/internal/domain/action"
	"github.com/okian/tally/internal/domain/errs"
	"github.com/okian/tally/internal/domain/model"
)

type actionRequest struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type recommendedValueResponse struct {
	Kind  model.Kind `json:"kind"`
	Value int64      `json:"value"`
}

type severityResponse struct {
	Value    int64          `json:"value"`
	Severity model.Severity `json:"severity"`
}

// ActionsHandler serves /rewards or /punishments, depending on kind.
type ActionsHandler struct {
	base
	svc  ActionService
	kind model.Kind
}

// HandleList handles GET /{kind}s.
func (h *ActionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actions, err := h.svc.List(r.Context(), h.kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

// HandleCreate handles POST /{kind}s.
func (h *ActionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_action"
	var req actionRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.svc.Create(r.Context(), h.kind, req.Name, req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// HandleGet handles GET /{kind}s/{id}.
func (h *ActionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "api.get_action")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.svc.Get(r.Context(), h.kind, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleUpdate handles PUT /{kind}s/{id}.
func (h *ActionsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_action"
	id, err := pathID(r, op)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req actionRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.svc.Update(r.Context(), h.kind, id, req.Name, req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleDelete handles DELETE /{kind}s/{id}.
func (h *ActionsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "api.delete_action")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), h.kind, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRecommendedValue handles GET /{kind}s/recommended-value.
func (h *ActionsHandler) HandleRecommendedValue(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.RecommendedValue(r.Context(), h.kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendedValueResponse{Kind: h.kind, Value: v})
}

// HandleSeverity handles GET /punishments/severity?value=.
func (h *ActionsHandler) HandleSeverity(w http.ResponseWriter, r *http.Request) {
	const op = "api.severity"
	v, ok, err := queryInt64(r, op, "value")
	if err == nil && !ok {
		err = errs.Validationf(op, "value is required")
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sev, err := action.SeverityLevel(v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, severityResponse{Value: v, Severity: sev})
}
