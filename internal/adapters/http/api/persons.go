package api

import (
	"net/http"
	"strings"
)

type personRequest struct {
	Name string `json:"name"`
}

type availabilityResponse struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// PersonsHandler serves /persons.
type PersonsHandler struct {
	base
	svc PersonService
}

// HandleList handles GET /persons.
func (h *PersonsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	people, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}

// HandleCreate handles POST /persons.
func (h *PersonsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_person"
	var req personRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Create(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleGet handles GET /persons/{id}.
func (h *PersonsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "api.get_person")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdate handles PUT /persons/{id}.
func (h *PersonsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_person"
	id, err := pathID(r, op)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req personRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Rename(r.Context(), id, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete handles DELETE /persons/{id}.
func (h *PersonsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "api.delete_person")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAvailability handles GET /persons/availability?name=&excludeId=.
func (h *PersonsHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	const op = "api.person_availability"
	excludeID, _, err := queryInt64(r, op, "excludeId")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	name := r.URL.Query().Get("name")
	ok, err := h.svc.IsNameAvailable(r.Context(), name, excludeID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Name: strings.TrimSpace(name), Available: ok})
}
