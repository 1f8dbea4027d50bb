package api

import (
	"net/http"
	"time"

	"github.com/okian/tally/internal/domain/errs"
	"github.com/okian/tally/pkg/metrics"
)

// DefaultTrendWeeks is used when GET /scores/persons/{id}/trends has no weeks.
const DefaultTrendWeeks = 4

// ScoresHandler serves /scores.
type ScoresHandler struct {
	base
	svc ScoreService
}

func observe(query string, start time.Time) {
	metrics.RecordScoreQueryDuration(query, float64(time.Since(start).Microseconds())/1000)
}

// HandleTotal handles GET /scores/total.
func (h *ScoresHandler) HandleTotal(w http.ResponseWriter, r *http.Request) {
	defer observe("total", time.Now())
	scores, err := h.svc.TotalScores(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// HandleWeekly handles GET /scores/weekly?weekStart=.
func (h *ScoresHandler) HandleWeekly(w http.ResponseWriter, r *http.Request) {
	defer observe("weekly", time.Now())
	t, ok, err := queryTime(r, "api.weekly_scores", "weekStart", h.loc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var weekStart *time.Time
	if ok {
		weekStart = &t
	}
	scores, err := h.svc.WeeklyScores(r.Context(), weekStart)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// HandleStatistics handles GET /scores/statistics.
func (h *ScoresHandler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	defer observe("statistics", time.Now())
	st, err := h.svc.Statistics(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleCompare handles GET /scores/compare?person1=&person2=.
func (h *ScoresHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	const op = "api.compare_scores"
	defer observe("compare", time.Now())
	ids := make([]int64, 2)
	for i, key := range []string{"person1", "person2"} {
		v, ok, err := queryInt64(r, op, key)
		if err == nil && !ok {
			err = errs.Validationf(op, "%s is required", key)
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		ids[i] = v
	}
	cmp, err := h.svc.Compare(r.Context(), ids[0], ids[1])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// HandlePerson handles GET /scores/persons/{id}.
func (h *ScoresHandler) HandlePerson(w http.ResponseWriter, r *http.Request) {
	defer observe("person", time.Now())
	id, err := pathID(r, "api.person_score")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.svc.PersonScore(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleTrends handles GET /scores/persons/{id}/trends?weeks=.
func (h *ScoresHandler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	const op = "api.person_trends"
	defer observe("trends", time.Now())
	id, err := pathID(r, op)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	weeks, ok, err := queryInt64(r, op, "weeks")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		weeks = DefaultTrendWeeks
	}
	tr, err := h.svc.Trends(r.Context(), id, int(weeks))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}
