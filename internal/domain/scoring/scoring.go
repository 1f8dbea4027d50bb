// Package scoring derives standings from the assignment set.
//
// Nothing is cached: every call re-reads the store, so results always match
// the latest committed assignments.
package scoring

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/errs"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/week"
	"github.com/okian/tally/pkg/logger"
)

// Store is the persistence the engine reads from.
type Store interface {
	ListPersons(ctx context.Context) ([]model.Person, error)
	FindPersonByID(ctx context.Context, id int64) (model.Person, error)
	ListAssignmentsByPerson(ctx context.Context, personID int64) ([]model.Assignment, error)
	SumByPerson(ctx context.Context, r *repository.Range) ([]repository.Tally, error)
}

// PersonScore is one person's all-time standing.
type PersonScore struct {
	PersonID        int64   `json:"personId"`
	PersonName      string  `json:"personName"`
	TotalScore      int64   `json:"totalScore"`
	AssignmentCount int     `json:"assignmentCount"`
	AverageScore    float64 `json:"averageScore"`
	Rank            int     `json:"rank"`
}

// WeeklyPersonScore is one person's standing within a week.
type WeeklyPersonScore struct {
	PersonID        int64   `json:"personId"`
	PersonName      string  `json:"personName"`
	WeeklyScore     int64   `json:"weeklyScore"`
	AssignmentCount int     `json:"assignmentCount"`
	AverageScore    float64 `json:"averageScore"`
	Rank            int     `json:"rank"`
	week.Window
}

// Engine computes scores.
type Engine struct {
	store     Store
	now       func() time.Time
	loc       *time.Location
	collation model.Collation
	log       logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets what "now" means for the current week.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the time zone whose Mondays start a week.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithCollation sets how tied scores are ordered by name.
func WithCollation(c model.Collation) Option {
	return func(e *Engine) { e.collation = c }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New returns an Engine reading from store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		now:       time.Now,
		loc:       time.UTC,
		collation: model.DefaultCollation,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CurrentWeek returns the week containing the engine's now.
func (e *Engine) CurrentWeek() week.Window {
	return week.Of(e.now().In(e.loc))
}

// TotalScores ranks everybody by the sum of all their assignments.
func (e *Engine) TotalScores(ctx context.Context) ([]PersonScore, error) {
	out, err := e.totals(ctx)
	if err != nil {
		return nil, e.fail(ctx, "scoring.total", err)
	}
	return out, nil
}

func (e *Engine) totals(ctx context.Context) ([]PersonScore, error) {
	rows, err := e.standings(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]PersonScore, len(rows))
	for i, r := range rows {
		out[i] = PersonScore{
			PersonID:        r.person.ID,
			PersonName:      r.person.Name,
			TotalScore:      r.total,
			AssignmentCount: r.count,
			AverageScore:    average(r.total, r.count),
			Rank:            i + 1,
		}
	}
	return out, nil
}

// WeeklyScores ranks everybody within the week containing weekStart, or
// the current week when weekStart is nil.
func (e *Engine) WeeklyScores(ctx context.Context, weekStart *time.Time) ([]WeeklyPersonScore, error) {
	w := e.CurrentWeek()
	if weekStart != nil {
		w = week.Of(weekStart.In(e.loc))
	}
	out, err := e.weekly(ctx, w)
	if err != nil {
		return nil, e.fail(ctx, "scoring.weekly", err)
	}
	return out, nil
}

func (e *Engine) weekly(ctx context.Context, w week.Window) ([]WeeklyPersonScore, error) {
	rows, err := e.standings(ctx, &repository.Range{From: w.Start, To: w.End})
	if err != nil {
		return nil, err
	}
	out := make([]WeeklyPersonScore, len(rows))
	for i, r := range rows {
		out[i] = WeeklyPersonScore{
			PersonID:        r.person.ID,
			PersonName:      r.person.Name,
			WeeklyScore:     r.total,
			AssignmentCount: r.count,
			AverageScore:    average(r.total, r.count),
			Rank:            i + 1,
			Window:          w,
		}
	}
	return out, nil
}

type standing struct {
	person model.Person
	total  int64
	count  int
}

// standings zero-fills people without assignments in r and sorts by total
// descending, then name, then ID.
func (e *Engine) standings(ctx context.Context, r *repository.Range) ([]standing, error) {
	people, err := e.store.ListPersons(ctx)
	if err != nil {
		return nil, err
	}
	tallies, err := e.store.SumByPerson(ctx, r)
	if err != nil {
		return nil, err
	}
	byPerson := make(map[int64]repository.Tally, len(tallies))
	for _, t := range tallies {
		byPerson[t.PersonID] = t
	}

	out := make([]standing, len(people))
	for i, p := range people {
		t := byPerson[p.ID]
		out[i] = standing{person: p, total: t.Total, count: t.Count}
	}
	cmp := e.collation.Comparer()
	slices.SortFunc(out, func(a, b standing) int {
		switch {
		case a.total > b.total:
			return -1
		case a.total < b.total:
			return 1
		}
		return model.ComparePersons(cmp, a.person, b.person)
	})
	return out, nil
}

func (e *Engine) findPerson(ctx context.Context, op string, id int64) (model.Person, error) {
	if id <= 0 {
		return model.Person{}, errs.Validationf(op, "person id must be positive, got %d", id)
	}
	p, err := e.store.FindPersonByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Person{}, errs.NotFoundf(op, "person %d not found", id)
	}
	if err != nil {
		return model.Person{}, e.fail(ctx, op, err)
	}
	return p, nil
}

func (e *Engine) fail(ctx context.Context, op string, err error) error {
	if errs.KindOf(err) == nil {
		e.log.Error(ctx, "score query failed", logger.String("op", op), logger.Error(err))
	}
	return errs.Wrap(op, err)
}

func average(total int64, count int) float64 {
	if count == 0 {
		return 0
	}
	return round2(float64(total) / float64(count))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
