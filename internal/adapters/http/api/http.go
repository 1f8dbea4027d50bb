// Package api exposes people, actions, assignments and scores over JSON/HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/tally/internal/domain/assignment"
	"github.com/okian/tally/internal/domain/dedupe"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/scoring"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// PersonService is what the person routes need.
type PersonService interface {
	Create(ctx context.Context, name string) (model.Person, error)
	Rename(ctx context.Context, id int64, newName string) (model.Person, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (model.Person, error)
	List(ctx context.Context) ([]model.Person, error)
	IsNameAvailable(ctx context.Context, name string, excludeID int64) (bool, error)
}

// ActionService is what the reward and punishment routes need.
type ActionService interface {
	Create(ctx context.Context, kind model.Kind, name string, value int64) (model.Action, error)
	Update(ctx context.Context, kind model.Kind, id int64, name string, value int64) (model.Action, error)
	Delete(ctx context.Context, kind model.Kind, id int64) error
	Get(ctx context.Context, kind model.Kind, id int64) (model.Action, error)
	List(ctx context.Context, kind model.Kind) ([]model.Action, error)
	RecommendedValue(ctx context.Context, kind model.Kind) (int64, error)
}

// AssignmentService is what the assignment routes need.
type AssignmentService interface {
	Create(ctx context.Context, req assignment.CreateRequest) ([]model.Assignment, error)
	Validate(ctx context.Context, req assignment.CreateRequest) (assignment.ValidationResult, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (model.Assignment, error)
	List(ctx context.Context) ([]model.Assignment, error)
	ListByPerson(ctx context.Context, personID int64) ([]model.Assignment, error)
	ListByDateRange(ctx context.Context, start, end time.Time) ([]model.Assignment, error)
	Recent(ctx context.Context, n int) ([]model.Assignment, error)
	Stats(ctx context.Context) (assignment.Stats, error)
}

// ScoreService is what the score routes need.
type ScoreService interface {
	TotalScores(ctx context.Context) ([]scoring.PersonScore, error)
	WeeklyScores(ctx context.Context, weekStart *time.Time) ([]scoring.WeeklyPersonScore, error)
	PersonScore(ctx context.Context, id int64) (scoring.PersonScoreView, error)
	Compare(ctx context.Context, id1, id2 int64) (scoring.Comparison, error)
	Statistics(ctx context.Context) (scoring.Statistics, error)
	Trends(ctx context.Context, id int64, weeks int) (scoring.Trends, error)
}

// Dependencies bundles the components the handlers call into.
type Dependencies struct {
	Persons     PersonService
	Actions     ActionService
	Assignments AssignmentService
	Scores      ScoreService
	Stats       StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	personsHandler     *PersonsHandler
	rewardsHandler     *ActionsHandler
	punishmentsHandler *ActionsHandler
	assignmentsHandler *AssignmentsHandler
	scoresHandler      *ScoresHandler
}

type serverOptions struct {
	loc      *time.Location
	log      logger.Logger
	keyCache int
}

// Option configures a Server.
type Option func(*serverOptions)

// WithLocation sets the zone date-only query parameters are read in.
func WithLocation(loc *time.Location) Option {
	return func(o *serverOptions) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithIdempotencyCacheSize sets how many Idempotency-Key results of
// POST /assignments are remembered. Zero disables replay.
func WithIdempotencyCacheSize(n int) Option {
	return func(o *serverOptions) {
		o.keyCache = n
	}
}

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := serverOptions{loc: time.UTC, log: logger.Nop(), keyCache: dedupe.DefaultMaxSize}
	for _, opt := range opts {
		opt(&o)
	}
	b := base{log: o.log, loc: o.loc}
	keys := dedupe.New[[]model.Assignment](dedupe.WithMaxSize(o.keyCache))
	return &Server{
		healthHandler:      NewHealthHandler(metrics.GetRegistry()),
		statsHandler:       NewStatsHandler(deps.Stats),
		personsHandler:     &PersonsHandler{base: b, svc: deps.Persons},
		rewardsHandler:     &ActionsHandler{base: b, svc: deps.Actions, kind: model.KindReward},
		punishmentsHandler: &ActionsHandler{base: b, svc: deps.Actions, kind: model.KindPunishment},
		assignmentsHandler: &AssignmentsHandler{base: b, svc: deps.Assignments, keys: keys},
		scoresHandler:      &ScoresHandler{base: b, svc: deps.Scores},
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	handle := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	handle("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	handle("GET /stats", "stats", s.statsHandler.HandleStats)

	p := s.personsHandler
	handle("GET /persons", "persons", p.HandleList)
	handle("POST /persons", "persons", p.HandleCreate)
	handle("GET /persons/availability", "persons_availability", p.HandleAvailability)
	handle("GET /persons/{id}", "person", p.HandleGet)
	handle("PUT /persons/{id}", "person", p.HandleUpdate)
	handle("DELETE /persons/{id}", "person", p.HandleDelete)

	for prefix, a := range map[string]*ActionsHandler{"/rewards": s.rewardsHandler, "/punishments": s.punishmentsHandler} {
		endpoint := prefix[1:]
		handle("GET "+prefix, endpoint, a.HandleList)
		handle("POST "+prefix, endpoint, a.HandleCreate)
		handle("GET "+prefix+"/recommended-value", endpoint+"_recommended_value", a.HandleRecommendedValue)
		handle("GET "+prefix+"/{id}", endpoint, a.HandleGet)
		handle("PUT "+prefix+"/{id}", endpoint, a.HandleUpdate)
		handle("DELETE "+prefix+"/{id}", endpoint, a.HandleDelete)
	}
	handle("GET /punishments/severity", "punishments_severity", s.punishmentsHandler.HandleSeverity)

	as := s.assignmentsHandler
	handle("POST /assignments", "assignments", as.HandleCreate)
	handle("POST /assignments/validate", "assignments_validate", as.HandleValidate)
	handle("GET /assignments", "assignments", as.HandleList)
	handle("GET /assignments/stats", "assignments_stats", as.HandleStats)
	handle("GET /assignments/{id}", "assignment", as.HandleGet)
	handle("DELETE /assignments/{id}", "assignment", as.HandleDelete)

	sc := s.scoresHandler
	handle("GET /scores/total", "scores_total", sc.HandleTotal)
	handle("GET /scores/weekly", "scores_weekly", sc.HandleWeekly)
	handle("GET /scores/statistics", "scores_statistics", sc.HandleStatistics)
	handle("GET /scores/compare", "scores_compare", sc.HandleCompare)
	handle("GET /scores/persons/{id}", "scores_person", sc.HandlePerson)
	handle("GET /scores/persons/{id}/trends", "scores_trends", sc.HandleTrends)
}

// Handler returns every route behind the request id middleware.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	s.Register(ctx, mux)
	return RequestIDMiddleware(mux)
}
