// Package service wires storage and the domain components into the
// application the HTTP API serves.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/adapters/repository/postgres"
	"github.com/okian/tally/internal/adapters/repository/sqlite"
	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/internal/domain/action"
	"github.com/okian/tally/internal/domain/assignment"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/person"
	"github.com/okian/tally/internal/domain/scoring"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Service owns the store and the components built on top of it.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       repository.Store
	persons     *person.Registry
	actions     *action.Registry
	assignments *assignment.Engine
	scores      *scoring.Engine

	// Configuration
	driver                 string
	sqlitePath             string
	postgresDSN            string
	maxNameLength          int
	fanoutWarningThreshold int
	maxRecentLimit         int
	defaultReward          int64
	defaultPunishment      int64
	location               *time.Location
	collation              model.Collation
	now                    func() time.Time

	// State
	started   bool
	ownsStore bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig copies storage and domain settings from cfg.
// cfg is expected to have passed Validate.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		s.driver = cfg.StorageDriver
		s.sqlitePath = cfg.SQLitePath
		s.postgresDSN = cfg.PostgresDSN
		s.maxNameLength = cfg.MaxNameLength
		s.fanoutWarningThreshold = cfg.FanoutWarningThreshold
		s.maxRecentLimit = cfg.MaxRecentLimit
		s.defaultReward = cfg.DefaultRewardValue
		s.defaultPunishment = cfg.DefaultPunishmentValue
		if loc, err := cfg.Location(); err == nil {
			s.location = loc
		}
		if c, err := cfg.Collation(); err == nil {
			s.collation = c
		}
	}
}

// WithStore makes the service use store instead of opening one.
// The caller keeps ownership: Stop does not close it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClock sets the time source for assignment timestamps and weeks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone whose Mondays start a week.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		driver:                 config.DriverMemory,
		maxNameLength:          model.DefaultMaxNameLength,
		fanoutWarningThreshold: assignment.DefaultFanoutWarningThreshold,
		maxRecentLimit:         assignment.DefaultMaxRecentLimit,
		defaultReward:          action.DefaultRewardValue,
		defaultPunishment:      action.DefaultPunishmentValue,
		location:               time.UTC,
		collation:              model.DefaultCollation,
		now:                    time.Now,
		logger:                 nil, // replaced when the service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the store and builds the domain components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting tally service...")

	if s.store == nil {
		store, err := s.openStore(ctx)
		if err != nil {
			return err
		}
		s.store = store
		s.ownsStore = true
	}

	s.persons = person.New(s.store,
		person.WithMaxNameLength(s.maxNameLength),
		person.WithCollation(s.collation),
		person.WithLogger(s.logger.Named("person")),
	)
	s.actions = action.New(s.store,
		action.WithMaxNameLength(s.maxNameLength),
		action.WithDefaultValues(s.defaultReward, s.defaultPunishment),
		action.WithLogger(s.logger.Named("action")),
	)
	s.assignments = assignment.New(s.store,
		assignment.WithClock(s.now),
		assignment.WithFanoutWarningThreshold(s.fanoutWarningThreshold),
		assignment.WithMaxRecentLimit(s.maxRecentLimit),
		assignment.WithLogger(s.logger.Named("assignment")),
	)
	s.scores = scoring.New(s.store,
		scoring.WithClock(s.now),
		scoring.WithLocation(s.location),
		scoring.WithCollation(s.collation),
		scoring.WithLogger(s.logger.Named("scoring")),
	)

	s.started = true
	s.logger.Info(ctx, "tally service started",
		logger.String("storage", s.driver),
		logger.String("timezone", s.location.String()),
		logger.String("collation", s.collation.String()),
	)

	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	switch s.driver {
	case config.DriverMemory:
		s.logger.Info(ctx, "using in-memory store")
		return repository.NewMemoryStore(), nil
	case config.DriverSQLite:
		s.logger.Info(ctx, "using sqlite store", logger.String("path", s.sqlitePath))
		store, err := sqlite.Open(ctx, s.sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case config.DriverPostgres:
		s.logger.Info(ctx, "using postgres store")
		store, err := postgres.Open(ctx, s.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", s.driver)
}

// Stop closes the store when the service opened it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping tally service...")

	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "failed to close store", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}

	s.started = false
	s.logger.Info(context.Background(), "tally service stopped")
}

// Persons returns the person registry. Nil before Start.
func (s *Service) Persons() *person.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persons
}

// Actions returns the reward and punishment registry. Nil before Start.
func (s *Service) Actions() *action.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actions
}

// Assignments returns the assignment engine. Nil before Start.
func (s *Service) Assignments() *assignment.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assignments
}

// Scores returns the score engine. Nil before Start.
func (s *Service) Scores() *scoring.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scores
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":   s.started,
		"storage":   s.driver,
		"timezone":  s.location.String(),
		"collation": s.collation.String(),
	}

	goroutines := runtime.NumGoroutine()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats["goroutines"] = goroutines
	metrics.UpdateSystemGoroutineCount(goroutines)
	metrics.UpdateSystemMemoryUsage(mem.Alloc)

	if !s.started {
		return stats
	}

	if people, err := s.store.ListPersons(ctx); err == nil {
		stats["totalPersons"] = len(people)
		metrics.UpdateTotalPersons(len(people))
	} else {
		s.logger.Warn(ctx, "failed to count persons", logger.Error(err))
	}
	for _, kind := range model.Kinds {
		actions, err := s.store.ListActions(ctx, kind)
		if err != nil {
			s.logger.Warn(ctx, "failed to count actions", logger.String("kind", string(kind)), logger.Error(err))
			continue
		}
		stats["total"+statsSuffix(kind)] = len(actions)
		metrics.UpdateTotalActions(string(kind), len(actions))
	}
	if rows, err := s.store.ListAssignments(ctx); err == nil {
		stats["totalAssignments"] = len(rows)
		metrics.UpdateTotalAssignments(len(rows))
	} else {
		s.logger.Warn(ctx, "failed to count assignments", logger.Error(err))
	}

	return stats
}

func statsSuffix(kind model.Kind) string {
	if kind == model.KindReward {
		return "Rewards"
	}
	return "Punishments"
}
