// Package assignment records people receiving rewards and punishments.
//
// One request fans a single action out to several people. Every created
// row snapshots the action's name and value, so later edits of the action
// never rewrite history.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/errs"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

// Engine defaults.
const (
	DefaultFanoutWarningThreshold = 5
	DefaultMaxRecentLimit         = 100
)

// Store is the persistence the engine needs. Stores that also implement
// repository.AssignmentBatcher get all-or-nothing fan-out.
type Store interface {
	FindPersonByID(ctx context.Context, id int64) (model.Person, error)
	FindActionByID(ctx context.Context, kind model.Kind, id int64) (model.Action, error)
	repository.AssignmentStore
}

// CreateRequest assigns one action to one or more people.
type CreateRequest struct {
	PersonIDs []int64    `json:"personIds"`
	ItemType  model.Kind `json:"itemType"`
	ItemID    int64      `json:"itemId"`
}

// ValidationResult is the outcome of a dry run.
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Stats summarizes every assignment.
type Stats struct {
	TotalAssignments      int     `json:"totalAssignments"`
	RewardAssignments     int     `json:"rewardAssignments"`
	PunishmentAssignments int     `json:"punishmentAssignments"`
	AverageValue          float64 `json:"averageValue"`
}

// BatchError reports a fan-out that failed part way on a store without
// atomic batches. Created holds the rows that were committed and must be
// reconciled by the caller.
type BatchError struct {
	Created        []model.Assignment
	FailedPersonID int64
	Err            error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("assignment fan-out stopped at person %d after %d rows: %v",
		e.FailedPersonID, len(e.Created), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Engine creates, deletes and queries assignments.
type Engine struct {
	store           Store
	now             func() time.Time
	fanoutThreshold int
	maxRecent       int
	log             logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the source of assignedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithFanoutWarningThreshold sets how many people one request may target
// before Validate warns.
func WithFanoutWarningThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.fanoutThreshold = n
		}
	}
}

// WithMaxRecentLimit caps Recent.
func WithMaxRecentLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRecent = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New returns an Engine backed by store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		now:             time.Now,
		fanoutThreshold: DefaultFanoutWarningThreshold,
		maxRecent:       DefaultMaxRecentLimit,
		log:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create assigns the action to every person in req, in order. Nothing is
// written unless every person and the action resolve.
func (e *Engine) Create(ctx context.Context, req CreateRequest) ([]model.Assignment, error) {
	const op = "assignment.create"
	if problems := shapeProblems(req); len(problems) > 0 {
		return nil, errs.Validationf(op, "%s", strings.Join(problems, "; "))
	}
	for _, id := range req.PersonIDs {
		if _, err := e.store.FindPersonByID(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, errs.NotFoundf(op, "person %d not found", id)
			}
			return nil, e.fail(ctx, op, err)
		}
	}
	act, err := e.resolveAction(ctx, op, req.ItemType, req.ItemID)
	if err != nil {
		return nil, err
	}

	at := e.now().UTC().Truncate(time.Millisecond)
	rows := make([]model.Assignment, len(req.PersonIDs))
	for i, id := range req.PersonIDs {
		rows[i] = model.Snapshot(id, act, at)
	}
	created, err := e.persist(ctx, op, rows)
	if err != nil {
		return nil, err
	}
	e.log.Info(ctx, "assignments created",
		logger.String("item_type", string(act.Kind)), logger.Int64("item_id", act.ID),
		logger.Int64("item_value", act.Value), logger.Int("people", len(created)))
	return created, nil
}

func (e *Engine) resolveAction(ctx context.Context, op string, kind model.Kind, id int64) (model.Action, error) {
	act, err := e.store.FindActionByID(ctx, kind, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Action{}, errs.NotFoundf(op, "%s %d not found", kind, id)
	}
	if err != nil {
		return model.Action{}, e.fail(ctx, op, err)
	}
	if !act.Kind.Allows(act.Value) {
		e.log.Warn(ctx, "action violates its sign rule",
			logger.String("kind", string(act.Kind)), logger.Int64("action_id", act.ID), logger.Int64("value", act.Value))
		return model.Action{}, errs.BusinessRulef(op, "%s %d has value %d: %s", kind, id, act.Value, kind.SignRule())
	}
	return act, nil
}

func (e *Engine) persist(ctx context.Context, op string, rows []model.Assignment) ([]model.Assignment, error) {
	if batcher, ok := e.store.(repository.AssignmentBatcher); ok {
		created, err := batcher.CreateAssignments(ctx, rows)
		if err != nil {
			return nil, e.insertErr(ctx, op, rows[0], err)
		}
		return created, nil
	}

	created := make([]model.Assignment, 0, len(rows))
	for _, row := range rows {
		a, err := e.store.CreateAssignment(ctx, row)
		if err != nil {
			e.log.Error(ctx, "assignment fan-out partially committed",
				logger.Int64("failed_person_id", row.PersonID), logger.Int("committed", len(created)), logger.Error(err))
			return nil, &BatchError{Created: created, FailedPersonID: row.PersonID, Err: e.insertErr(ctx, op, row, err)}
		}
		created = append(created, a)
	}
	return created, nil
}

func (e *Engine) insertErr(ctx context.Context, op string, row model.Assignment, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errs.NotFoundf(op, "a person or %s %d disappeared while assigning", row.ItemType, row.ItemID)
	}
	return e.fail(ctx, op, err)
}

// Validate runs the checks of Create without writing anything. Large
// fan-outs produce a warning, never an error.
func (e *Engine) Validate(ctx context.Context, req CreateRequest) (ValidationResult, error) {
	const op = "assignment.validate"
	problems := shapeProblems(req)

	checked := make(map[int64]bool, len(req.PersonIDs))
	for _, id := range req.PersonIDs {
		if id <= 0 || checked[id] {
			continue
		}
		checked[id] = true
		if _, err := e.store.FindPersonByID(ctx, id); err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return ValidationResult{}, e.fail(ctx, op, err)
			}
			problems = append(problems, fmt.Sprintf("person %d not found", id))
		}
	}
	if req.ItemType.Valid() && req.ItemID > 0 {
		if _, err := e.resolveAction(ctx, op, req.ItemType, req.ItemID); err != nil {
			if errs.KindOf(err) == nil {
				return ValidationResult{}, err
			}
			problems = append(problems, errMessage(err))
		}
	}

	res := ValidationResult{Errors: problems, Warnings: []string{}}
	if res.Errors == nil {
		res.Errors = []string{}
	}
	if n := len(req.PersonIDs); n > e.fanoutThreshold {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("assigning to %d people at once (more than %d); confirm before proceeding", n, e.fanoutThreshold))
	}
	res.IsValid = len(res.Errors) == 0
	return res, nil
}

// Delete permanently removes assignment id.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	const op = "assignment.delete"
	if id <= 0 {
		return errs.Validationf(op, "assignment id must be positive, got %d", id)
	}
	err := e.store.DeleteAssignment(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return errs.NotFoundf(op, "assignment %d not found", id)
	}
	if err != nil {
		return e.fail(ctx, op, err)
	}
	e.log.Info(ctx, "assignment deleted", logger.Int64("assignment_id", id))
	return nil
}

// Get returns assignment id.
func (e *Engine) Get(ctx context.Context, id int64) (model.Assignment, error) {
	const op = "assignment.get"
	if id <= 0 {
		return model.Assignment{}, errs.Validationf(op, "assignment id must be positive, got %d", id)
	}
	a, err := e.store.FindAssignmentByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Assignment{}, errs.NotFoundf(op, "assignment %d not found", id)
	}
	if err != nil {
		return model.Assignment{}, e.fail(ctx, op, err)
	}
	return a, nil
}

// List returns every assignment, oldest first.
func (e *Engine) List(ctx context.Context) ([]model.Assignment, error) {
	out, err := e.store.ListAssignments(ctx)
	if err != nil {
		return nil, e.fail(ctx, "assignment.list", err)
	}
	return out, nil
}

// ListByPerson returns the assignments of personID, oldest first.
func (e *Engine) ListByPerson(ctx context.Context, personID int64) ([]model.Assignment, error) {
	const op = "assignment.list_by_person"
	if personID <= 0 {
		return nil, errs.Validationf(op, "person id must be positive, got %d", personID)
	}
	if _, err := e.store.FindPersonByID(ctx, personID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errs.NotFoundf(op, "person %d not found", personID)
		}
		return nil, e.fail(ctx, op, err)
	}
	out, err := e.store.ListAssignmentsByPerson(ctx, personID)
	if err != nil {
		return nil, e.fail(ctx, op, err)
	}
	return out, nil
}

// ListByDateRange returns assignments with start <= assignedAt <= end.
func (e *Engine) ListByDateRange(ctx context.Context, start, end time.Time) ([]model.Assignment, error) {
	const op = "assignment.list_by_date_range"
	if start.After(end) {
		return nil, errs.Validationf(op, "start %s is after end %s",
			start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano))
	}
	out, err := e.store.ListAssignmentsByDateRange(ctx, repository.Range{From: start, To: end})
	if err != nil {
		return nil, e.fail(ctx, op, err)
	}
	return out, nil
}

// Recent returns the n newest assignments, newest first.
func (e *Engine) Recent(ctx context.Context, n int) ([]model.Assignment, error) {
	const op = "assignment.recent"
	if n < 1 || n > e.maxRecent {
		return nil, errs.Validationf(op, "limit must be between 1 and %d, got %d", e.maxRecent, n)
	}
	out, err := e.store.RecentAssignments(ctx, n)
	if err != nil {
		return nil, e.fail(ctx, op, err)
	}
	return out, nil
}

// Stats counts assignments per item type and averages their values.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	all, err := e.store.ListAssignments(ctx)
	if err != nil {
		return Stats{}, e.fail(ctx, "assignment.stats", err)
	}
	var (
		st  Stats
		sum int64
	)
	for _, a := range all {
		switch a.ItemType {
		case model.KindReward:
			st.RewardAssignments++
		case model.KindPunishment:
			st.PunishmentAssignments++
		}
		sum += a.ItemValue
	}
	st.TotalAssignments = len(all)
	if st.TotalAssignments > 0 {
		st.AverageValue = round2(float64(sum) / float64(st.TotalAssignments))
	}
	return st, nil
}

func (e *Engine) fail(ctx context.Context, op string, err error) error {
	e.log.Error(ctx, "assignment store failure", logger.String("op", op), logger.Error(err))
	return errs.Wrap(op, err)
}

func shapeProblems(req CreateRequest) []string {
	var problems []string
	if len(req.PersonIDs) == 0 {
		problems = append(problems, "personIds must contain at least one id")
	}
	for i, id := range req.PersonIDs {
		if id <= 0 {
			problems = append(problems, fmt.Sprintf("personIds[%d] must be a positive id, got %d", i, id))
		}
	}
	if !req.ItemType.Valid() {
		problems = append(problems, fmt.Sprintf("itemType must be %q or %q, got %q",
			model.KindReward, model.KindPunishment, req.ItemType))
	}
	if req.ItemID <= 0 {
		problems = append(problems, fmt.Sprintf("itemId must be a positive id, got %d", req.ItemID))
	}
	return problems
}

// errMessage returns the message of a domain error without its op prefix.
func errMessage(err error) string {
	var de *errs.Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
