// Package action owns rewards and punishments: named actions carrying a
// signed point value.
package action

import (
	"context"
	"errors"
	"math"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/errs"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

// Recommended value defaults and rounding.
const (
	DefaultRewardValue     int64 = 10
	DefaultPunishmentValue int64 = -10
	recommendedStep              = 5
)

// Store is the persistence the registry needs.
type Store interface {
	repository.ActionStore
	CountAssignmentsByAction(ctx context.Context, kind model.Kind, actionID int64) (int, error)
}

// Registry manages actions of both kinds.
type Registry struct {
	store      Store
	maxNameLen int
	defaults   map[model.Kind]int64
	log        logger.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxNameLength bounds names, in runes.
func WithMaxNameLength(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxNameLen = n
		}
	}
}

// WithDefaultValues sets what RecommendedValue returns for a kind with no
// actions yet. Wrongly signed values are ignored.
func WithDefaultValues(reward, punishment int64) Option {
	return func(r *Registry) {
		if model.KindReward.Allows(reward) {
			r.defaults[model.KindReward] = reward
		}
		if model.KindPunishment.Allows(punishment) {
			r.defaults[model.KindPunishment] = punishment
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// New returns a Registry backed by store.
func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:      store,
		maxNameLen: model.DefaultMaxNameLength,
		defaults: map[model.Kind]int64{
			model.KindReward:     DefaultRewardValue,
			model.KindPunishment: DefaultPunishmentValue,
		},
		log: logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create adds an action of kind.
func (r *Registry) Create(ctx context.Context, kind model.Kind, name string, value int64) (model.Action, error) {
	const op = "action.create"
	name = model.NormalizeName(name)
	if err := r.check(op, kind, name, value); err != nil {
		return model.Action{}, err
	}
	if err := r.ensureNameFree(ctx, op, kind, name, 0); err != nil {
		return model.Action{}, err
	}

	a, err := r.store.CreateAction(ctx, model.Action{Kind: kind, Name: name, Value: value})
	if errors.Is(err, repository.ErrAlreadyExists) {
		return model.Action{}, errs.AlreadyExistsf(op, "%s named %q already exists", kind, name)
	}
	if err != nil {
		return model.Action{}, r.fail(ctx, op, err)
	}
	r.log.Info(ctx, "action created",
		logger.String("kind", string(kind)), logger.Int64("action_id", a.ID), logger.Int64("value", a.Value))
	return a, nil
}

// Update replaces the name and value of action id. Existing assignments keep
// the name and value they were created with.
func (r *Registry) Update(ctx context.Context, kind model.Kind, id int64, name string, value int64) (model.Action, error) {
	const op = "action.update"
	if _, err := r.find(ctx, op, kind, id); err != nil {
		return model.Action{}, err
	}
	name = model.NormalizeName(name)
	if err := r.check(op, kind, name, value); err != nil {
		return model.Action{}, err
	}
	if err := r.ensureNameFree(ctx, op, kind, name, id); err != nil {
		return model.Action{}, err
	}

	a, err := r.store.UpdateAction(ctx, model.Action{ID: id, Kind: kind, Name: name, Value: value})
	switch {
	case errors.Is(err, repository.ErrAlreadyExists):
		return model.Action{}, errs.AlreadyExistsf(op, "%s named %q already exists", kind, name)
	case errors.Is(err, repository.ErrNotFound):
		return model.Action{}, errs.NotFoundf(op, "%s %d not found", kind, id)
	case err != nil:
		return model.Action{}, r.fail(ctx, op, err)
	}
	r.log.Info(ctx, "action updated",
		logger.String("kind", string(kind)), logger.Int64("action_id", id), logger.Int64("value", value))
	return a, nil
}

// Delete removes action id unless assignments still reference it.
func (r *Registry) Delete(ctx context.Context, kind model.Kind, id int64) error {
	const op = "action.delete"
	if _, err := r.find(ctx, op, kind, id); err != nil {
		return err
	}
	n, err := r.store.CountAssignmentsByAction(ctx, kind, id)
	if err != nil {
		return r.fail(ctx, op, err)
	}
	if n > 0 {
		r.log.Warn(ctx, "action delete rejected",
			logger.String("kind", string(kind)), logger.Int64("action_id", id), logger.Int("assignments", n))
		return errs.BusinessRulef(op, "%s %d is referenced by %d assignments", kind, id, n)
	}

	err = r.store.DeleteAction(ctx, kind, id)
	switch {
	case errors.Is(err, repository.ErrInUse):
		return errs.BusinessRulef(op, "%s %d is referenced by assignments", kind, id)
	case errors.Is(err, repository.ErrNotFound):
		return errs.NotFoundf(op, "%s %d not found", kind, id)
	case err != nil:
		return r.fail(ctx, op, err)
	}
	r.log.Info(ctx, "action deleted", logger.String("kind", string(kind)), logger.Int64("action_id", id))
	return nil
}

// Get returns action id of kind.
func (r *Registry) Get(ctx context.Context, kind model.Kind, id int64) (model.Action, error) {
	return r.find(ctx, "action.get", kind, id)
}

// List returns every action of kind ordered by ID.
func (r *Registry) List(ctx context.Context, kind model.Kind) ([]model.Action, error) {
	const op = "action.list"
	if !kind.Valid() {
		return nil, invalidKind(op, kind)
	}
	actions, err := r.store.ListActions(ctx, kind)
	if err != nil {
		return nil, r.fail(ctx, op, err)
	}
	return actions, nil
}

// RecommendedValue suggests a value for a new action of kind: the mean
// magnitude of the existing ones rounded to the nearest multiple of 5, or
// the configured default when there are none. The suggestion is never
// enforced.
func (r *Registry) RecommendedValue(ctx context.Context, kind model.Kind) (int64, error) {
	const op = "action.recommended_value"
	actions, err := r.List(ctx, kind)
	if err != nil {
		return 0, errs.Wrap(op, err)
	}
	if len(actions) == 0 {
		return r.defaults[kind], nil
	}
	var sum float64
	for _, a := range actions {
		sum += math.Abs(float64(a.Value))
	}
	mean := sum / float64(len(actions))
	magnitude := int64(math.Round(mean/recommendedStep)) * recommendedStep
	if magnitude < recommendedStep {
		magnitude = recommendedStep
	}
	return kind.Sign() * magnitude, nil
}

// SeverityLevel grades a punishment value. Non-negative values have no
// severity.
func SeverityLevel(value int64) (model.Severity, error) {
	sev, ok := model.SeverityOf(value)
	if !ok {
		return "", errs.Validationf("action.severity", "severity is defined for negative values only, got %d", value)
	}
	return sev, nil
}

func (r *Registry) check(op string, kind model.Kind, name string, value int64) error {
	if !kind.Valid() {
		return invalidKind(op, kind)
	}
	if problem := model.NameProblem(name, r.maxNameLen); problem != "" {
		return errs.Validationf(op, "%s", problem)
	}
	if !kind.Allows(value) {
		return errs.Validationf(op, "%s, got %d", kind.SignRule(), value)
	}
	return nil
}

func (r *Registry) ensureNameFree(ctx context.Context, op string, kind model.Kind, name string, selfID int64) error {
	holder, err := r.store.FindActionByName(ctx, kind, name)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return r.fail(ctx, op, err)
	case holder.ID != selfID:
		return errs.AlreadyExistsf(op, "%s named %q already exists", kind, name)
	}
	return nil
}

func (r *Registry) find(ctx context.Context, op string, kind model.Kind, id int64) (model.Action, error) {
	if !kind.Valid() {
		return model.Action{}, invalidKind(op, kind)
	}
	if id <= 0 {
		return model.Action{}, errs.Validationf(op, "%s id must be positive, got %d", kind, id)
	}
	a, err := r.store.FindActionByID(ctx, kind, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Action{}, errs.NotFoundf(op, "%s %d not found", kind, id)
	}
	if err != nil {
		return model.Action{}, r.fail(ctx, op, err)
	}
	return a, nil
}

func (r *Registry) fail(ctx context.Context, op string, err error) error {
	r.log.Error(ctx, "action store failure", logger.String("op", op), logger.Error(err))
	return errs.Wrap(op, err)
}

func invalidKind(op string, kind model.Kind) error {
	return errs.Validationf(op, "item type must be %q or %q, got %q", model.KindReward, model.KindPunishment, kind)
}
