// Package person owns the people who collect points.
package person

import (
	"context"
	"errors"
	"slices"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/errs"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

// Store is the persistence the registry needs.
type Store interface {
	repository.PersonStore
	CountAssignmentsByPerson(ctx context.Context, personID int64) (int, error)
}

// Registry creates, renames and deletes people while keeping names unique.
type Registry struct {
	store      Store
	maxNameLen int
	collation  model.Collation
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

// WithCollation sets the order used by List.
func WithCollation(c model.Collation) Option {
	return func(r *Registry) { r.collation = c }
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
		collation:  model.DefaultCollation,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create adds a person named name.
func (r *Registry) Create(ctx context.Context, name string) (model.Person, error) {
	const op = "person.create"
	name = model.NormalizeName(name)
	if problem := model.NameProblem(name, r.maxNameLen); problem != "" {
		return model.Person{}, errs.Validationf(op, "%s", problem)
	}
	if _, err := r.store.FindPersonByName(ctx, name); err == nil {
		return model.Person{}, errs.AlreadyExistsf(op, "person named %q already exists", name)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Person{}, r.fail(ctx, op, err)
	}

	p, err := r.store.CreatePerson(ctx, model.Person{Name: name})
	if errors.Is(err, repository.ErrAlreadyExists) {
		return model.Person{}, errs.AlreadyExistsf(op, "person named %q already exists", name)
	}
	if err != nil {
		return model.Person{}, r.fail(ctx, op, err)
	}
	r.log.Info(ctx, "person created", logger.Int64("person_id", p.ID), logger.String("name", p.Name))
	return p, nil
}

// Rename changes the name of person id. Renaming to one's own name, in any
// letter case, is allowed.
func (r *Registry) Rename(ctx context.Context, id int64, newName string) (model.Person, error) {
	const op = "person.rename"
	if _, err := r.find(ctx, op, id); err != nil {
		return model.Person{}, err
	}
	newName = model.NormalizeName(newName)
	if problem := model.NameProblem(newName, r.maxNameLen); problem != "" {
		return model.Person{}, errs.Validationf(op, "%s", problem)
	}
	holder, err := r.store.FindPersonByName(ctx, newName)
	switch {
	case err == nil && holder.ID != id:
		return model.Person{}, errs.AlreadyExistsf(op, "person %d already has the name %q", holder.ID, holder.Name)
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return model.Person{}, r.fail(ctx, op, err)
	}

	p, err := r.store.UpdatePerson(ctx, model.Person{ID: id, Name: newName})
	switch {
	case errors.Is(err, repository.ErrAlreadyExists):
		return model.Person{}, errs.AlreadyExistsf(op, "person named %q already exists", newName)
	case errors.Is(err, repository.ErrNotFound):
		return model.Person{}, errs.NotFoundf(op, "person %d not found", id)
	case err != nil:
		return model.Person{}, r.fail(ctx, op, err)
	}
	r.log.Info(ctx, "person renamed", logger.Int64("person_id", id), logger.String("name", p.Name))
	return p, nil
}

// Delete removes person id unless assignments still reference it.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	const op = "person.delete"
	if _, err := r.find(ctx, op, id); err != nil {
		return err
	}
	n, err := r.store.CountAssignmentsByPerson(ctx, id)
	if err != nil {
		return r.fail(ctx, op, err)
	}
	if n > 0 {
		r.log.Warn(ctx, "person delete rejected", logger.Int64("person_id", id), logger.Int("assignments", n))
		return errs.BusinessRulef(op, "person %d has dependent assignments (%d)", id, n)
	}

	err = r.store.DeletePerson(ctx, id)
	switch {
	case errors.Is(err, repository.ErrInUse):
		return errs.BusinessRulef(op, "person %d has dependent assignments", id)
	case errors.Is(err, repository.ErrNotFound):
		return errs.NotFoundf(op, "person %d not found", id)
	case err != nil:
		return r.fail(ctx, op, err)
	}
	r.log.Info(ctx, "person deleted", logger.Int64("person_id", id))
	return nil
}

// IsNameAvailable reports whether name is free, ignoring the person with
// ID excludeID (0 excludes nobody). Blank names are never available.
func (r *Registry) IsNameAvailable(ctx context.Context, name string, excludeID int64) (bool, error) {
	const op = "person.name_available"
	name = model.NormalizeName(name)
	if name == "" {
		return false, nil
	}
	holder, err := r.store.FindPersonByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, r.fail(ctx, op, err)
	}
	return excludeID != 0 && holder.ID == excludeID, nil
}

// Get returns person id.
func (r *Registry) Get(ctx context.Context, id int64) (model.Person, error) {
	return r.find(ctx, "person.get", id)
}

// List returns everybody ordered by name.
func (r *Registry) List(ctx context.Context) ([]model.Person, error) {
	people, err := r.store.ListPersons(ctx)
	if err != nil {
		return nil, r.fail(ctx, "person.list", err)
	}
	cmp := r.collation.Comparer()
	slices.SortFunc(people, func(a, b model.Person) int { return model.ComparePersons(cmp, a, b) })
	return people, nil
}

func (r *Registry) find(ctx context.Context, op string, id int64) (model.Person, error) {
	if id <= 0 {
		return model.Person{}, errs.Validationf(op, "person id must be positive, got %d", id)
	}
	p, err := r.store.FindPersonByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Person{}, errs.NotFoundf(op, "person %d not found", id)
	}
	if err != nil {
		return model.Person{}, r.fail(ctx, op, err)
	}
	return p, nil
}

func (r *Registry) fail(ctx context.Context, op string, err error) error {
	r.log.Error(ctx, "person store failure", logger.String("op", op), logger.Error(err))
	return errs.Wrap(op, err)
}
