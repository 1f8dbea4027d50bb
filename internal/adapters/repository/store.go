// Package repository defines the persistence contracts and errors shared by
// every store, plus an in-memory implementation.
package repository

import (
	"context"
	"time"

	"github.com/okian/tally/internal/domain/model"
)

// Range is an inclusive time interval: From <= t <= To.
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside r.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// Tally is the aggregate of one person's assignments.
type Tally struct {
	PersonID int64
	Total    int64
	Count    int
}

// PersonStore provides read/write access to people.
type PersonStore interface {
	// CreatePerson inserts p and returns it with its new ID.
	// Returns ErrAlreadyExists when the name is taken (case-insensitive).
	CreatePerson(ctx context.Context, p model.Person) (model.Person, error)
	// UpdatePerson overwrites the name of an existing person.
	UpdatePerson(ctx context.Context, p model.Person) (model.Person, error)
	// DeletePerson removes a person. Returns ErrInUse when assignments reference it.
	DeletePerson(ctx context.Context, id int64) error

	FindPersonByID(ctx context.Context, id int64) (model.Person, error)
	// FindPersonByName matches case-insensitively on the trimmed name.
	FindPersonByName(ctx context.Context, name string) (model.Person, error)
	// ListPersons returns everybody ordered by ID.
	ListPersons(ctx context.Context) ([]model.Person, error)
}

// ActionStore provides read/write access to rewards and punishments.
type ActionStore interface {
	CreateAction(ctx context.Context, a model.Action) (model.Action, error)
	UpdateAction(ctx context.Context, a model.Action) (model.Action, error)
	DeleteAction(ctx context.Context, kind model.Kind, id int64) error

	FindActionByID(ctx context.Context, kind model.Kind, id int64) (model.Action, error)
	FindActionByName(ctx context.Context, kind model.Kind, name string) (model.Action, error)
	// ListActions returns every action of kind ordered by ID.
	ListActions(ctx context.Context, kind model.Kind) ([]model.Action, error)
}

// AssignmentStore provides access to assignment rows. Rows are never updated.
type AssignmentStore interface {
	CreateAssignment(ctx context.Context, a model.Assignment) (model.Assignment, error)
	DeleteAssignment(ctx context.Context, id int64) error

	FindAssignmentByID(ctx context.Context, id int64) (model.Assignment, error)
	// List variants order by AssignedAt then ID, ascending.
	ListAssignments(ctx context.Context) ([]model.Assignment, error)
	ListAssignmentsByPerson(ctx context.Context, personID int64) ([]model.Assignment, error)
	ListAssignmentsByDateRange(ctx context.Context, r Range) ([]model.Assignment, error)
	// RecentAssignments returns at most limit rows, newest first.
	RecentAssignments(ctx context.Context, limit int) ([]model.Assignment, error)

	CountAssignmentsByPerson(ctx context.Context, personID int64) (int, error)
	CountAssignmentsByAction(ctx context.Context, kind model.Kind, actionID int64) (int, error)

	// SumByPerson totals ItemValue per person, restricted to r when non-nil.
	// People without matching assignments are omitted. Ordered by PersonID.
	SumByPerson(ctx context.Context, r *Range) ([]Tally, error)
}

// AssignmentBatcher is implemented by stores that can insert several
// assignments all-or-nothing.
type AssignmentBatcher interface {
	CreateAssignments(ctx context.Context, as []model.Assignment) ([]model.Assignment, error)
}

// Store is the full persistence surface used by the application.
type Store interface {
	PersonStore
	ActionStore
	AssignmentStore
	AssignmentBatcher
	Close() error
}
