package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/tally/internal/domain/model"
)

// MemoryStore is a Store kept entirely in process memory.
//
// Reads take a shared lock and return copies; writes take the exclusive lock,
// so every method is atomic on its own and CreateAssignments is all-or-nothing.
type MemoryStore struct {
	mu sync.RWMutex

	persons     map[int64]model.Person
	actions     map[int64]model.Action
	assignments map[int64]model.Assignment

	nextPersonID     int64
	nextActionID     int64
	nextAssignmentID int64

	closed bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		persons:     make(map[int64]model.Person),
		actions:     make(map[int64]model.Action),
		assignments: make(map[int64]model.Assignment),
	}
}

// Close marks the store closed; later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrClosed
	}
	return nil
}

// ---- persons ----

func (s *MemoryStore) personNameTaken(name string, exceptID int64) bool {
	key := model.NameKey(name)
	for id, p := range s.persons {
		if id != exceptID && model.NameKey(p.Name) == key {
			return true
		}
	}
	return false
}

// CreatePerson implements PersonStore.
func (s *MemoryStore) CreatePerson(ctx context.Context, p model.Person) (model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(ctx); err != nil {
		return model.Person{}, err
	}
	if s.personNameTaken(p.Name, 0) {
		return model.Person{}, ErrAlreadyExists
	}
	s.nextPersonID++
	p.ID = s.nextPersonID
	s.persons[p.ID] = p
	return p, nil
}

// UpdatePerson implements PersonStore.
func (s *MemoryStore) UpdatePerson(ctx context.Context, p model.Person) (model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(ctx); err != nil {
		return model.Person{}, err
	}
	if _, ok := s.persons[p.ID]; !ok {
		return model.Person{}, ErrNotFound
	}
	if s.personNameTaken(p.Name, p.ID) {
		return model.Person{}, ErrAlreadyExists
	}
	s.persons[p.ID] = p
	return p, nil
}

// DeletePerson implements PersonStore.
func (s *MemoryStore) DeletePerson(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, ok := s.persons[id]; !ok {
		return ErrNotFound
	}
	for _, a := range s.assignments {
		if a.PersonID == id {
			return ErrInUse
		}
	}
	delete(s.persons, id)
	return nil
}

// FindPersonByID implements PersonStore.
func (s *MemoryStore) FindPersonByID(ctx context.Context, id int64) (model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(ctx); err != nil {
		return model.Person{}, err
	}
	p, ok := s.persons[id]
	if !ok {
		return model.Person{}, ErrNotFound
	}
	return p, nil
}

// FindPersonByName implements PersonStore.
func (s *MemoryStore) FindPersonByName(ctx context.Context, name string) (model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(ctx); err != nil {
		return model.Person{}, err
	}
	key := model.NameKey(name)
	for _, p := range s.persons {
		if model.NameKey(p.Name) == key {
			return p, nil
		}
	}
	return model.Person{}, ErrNotFound
}

// ListPersons implements PersonStore.
func (s *MemoryStore) ListPersons(ctx context.Context) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Person, 0, len(s.persons))
	for _, p := range s.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- actions ----

func (s *MemoryStore) actionNameTaken(kind model.Kind, name string, exceptID int64) bool {
	key := model.NameKey(name)
	for id, a := range s.actions {
		if id != exceptID && a.Kind == kind && model.NameKey(a.Name) == key {
			return true
		}
	}
	return false
}

// CreateAction implements ActionStore.
func (s *MemoryStore) CreateAction(ctx context.Context, a model.Action) (model.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(ctx); err != nil {
		return model.Action{}, err
	}
	if s.actionNameTaken(a.Kind, a.Name, 0) {
		return model.Action{}, ErrAlreadyExists
	}
	s.nextActionID++
	a.ID = s.nextActionID
	s.actions[a.ID] = a
	return a, nil
}

// UpdateAction implements ActionStore.
func (s *MemoryStore) UpdateAction(ctx context.Context, a model.Action) (model.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(ctx); err != nil {
		return model.Action{}, err
	}
	cur, ok := s.actions[a.ID]
	if !ok || cur.Kind != a.Kind {
		return model.Action{}, ErrNotFound
	}
	if s.actionNameTaken(a.Kind, a.Name, a.ID) {
		return model.Action{}, ErrAlreadyExists
	}
	s.actions[a.ID] = a
	return a, nil
}

// DeleteAction implements ActionStore.
func (s *MemoryStore) DeleteAction(ctx context.Context, kind model.Kind, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(ctx); err != nil {
		return err
	}
	cur, ok := s.actions[id]
	if !ok || cur.Kind != kind {
		return ErrNotFound
	}
	for _, a := range s.assignments {
		if a.ItemType == kind && a.ItemID == id {
			return ErrInUse
		}
	}
	delete(s.actions, id)
	return nil
}

// FindActionByID implements ActionStore.
func (s *MemoryStore) FindActionByID(ctx context.Context, kind model.Kind, id int64) (model.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(ctx); err != nil {
		return model.Action{}, err
	}
	a, ok := s.actions[id]
	if !ok || a.Kind != kind {
		return model.Action{}, ErrNotFound
	}
	return a, nil
}

// FindActionByName implements ActionStore.
func (s *MemoryStore) FindActionByName(ctx context.Context, kind model.Kind, name string) (model.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(ctx); err != nil {
		return model.Action{}, err
	}
	key := model.NameKey(name)
	for _, a := range s.actions {
		if a.Kind == kind && model.NameKey(a.Name) == key {
			return a, nil
		}
	}
	return model.Action{}, ErrNotFound
}

// ListActions implements ActionStore.
func (s *MemoryStore) ListActions(ctx context.Context, kind model.Kind) ([]model.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Action, 0)
	for _, a := range s.actions {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- assignments ----

func (s *MemoryStore) insertAssignment(a model.Assignment) (model.Assignment, error) {
	if _, ok := s.persons[a.PersonID]; !ok {
		return model.Assignment{}, ErrNotFound
	}
	if act, ok := s.actions[a.ItemID]; !ok || act.Kind != a.ItemType {
		return model.Assignment{}, ErrNotFound
	}
	s.nextAssignmentID++
	a.ID = s.nextAssignmentID
	s.assignments[a.ID] = a
	return a, nil
}

// CreateAssignment implements AssignmentStore.
func (s *MemoryStore) CreateAssignment(ctx context.Context, a model.Assignment) (model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(ctx); err != nil {
		return model.Assignment{}, err
	}
	return s.insertAssignment(a)
}

// CreateAssignments implements AssignmentBatcher. Either every row is stored or none.
func (s *MemoryStore) CreateAssignments(ctx context.Context, as []model.Assignment) ([]model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	nextID := s.nextAssignmentID
	out := make([]model.Assignment, 0, len(as))
	for _, a := range as {
		created, err := s.insertAssignment(a)
		if err != nil {
			for _, c := range out {
				delete(s.assignments, c.ID)
			}
			s.nextAssignmentID = nextID
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

// DeleteAssignment implements AssignmentStore.
func (s *MemoryStore) DeleteAssignment(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, ok := s.assignments[id]; !ok {
		return ErrNotFound
	}
	delete(s.assignments, id)
	return nil
}

// FindAssignmentByID implements AssignmentStore.
func (s *MemoryStore) FindAssignmentByID(ctx context.Context, id int64) (model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(ctx); err != nil {
		return model.Assignment{}, err
	}
	a, ok := s.assignments[id]
	if !ok {
		return model.Assignment{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) filterAssignments(ctx context.Context, keep func(model.Assignment) bool) ([]model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Assignment, 0)
	for _, a := range s.assignments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return assignedBefore(out[i], out[j]) })
	return out, nil
}

// assignedBefore orders by AssignedAt, then ID.
func assignedBefore(a, b model.Assignment) bool {
	if !a.AssignedAt.Equal(b.AssignedAt) {
		return a.AssignedAt.Before(b.AssignedAt)
	}
	return a.ID < b.ID
}

// ListAssignments implements AssignmentStore.
func (s *MemoryStore) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	return s.filterAssignments(ctx, func(model.Assignment) bool { return true })
}

// ListAssignmentsByPerson implements AssignmentStore.
func (s *MemoryStore) ListAssignmentsByPerson(ctx context.Context, personID int64) ([]model.Assignment, error) {
	return s.filterAssignments(ctx, func(a model.Assignment) bool { return a.PersonID == personID })
}

// ListAssignmentsByDateRange implements AssignmentStore.
func (s *MemoryStore) ListAssignmentsByDateRange(ctx context.Context, r Range) ([]model.Assignment, error) {
	return s.filterAssignments(ctx, func(a model.Assignment) bool { return r.Contains(a.AssignedAt) })
}

// RecentAssignments implements AssignmentStore.
func (s *MemoryStore) RecentAssignments(ctx context.Context, limit int) ([]model.Assignment, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	all, err := s.ListAssignments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Assignment, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// CountAssignmentsByPerson implements AssignmentStore.
func (s *MemoryStore) CountAssignmentsByPerson(ctx context.Context, personID int64) (int, error) {
	rows, err := s.ListAssignmentsByPerson(ctx, personID)
	return len(rows), err
}

// CountAssignmentsByAction implements AssignmentStore.
func (s *MemoryStore) CountAssignmentsByAction(ctx context.Context, kind model.Kind, actionID int64) (int, error) {
	rows, err := s.filterAssignments(ctx, func(a model.Assignment) bool {
		return a.ItemType == kind && a.ItemID == actionID
	})
	return len(rows), err
}

// SumByPerson implements AssignmentStore.
func (s *MemoryStore) SumByPerson(ctx context.Context, r *Range) ([]Tally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	byPerson := make(map[int64]*Tally)
	for _, a := range s.assignments {
		if r != nil && !r.Contains(a.AssignedAt) {
			continue
		}
		t, ok := byPerson[a.PersonID]
		if !ok {
			t = &Tally{PersonID: a.PersonID}
			byPerson[a.PersonID] = t
		}
		t.Total += a.ItemValue
		t.Count++
	}
	out := make([]Tally, 0, len(byPerson))
	for _, t := range byPerson {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
