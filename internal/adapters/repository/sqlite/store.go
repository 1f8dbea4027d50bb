// Package sqlite provides a SQLite-backed repository.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/adapters/repository/sqlite/migrations"
	"github.com/okian/tally/internal/domain/model"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const assignmentColumns = `id, person_id, item_type, item_id, item_name, item_value, assigned_at`

// Store persists people, actions and assignments in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// ceilMillis rounds a lower bound up so sub-millisecond From values stay exclusive.
func ceilMillis(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.Sub(time.UnixMilli(ms)) > 0 {
		ms++
	}
	return ms
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func sqliteCode(err error) int {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()
	}
	return 0
}

func isUniqueViolation(err error) bool {
	switch sqliteCode(err) {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if sqliteCode(err) == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

// requireAffected maps "no row touched" to ErrNotFound.
func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ---- persons ----

// CreatePerson implements repository.PersonStore.
func (s *Store) CreatePerson(ctx context.Context, p model.Person) (model.Person, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO persons (name, name_key) VALUES (?, ?)`,
		p.Name, model.NameKey(p.Name),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Person{}, repository.ErrAlreadyExists
		}
		return model.Person{}, fmt.Errorf("create person: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Person{}, fmt.Errorf("create person: %w", err)
	}
	p.ID = id
	return p, nil
}

// UpdatePerson implements repository.PersonStore.
func (s *Store) UpdatePerson(ctx context.Context, p model.Person) (model.Person, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE persons SET name = ?, name_key = ? WHERE id = ?`,
		p.Name, model.NameKey(p.Name), p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Person{}, repository.ErrAlreadyExists
		}
		return model.Person{}, fmt.Errorf("update person: %w", err)
	}
	if err := requireAffected(res, "update person"); err != nil {
		return model.Person{}, err
	}
	return p, nil
}

// DeletePerson implements repository.PersonStore.
func (s *Store) DeletePerson(ctx context.Context, id int64) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrInUse
		}
		return fmt.Errorf("delete person: %w", err)
	}
	return requireAffected(res, "delete person")
}

func scanPerson(row interface{ Scan(...any) error }) (model.Person, error) {
	var p model.Person
	if err := row.Scan(&p.ID, &p.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Person{}, repository.ErrNotFound
		}
		return model.Person{}, err
	}
	return p, nil
}

// FindPersonByID implements repository.PersonStore.
func (s *Store) FindPersonByID(ctx context.Context, id int64) (model.Person, error) {
	p, err := scanPerson(s.sqlDB.QueryRowContext(ctx, `SELECT id, name FROM persons WHERE id = ?`, id))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.Person{}, fmt.Errorf("find person: %w", err)
	}
	return p, err
}

// FindPersonByName implements repository.PersonStore.
func (s *Store) FindPersonByName(ctx context.Context, name string) (model.Person, error) {
	p, err := scanPerson(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name FROM persons WHERE name_key = ?`, model.NameKey(name)))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.Person{}, fmt.Errorf("find person by name: %w", err)
	}
	return p, err
}

// ListPersons implements repository.PersonStore.
func (s *Store) ListPersons(ctx context.Context) ([]model.Person, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name FROM persons ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	out := make([]model.Person, 0)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("list persons: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	return out, nil
}

// ---- actions ----

// CreateAction implements repository.ActionStore.
func (s *Store) CreateAction(ctx context.Context, a model.Action) (model.Action, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO actions (kind, name, name_key, value) VALUES (?, ?, ?, ?)`,
		string(a.Kind), a.Name, model.NameKey(a.Name), a.Value,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Action{}, repository.ErrAlreadyExists
		}
		return model.Action{}, fmt.Errorf("create action: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Action{}, fmt.Errorf("create action: %w", err)
	}
	a.ID = id
	return a, nil
}

// UpdateAction implements repository.ActionStore.
func (s *Store) UpdateAction(ctx context.Context, a model.Action) (model.Action, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE actions SET name = ?, name_key = ?, value = ? WHERE id = ? AND kind = ?`,
		a.Name, model.NameKey(a.Name), a.Value, a.ID, string(a.Kind),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Action{}, repository.ErrAlreadyExists
		}
		return model.Action{}, fmt.Errorf("update action: %w", err)
	}
	if err := requireAffected(res, "update action"); err != nil {
		return model.Action{}, err
	}
	return a, nil
}

// DeleteAction implements repository.ActionStore.
func (s *Store) DeleteAction(ctx context.Context, kind model.Kind, id int64) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM actions WHERE id = ? AND kind = ?`, id, string(kind))
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrInUse
		}
		return fmt.Errorf("delete action: %w", err)
	}
	return requireAffected(res, "delete action")
}

func scanAction(row interface{ Scan(...any) error }) (model.Action, error) {
	var (
		a    model.Action
		kind string
	)
	if err := row.Scan(&a.ID, &kind, &a.Name, &a.Value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Action{}, repository.ErrNotFound
		}
		return model.Action{}, err
	}
	a.Kind = model.Kind(kind)
	return a, nil
}

// FindActionByID implements repository.ActionStore.
func (s *Store) FindActionByID(ctx context.Context, kind model.Kind, id int64) (model.Action, error) {
	a, err := scanAction(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, kind, name, value FROM actions WHERE id = ? AND kind = ?`, id, string(kind)))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.Action{}, fmt.Errorf("find action: %w", err)
	}
	return a, err
}

// FindActionByName implements repository.ActionStore.
func (s *Store) FindActionByName(ctx context.Context, kind model.Kind, name string) (model.Action, error) {
	a, err := scanAction(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, kind, name, value FROM actions WHERE kind = ? AND name_key = ?`,
		string(kind), model.NameKey(name)))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.Action{}, fmt.Errorf("find action by name: %w", err)
	}
	return a, err
}

// ListActions implements repository.ActionStore.
func (s *Store) ListActions(ctx context.Context, kind model.Kind) ([]model.Action, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, kind, name, value FROM actions WHERE kind = ? ORDER BY id ASC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	out := make([]model.Action, 0)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("list actions: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return out, nil
}

// ---- assignments ----

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAssignment(ctx context.Context, db execer, a model.Assignment) (model.Assignment, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO assignments (person_id, item_type, item_id, item_name, item_value, assigned_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.PersonID, string(a.ItemType), a.ItemID, a.ItemName, a.ItemValue, toMillis(a.AssignedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.Assignment{}, repository.ErrNotFound
		}
		return model.Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	a.ID = id
	return a, nil
}

// CreateAssignment implements repository.AssignmentStore.
func (s *Store) CreateAssignment(ctx context.Context, a model.Assignment) (model.Assignment, error) {
	return insertAssignment(ctx, s.sqlDB, a)
}

// CreateAssignments implements repository.AssignmentBatcher in one transaction.
func (s *Store) CreateAssignments(ctx context.Context, as []model.Assignment) ([]model.Assignment, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin assignment batch: %w", err)
	}
	out := make([]model.Assignment, 0, len(as))
	for _, a := range as {
		created, err := insertAssignment(ctx, tx, a)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		out = append(out, created)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assignment batch: %w", err)
	}
	return out, nil
}

// DeleteAssignment implements repository.AssignmentStore.
func (s *Store) DeleteAssignment(ctx context.Context, id int64) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return requireAffected(res, "delete assignment")
}

func scanAssignment(row interface{ Scan(...any) error }) (model.Assignment, error) {
	var (
		a          model.Assignment
		itemType   string
		assignedAt int64
	)
	if err := row.Scan(&a.ID, &a.PersonID, &itemType, &a.ItemID, &a.ItemName, &a.ItemValue, &assignedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Assignment{}, repository.ErrNotFound
		}
		return model.Assignment{}, err
	}
	a.ItemType = model.Kind(itemType)
	a.AssignedAt = fromMillis(assignedAt)
	return a, nil
}

// FindAssignmentByID implements repository.AssignmentStore.
func (s *Store) FindAssignmentByID(ctx context.Context, id int64) (model.Assignment, error) {
	a, err := scanAssignment(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.Assignment{}, fmt.Errorf("find assignment: %w", err)
	}
	return a, err
}

func (s *Store) queryAssignments(ctx context.Context, op, where, order string, args ...any) ([]model.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY ` + order
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]model.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

const ascending = `assigned_at ASC, id ASC`

// ListAssignments implements repository.AssignmentStore.
func (s *Store) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	return s.queryAssignments(ctx, "list assignments", "", ascending)
}

// ListAssignmentsByPerson implements repository.AssignmentStore.
func (s *Store) ListAssignmentsByPerson(ctx context.Context, personID int64) ([]model.Assignment, error) {
	return s.queryAssignments(ctx, "list assignments by person", `person_id = ?`, ascending, personID)
}

// ListAssignmentsByDateRange implements repository.AssignmentStore.
func (s *Store) ListAssignmentsByDateRange(ctx context.Context, r repository.Range) ([]model.Assignment, error) {
	return s.queryAssignments(ctx, "list assignments by date range",
		`assigned_at >= ? AND assigned_at <= ?`, ascending, ceilMillis(r.From), toMillis(r.To))
}

// RecentAssignments implements repository.AssignmentStore.
func (s *Store) RecentAssignments(ctx context.Context, limit int) ([]model.Assignment, error) {
	if limit < 1 {
		return nil, repository.ErrInvalidLimit
	}
	return s.queryAssignments(ctx, "recent assignments", "", `assigned_at DESC, id DESC LIMIT ?`, limit)
}

func (s *Store) count(ctx context.Context, op, query string, args ...any) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// CountAssignmentsByPerson implements repository.AssignmentStore.
func (s *Store) CountAssignmentsByPerson(ctx context.Context, personID int64) (int, error) {
	return s.count(ctx, "count assignments by person",
		`SELECT COUNT(*) FROM assignments WHERE person_id = ?`, personID)
}

// CountAssignmentsByAction implements repository.AssignmentStore.
func (s *Store) CountAssignmentsByAction(ctx context.Context, kind model.Kind, actionID int64) (int, error) {
	return s.count(ctx, "count assignments by action",
		`SELECT COUNT(*) FROM assignments WHERE item_type = ? AND item_id = ?`, string(kind), actionID)
}

// SumByPerson implements repository.AssignmentStore.
func (s *Store) SumByPerson(ctx context.Context, r *repository.Range) ([]repository.Tally, error) {
	query := `SELECT person_id, SUM(item_value), COUNT(*) FROM assignments`
	var args []any
	if r != nil {
		query += ` WHERE assigned_at >= ? AND assigned_at <= ?`
		args = append(args, ceilMillis(r.From), toMillis(r.To))
	}
	query += ` GROUP BY person_id ORDER BY person_id ASC`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by person: %w", err)
	}
	defer rows.Close()

	out := make([]repository.Tally, 0)
	for rows.Next() {
		var t repository.Tally
		if err := rows.Scan(&t.PersonID, &t.Total, &t.Count); err != nil {
			return nil, fmt.Errorf("sum by person: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sum by person: %w", err)
	}
	return out, nil
}

var _ repository.Store = (*Store)(nil)
