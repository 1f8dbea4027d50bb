// Package postgres provides a PostgreSQL-backed repository.Store on a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
)

// PostgreSQL error codes we translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

const assignmentColumns = `id, person_id, item_type, item_id, item_name, item_value, assigned_at`

// Default pool sizing.
const (
	defaultMaxConns        = 10
	defaultMinConns        = 1
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
)

// Option tunes the connection pool.
type Option func(*pgxpool.Config)

// WithMaxConns caps the pool size.
func WithMaxConns(n int32) Option {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// Store persists people, actions and assignments in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and ensures the schema exists.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = defaultMaxConns
	cfg.MinConns = defaultMinConns
	cfg.MaxConnLifetime = defaultMaxConnLifetime
	cfg.MaxConnIdleTime = defaultMaxConnIdleTime
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func notFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func requireAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ---- persons ----

// CreatePerson implements repository.PersonStore.
func (s *Store) CreatePerson(ctx context.Context, p model.Person) (model.Person, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO persons (name, name_key) VALUES ($1, $2) RETURNING id`,
		p.Name, model.NameKey(p.Name),
	).Scan(&p.ID)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return model.Person{}, repository.ErrAlreadyExists
		}
		return model.Person{}, fmt.Errorf("create person: %w", err)
	}
	return p, nil
}

// UpdatePerson implements repository.PersonStore.
func (s *Store) UpdatePerson(ctx context.Context, p model.Person) (model.Person, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE persons SET name = $1, name_key = $2 WHERE id = $3`,
		p.Name, model.NameKey(p.Name), p.ID,
	)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return model.Person{}, repository.ErrAlreadyExists
		}
		return model.Person{}, fmt.Errorf("update person: %w", err)
	}
	if err := requireAffected(tag); err != nil {
		return model.Person{}, err
	}
	return p, nil
}

// DeletePerson implements repository.PersonStore.
func (s *Store) DeletePerson(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return repository.ErrInUse
		}
		return fmt.Errorf("delete person: %w", err)
	}
	return requireAffected(tag)
}

func (s *Store) findPerson(ctx context.Context, op, query string, arg any) (model.Person, error) {
	var p model.Person
	if err := s.pool.QueryRow(ctx, query, arg).Scan(&p.ID, &p.Name); err != nil {
		if notFound(err) {
			return model.Person{}, repository.ErrNotFound
		}
		return model.Person{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// FindPersonByID implements repository.PersonStore.
func (s *Store) FindPersonByID(ctx context.Context, id int64) (model.Person, error) {
	return s.findPerson(ctx, "find person", `SELECT id, name FROM persons WHERE id = $1`, id)
}

// FindPersonByName implements repository.PersonStore.
func (s *Store) FindPersonByName(ctx context.Context, name string) (model.Person, error) {
	return s.findPerson(ctx, "find person by name",
		`SELECT id, name FROM persons WHERE name_key = $1`, model.NameKey(name))
}

// ListPersons implements repository.PersonStore.
func (s *Store) ListPersons(ctx context.Context) ([]model.Person, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM persons ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Person, error) {
		var p model.Person
		err := row.Scan(&p.ID, &p.Name)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	return out, nil
}

// ---- actions ----

func scanAction(row pgx.Row) (model.Action, error) {
	var (
		a    model.Action
		kind string
	)
	if err := row.Scan(&a.ID, &kind, &a.Name, &a.Value); err != nil {
		return model.Action{}, err
	}
	a.Kind = model.Kind(kind)
	return a, nil
}

// CreateAction implements repository.ActionStore.
func (s *Store) CreateAction(ctx context.Context, a model.Action) (model.Action, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO actions (kind, name, name_key, value) VALUES ($1, $2, $3, $4) RETURNING id`,
		string(a.Kind), a.Name, model.NameKey(a.Name), a.Value,
	).Scan(&a.ID)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return model.Action{}, repository.ErrAlreadyExists
		}
		return model.Action{}, fmt.Errorf("create action: %w", err)
	}
	return a, nil
}

// UpdateAction implements repository.ActionStore.
func (s *Store) UpdateAction(ctx context.Context, a model.Action) (model.Action, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE actions SET name = $1, name_key = $2, value = $3 WHERE id = $4 AND kind = $5`,
		a.Name, model.NameKey(a.Name), a.Value, a.ID, string(a.Kind),
	)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return model.Action{}, repository.ErrAlreadyExists
		}
		return model.Action{}, fmt.Errorf("update action: %w", err)
	}
	if err := requireAffected(tag); err != nil {
		return model.Action{}, err
	}
	return a, nil
}

// DeleteAction implements repository.ActionStore.
func (s *Store) DeleteAction(ctx context.Context, kind model.Kind, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM actions WHERE id = $1 AND kind = $2`, id, string(kind))
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return repository.ErrInUse
		}
		return fmt.Errorf("delete action: %w", err)
	}
	return requireAffected(tag)
}

// FindActionByID implements repository.ActionStore.
func (s *Store) FindActionByID(ctx context.Context, kind model.Kind, id int64) (model.Action, error) {
	a, err := scanAction(s.pool.QueryRow(ctx,
		`SELECT id, kind, name, value FROM actions WHERE id = $1 AND kind = $2`, id, string(kind)))
	if err != nil {
		if notFound(err) {
			return model.Action{}, repository.ErrNotFound
		}
		return model.Action{}, fmt.Errorf("find action: %w", err)
	}
	return a, nil
}

// FindActionByName implements repository.ActionStore.
func (s *Store) FindActionByName(ctx context.Context, kind model.Kind, name string) (model.Action, error) {
	a, err := scanAction(s.pool.QueryRow(ctx,
		`SELECT id, kind, name, value FROM actions WHERE kind = $1 AND name_key = $2`,
		string(kind), model.NameKey(name)))
	if err != nil {
		if notFound(err) {
			return model.Action{}, repository.ErrNotFound
		}
		return model.Action{}, fmt.Errorf("find action by name: %w", err)
	}
	return a, nil
}

// ListActions implements repository.ActionStore.
func (s *Store) ListActions(ctx context.Context, kind model.Kind) ([]model.Action, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, name, value FROM actions WHERE kind = $1 ORDER BY id ASC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Action, error) {
		return scanAction(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return out, nil
}

// ---- assignments ----

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertAssignment(ctx context.Context, q querier, a model.Assignment) (model.Assignment, error) {
	err := q.QueryRow(ctx,
		`INSERT INTO assignments (person_id, item_type, item_id, item_name, item_value, assigned_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		a.PersonID, string(a.ItemType), a.ItemID, a.ItemName, a.ItemValue, a.AssignedAt.UTC(),
	).Scan(&a.ID)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return model.Assignment{}, repository.ErrNotFound
		}
		return model.Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	return a, nil
}

// CreateAssignment implements repository.AssignmentStore.
func (s *Store) CreateAssignment(ctx context.Context, a model.Assignment) (model.Assignment, error) {
	return insertAssignment(ctx, s.pool, a)
}

// CreateAssignments implements repository.AssignmentBatcher in one transaction.
func (s *Store) CreateAssignments(ctx context.Context, as []model.Assignment) ([]model.Assignment, error) {
	var out []model.Assignment
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		out = make([]model.Assignment, 0, len(as))
		for _, a := range as {
			created, err := insertAssignment(ctx, tx, a)
			if err != nil {
				return err
			}
			out = append(out, created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAssignment implements repository.AssignmentStore.
func (s *Store) DeleteAssignment(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return requireAffected(tag)
}

func scanAssignment(row pgx.Row) (model.Assignment, error) {
	var (
		a        model.Assignment
		itemType string
	)
	if err := row.Scan(&a.ID, &a.PersonID, &itemType, &a.ItemID, &a.ItemName, &a.ItemValue, &a.AssignedAt); err != nil {
		return model.Assignment{}, err
	}
	a.ItemType = model.Kind(itemType)
	a.AssignedAt = a.AssignedAt.UTC()
	return a, nil
}

// FindAssignmentByID implements repository.AssignmentStore.
func (s *Store) FindAssignmentByID(ctx context.Context, id int64) (model.Assignment, error) {
	a, err := scanAssignment(s.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id))
	if err != nil {
		if notFound(err) {
			return model.Assignment{}, repository.ErrNotFound
		}
		return model.Assignment{}, fmt.Errorf("find assignment: %w", err)
	}
	return a, nil
}

func (s *Store) queryAssignments(ctx context.Context, op, query string, args ...any) ([]model.Assignment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Assignment, error) {
		return scanAssignment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// ListAssignments implements repository.AssignmentStore.
func (s *Store) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	return s.queryAssignments(ctx, "list assignments",
		`SELECT `+assignmentColumns+` FROM assignments ORDER BY assigned_at, id`)
}

// ListAssignmentsByPerson implements repository.AssignmentStore.
func (s *Store) ListAssignmentsByPerson(ctx context.Context, personID int64) ([]model.Assignment, error) {
	return s.queryAssignments(ctx, "list assignments by person",
		`SELECT `+assignmentColumns+` FROM assignments WHERE person_id = $1 ORDER BY assigned_at, id`, personID)
}

// ListAssignmentsByDateRange implements repository.AssignmentStore.
func (s *Store) ListAssignmentsByDateRange(ctx context.Context, r repository.Range) ([]model.Assignment, error) {
	return s.queryAssignments(ctx, "list assignments by date range",
		`SELECT `+assignmentColumns+` FROM assignments
		  WHERE assigned_at >= $1 AND assigned_at <= $2
		  ORDER BY assigned_at, id`, r.From.UTC(), r.To.UTC())
}

// RecentAssignments implements repository.AssignmentStore.
func (s *Store) RecentAssignments(ctx context.Context, limit int) ([]model.Assignment, error) {
	if limit < 1 {
		return nil, repository.ErrInvalidLimit
	}
	return s.queryAssignments(ctx, "recent assignments",
		`SELECT `+assignmentColumns+` FROM assignments ORDER BY assigned_at DESC, id DESC LIMIT $1`, limit)
}

// CountAssignmentsByPerson implements repository.AssignmentStore.
func (s *Store) CountAssignmentsByPerson(ctx context.Context, personID int64) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assignments WHERE person_id = $1`, personID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count assignments by person: %w", err)
	}
	return n, nil
}

// CountAssignmentsByAction implements repository.AssignmentStore.
func (s *Store) CountAssignmentsByAction(ctx context.Context, kind model.Kind, actionID int64) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assignments WHERE item_type = $1 AND item_id = $2`,
		string(kind), actionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count assignments by action: %w", err)
	}
	return n, nil
}

// SumByPerson implements repository.AssignmentStore.
func (s *Store) SumByPerson(ctx context.Context, r *repository.Range) ([]repository.Tally, error) {
	query := `SELECT person_id, SUM(item_value)::BIGINT, COUNT(*) FROM assignments`
	var args []any
	if r != nil {
		query += ` WHERE assigned_at >= $1 AND assigned_at <= $2`
		args = append(args, r.From.UTC(), r.To.UTC())
	}
	query += ` GROUP BY person_id ORDER BY person_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by person: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.Tally, error) {
		var t repository.Tally
		err := row.Scan(&t.PersonID, &t.Total, &t.Count)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("sum by person: %w", err)
	}
	return out, nil
}

var _ repository.Store = (*Store)(nil)
