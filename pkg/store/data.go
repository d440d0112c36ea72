package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/paulexconde/surveyflow/pkg/fault"
)

type dataStore[T any] struct {
	db        *sqlx.DB
	tablename string
	hooks     Hooks
	mu        sync.RWMutex
}

func NewDataStore[T any](db *sqlx.DB, tablename string) Datastorer[T] {
	return &dataStore[T]{
		db:        db,
		tablename: tablename,
	}
}

func (s *dataStore[T]) SetHooks(hooks Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks.PreSave = append(s.hooks.PreSave, hooks.PreSave...)
	s.hooks.PostSave = append(s.hooks.PostSave, hooks.PostSave...)
	s.hooks.AfterSaveCommit = append(s.hooks.AfterSaveCommit, hooks.AfterSaveCommit...)
}

func (s *dataStore[T]) currentHooks() Hooks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hooks
}

// mapError translates driver errors into fault sentinels.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fault.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique constraint violation
			return fmt.Errorf("%w: %s", fault.ErrUniqueViolation, pqErr.Constraint)
		case "23503": // foreign key violation
			return fmt.Errorf("%w: %s", fault.ErrForeignKeyViolation, pqErr.Constraint)
		}
	}

	return err
}

func (s *dataStore[T]) Get(ctx context.Context, query string, args ...any) (*T, error) {
	var result T

	if err := s.db.GetContext(ctx, &result, query, args...); err != nil {
		return nil, mapError(err)
	}

	return &result, nil
}

func (s *dataStore[T]) Select(ctx context.Context, query string, args ...any) ([]T, error) {
	results := []T{}

	if err := s.db.SelectContext(ctx, &results, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []T{}, nil
		}
		return nil, err
	}

	return results, nil
}

func (s *dataStore[T]) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

// save runs write inside a transaction surrounded by the save hooks.
func (s *dataStore[T]) save(ctx context.Context, data DTO, isNew bool, write func(tx *sqlx.Tx) error) (err error) {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	hooks := s.currentHooks()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, hook := range hooks.PreSave {
		if err = hook(ctx, tx, data, isNew); err != nil {
			return mapError(err)
		}
	}

	if err = write(tx); err != nil {
		return err
	}

	for _, hook := range hooks.PostSave {
		if err = hook(ctx, tx, data, isNew); err != nil {
			return mapError(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	for _, hook := range hooks.AfterSaveCommit {
		if after := hook(ctx, data, isNew); after != nil {
			after()
		}
	}

	return nil
}

func (s *dataStore[T]) Create(ctx context.Context, data DTO) error {
	return s.save(ctx, data, true, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, InsertQuery(s.tablename, data), data); err != nil {
			return mapError(err)
		}
		return nil
	})
}

func (s *dataStore[T]) Update(ctx context.Context, data DTO) error {
	return s.save(ctx, data, false, func(tx *sqlx.Tx) error {
		setClause, where := getUpdateClauseFromDTO(data)
		if setClause == "" {
			return fmt.Errorf("no fields to update")
		}

		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", s.tablename, setClause, where)

		res, err := tx.NamedExecContext(ctx, query, data)
		if err != nil {
			return mapError(err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			if _, versioned := data.(Versioned); versioned {
				return fault.ErrConflict
			}
			return fault.ErrNotFound
		}
		return nil
	})
}
