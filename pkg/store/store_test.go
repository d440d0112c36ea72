package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/paulexconde/surveyflow/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainRow struct {
	ID    string   `db:"id"`
	Title string   `db:"title"`
	Tags  []string `db:"tags"`
	Note  string   `db:"-"`
	Skip  string
}

func (plainRow) PrimaryKey() string { return "id" }

type titleRow struct {
	ID    string `db:"id"`
	Title string `db:"title"`
}

func (titleRow) PrimaryKey() string { return "id" }

type versionedRow struct {
	ID      string        `db:"id"`
	Visited pq.Int64Array `db:"visited"`
	Version int           `db:"version"`
}

func (versionedRow) PrimaryKey() string    { return "id" }
func (versionedRow) VersionColumn() string { return "version" }

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{"id", "title", "tags"}, Columns(plainRow{}))
	assert.Equal(t, []string{"id", "visited", "version"}, Columns(&versionedRow{}))
}

func TestInsertQuery(t *testing.T) {
	assert.Equal(t,
		"INSERT INTO rows (id, title, tags) VALUES (:id, :title, CAST(:tags AS text[]))",
		InsertQuery("rows", plainRow{}),
	)
	assert.Equal(t,
		"INSERT INTO rows (id, visited, version) VALUES (:id, :visited, :version)",
		InsertQuery("rows", &versionedRow{}),
	)
}

func TestUpdateClause(t *testing.T) {
	tests := []struct {
		name      string
		dto       DTO
		wantSet   string
		wantWhere string
	}{
		{
			name:      "plain",
			dto:       plainRow{},
			wantSet:   "title = :title, tags = CAST(:tags AS text[])",
			wantWhere: "id = :id",
		},
		{
			name:      "versioned",
			dto:       &versionedRow{},
			wantSet:   "visited = :visited, version = version + 1",
			wantWhere: "id = :id AND version = :version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, where := getUpdateClauseFromDTO(tt.dto)
			assert.Equal(t, tt.wantSet, set)
			assert.Equal(t, tt.wantWhere, where)
		})
	}
}

func newMockStore(t *testing.T) (Datastorer[versionedRow], sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewDataStore[versionedRow](sqlx.NewDb(db, "postgres"), "rows"), mock
}

func TestDataStore_UpdateRunsHooksInTransaction(t *testing.T) {
	ds, mock := newMockStore(t)

	var order []string
	committed := false
	ds.SetHooks(Hooks{
		PreSave: []func(ctx context.Context, tx *sqlx.Tx, data DTO, isNew bool) error{
			func(ctx context.Context, tx *sqlx.Tx, data DTO, isNew bool) error {
				order = append(order, "pre")
				return nil
			},
		},
		PostSave: []func(ctx context.Context, tx *sqlx.Tx, data DTO, isNew bool) error{
			func(ctx context.Context, tx *sqlx.Tx, data DTO, isNew bool) error {
				order = append(order, "post")
				_, err := tx.ExecContext(ctx, "INSERT INTO audit VALUES ($1)", "x")
				return err
			},
		},
		AfterSaveCommit: []func(ctx context.Context, data DTO, isNew bool) AfterSaveCommitHook{
			func(ctx context.Context, data DTO, isNew bool) AfterSaveCommitHook {
				return func() { committed = true }
			},
		},
	})

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE rows SET visited = \$1, version = version \+ 1 WHERE id = \$2 AND version = \$3`).
		WithArgs("{1,2}", "r1", 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := ds.Update(context.Background(), &versionedRow{ID: "r1", Visited: pq.Int64Array{1, 2}, Version: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"pre", "post"}, order)
	assert.True(t, committed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDataStore_HookFailureRollsBack(t *testing.T) {
	ds, mock := newMockStore(t)

	ds.SetHooks(Hooks{
		PostSave: []func(ctx context.Context, tx *sqlx.Tx, data DTO, isNew bool) error{
			func(ctx context.Context, tx *sqlx.Tx, data DTO, isNew bool) error {
				return &pq.Error{Code: "23505", Constraint: "answers_response_id_question_id_key"}
			},
		},
	})

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO rows`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := ds.Create(context.Background(), &versionedRow{ID: "r1"})
	assert.ErrorIs(t, err, fault.ErrUniqueViolation)
	assert.Contains(t, err.Error(), "answers_response_id_question_id_key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDataStore_UpdateMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := NewDataStore[titleRow](sqlx.NewDb(db, "postgres"), "rows")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE rows SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = ds.Update(context.Background(), titleRow{ID: "gone"})
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, mapError(&pq.Error{Code: "23503"}), fault.ErrForeignKeyViolation)

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
}
