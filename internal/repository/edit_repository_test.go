package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/permitdata/ahj-registry-api/internal/models"
)

func newEditRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func editRowColumns() []string {
	return []string{
		"id", "changed_by", "approved_by", "ahj_id", "source_table", "source_row", "source_column",
		"review_status", "old_value", "new_value", "date_requested", "date_effective", "is_applied", "edit_type", "source_comment",
	}
}

func TestEditRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newEditRepoMock(t)
	defer cleanup()

	repo := NewEditRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO edits")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	edit := &models.Edit{
		ChangedBy:    "user-1",
		SourceTable:  "AHJ",
		SourceRow:    42,
		SourceColumn: "AHJName",
		OldValue:     "Springfield",
		NewValue:     "Springfield County",
	}
	require.NoError(t, repo.Create(context.Background(), edit))
	require.Equal(t, int64(7), edit.ID)
	require.Equal(t, models.ReviewStatusPending, edit.ReviewStatus)
	require.Equal(t, models.EditTypeUpdate, edit.EditType)
	require.False(t, edit.DateRequested.IsZero())

	rows := sqlmock.NewRows(editRowColumns()).
		AddRow(int64(7), "user-1", nil, nil, "AHJ", int64(42), "AHJName",
			"PENDING", "Springfield", "Springfield County", time.Now(), nil, false, "UPDATE", "")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, changed_by")).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "AHJName", found.SourceColumn)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEditRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newEditRepoMock(t)
	defer cleanup()

	repo := NewEditRepository(db)
	rows := sqlmock.NewRows(editRowColumns()).
		AddRow(int64(3), "user-2", nil, int64(9), "Contact", int64(5), "ContactStatus",
			"PENDING", "", "True", time.Now(), nil, false, "ADDITION", "")
	ahjID := int64(9)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, changed_by")).
		WithArgs(ahjID, "PENDING", "Contact").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.EditFilter{
		AHJID:       &ahjID,
		Status:      []models.ReviewStatus{models.ReviewStatusPending},
		SourceTable: "Contact",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, models.EditTypeAddition, list[0].EditType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEditRepositoryListDue(t *testing.T) {
	db, mock, cleanup := newEditRepoMock(t)
	defer cleanup()

	repo := NewEditRepository(db)
	now := time.Now()
	effective := now.Add(-time.Hour)
	rows := sqlmock.NewRows(editRowColumns()).
		AddRow(int64(1), "user-1", "admin-1", int64(2), "AHJ", int64(2), "AHJName",
			"APPROVED", "Old", "New", now.Add(-48*time.Hour), effective, false, "UPDATE", "")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, changed_by")).
		WithArgs("APPROVED", now).
		WillReturnRows(rows)

	due, err := repo.ListDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.True(t, due[0].DateEffective.Before(now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEditRepositoryReviewAndReset(t *testing.T) {
	db, mock, cleanup := newEditRepoMock(t)
	defer cleanup()

	repo := NewEditRepository(db)
	effective := time.Now().Add(24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE edits SET review_status")).
		WithArgs("APPROVED", "admin-1", effective, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateReview(context.Background(), 4, models.ReviewStatusApproved, "admin-1", effective))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE edits SET review_status")).
		WithArgs("APPROVED", "admin-1", effective, int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateReview(context.Background(), 99, models.ReviewStatusApproved, "admin-1", effective)
	require.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectBegin()
	tx, err := db.Beginx()
	require.NoError(t, err)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE edits SET review_status = $1, approved_by = NULL")).
		WithArgs("PENDING", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MakePendingTx(context.Background(), tx, 4))
	mock.ExpectCommit()
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEditRepositoryHasLaterApproved(t *testing.T) {
	db, mock, cleanup := newEditRepoMock(t)
	defer cleanup()

	repo := NewEditRepository(db)
	effective := time.Now()
	edit := &models.Edit{
		ID:            10,
		SourceTable:   "AHJ",
		SourceRow:     1,
		SourceColumn:  "AHJName",
		DateEffective: &effective,
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("AHJ", int64(1), "AHJName", "APPROVED", int64(10), effective).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	later, err := repo.HasLaterApproved(context.Background(), edit)
	require.NoError(t, err)
	require.True(t, later)

	// never-approved edits have no effective date and nothing can supersede them
	edit.DateEffective = nil
	later, err = repo.HasLaterApproved(context.Background(), edit)
	require.NoError(t, err)
	require.False(t, later)
	require.NoError(t, mock.ExpectationsWereMet())
}
