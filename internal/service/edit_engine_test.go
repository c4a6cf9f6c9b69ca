package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/permitdata/ahj-registry-api/internal/models"
)

type stubFields struct {
	values  map[string]string
	missing map[string]bool
}

func newStubFields() *stubFields {
	return &stubFields{values: map[string]string{}, missing: map[string]bool{}}
}

func fieldKey(table string, row int64, column string) string {
	return fmt.Sprintf("%s/%d/%s", table, row, column)
}

func rowKey(table string, row int64) string {
	return fmt.Sprintf("%s/%d", table, row)
}

func (s *stubFields) GetValue(_ context.Context, table string, row int64, column string) (string, error) {
	if s.missing[rowKey(table, row)] {
		return "", sql.ErrNoRows
	}
	return s.values[fieldKey(table, row, column)], nil
}

func (s *stubFields) SetValueTx(_ context.Context, _ *sqlx.Tx, table string, row int64, column, value string) error {
	if s.missing[rowKey(table, row)] {
		return sql.ErrNoRows
	}
	s.values[fieldKey(table, row, column)] = value
	return nil
}

func (s *stubFields) Exists(_ context.Context, table string, row int64) (bool, error) {
	return !s.missing[rowKey(table, row)], nil
}

type stubLedger struct {
	nextID    int64
	due       []models.Edit
	rejected  []models.Edit
	created   []*models.Edit
	applied   map[int64]bool
	pending   map[int64]bool
	oldValues map[int64]string
	later     bool
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		nextID:    100,
		applied:   map[int64]bool{},
		pending:   map[int64]bool{},
		oldValues: map[int64]string{},
	}
}

func (s *stubLedger) CreateTx(_ context.Context, _ *sqlx.Tx, edit *models.Edit) error {
	s.nextID++
	edit.ID = s.nextID
	s.created = append(s.created, edit)
	return nil
}

func (s *stubLedger) ListDue(_ context.Context, _ time.Time) ([]models.Edit, error) {
	return s.due, nil
}

func (s *stubLedger) ListRejectedAdditionsDue(_ context.Context, _ time.Time) ([]models.Edit, error) {
	return s.rejected, nil
}

func (s *stubLedger) MarkAppliedTx(_ context.Context, _ *sqlx.Tx, id int64) error {
	s.applied[id] = true
	return nil
}

func (s *stubLedger) MakePendingTx(_ context.Context, _ *sqlx.Tx, id int64) error {
	s.pending[id] = true
	return nil
}

func (s *stubLedger) UpdateOldValueTx(_ context.Context, _ *sqlx.Tx, id int64, oldValue string) error {
	s.oldValues[id] = oldValue
	return nil
}

func (s *stubLedger) HasLaterApproved(_ context.Context, _ *models.Edit) (bool, error) {
	return s.later, nil
}

func newEngineFixture(t *testing.T) (*EditEngine, *stubLedger, *stubFields, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	ledger := newStubLedger()
	fields := newStubFields()
	engine := NewEditEngine(sqlx.NewDb(db, "sqlmock"), ledger, fields, zap.NewNop())
	return engine, ledger, fields, mock, func() { db.Close() }
}

func expectTx(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectCommit()
}

func approvedEdit(id int64, column, oldValue, newValue string, effective time.Time) models.Edit {
	approver := "admin-1"
	return models.Edit{
		ID:            id,
		ChangedBy:     "user-1",
		ApprovedBy:    &approver,
		SourceTable:   "AHJ",
		SourceRow:     1,
		SourceColumn:  column,
		ReviewStatus:  models.ReviewStatusApproved,
		OldValue:      oldValue,
		NewValue:      newValue,
		DateRequested: effective.Add(-48 * time.Hour),
		DateEffective: &effective,
		EditType:      models.EditTypeUpdate,
	}
}

func TestApplyEditsChainConverges(t *testing.T) {
	engine, ledger, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	base := time.Now().Add(-3 * time.Hour)
	fields.values[fieldKey("AHJ", 1, "AHJName")] = "A"
	candidates := []models.Edit{
		approvedEdit(1, "AHJName", "A", "B", base),
		approvedEdit(2, "AHJName", "B", "C", base.Add(time.Hour)),
		approvedEdit(3, "AHJName", "C", "D", base.Add(2*time.Hour)),
	}
	for range candidates {
		expectTx(mock)
	}

	applied, err := engine.ApplyEdits(context.Background(), candidates)
	require.NoError(t, err)
	require.Equal(t, 3, applied)
	require.Equal(t, "D", fields.values[fieldKey("AHJ", 1, "AHJName")])
	for _, c := range candidates {
		require.True(t, ledger.applied[c.ID])
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEditsOrdersByEffectiveTime(t *testing.T) {
	engine, ledger, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	// A chained batch handed over out of order must still land on the
	// final value.
	base := time.Now().Add(-3 * time.Hour)
	fields.values[fieldKey("AHJ", 1, "AHJName")] = "A"
	candidates := []models.Edit{
		approvedEdit(3, "AHJName", "C", "D", base.Add(2*time.Hour)),
		approvedEdit(1, "AHJName", "A", "B", base),
		approvedEdit(2, "AHJName", "B", "C", base.Add(time.Hour)),
	}
	for range candidates {
		expectTx(mock)
	}

	applied, err := engine.ApplyEdits(context.Background(), candidates)
	require.NoError(t, err)
	require.Equal(t, 3, applied)
	require.Equal(t, "D", fields.values[fieldKey("AHJ", 1, "AHJName")])
	for id := int64(1); id <= 3; id++ {
		require.True(t, ledger.applied[id])
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEditsLoadsDueSet(t *testing.T) {
	engine, ledger, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	effective := time.Now().Add(-time.Hour)
	fields.values[fieldKey("AHJ", 1, "City")] = "Springfield"
	ledger.due = []models.Edit{approvedEdit(5, "City", "Springfield", "Shelbyville", effective)}
	expectTx(mock)

	applied, err := engine.ApplyEdits(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, applied)
	require.Equal(t, "Shelbyville", fields.values[fieldKey("AHJ", 1, "City")])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEditsRetiresStaleTarget(t *testing.T) {
	engine, ledger, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	effective := time.Now().Add(-time.Hour)
	edit := approvedEdit(8, "AHJName", "A", "B", effective)
	edit.SourceRow = 99
	fields.missing[rowKey("AHJ", 99)] = true
	expectTx(mock)

	applied, err := engine.ApplyEdits(context.Background(), []models.Edit{edit})
	require.NoError(t, err)
	require.Equal(t, 1, applied)
	// no write happened, but the edit is retired so it never comes due again
	require.Empty(t, fields.values)
	require.True(t, ledger.applied[int64(8)])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEditsDemotesRejectedAdditions(t *testing.T) {
	engine, ledger, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	effective := time.Now().Add(-time.Hour)
	rejected := approvedEdit(11, "ContactStatus", "", models.BoolValueTrue, effective)
	rejected.SourceTable = "Contact"
	rejected.ReviewStatus = models.ReviewStatusRejected
	rejected.EditType = models.EditTypeAddition
	ledger.rejected = []models.Edit{rejected}
	expectTx(mock)

	applied, err := engine.ApplyEdits(context.Background(), []models.Edit{})
	require.NoError(t, err)
	require.Zero(t, applied)
	require.Equal(t, models.BoolValueFalse, fields.values[fieldKey("Contact", 1, "ContactStatus")])
	require.True(t, ledger.applied[int64(11)])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevertEditRestoresPriorValue(t *testing.T) {
	engine, ledger, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	effective := time.Now().Add(-time.Hour)
	edit := approvedEdit(20, "AHJName", "oldname", "newname", effective)
	edit.IsApplied = true
	fields.values[fieldKey("AHJ", 1, "AHJName")] = "newname"
	expectTx(mock)

	corrective, err := engine.RevertEdit(context.Background(), "admin-2", &edit)
	require.NoError(t, err)
	require.NotNil(t, corrective)
	require.Equal(t, "oldname", fields.values[fieldKey("AHJ", 1, "AHJName")])
	require.Equal(t, "newname", corrective.OldValue)
	require.Equal(t, "oldname", corrective.NewValue)
	require.Equal(t, models.ReviewStatusApproved, corrective.ReviewStatus)
	require.True(t, corrective.IsApplied)
	require.NotNil(t, corrective.ApprovedBy)
	require.Equal(t, "admin-2", *corrective.ApprovedBy)
	require.Len(t, ledger.created, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevertEditReadsLiveValue(t *testing.T) {
	engine, ledger, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	// E1 took the field A->B, E2 later took it B->C. Reverting E1 must
	// record C, the live value, as the corrective old value.
	base := time.Now().Add(-2 * time.Hour)
	e1 := approvedEdit(30, "AHJName", "A", "B", base)
	e1.IsApplied = true
	fields.values[fieldKey("AHJ", 1, "AHJName")] = "C"
	expectTx(mock)

	corrective, err := engine.RevertEdit(context.Background(), "admin-1", &e1)
	require.NoError(t, err)
	require.NotNil(t, corrective)
	require.Equal(t, "C", corrective.OldValue)
	require.Equal(t, "A", corrective.NewValue)
	require.Equal(t, "A", fields.values[fieldKey("AHJ", 1, "AHJName")])
	require.Len(t, ledger.created, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevertEditNoOps(t *testing.T) {
	engine, ledger, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	pending := approvedEdit(40, "AHJName", "A", "B", time.Now())
	pending.ReviewStatus = models.ReviewStatusPending
	corrective, err := engine.RevertEdit(context.Background(), "admin-1", &pending)
	require.NoError(t, err)
	require.Nil(t, corrective)

	// live value already equals the target: nothing to undo
	settled := approvedEdit(41, "AHJName", "A", "B", time.Now().Add(-time.Hour))
	settled.IsApplied = true
	fields.values[fieldKey("AHJ", 1, "AHJName")] = "A"
	corrective, err = engine.RevertEdit(context.Background(), "admin-1", &settled)
	require.NoError(t, err)
	require.Nil(t, corrective)
	require.Empty(t, ledger.created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevertEditMirrorsKind(t *testing.T) {
	engine, _, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	effective := time.Now().Add(-time.Hour)
	addition := approvedEdit(50, "ContactStatus", models.BoolValueFalse, models.BoolValueTrue, effective)
	addition.SourceTable = "Contact"
	addition.EditType = models.EditTypeAddition
	addition.IsApplied = true
	fields.values[fieldKey("Contact", 1, "ContactStatus")] = models.BoolValueTrue
	expectTx(mock)

	corrective, err := engine.RevertEdit(context.Background(), "admin-1", &addition)
	require.NoError(t, err)
	require.NotNil(t, corrective)
	require.Equal(t, models.EditTypeDeletion, corrective.EditType)
	require.Equal(t, models.BoolValueFalse, fields.values[fieldKey("Contact", 1, "ContactStatus")])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevertEditAdditionNegatesStatusFlag(t *testing.T) {
	engine, ledger, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	// An addition's old value is empty: the status flag was never written
	// before the edit. Reverting must flip the flag to False, not restore
	// the empty value.
	effective := time.Now().Add(-time.Hour)
	addition := approvedEdit(55, "ContactStatus", "", models.BoolValueTrue, effective)
	addition.SourceTable = "Contact"
	addition.EditType = models.EditTypeAddition
	addition.IsApplied = true
	fields.values[fieldKey("Contact", 1, "ContactStatus")] = models.BoolValueTrue
	expectTx(mock)

	corrective, err := engine.RevertEdit(context.Background(), "admin-1", &addition)
	require.NoError(t, err)
	require.NotNil(t, corrective)
	require.Equal(t, models.BoolValueTrue, corrective.OldValue)
	require.Equal(t, models.BoolValueFalse, corrective.NewValue)
	require.Equal(t, models.BoolValueFalse, fields.values[fieldKey("Contact", 1, "ContactStatus")])
	require.Len(t, ledger.created, 1)

	// once the flag sits at False the revert is settled
	corrective, err = engine.RevertEdit(context.Background(), "admin-1", &addition)
	require.NoError(t, err)
	require.Nil(t, corrective)
	require.Len(t, ledger.created, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetEditInPlace(t *testing.T) {
	engine, ledger, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	effective := time.Now().Add(-time.Hour)
	edit := approvedEdit(60, "AHJName", "oldname", "newname", effective)
	edit.IsApplied = true
	fields.values[fieldKey("AHJ", 1, "AHJName")] = "newname"
	expectTx(mock)

	corrective, err := engine.ResetEdit(context.Background(), "admin-1", &edit)
	require.NoError(t, err)
	require.Nil(t, corrective)
	require.Equal(t, "oldname", fields.values[fieldKey("AHJ", 1, "AHJName")])
	require.Equal(t, models.ReviewStatusPending, edit.ReviewStatus)
	require.Nil(t, edit.ApprovedBy)
	require.Nil(t, edit.DateEffective)
	require.False(t, edit.IsApplied)
	require.True(t, ledger.pending[int64(60)])
	require.Empty(t, ledger.created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetEditSupersededFallsBackToRevert(t *testing.T) {
	engine, ledger, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	effective := time.Now().Add(-2 * time.Hour)
	edit := approvedEdit(70, "AHJName", "A", "B", effective)
	edit.IsApplied = true
	ledger.later = true
	fields.values[fieldKey("AHJ", 1, "AHJName")] = "C"
	expectTx(mock)

	corrective, err := engine.ResetEdit(context.Background(), "admin-1", &edit)
	require.NoError(t, err)
	require.NotNil(t, corrective)
	// the original row is left approved and applied
	require.Equal(t, models.ReviewStatusApproved, edit.ReviewStatus)
	require.True(t, edit.IsApplied)
	require.False(t, ledger.pending[int64(70)])
	require.Equal(t, "C", corrective.OldValue)
	require.Equal(t, "A", corrective.NewValue)
	require.Equal(t, "A", fields.values[fieldKey("AHJ", 1, "AHJName")])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetEditRejectedStaysInPlace(t *testing.T) {
	engine, ledger, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	// A rejected edit never wrote the field, so even with a later approved
	// edit on the same target it re-pends in place. Falling back to a
	// corrective revert here would clobber the live value.
	effective := time.Now().Add(-2 * time.Hour)
	edit := approvedEdit(75, "AHJName", "A", "B", effective)
	edit.ReviewStatus = models.ReviewStatusRejected
	edit.ApprovedBy = nil
	ledger.later = true
	fields.values[fieldKey("AHJ", 1, "AHJName")] = "C"
	expectTx(mock)

	corrective, err := engine.ResetEdit(context.Background(), "admin-1", &edit)
	require.NoError(t, err)
	require.Nil(t, corrective)
	require.Equal(t, "C", fields.values[fieldKey("AHJ", 1, "AHJName")])
	require.Equal(t, models.ReviewStatusPending, edit.ReviewStatus)
	require.Equal(t, "C", edit.OldValue)
	require.True(t, ledger.pending[int64(75)])
	require.Empty(t, ledger.created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetEditUnappliedRefreshesOldValue(t *testing.T) {
	engine, ledger, fields, mock, cleanup := newEngineFixture(t)
	defer cleanup()

	effective := time.Now().Add(24 * time.Hour)
	edit := approvedEdit(80, "AHJName", "A", "B", effective)
	fields.values[fieldKey("AHJ", 1, "AHJName")] = "Z"
	expectTx(mock)

	corrective, err := engine.ResetEdit(context.Background(), "admin-1", &edit)
	require.NoError(t, err)
	require.Nil(t, corrective)
	// the approved-but-unapplied edit never touched the field
	require.Equal(t, "Z", fields.values[fieldKey("AHJ", 1, "AHJName")])
	require.Equal(t, "Z", ledger.oldValues[int64(80)])
	require.Equal(t, "Z", edit.OldValue)
	require.Equal(t, models.ReviewStatusPending, edit.ReviewStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEditIsResettable(t *testing.T) {
	engine, ledger, _, _, cleanup := newEngineFixture(t)
	defer cleanup()

	effective := time.Now()
	edit := approvedEdit(90, "AHJName", "A", "B", effective)
	edit.IsApplied = true

	ok, err := engine.EditIsResettable(context.Background(), &edit)
	require.NoError(t, err)
	require.True(t, ok)

	// an applied edit superseded by a later approved one is not
	ledger.later = true
	ok, err = engine.EditIsResettable(context.Background(), &edit)
	require.NoError(t, err)
	require.False(t, ok)

	// approved but not yet applied: always resettable
	edit.IsApplied = false
	ok, err = engine.EditIsResettable(context.Background(), &edit)
	require.NoError(t, err)
	require.True(t, ok)

	// rejected: always resettable
	edit.ReviewStatus = models.ReviewStatusRejected
	edit.IsApplied = true
	ok, err = engine.EditIsResettable(context.Background(), &edit)
	require.NoError(t, err)
	require.True(t, ok)
}
