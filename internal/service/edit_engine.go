package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/permitdata/ahj-registry-api/internal/models"
	appErrors "github.com/permitdata/ahj-registry-api/pkg/errors"
)

// editLedger is the slice of the edit repository the engine depends on.
type editLedger interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, edit *models.Edit) error
	ListDue(ctx context.Context, now time.Time) ([]models.Edit, error)
	ListRejectedAdditionsDue(ctx context.Context, now time.Time) ([]models.Edit, error)
	MarkAppliedTx(ctx context.Context, tx *sqlx.Tx, id int64) error
	MakePendingTx(ctx context.Context, tx *sqlx.Tx, id int64) error
	UpdateOldValueTx(ctx context.Context, tx *sqlx.Tx, id int64, oldValue string) error
	HasLaterApproved(ctx context.Context, edit *models.Edit) (bool, error)
}

// fieldStore is the slice of the record store the engine depends on.
type fieldStore interface {
	GetValue(ctx context.Context, table string, row int64, column string) (string, error)
	SetValueTx(ctx context.Context, tx *sqlx.Tx, table string, row int64, column, value string) error
	Exists(ctx context.Context, table string, row int64) (bool, error)
}

// EditEngine applies, reverts, and resets ledger entries against the live
// records. Every mutation runs in its own transaction so the field write and
// the ledger bookkeeping commit or roll back together.
type EditEngine struct {
	db     *sqlx.DB
	ledger editLedger
	fields fieldStore
	log    *zap.Logger
	now    func() time.Time
}

// NewEditEngine constructs the engine.
func NewEditEngine(db *sqlx.DB, ledger editLedger, fields fieldStore, log *zap.Logger) *EditEngine {
	return &EditEngine{
		db:     db,
		ledger: ledger,
		fields: fields,
		log:    log,
		now:    time.Now,
	}
}

// ApplyEdits writes every approved, due, not-yet-applied edit into its
// target record. When candidates is nil the due set is loaded from the
// ledger. Per-edit failures are logged and skipped so one bad edit cannot
// block the rest of the batch. Returns the number of edits applied.
func (e *EditEngine) ApplyEdits(ctx context.Context, candidates []models.Edit) (int, error) {
	now := e.now()
	if candidates == nil {
		due, err := e.ledger.ListDue(ctx, now)
		if err != nil {
			return 0, err
		}
		candidates = due
	}

	// Apply in ledger order regardless of how the caller assembled the
	// batch. Chained edits on one field only converge when earlier
	// effective times are written first.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := &candidates[i], &candidates[j]
		switch {
		case a.DateEffective == nil && b.DateEffective != nil:
			return true
		case a.DateEffective != nil && b.DateEffective == nil:
			return false
		case a.DateEffective != nil && !a.DateEffective.Equal(*b.DateEffective):
			return a.DateEffective.Before(*b.DateEffective)
		}
		return a.ID < b.ID
	})

	applied := 0
	for i := range candidates {
		edit := &candidates[i]
		if err := e.applyOne(ctx, edit, edit.NewValue); err != nil {
			e.log.Error("apply edit failed",
				zap.Int64("edit_id", edit.ID),
				zap.String("target", editTarget(edit)),
				zap.Error(err))
			continue
		}
		applied++
	}

	if err := e.processRejectedAdditions(ctx, now); err != nil {
		e.log.Error("process rejected additions failed", zap.Error(err))
	}
	return applied, nil
}

// processRejectedAdditions demotes the unconfirmed records behind rejected
// addition edits once their effective time passes, so they stop lingering in
// limbo. The status field goes to False and the edit is retired.
func (e *EditEngine) processRejectedAdditions(ctx context.Context, now time.Time) error {
	rejected, err := e.ledger.ListRejectedAdditionsDue(ctx, now)
	if err != nil {
		return err
	}
	for i := range rejected {
		edit := &rejected[i]
		if err := e.applyOne(ctx, edit, models.BoolValueFalse); err != nil {
			e.log.Error("demote rejected addition failed",
				zap.Int64("edit_id", edit.ID), zap.Error(err))
		}
	}
	return nil
}

// applyOne commits a single value write plus its applied flag. A target
// record deleted since approval is not an error: the edit is logged and
// retired so the due set converges.
func (e *EditEngine) applyOne(ctx context.Context, edit *models.Edit, value string) error {
	exists, err := e.fields.Exists(ctx, edit.SourceTable, edit.SourceRow)
	if err != nil {
		return err
	}

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply tx: %w", err)
	}
	defer tx.Rollback()

	if !exists {
		e.log.Warn("edit target no longer exists, retiring edit",
			zap.Int64("edit_id", edit.ID),
			zap.String("target", editTarget(edit)))
	} else if err := e.fields.SetValueTx(ctx, tx, edit.SourceTable, edit.SourceRow, edit.SourceColumn, value); err != nil {
		return err
	}
	if err := e.ledger.MarkAppliedTx(ctx, tx, edit.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply tx: %w", err)
	}
	edit.IsApplied = true
	return nil
}

// RevertEdit undoes an edit by superseding it: a new approved, self-applied
// ledger entry restores the edit's prior value. The original row is never
// touched. The corrective entry records the current live value as its old
// value, because later edits may have moved the field since.
//
// For addition and deletion edits the restored value is the negation of the
// status flag the edit set, not the recorded old value: an addition starts
// from an unconfirmed record whose flag was never written, so its old value
// is empty.
//
// Reverting a pending edit, or one whose target already holds the restored
// value, is a no-op and returns nil.
func (e *EditEngine) RevertEdit(ctx context.Context, actor string, edit *models.Edit) (*models.Edit, error) {
	if edit.ReviewStatus == models.ReviewStatusPending {
		return nil, nil
	}

	live, err := e.fields.GetValue(ctx, edit.SourceTable, edit.SourceRow, edit.SourceColumn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "edit target no longer exists")
		}
		return nil, err
	}
	restored := revertValue(edit)
	if live == restored {
		return nil, nil
	}

	now := e.now()
	corrective := &models.Edit{
		ChangedBy:     actor,
		ApprovedBy:    &actor,
		AHJID:         edit.AHJID,
		SourceTable:   edit.SourceTable,
		SourceRow:     edit.SourceRow,
		SourceColumn:  edit.SourceColumn,
		ReviewStatus:  models.ReviewStatusApproved,
		OldValue:      live,
		NewValue:      restored,
		DateRequested: now,
		DateEffective: &now,
		IsApplied:     true,
		EditType:      mirrorEditType(edit.EditType),
	}

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin revert tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.fields.SetValueTx(ctx, tx, edit.SourceTable, edit.SourceRow, edit.SourceColumn, restored); err != nil {
		return nil, err
	}
	if err := e.ledger.CreateTx(ctx, tx, corrective); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit revert tx: %w", err)
	}
	return corrective, nil
}

// EditIsResettable reports whether the edit can be re-pended in place. A
// rejected edit never wrote the field, and neither did an approved edit
// still waiting on its effective time, so both are always resettable. An
// applied edit is resettable only while no other approved edit targets the
// same field later in the ledger order: effective time first, ledger id as
// the tie-break.
func (e *EditEngine) EditIsResettable(ctx context.Context, edit *models.Edit) (bool, error) {
	if edit.ReviewStatus == models.ReviewStatusRejected {
		return true, nil
	}
	if edit.ReviewStatus == models.ReviewStatusApproved && !edit.IsApplied {
		return true, nil
	}
	later, err := e.ledger.HasLaterApproved(ctx, edit)
	if err != nil {
		return false, err
	}
	return !later, nil
}

// ResetEdit un-approves an edit as if it had never been accepted. When the
// edit is provably the latest change to its field it is mutated back to
// pending in place and its effect undone. When later edits supersede it the
// in-place path would corrupt their history, so a corrective revert entry is
// created instead and the original row stays approved.
func (e *EditEngine) ResetEdit(ctx context.Context, actor string, edit *models.Edit) (*models.Edit, error) {
	if edit.ReviewStatus == models.ReviewStatusPending {
		return nil, nil
	}

	resettable, err := e.EditIsResettable(ctx, edit)
	if err != nil {
		return nil, err
	}
	if !resettable {
		return e.RevertEdit(ctx, actor, edit)
	}

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reset tx: %w", err)
	}
	defer tx.Rollback()

	if edit.IsApplied {
		if err := e.fields.SetValueTx(ctx, tx, edit.SourceTable, edit.SourceRow, edit.SourceColumn, edit.OldValue); err != nil {
			return nil, err
		}
	} else {
		// The field was never written, but it may have moved since
		// submission; refresh the recorded prior value so the re-pended
		// edit still describes a truthful transition.
		live, err := e.fields.GetValue(ctx, edit.SourceTable, edit.SourceRow, edit.SourceColumn)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if err == nil && live != edit.OldValue {
			if err := e.ledger.UpdateOldValueTx(ctx, tx, edit.ID, live); err != nil {
				return nil, err
			}
			edit.OldValue = live
		}
	}
	if err := e.ledger.MakePendingTx(ctx, tx, edit.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reset tx: %w", err)
	}

	edit.ReviewStatus = models.ReviewStatusPending
	edit.ApprovedBy = nil
	edit.DateEffective = nil
	edit.IsApplied = false
	return nil, nil
}

// revertValue is the value that undoes an edit. Updates go back to the
// recorded old value. Additions and deletions flip the status flag they set,
// since the flag had no prior written value to fall back on.
func revertValue(edit *models.Edit) string {
	switch edit.EditType {
	case models.EditTypeAddition, models.EditTypeDeletion:
		if edit.NewValue == models.BoolValueTrue {
			return models.BoolValueFalse
		}
		return models.BoolValueTrue
	default:
		return edit.OldValue
	}
}

// mirrorEditType inverts addition and deletion for corrective entries:
// undoing an addition deactivates the record, undoing a deletion restores
// it. Updates stay updates.
func mirrorEditType(t models.EditType) models.EditType {
	switch t {
	case models.EditTypeAddition:
		return models.EditTypeDeletion
	case models.EditTypeDeletion:
		return models.EditTypeAddition
	default:
		return models.EditTypeUpdate
	}
}

func editTarget(edit *models.Edit) string {
	return fmt.Sprintf("%s[%d].%s", edit.SourceTable, edit.SourceRow, edit.SourceColumn)
}
