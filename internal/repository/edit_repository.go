package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/permitdata/ahj-registry-api/internal/models"
)

const editColumns = `id, changed_by, approved_by, ahj_id, source_table, source_row, source_column,
       review_status, old_value, new_value, date_requested, date_effective, is_applied, edit_type, source_comment`

// EditRepository persists the append-only edit ledger.
type EditRepository struct {
	db *sqlx.DB
}

// NewEditRepository constructs the repository.
func NewEditRepository(db *sqlx.DB) *EditRepository {
	return &EditRepository{db: db}
}

// Create appends a new ledger entry and fills in the generated id.
func (r *EditRepository) Create(ctx context.Context, edit *models.Edit) error {
	return r.create(ctx, r.db, edit)
}

// CreateTx appends a ledger entry inside the caller's transaction. Revert
// and reset write their corrective rows this way so the row and the field
// write commit together.
func (r *EditRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, edit *models.Edit) error {
	return r.create(ctx, tx, edit)
}

func (r *EditRepository) create(ctx context.Context, ext sqlx.ExtContext, edit *models.Edit) error {
	if edit.ReviewStatus == "" {
		edit.ReviewStatus = models.ReviewStatusPending
	}
	if edit.EditType == "" {
		edit.EditType = models.EditTypeUpdate
	}
	if edit.DateRequested.IsZero() {
		edit.DateRequested = time.Now().UTC()
	}
	const query = `INSERT INTO edits
	(changed_by, approved_by, ahj_id, source_table, source_row, source_column,
	 review_status, old_value, new_value, date_requested, date_effective, is_applied, edit_type, source_comment)
	VALUES (:changed_by, :approved_by, :ahj_id, :source_table, :source_row, :source_column,
	 :review_status, :old_value, :new_value, :date_requested, :date_effective, :is_applied, :edit_type, :source_comment)
	RETURNING id`
	rows, err := sqlx.NamedQueryContext(ctx, ext, query, edit)
	if err != nil {
		return fmt.Errorf("create edit: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&edit.ID); err != nil {
			return fmt.Errorf("scan edit id: %w", err)
		}
	}
	return rows.Err()
}

// GetByID fetches a ledger entry by identifier.
func (r *EditRepository) GetByID(ctx context.Context, id int64) (*models.Edit, error) {
	query := fmt.Sprintf(`SELECT %s FROM edits WHERE id = $1`, editColumns)
	var edit models.Edit
	if err := r.db.GetContext(ctx, &edit, query, id); err != nil {
		return nil, err
	}
	return &edit, nil
}

// List returns ledger entries matching the filter, newest requests first.
func (r *EditRepository) List(ctx context.Context, filter models.EditFilter) ([]models.Edit, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM edits`, editColumns))

	conditions := make([]string, 0, 6)
	if filter.AHJID != nil {
		args = append(args, *filter.AHJID)
		conditions = append(conditions, fmt.Sprintf("ahj_id = $%d", len(args)))
	}
	if filter.ChangedBy != "" {
		args = append(args, filter.ChangedBy)
		conditions = append(conditions, fmt.Sprintf("changed_by = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("review_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SourceTable != "" {
		args = append(args, filter.SourceTable)
		conditions = append(conditions, fmt.Sprintf("source_table = $%d", len(args)))
	}
	if filter.SourceRow != nil {
		args = append(args, *filter.SourceRow)
		conditions = append(conditions, fmt.Sprintf("source_row = $%d", len(args)))
	}
	if filter.SourceColumn != "" {
		args = append(args, filter.SourceColumn)
		conditions = append(conditions, fmt.Sprintf("source_column = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY date_requested DESC, id DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var edits []models.Edit
	if err := r.db.SelectContext(ctx, &edits, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list edits: %w", err)
	}
	return edits, nil
}

// ListDue returns approved, not-yet-applied edits whose effective time has
// passed, oldest effective first so a batch replays in causal order.
func (r *EditRepository) ListDue(ctx context.Context, now time.Time) ([]models.Edit, error) {
	query := fmt.Sprintf(`SELECT %s FROM edits
	WHERE review_status = $1 AND approved_by IS NOT NULL AND is_applied = FALSE AND date_effective <= $2
	ORDER BY date_effective ASC, id ASC`, editColumns)
	var edits []models.Edit
	if err := r.db.SelectContext(ctx, &edits, query, models.ReviewStatusApproved, now); err != nil {
		return nil, fmt.Errorf("list due edits: %w", err)
	}
	return edits, nil
}

// ListRejectedAdditionsDue returns rejected addition edits whose effective
// time has passed and whose unconfirmed record still awaits demotion.
func (r *EditRepository) ListRejectedAdditionsDue(ctx context.Context, now time.Time) ([]models.Edit, error) {
	query := fmt.Sprintf(`SELECT %s FROM edits
	WHERE review_status = $1 AND edit_type = $2 AND approved_by IS NOT NULL AND is_applied = FALSE AND date_effective <= $3
	ORDER BY date_effective ASC, id ASC`, editColumns)
	var edits []models.Edit
	if err := r.db.SelectContext(ctx, &edits, query, models.ReviewStatusRejected, models.EditTypeAddition, now); err != nil {
		return nil, fmt.Errorf("list rejected additions: %w", err)
	}
	return edits, nil
}

// MarkAppliedTx flags an edit as committed to the live record.
func (r *EditRepository) MarkAppliedTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	result, err := tx.ExecContext(ctx, `UPDATE edits SET is_applied = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark edit %d applied: %w", id, err)
	}
	return requireRow(result, id)
}

// MakePendingTx returns an edit to the pending state: approval, effective
// date, and applied flag are all cleared. Used by the reset path only.
func (r *EditRepository) MakePendingTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE edits SET review_status = $1, approved_by = NULL, date_effective = NULL, is_applied = FALSE WHERE id = $2`,
		models.ReviewStatusPending, id)
	if err != nil {
		return fmt.Errorf("make edit %d pending: %w", id, err)
	}
	return requireRow(result, id)
}

// UpdateOldValueTx refreshes an edit's recorded prior value. Used by the
// reset path when the edit never reached the live record.
func (r *EditRepository) UpdateOldValueTx(ctx context.Context, tx *sqlx.Tx, id int64, oldValue string) error {
	result, err := tx.ExecContext(ctx, `UPDATE edits SET old_value = $1 WHERE id = $2`, oldValue, id)
	if err != nil {
		return fmt.Errorf("update edit %d old value: %w", id, err)
	}
	return requireRow(result, id)
}

// UpdateReview records a moderator decision.
func (r *EditRepository) UpdateReview(ctx context.Context, id int64, status models.ReviewStatus, approvedBy string, dateEffective time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE edits SET review_status = $1, approved_by = $2, date_effective = $3 WHERE id = $4`,
		status, approvedBy, dateEffective, id)
	if err != nil {
		return fmt.Errorf("review edit %d: %w", id, err)
	}
	return requireRow(result, id)
}

// HasLaterApproved reports whether another approved edit targets the same
// field with a strictly later effective time. Equal effective times fall
// back to the ledger id so the order stays total.
func (r *EditRepository) HasLaterApproved(ctx context.Context, edit *models.Edit) (bool, error) {
	if edit.DateEffective == nil {
		return false, nil
	}
	const query = `SELECT EXISTS (SELECT 1 FROM edits
	WHERE source_table = $1 AND source_row = $2 AND source_column = $3
	  AND review_status = $4 AND id <> $5
	  AND (date_effective > $6 OR (date_effective = $6 AND id > $5)))`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query,
		edit.SourceTable, edit.SourceRow, edit.SourceColumn,
		models.ReviewStatusApproved, edit.ID, *edit.DateEffective)
	if err != nil {
		return false, fmt.Errorf("check later edits: %w", err)
	}
	return exists, nil
}

func requireRow(result sql.Result, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("edit %d rows affected: %w", id, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
