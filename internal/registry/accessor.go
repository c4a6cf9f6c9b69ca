package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	appErrors "github.com/permitdata/ahj-registry-api/pkg/errors"
)

// Canonical boolean strings as stored in the edit ledger.
const (
	boolTrue  = "True"
	boolFalse = "False"
)

// FieldAccessor is the capability surface the edit engine needs from the
// record store: read, write, and existence checks addressed by the logical
// (table, row, column) triple, with values crossing the boundary as strings.
type FieldAccessor interface {
	GetValue(ctx context.Context, table string, row int64, column string) (string, error)
	SetValue(ctx context.Context, table string, row int64, column, value string) error
	SetValueTx(ctx context.Context, tx *sqlx.Tx, table string, row int64, column, value string) error
	Exists(ctx context.Context, table string, row int64) (bool, error)
	CreateUnconfirmed(ctx context.Context, table string, ahjID int64, parentTable string, parentID int64, fields map[string]string) (int64, error)
}

// Accessor implements FieldAccessor over sqlx, driven by the static schema.
// Coercion between ledger text and native column types happens here and
// nowhere else.
type Accessor struct {
	db     *sqlx.DB
	schema *Schema
}

// NewAccessor constructs the accessor.
func NewAccessor(db *sqlx.DB, schema *Schema) *Accessor {
	if schema == nil {
		schema = Default()
	}
	return &Accessor{db: db, schema: schema}
}

// Schema exposes the backing schema for callers that validate targets before
// touching the ledger.
func (a *Accessor) Schema() *Schema {
	return a.schema
}

// GetValue reads the current value of a field as ledger text. NULL enum and
// boolean columns read as the empty string.
func (a *Accessor) GetValue(ctx context.Context, table string, row int64, column string) (string, error) {
	t, f, ok := a.schema.Field(table, column)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrUnknownField, fmt.Sprintf("unknown field %s.%s", table, column))
	}

	switch f.Kind {
	case KindEnum:
		query := fmt.Sprintf(`SELECT COALESCE(ev.value, '') FROM %s t LEFT JOIN enum_values ev ON ev.id = t.%s WHERE t.%s = $1`,
			t.SQLName, f.Column, t.PrimaryKey)
		var value string
		if err := sqlx.GetContext(ctx, a.db, &value, query, row); err != nil {
			return "", a.rowError(err, table, row)
		}
		return value, nil
	case KindBool:
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, f.Column, t.SQLName, t.PrimaryKey)
		var value sql.NullBool
		if err := sqlx.GetContext(ctx, a.db, &value, query, row); err != nil {
			return "", a.rowError(err, table, row)
		}
		if !value.Valid {
			return "", nil
		}
		if value.Bool {
			return boolTrue, nil
		}
		return boolFalse, nil
	default:
		query := fmt.Sprintf(`SELECT COALESCE(%s::text, '') FROM %s WHERE %s = $1`, f.Column, t.SQLName, t.PrimaryKey)
		var value string
		if err := sqlx.GetContext(ctx, a.db, &value, query, row); err != nil {
			return "", a.rowError(err, table, row)
		}
		return value, nil
	}
}

// SetValue writes a ledger value into the target field outside a transaction.
func (a *Accessor) SetValue(ctx context.Context, table string, row int64, column, value string) error {
	return a.setValue(ctx, a.db, table, row, column, value)
}

// SetValueTx writes a ledger value within the caller's transaction so the
// field write commits atomically with ledger bookkeeping.
func (a *Accessor) SetValueTx(ctx context.Context, tx *sqlx.Tx, table string, row int64, column, value string) error {
	return a.setValue(ctx, tx, table, row, column, value)
}

func (a *Accessor) setValue(ctx context.Context, ext sqlx.ExtContext, table string, row int64, column, value string) error {
	t, f, ok := a.schema.Field(table, column)
	if !ok {
		return appErrors.Clone(appErrors.ErrUnknownField, fmt.Sprintf("unknown field %s.%s", table, column))
	}

	coerced, err := a.coerce(ctx, ext, f, value)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2`, t.SQLName, f.Column, t.PrimaryKey)
	result, err := ext.ExecContext(ctx, query, coerced, row)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", table, column, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set %s.%s rows: %w", table, column, err)
	}
	if rows == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s row %d not found", table, row))
	}
	return nil
}

// Exists reports whether a row is present in the logical table.
func (a *Accessor) Exists(ctx context.Context, table string, row int64) (bool, error) {
	t, ok := a.schema.Table(table)
	if !ok {
		return false, appErrors.Clone(appErrors.ErrUnknownField, fmt.Sprintf("unknown table %s", table))
	}
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, t.SQLName, t.PrimaryKey)
	var exists bool
	if err := sqlx.GetContext(ctx, a.db, &exists, query, row); err != nil {
		return false, fmt.Errorf("check %s row %d: %w", table, row, err)
	}
	return exists, nil
}

// CreateUnconfirmed inserts a related record with its confirmation status
// left NULL, pending an addition edit's approval. Empty field values are
// skipped, matching the submission contract.
func (a *Accessor) CreateUnconfirmed(ctx context.Context, table string, ahjID int64, parentTable string, parentID int64, fields map[string]string) (int64, error) {
	t, ok := a.schema.Table(table)
	if !ok {
		return 0, appErrors.Clone(appErrors.ErrUnknownField, fmt.Sprintf("unknown table %s", table))
	}
	if t.StatusField == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s records cannot be added through edits", table))
	}

	columns := make([]string, 0, len(fields)+3)
	values := make([]interface{}, 0, len(fields)+3)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := fields[name]
		if raw == "" || name == t.StatusField {
			continue
		}
		f, ok := t.Fields[name]
		if !ok {
			return 0, appErrors.Clone(appErrors.ErrUnknownField, fmt.Sprintf("unknown field %s.%s", table, name))
		}
		coerced, err := a.coerce(ctx, a.db, f, raw)
		if err != nil {
			return 0, err
		}
		columns = append(columns, f.Column)
		values = append(values, coerced)
	}

	switch t.Parent {
	case ParentAHJ:
		columns = append(columns, "ahj_id")
		values = append(values, ahjID)
	case ParentPolymorphic:
		columns = append(columns, "parent_table", "parent_id")
		values = append(values, parentTable, parentID)
	}

	if t.UUIDColumn != "" {
		columns = append(columns, t.UUIDColumn)
		values = append(values, uuid.NewString())
	}

	if len(columns) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "no fields provided")
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		t.SQLName, strings.Join(columns, ", "), strings.Join(placeholders, ", "), t.PrimaryKey)

	var id int64
	if err := sqlx.GetContext(ctx, a.db, &id, query, values...); err != nil {
		return 0, fmt.Errorf("create %s: %w", table, err)
	}
	return id, nil
}

// coerce converts ledger text into the column's native representation. The
// empty string becomes NULL for every non-string kind.
func (a *Accessor) coerce(ctx context.Context, ext sqlx.ExtContext, f FieldSpec, raw string) (interface{}, error) {
	switch f.Kind {
	case KindEnum:
		if raw == "" {
			return nil, nil
		}
		var id int64
		err := sqlx.GetContext(ctx, ext, &id, `SELECT id FROM enum_values WHERE field = $1 AND value = $2`, f.EnumField, raw)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown %s value %q", f.EnumField, raw))
			}
			return nil, fmt.Errorf("resolve %s value: %w", f.EnumField, err)
		}
		return id, nil
	case KindBool:
		if raw == "" {
			return nil, nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid boolean %q", raw))
		}
		return b, nil
	case KindInt:
		if raw == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid integer %q", raw))
		}
		return n, nil
	case KindDecimal:
		if raw == "" {
			return nil, nil
		}
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid number %q", raw))
		}
		return raw, nil
	default:
		return raw, nil
	}
}

func (a *Accessor) rowError(err error, table string, row int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s row %d not found", table, row))
	}
	return fmt.Errorf("read %s row %d: %w", table, row, err)
}
