package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/permitdata/ahj-registry-api/internal/dto"
	"github.com/permitdata/ahj-registry-api/internal/models"
	"github.com/permitdata/ahj-registry-api/internal/registry"
	appErrors "github.com/permitdata/ahj-registry-api/pkg/errors"
	"github.com/permitdata/ahj-registry-api/pkg/export"
)

type editStore interface {
	Create(ctx context.Context, edit *models.Edit) error
	GetByID(ctx context.Context, id int64) (*models.Edit, error)
	List(ctx context.Context, filter models.EditFilter) ([]models.Edit, error)
	UpdateReview(ctx context.Context, id int64, status models.ReviewStatus, approvedBy string, dateEffective time.Time) error
}

type editApplier interface {
	RevertEdit(ctx context.Context, actor string, edit *models.Edit) (*models.Edit, error)
	ResetEdit(ctx context.Context, actor string, edit *models.Edit) (*models.Edit, error)
	EditIsResettable(ctx context.Context, edit *models.Edit) (bool, error)
}

type recordStore interface {
	GetValue(ctx context.Context, table string, row int64, column string) (string, error)
	Exists(ctx context.Context, table string, row int64) (bool, error)
	CreateUnconfirmed(ctx context.Context, table string, ahjID int64, parentTable string, parentID int64, fields map[string]string) (int64, error)
}

type maintainerStore interface {
	IsMaintainer(ctx context.Context, userID string, ahjID int64) (bool, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EditService is the intake and moderation surface of the ledger: it accepts
// proposals from contributors, records moderator decisions, and fronts the
// engine's revert and reset operations with permission checks.
type EditService struct {
	repo           editStore
	engine         editApplier
	fields         recordStore
	users          maintainerStore
	schema         *registry.Schema
	csv            *export.CSVExporter
	metrics        *MetricsService
	effectiveDelay time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// NewEditService constructs the service. effectiveDelay is the minimum gap
// between approval and application, normally 24 hours. metrics may be nil.
func NewEditService(repo editStore, engine editApplier, fields recordStore, users maintainerStore, schema *registry.Schema, metrics *MetricsService, effectiveDelay time.Duration, logger *zap.Logger) *EditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schema == nil {
		schema = registry.Default()
	}
	if effectiveDelay <= 0 {
		effectiveDelay = 24 * time.Hour
	}
	return &EditService{
		repo:           repo,
		engine:         engine,
		fields:         fields,
		users:          users,
		schema:         schema,
		csv:            export.NewCSVExporter(),
		metrics:        metrics,
		effectiveDelay: effectiveDelay,
		logger:         logger,
		now:            time.Now,
	}
}

// SubmitUpdates records a batch of pending field-change proposals. The
// whole batch is validated before anything is written so a caller never
// gets a half-recorded submission.
func (s *EditService) SubmitUpdates(ctx context.Context, req dto.SubmitUpdatesRequest, actor *models.JWTClaims) ([]models.Edit, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if len(req.Edits) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "edits is required")
	}

	now := s.now().UTC()
	edits := make([]models.Edit, 0, len(req.Edits))
	for i, item := range req.Edits {
		if item.SourceTable == "" || item.SourceColumn == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("edits[%d]: sourceTable and sourceColumn are required", i))
		}
		if _, _, ok := s.schema.Field(item.SourceTable, item.SourceColumn); !ok {
			return nil, appErrors.Clone(appErrors.ErrUnknownField, fmt.Sprintf("edits[%d]: unknown field %s.%s", i, item.SourceTable, item.SourceColumn))
		}
		oldValue, err := s.fields.GetValue(ctx, item.SourceTable, item.SourceRow, item.SourceColumn)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("edits[%d]: target record does not exist", i))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read current value")
		}
		edits = append(edits, models.Edit{
			ChangedBy:     actor.UserID,
			AHJID:         item.AHJID,
			SourceTable:   item.SourceTable,
			SourceRow:     item.SourceRow,
			SourceColumn:  item.SourceColumn,
			ReviewStatus:  models.ReviewStatusPending,
			OldValue:      oldValue,
			NewValue:      item.NewValue,
			DateRequested: now,
			EditType:      models.EditTypeUpdate,
			SourceComment: item.SourceComment,
		})
	}

	for i := range edits {
		if err := s.repo.Create(ctx, &edits[i]); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record edit")
		}
		s.emitAudit(ctx, actor.UserID, models.AuditActionEditSubmit, &edits[i])
	}
	s.metrics.RecordEditSubmitted(len(edits))
	return edits, nil
}

// SubmitAddition creates an unconfirmed related record plus the pending
// addition edit that will confirm it once approved and applied.
func (s *EditService) SubmitAddition(ctx context.Context, req dto.SubmitAdditionRequest, actor *models.JWTClaims) (*models.Edit, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	table, ok := s.schema.Table(req.SourceTable)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownField, fmt.Sprintf("unknown source table %s", req.SourceTable))
	}
	if table.StatusField == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s records cannot be added through edits", req.SourceTable))
	}
	for name := range req.Fields {
		if _, ok := table.Fields[name]; !ok {
			return nil, appErrors.Clone(appErrors.ErrUnknownField, fmt.Sprintf("unknown field %s.%s", req.SourceTable, name))
		}
	}

	rowID, err := s.fields.CreateUnconfirmed(ctx, req.SourceTable, req.AHJID, req.ParentTable, req.ParentID, req.Fields)
	if err != nil {
		return nil, err
	}

	ahjID := req.AHJID
	edit := &models.Edit{
		ChangedBy:     actor.UserID,
		AHJID:         &ahjID,
		SourceTable:   req.SourceTable,
		SourceRow:     rowID,
		SourceColumn:  table.StatusField,
		ReviewStatus:  models.ReviewStatusPending,
		OldValue:      "",
		NewValue:      models.BoolValueTrue,
		DateRequested: s.now().UTC(),
		EditType:      models.EditTypeAddition,
		SourceComment: req.SourceComment,
	}
	if err := s.repo.Create(ctx, edit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record addition edit")
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionEditSubmit, edit)
	s.metrics.RecordEditSubmitted(1)
	return edit, nil
}

// SubmitDeletions records pending deletion edits that will deactivate the
// named records once approved and applied.
func (s *EditService) SubmitDeletions(ctx context.Context, req dto.SubmitDeletionsRequest, actor *models.JWTClaims) ([]models.Edit, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if len(req.Rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rows is required")
	}
	table, ok := s.schema.Table(req.SourceTable)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownField, fmt.Sprintf("unknown source table %s", req.SourceTable))
	}
	if table.StatusField == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s records cannot be deleted through edits", req.SourceTable))
	}

	now := s.now().UTC()
	edits := make([]models.Edit, 0, len(req.Rows))
	for _, row := range req.Rows {
		exists, err := s.fields.Exists(ctx, req.SourceTable, row)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check target record")
		}
		if !exists {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s record %d does not exist", req.SourceTable, row))
		}
		edits = append(edits, models.Edit{
			ChangedBy:     actor.UserID,
			AHJID:         req.AHJID,
			SourceTable:   req.SourceTable,
			SourceRow:     row,
			SourceColumn:  table.StatusField,
			ReviewStatus:  models.ReviewStatusPending,
			OldValue:      models.BoolValueTrue,
			NewValue:      models.BoolValueFalse,
			DateRequested: now,
			EditType:      models.EditTypeDeletion,
			SourceComment: req.SourceComment,
		})
	}

	for i := range edits {
		if err := s.repo.Create(ctx, &edits[i]); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record deletion edit")
		}
		s.emitAudit(ctx, actor.UserID, models.AuditActionEditSubmit, &edits[i])
	}
	s.metrics.RecordEditSubmitted(len(edits))
	return edits, nil
}

// Review records a moderator decision. Approvals never take effect earlier
// than the configured delay from now. A date on the request overrides any
// previously stored effective date; with no request date a stored date
// further out is kept. Either way the result is floored at now+delay.
func (s *EditService) Review(ctx context.Context, editID int64, req dto.ReviewEditRequest, actor *models.JWTClaims) (*models.Edit, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if req.Decision != dto.DecisionApprove && req.Decision != dto.DecisionReject {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVE or REJECT")
	}

	edit, err := s.loadEdit(ctx, editID)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, actor, edit); err != nil {
		return nil, err
	}

	status := models.ReviewStatusApproved
	if req.Decision == dto.DecisionReject {
		status = models.ReviewStatusRejected
	}

	floor := s.now().UTC().Add(s.effectiveDelay)
	effective := floor
	switch {
	case req.DateEffective != nil:
		// The request date wins over any stored one, subject to the floor.
		if req.DateEffective.After(floor) {
			effective = req.DateEffective.UTC()
		}
	case edit.DateEffective != nil && edit.DateEffective.After(floor):
		effective = edit.DateEffective.UTC()
	}

	if err := s.repo.UpdateReview(ctx, editID, status, actor.UserID, effective); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "edit does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review edit")
	}

	edit.ReviewStatus = status
	edit.ApprovedBy = &actor.UserID
	edit.DateEffective = &effective
	s.emitAudit(ctx, actor.UserID, models.AuditActionEditReview, edit)
	s.metrics.RecordEditReviewed(string(status))
	return edit, nil
}

// Revert undoes an edit through a corrective ledger entry.
func (s *EditService) Revert(ctx context.Context, editID int64, actor *models.JWTClaims) (*models.Edit, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	edit, err := s.loadEdit(ctx, editID)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, actor, edit); err != nil {
		return nil, err
	}
	corrective, err := s.engine.RevertEdit(ctx, actor.UserID, edit)
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionEditRevert, edit)
	s.metrics.RecordEditReverted()
	return corrective, nil
}

// Reset un-approves an edit, falling back to a corrective revert when later
// edits supersede it. The returned edit is the corrective entry when one was
// created, nil when the edit was reset in place.
func (s *EditService) Reset(ctx context.Context, editID int64, actor *models.JWTClaims) (*models.Edit, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	edit, err := s.loadEdit(ctx, editID)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, actor, edit); err != nil {
		return nil, err
	}
	corrective, err := s.engine.ResetEdit(ctx, actor.UserID, edit)
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionEditReset, edit)
	s.metrics.RecordEditReset()
	return corrective, nil
}

// IsResettable exposes the resettability check for moderation UIs.
func (s *EditService) IsResettable(ctx context.Context, editID int64) (bool, error) {
	edit, err := s.loadEdit(ctx, editID)
	if err != nil {
		return false, err
	}
	return s.engine.EditIsResettable(ctx, edit)
}

// Get returns one ledger entry.
func (s *EditService) Get(ctx context.Context, editID int64) (*models.Edit, error) {
	return s.loadEdit(ctx, editID)
}

// List returns ledger entries matching the query.
func (s *EditService) List(ctx context.Context, query dto.EditQuery) ([]models.Edit, error) {
	edits, err := s.repo.List(ctx, models.EditFilter{
		AHJID:        query.AHJID,
		ChangedBy:    query.ChangedBy,
		Status:       query.Status,
		SourceTable:  query.SourceTable,
		SourceRow:    query.SourceRow,
		SourceColumn: query.SourceColumn,
		Limit:        query.Limit,
		Offset:       query.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list edits")
	}
	return edits, nil
}

// ExportHistoryCSV renders an authority's full ledger as CSV, newest first.
func (s *EditService) ExportHistoryCSV(ctx context.Context, ahjID int64) ([]byte, error) {
	edits, err := s.repo.List(ctx, models.EditFilter{AHJID: &ahjID, Limit: 500})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load edit history")
	}
	return s.csv.Render(editHistoryDataset(edits))
}

func editHistoryDataset(edits []models.Edit) export.Dataset {
	headers := []string{
		"ID", "Status", "Type", "Table", "Row", "Column",
		"Old Value", "New Value", "Changed By", "Approved By",
		"Requested", "Effective", "Applied", "Comment",
	}
	rows := make([]map[string]string, 0, len(edits))
	for _, e := range edits {
		approvedBy := ""
		if e.ApprovedBy != nil {
			approvedBy = *e.ApprovedBy
		}
		effective := ""
		if e.DateEffective != nil {
			effective = e.DateEffective.UTC().Format(time.RFC3339)
		}
		rows = append(rows, map[string]string{
			"ID":          strconv.FormatInt(e.ID, 10),
			"Status":      string(e.ReviewStatus),
			"Type":        string(e.EditType),
			"Table":       e.SourceTable,
			"Row":         strconv.FormatInt(e.SourceRow, 10),
			"Column":      e.SourceColumn,
			"Old Value":   e.OldValue,
			"New Value":   e.NewValue,
			"Changed By":  e.ChangedBy,
			"Approved By": approvedBy,
			"Requested":   e.DateRequested.UTC().Format(time.RFC3339),
			"Effective":   effective,
			"Applied":     strconv.FormatBool(e.IsApplied),
			"Comment":     e.SourceComment,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// loadEdit maps a missing edit to a caller error: the moderation API does
// not distinguish not-found from bad-request.
func (s *EditService) loadEdit(ctx context.Context, editID int64) (*models.Edit, error) {
	edit, err := s.repo.GetByID(ctx, editID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "edit does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load edit")
	}
	return edit, nil
}

// requireModerator allows admins everywhere and maintainers within the
// authorities they hold an active grant for.
func (s *EditService) requireModerator(ctx context.Context, actor *models.JWTClaims, edit *models.Edit) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if edit.AHJID == nil {
		return appErrors.ErrForbidden
	}
	ok, err := s.users.IsMaintainer(ctx, actor.UserID, *edit.AHJID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check maintainer grant")
	}
	if !ok {
		return appErrors.ErrForbidden
	}
	return nil
}

func (s *EditService) emitAudit(ctx context.Context, userID, action string, edit *models.Edit) {
	values, err := json.Marshal(edit)
	if err != nil {
		values = nil
	}
	resourceID := strconv.FormatInt(edit.ID, 10)
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "edit",
		ResourceID: &resourceID,
		NewValues:  values,
	}
	if err := s.users.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}
