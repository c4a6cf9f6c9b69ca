package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/permitdata/ahj-registry-api/internal/dto"
	"github.com/permitdata/ahj-registry-api/internal/models"
	appErrors "github.com/permitdata/ahj-registry-api/pkg/errors"
	"github.com/permitdata/ahj-registry-api/pkg/response"
)

type editService interface {
	SubmitUpdates(ctx context.Context, req dto.SubmitUpdatesRequest, actor *models.JWTClaims) ([]models.Edit, error)
	SubmitAddition(ctx context.Context, req dto.SubmitAdditionRequest, actor *models.JWTClaims) (*models.Edit, error)
	SubmitDeletions(ctx context.Context, req dto.SubmitDeletionsRequest, actor *models.JWTClaims) ([]models.Edit, error)
	Review(ctx context.Context, editID int64, req dto.ReviewEditRequest, actor *models.JWTClaims) (*models.Edit, error)
	Revert(ctx context.Context, editID int64, actor *models.JWTClaims) (*models.Edit, error)
	Reset(ctx context.Context, editID int64, actor *models.JWTClaims) (*models.Edit, error)
	IsResettable(ctx context.Context, editID int64) (bool, error)
	Get(ctx context.Context, editID int64) (*models.Edit, error)
	List(ctx context.Context, query dto.EditQuery) ([]models.Edit, error)
	ExportHistoryCSV(ctx context.Context, ahjID int64) ([]byte, error)
}

// EditHandler exposes the edit submission and moderation endpoints.
type EditHandler struct {
	service editService
}

// NewEditHandler constructs the handler.
func NewEditHandler(service editService) *EditHandler {
	return &EditHandler{service: service}
}

// SubmitUpdates godoc
// @Summary Submit field-change proposals
// @Tags Edits
// @Accept json
// @Produce json
// @Param payload body dto.SubmitUpdatesRequest true "Edit batch"
// @Success 201 {object} response.Envelope
// @Router /edits [post]
func (h *EditHandler) SubmitUpdates(c *gin.Context) {
	var req dto.SubmitUpdatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid edit payload"))
		return
	}
	edits, err := h.service.SubmitUpdates(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, edits)
}

// SubmitAddition godoc
// @Summary Propose a new related record
// @Tags Edits
// @Accept json
// @Produce json
// @Param payload body dto.SubmitAdditionRequest true "Addition payload"
// @Success 201 {object} response.Envelope
// @Router /edits/additions [post]
func (h *EditHandler) SubmitAddition(c *gin.Context) {
	var req dto.SubmitAdditionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid addition payload"))
		return
	}
	edit, err := h.service.SubmitAddition(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, edit)
}

// SubmitDeletions godoc
// @Summary Propose deactivating related records
// @Tags Edits
// @Accept json
// @Produce json
// @Param payload body dto.SubmitDeletionsRequest true "Deletion payload"
// @Success 201 {object} response.Envelope
// @Router /edits/deletions [post]
func (h *EditHandler) SubmitDeletions(c *gin.Context) {
	var req dto.SubmitDeletionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid deletion payload"))
		return
	}
	edits, err := h.service.SubmitDeletions(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, edits)
}

// List godoc
// @Summary List ledger entries
// @Tags Edits
// @Produce json
// @Param ahjId query int false "Authority id"
// @Param changedBy query string false "Submitter id"
// @Param status query string false "Comma separated statuses"
// @Param sourceTable query string false "Logical table"
// @Success 200 {object} response.Envelope
// @Router /edits [get]
func (h *EditHandler) List(c *gin.Context) {
	query := dto.EditQuery{
		ChangedBy:    strings.TrimSpace(c.Query("changedBy")),
		SourceTable:  strings.TrimSpace(c.Query("sourceTable")),
		SourceColumn: strings.TrimSpace(c.Query("sourceColumn")),
	}
	if raw := c.Query("ahjId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "ahjId must be an integer"))
			return
		}
		query.AHJID = &id
	}
	if raw := c.Query("sourceRow"); raw != "" {
		row, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "sourceRow must be an integer"))
			return
		}
		query.SourceRow = &row
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := models.ReviewStatus(strings.ToUpper(strings.TrimSpace(part)))
			if status != "" {
				query.Status = append(query.Status, status)
			}
		}
	}
	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	query.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	edits, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, edits, nil)
}

// Get godoc
// @Summary Get one ledger entry
// @Tags Edits
// @Produce json
// @Param id path int true "Edit id"
// @Success 200 {object} response.Envelope
// @Router /edits/{id} [get]
func (h *EditHandler) Get(c *gin.Context) {
	id, ok := h.editID(c)
	if !ok {
		return
	}
	edit, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, edit, nil)
}

// Review godoc
// @Summary Approve or reject an edit
// @Tags Edits
// @Accept json
// @Produce json
// @Param id path int true "Edit id"
// @Param payload body dto.ReviewEditRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /edits/{id}/review [post]
func (h *EditHandler) Review(c *gin.Context) {
	id, ok := h.editID(c)
	if !ok {
		return
	}
	var req dto.ReviewEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	edit, err := h.service.Review(c.Request.Context(), id, req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, edit, nil)
}

// Revert godoc
// @Summary Undo an edit with a corrective entry
// @Tags Edits
// @Produce json
// @Param id path int true "Edit id"
// @Success 200 {object} response.Envelope
// @Router /edits/{id}/revert [post]
func (h *EditHandler) Revert(c *gin.Context) {
	id, ok := h.editID(c)
	if !ok {
		return
	}
	corrective, err := h.service.Revert(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if corrective == nil {
		response.NoContent(c)
		return
	}
	response.JSON(c, http.StatusOK, corrective, nil)
}

// Reset godoc
// @Summary Un-approve an edit
// @Tags Edits
// @Produce json
// @Param id path int true "Edit id"
// @Success 200 {object} response.Envelope
// @Router /edits/{id}/reset [post]
func (h *EditHandler) Reset(c *gin.Context) {
	id, ok := h.editID(c)
	if !ok {
		return
	}
	corrective, err := h.service.Reset(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if corrective == nil {
		response.NoContent(c)
		return
	}
	response.JSON(c, http.StatusOK, corrective, nil)
}

// Resettable godoc
// @Summary Check whether an edit can be reset in place
// @Tags Edits
// @Produce json
// @Param id path int true "Edit id"
// @Success 200 {object} response.Envelope
// @Router /edits/{id}/resettable [get]
func (h *EditHandler) Resettable(c *gin.Context) {
	id, ok := h.editID(c)
	if !ok {
		return
	}
	resettable, err := h.service.IsResettable(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"resettable": resettable}, nil)
}

// ExportHistory godoc
// @Summary Download an authority's edit history as CSV
// @Tags Edits
// @Produce text/csv
// @Param id path int true "Authority id"
// @Success 200 {file} file
// @Router /ahjs/{id}/edits/export [get]
func (h *EditHandler) ExportHistory(c *gin.Context) {
	ahjID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "authority id must be an integer"))
		return
	}
	raw, err := h.service.ExportHistoryCSV(c.Request.Context(), ahjID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="edit-history.csv"`)
	c.Data(http.StatusOK, "text/csv", raw)
}

func (h *EditHandler) editID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "edit id must be an integer"))
		return 0, false
	}
	return id, true
}
