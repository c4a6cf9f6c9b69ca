package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/permitdata/ahj-registry-api/internal/dto"
	"github.com/permitdata/ahj-registry-api/internal/models"
	"github.com/permitdata/ahj-registry-api/internal/service"
	appErrors "github.com/permitdata/ahj-registry-api/pkg/errors"
	"github.com/permitdata/ahj-registry-api/pkg/response"
)

type ahjService interface {
	Register(ctx context.Context, req dto.CreateAHJRequest, actor *models.JWTClaims) (*models.AHJ, error)
	Get(ctx context.Context, id int64) (*models.AHJ, error)
	GetDetail(ctx context.Context, id int64) (*models.AHJDetail, error)
	Search(ctx context.Context, query dto.AHJQuery) (*service.AHJSearchResult, error)
	ExportCSV(ctx context.Context, query dto.AHJQuery) ([]byte, error)
	ExportPDF(ctx context.Context, query dto.AHJQuery) ([]byte, error)
	ExportSummaryPDF(ctx context.Context, id int64) ([]byte, error)
}

// AHJHandler exposes authority search, detail, and export endpoints.
type AHJHandler struct {
	service ahjService
}

// NewAHJHandler constructs the handler.
func NewAHJHandler(service ahjService) *AHJHandler {
	return &AHJHandler{service: service}
}

// Search godoc
// @Summary Search authorities
// @Tags AHJs
// @Produce json
// @Param q query string false "Free-text search over name, city, county, zip"
// @Param state query string false "State or province"
// @Param buildingCode query string false "Building code"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /ahjs [get]
func (h *AHJHandler) Search(c *gin.Context) {
	result, err := h.service.Search(c.Request.Context(), ahjQueryFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Items, &result.Pagination)
}

// Get godoc
// @Summary Get one authority with its confirmed child records
// @Tags AHJs
// @Produce json
// @Param id path int true "Authority id"
// @Success 200 {object} response.Envelope
// @Router /ahjs/{id} [get]
func (h *AHJHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "authority id must be an integer"))
		return
	}
	detail, err := h.service.GetDetail(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Register a new authority
// @Tags AHJs
// @Accept json
// @Produce json
// @Param payload body dto.CreateAHJRequest true "Authority payload"
// @Success 201 {object} response.Envelope
// @Router /ahjs [post]
func (h *AHJHandler) Create(c *gin.Context) {
	var req dto.CreateAHJRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid authority payload"))
		return
	}
	ahj, err := h.service.Register(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ahj)
}

// ExportCSV godoc
// @Summary Export matching authorities as CSV
// @Tags AHJs
// @Produce text/csv
// @Success 200 {file} file
// @Router /ahjs/export/csv [get]
func (h *AHJHandler) ExportCSV(c *gin.Context) {
	raw, err := h.service.ExportCSV(c.Request.Context(), ahjQueryFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="ahjs.csv"`)
	c.Data(http.StatusOK, "text/csv", raw)
}

// ExportPDF godoc
// @Summary Export matching authorities as PDF
// @Tags AHJs
// @Produce application/pdf
// @Success 200 {file} file
// @Router /ahjs/export/pdf [get]
func (h *AHJHandler) ExportPDF(c *gin.Context) {
	raw, err := h.service.ExportPDF(c.Request.Context(), ahjQueryFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="ahjs.pdf"`)
	c.Data(http.StatusOK, "application/pdf", raw)
}

// SummaryPDF godoc
// @Summary Download a one-page PDF info sheet for an authority
// @Tags AHJs
// @Produce application/pdf
// @Param id path int true "Authority id"
// @Success 200 {file} file
// @Router /ahjs/{id}/summary.pdf [get]
func (h *AHJHandler) SummaryPDF(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "authority id must be an integer"))
		return
	}
	raw, err := h.service.ExportSummaryPDF(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="ahj-summary.pdf"`)
	c.Data(http.StatusOK, "application/pdf", raw)
}

func ahjQueryFromContext(c *gin.Context) dto.AHJQuery {
	query := dto.AHJQuery{
		Search:        strings.TrimSpace(c.Query("q")),
		StateProvince: strings.TrimSpace(c.Query("state")),
		BuildingCode:  strings.TrimSpace(c.Query("buildingCode")),
		ElectricCode:  strings.TrimSpace(c.Query("electricCode")),
		FireCode:      strings.TrimSpace(c.Query("fireCode")),
		LevelCode:     strings.TrimSpace(c.Query("level")),
		SortBy:        strings.TrimSpace(c.Query("sortBy")),
		SortOrder:     strings.TrimSpace(c.Query("sortOrder")),
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	return query
}
