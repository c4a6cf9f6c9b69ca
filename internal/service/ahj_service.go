package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/permitdata/ahj-registry-api/internal/dto"
	"github.com/permitdata/ahj-registry-api/internal/models"
	appErrors "github.com/permitdata/ahj-registry-api/pkg/errors"
	"github.com/permitdata/ahj-registry-api/pkg/export"
)

const ahjSearchCachePrefix = "ahj:search:"

type ahjStore interface {
	Create(ctx context.Context, ahj *models.AHJ) error
	GetByID(ctx context.Context, id int64) (*models.AHJ, error)
	GetDetail(ctx context.Context, id int64) (*models.AHJDetail, error)
	Search(ctx context.Context, filter models.AHJFilter) ([]models.AHJ, int, error)
	ListForExport(ctx context.Context, filter models.AHJFilter) ([]models.AHJ, error)
}

// AHJSearchResult is a search page plus its pagination metadata.
type AHJSearchResult struct {
	Items      []models.AHJ      `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}

// AHJService serves authority reads, registration, and exports. Search
// pages are cached briefly; the cache is flushed whenever an authority is
// registered, and entries age out fast enough that scheduler-applied edits
// surface without explicit invalidation.
type AHJService struct {
	repo     ahjStore
	cache    *CacheService
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAHJService constructs the service.
func NewAHJService(repo ahjStore, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *AHJService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AHJService{
		repo:     repo,
		cache:    cache,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Register creates a new authority shell.
func (s *AHJService) Register(ctx context.Context, req dto.CreateAHJRequest, actor *models.JWTClaims) (*models.AHJ, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if req.AHJName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ahjName is required")
	}

	ahj := &models.AHJ{
		AHJID:         uuid.NewString(),
		AHJName:       req.AHJName,
		Description:   req.Description,
		URL:           req.URL,
		AddressLine1:  req.AddressLine1,
		City:          req.City,
		County:        req.County,
		StateProvince: req.StateProvince,
		ZipPostalCode: req.ZipPostalCode,
	}
	if err := s.repo.Create(ctx, ahj); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create authority")
	}
	if err := s.cache.Invalidate(ctx, ahjSearchCachePrefix+"*"); err != nil {
		s.logger.Warn("search cache invalidation failed", zap.Error(err))
	}
	return ahj, nil
}

// Get returns one authority.
func (s *AHJService) Get(ctx context.Context, id int64) (*models.AHJ, error) {
	ahj, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load authority")
	}
	return ahj, nil
}

// GetDetail returns one authority with its confirmed child records.
func (s *AHJService) GetDetail(ctx context.Context, id int64) (*models.AHJDetail, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load authority detail")
	}
	return detail, nil
}

// Search returns a page of authorities, served from cache when possible.
func (s *AHJService) Search(ctx context.Context, query dto.AHJQuery) (*AHJSearchResult, error) {
	filter := searchFilter(query)
	key := searchCacheKey(filter)

	var cached AHJSearchResult
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	items, total, err := s.repo.Search(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search authorities")
	}

	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	totalPages := (total + pageSize - 1) / pageSize

	result := &AHJSearchResult{
		Items: items,
		Pagination: models.Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}
	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		s.logger.Warn("search cache write failed", zap.Error(err))
	}
	return result, nil
}

// ExportCSV renders every matching authority as CSV.
func (s *AHJService) ExportCSV(ctx context.Context, query dto.AHJQuery) ([]byte, error) {
	ahjs, err := s.repo.ListForExport(ctx, searchFilter(query))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export authorities")
	}
	return s.csv.Render(exportDataset(ahjs))
}

// ExportPDF renders every matching authority as a tabular PDF.
func (s *AHJService) ExportPDF(ctx context.Context, query dto.AHJQuery) ([]byte, error) {
	ahjs, err := s.repo.ListForExport(ctx, searchFilter(query))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export authorities")
	}
	return s.pdf.Render(exportDataset(ahjs), "AHJ Registry Export")
}

// ExportSummaryPDF renders a one-page info sheet for a single authority.
func (s *AHJService) ExportSummaryPDF(ctx context.Context, id int64) ([]byte, error) {
	detail, err := s.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	rows := []map[string]string{
		{"Field": "Name", "Value": detail.AHJName},
		{"Field": "Level", "Value": deref(detail.AHJLevelCode)},
		{"Field": "City", "Value": detail.City},
		{"Field": "County", "Value": detail.County},
		{"Field": "State", "Value": detail.StateProvince},
		{"Field": "Building Code", "Value": deref(detail.BuildingCode)},
		{"Field": "Electric Code", "Value": deref(detail.ElectricCode)},
		{"Field": "Fire Code", "Value": deref(detail.FireCode)},
		{"Field": "Residential Code", "Value": deref(detail.ResidentialCode)},
		{"Field": "Wind Code", "Value": deref(detail.WindCode)},
		{"Field": "URL", "Value": detail.URL},
		{"Field": "Contacts", "Value": strconv.Itoa(len(detail.Contacts))},
		{"Field": "Inspections", "Value": strconv.Itoa(len(detail.Inspections))},
		{"Field": "Fee Structures", "Value": strconv.Itoa(len(detail.FeeStructures))},
	}
	dataset := export.Dataset{Headers: []string{"Field", "Value"}, Rows: rows}
	return s.pdf.Render(dataset, detail.AHJName)
}

func searchFilter(query dto.AHJQuery) models.AHJFilter {
	return models.AHJFilter{
		Search:        query.Search,
		StateProvince: query.StateProvince,
		BuildingCode:  query.BuildingCode,
		ElectricCode:  query.ElectricCode,
		FireCode:      query.FireCode,
		LevelCode:     query.LevelCode,
		Page:          query.Page,
		PageSize:      query.PageSize,
		SortBy:        query.SortBy,
		SortOrder:     query.SortOrder,
	}
}

func searchCacheKey(filter models.AHJFilter) string {
	return ahjSearchCachePrefix + fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d|%d|%s|%s",
		filter.Search, filter.StateProvince, filter.BuildingCode, filter.ElectricCode,
		filter.FireCode, filter.LevelCode, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

func exportDataset(ahjs []models.AHJ) export.Dataset {
	rows := make([]map[string]string, 0, len(ahjs))
	for _, a := range ahjs {
		rows = append(rows, map[string]string{
			"ID":               strconv.FormatInt(a.ID, 10),
			"Name":             a.AHJName,
			"Level":            deref(a.AHJLevelCode),
			"City":             a.City,
			"County":           a.County,
			"State":            a.StateProvince,
			"Building Code":    deref(a.BuildingCode),
			"Electric Code":    deref(a.ElectricCode),
			"Fire Code":        deref(a.FireCode),
			"Residential Code": deref(a.ResidentialCode),
			"Wind Code":        deref(a.WindCode),
			"URL":              a.URL,
		})
	}
	return export.Dataset{
		Headers: []string{"ID", "Name", "Level", "City", "County", "State", "Building Code", "Electric Code", "Fire Code", "Residential Code", "Wind Code", "URL"},
		Rows:    rows,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
