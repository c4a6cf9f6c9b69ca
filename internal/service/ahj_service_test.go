package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/permitdata/ahj-registry-api/internal/dto"
	"github.com/permitdata/ahj-registry-api/internal/models"
	appErrors "github.com/permitdata/ahj-registry-api/pkg/errors"
)

type stubCacheRepo struct {
	entries map[string][]byte
}

func newStubCacheRepo() *stubCacheRepo {
	return &stubCacheRepo{entries: map[string][]byte{}}
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.entries[key] = raw
	return nil
}

func (s *stubCacheRepo) Delete(_ context.Context, key string) error {
	delete(s.entries, key)
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	return nil
}

type stubAHJStore struct {
	nextID      int64
	ahjs        map[int64]*models.AHJ
	searchCalls int
}

func newStubAHJStore() *stubAHJStore {
	return &stubAHJStore{ahjs: map[int64]*models.AHJ{}}
}

func (s *stubAHJStore) Create(_ context.Context, ahj *models.AHJ) error {
	s.nextID++
	ahj.ID = s.nextID
	stored := *ahj
	s.ahjs[ahj.ID] = &stored
	return nil
}

func (s *stubAHJStore) GetByID(_ context.Context, id int64) (*models.AHJ, error) {
	ahj, ok := s.ahjs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *ahj
	return &copied, nil
}

func (s *stubAHJStore) GetDetail(_ context.Context, id int64) (*models.AHJDetail, error) {
	ahj, err := s.GetByID(context.Background(), id)
	if err != nil {
		return nil, err
	}
	return &models.AHJDetail{AHJ: *ahj}, nil
}

func (s *stubAHJStore) Search(_ context.Context, _ models.AHJFilter) ([]models.AHJ, int, error) {
	s.searchCalls++
	var out []models.AHJ
	for _, ahj := range s.ahjs {
		out = append(out, *ahj)
	}
	return out, len(out), nil
}

func (s *stubAHJStore) ListForExport(_ context.Context, _ models.AHJFilter) ([]models.AHJ, error) {
	items, _, err := s.Search(context.Background(), models.AHJFilter{})
	return items, err
}

func newAHJServiceFixture() (*AHJService, *stubAHJStore, *stubCacheRepo) {
	store := newStubAHJStore()
	cacheRepo := newStubCacheRepo()
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewAHJService(store, cacheSvc, time.Minute, zap.NewNop())
	return svc, store, cacheRepo
}

func TestAHJRegisterRequiresAdmin(t *testing.T) {
	svc, store, _ := newAHJServiceFixture()

	_, err := svc.Register(context.Background(), dto.CreateAHJRequest{AHJName: "Springfield"}, memberClaims("user-1"))
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Register(context.Background(), dto.CreateAHJRequest{}, adminClaims("admin-1"))
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	ahj, err := svc.Register(context.Background(), dto.CreateAHJRequest{AHJName: "Springfield"}, adminClaims("admin-1"))
	require.NoError(t, err)
	require.NotZero(t, ahj.ID)
	require.NotEmpty(t, ahj.AHJID)
	require.Len(t, store.ahjs, 1)
}

func TestAHJSearchCachesPages(t *testing.T) {
	svc, store, _ := newAHJServiceFixture()
	_, err := svc.Register(context.Background(), dto.CreateAHJRequest{AHJName: "Springfield"}, adminClaims("admin-1"))
	require.NoError(t, err)

	query := dto.AHJQuery{StateProvince: "IL", Page: 1, PageSize: 20}
	first, err := svc.Search(context.Background(), query)
	require.NoError(t, err)
	require.Equal(t, 1, first.Pagination.TotalItems)
	require.Equal(t, 1, store.searchCalls)

	second, err := svc.Search(context.Background(), query)
	require.NoError(t, err)
	require.Equal(t, first.Pagination, second.Pagination)
	require.Equal(t, 1, store.searchCalls)

	// registering flushes the cached pages
	_, err = svc.Register(context.Background(), dto.CreateAHJRequest{AHJName: "Shelbyville"}, adminClaims("admin-1"))
	require.NoError(t, err)
	third, err := svc.Search(context.Background(), query)
	require.NoError(t, err)
	require.Equal(t, 2, third.Pagination.TotalItems)
	require.Equal(t, 2, store.searchCalls)
}

func TestAHJGetNotFound(t *testing.T) {
	svc, _, _ := newAHJServiceFixture()

	_, err := svc.Get(context.Background(), 404)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.GetDetail(context.Background(), 404)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAHJExportCSV(t *testing.T) {
	svc, _, _ := newAHJServiceFixture()
	_, err := svc.Register(context.Background(), dto.CreateAHJRequest{
		AHJName:       "Springfield",
		City:          "Springfield",
		StateProvince: "IL",
	}, adminClaims("admin-1"))
	require.NoError(t, err)

	raw, err := svc.ExportCSV(context.Background(), dto.AHJQuery{})
	require.NoError(t, err)
	content := string(raw)
	require.Contains(t, content, "Name")
	require.Contains(t, content, "Springfield")
	require.Contains(t, content, "IL")
}

func TestAHJExportPDF(t *testing.T) {
	svc, _, _ := newAHJServiceFixture()
	_, err := svc.Register(context.Background(), dto.CreateAHJRequest{AHJName: "Springfield"}, adminClaims("admin-1"))
	require.NoError(t, err)

	raw, err := svc.ExportPDF(context.Background(), dto.AHJQuery{})
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	require.True(t, strings.HasPrefix(string(raw), "%PDF"))
}

func TestAHJExportSummaryPDF(t *testing.T) {
	svc, _, _ := newAHJServiceFixture()
	ahj, err := svc.Register(context.Background(), dto.CreateAHJRequest{AHJName: "Springfield"}, adminClaims("admin-1"))
	require.NoError(t, err)

	raw, err := svc.ExportSummaryPDF(context.Background(), ahj.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "%PDF"))

	_, err = svc.ExportSummaryPDF(context.Background(), 404)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
