package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitdata/ahj-registry-api/internal/dto"
	"github.com/permitdata/ahj-registry-api/internal/middleware"
	"github.com/permitdata/ahj-registry-api/internal/models"
	appErrors "github.com/permitdata/ahj-registry-api/pkg/errors"
)

type editServiceMock struct {
	submitResp   []models.Edit
	submitErr    error
	reviewResp   *models.Edit
	reviewErr    error
	revertResp   *models.Edit
	resettable   bool
	lastQuery    dto.EditQuery
	lastReview   dto.ReviewEditRequest
	submitCalled bool
	reviewCalled bool
	revertCalled bool
	resetCalled  bool
}

func (m *editServiceMock) SubmitUpdates(_ context.Context, _ dto.SubmitUpdatesRequest, _ *models.JWTClaims) ([]models.Edit, error) {
	m.submitCalled = true
	return m.submitResp, m.submitErr
}

func (m *editServiceMock) SubmitAddition(_ context.Context, _ dto.SubmitAdditionRequest, _ *models.JWTClaims) (*models.Edit, error) {
	return &models.Edit{ID: 1, EditType: models.EditTypeAddition}, nil
}

func (m *editServiceMock) SubmitDeletions(_ context.Context, _ dto.SubmitDeletionsRequest, _ *models.JWTClaims) ([]models.Edit, error) {
	return []models.Edit{{ID: 2, EditType: models.EditTypeDeletion}}, nil
}

func (m *editServiceMock) Review(_ context.Context, _ int64, req dto.ReviewEditRequest, _ *models.JWTClaims) (*models.Edit, error) {
	m.reviewCalled = true
	m.lastReview = req
	return m.reviewResp, m.reviewErr
}

func (m *editServiceMock) Revert(_ context.Context, _ int64, _ *models.JWTClaims) (*models.Edit, error) {
	m.revertCalled = true
	return m.revertResp, nil
}

func (m *editServiceMock) Reset(_ context.Context, _ int64, _ *models.JWTClaims) (*models.Edit, error) {
	m.resetCalled = true
	return nil, nil
}

func (m *editServiceMock) IsResettable(_ context.Context, _ int64) (bool, error) {
	return m.resettable, nil
}

func (m *editServiceMock) Get(_ context.Context, id int64) (*models.Edit, error) {
	return &models.Edit{ID: id}, nil
}

func (m *editServiceMock) List(_ context.Context, query dto.EditQuery) ([]models.Edit, error) {
	m.lastQuery = query
	return nil, nil
}

func (m *editServiceMock) ExportHistoryCSV(_ context.Context, _ int64) ([]byte, error) {
	return []byte("ID,Status\n"), nil
}

func testContext(t *testing.T, method, target string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleMember})
	return c, w
}

func TestEditHandlerSubmitUpdates(t *testing.T) {
	mockSvc := &editServiceMock{submitResp: []models.Edit{{ID: 1}}}
	handler := NewEditHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/edits",
		`{"edits":[{"sourceTable":"AHJ","sourceRow":1,"sourceColumn":"AHJName","newValue":"x"}]}`)
	handler.SubmitUpdates(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.submitCalled)
}

func TestEditHandlerSubmitUpdatesInvalidBody(t *testing.T) {
	handler := NewEditHandler(&editServiceMock{})

	c, w := testContext(t, http.MethodPost, "/edits", `{"edits":[`)
	handler.SubmitUpdates(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditHandlerListParsesQuery(t *testing.T) {
	mockSvc := &editServiceMock{}
	handler := NewEditHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/edits?ahjId=9&status=pending,approved&sourceTable=Contact", "")
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastQuery.AHJID)
	assert.Equal(t, int64(9), *mockSvc.lastQuery.AHJID)
	assert.Equal(t, []models.ReviewStatus{models.ReviewStatusPending, models.ReviewStatusApproved}, mockSvc.lastQuery.Status)
	assert.Equal(t, "Contact", mockSvc.lastQuery.SourceTable)
}

func TestEditHandlerReview(t *testing.T) {
	mockSvc := &editServiceMock{reviewResp: &models.Edit{ID: 5, ReviewStatus: models.ReviewStatusApproved}}
	handler := NewEditHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/edits/5/review", `{"decision":"APPROVE"}`)
	c.Params = gin.Params{{Key: "id", Value: "5"}}
	handler.Review(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.reviewCalled)
	assert.Equal(t, dto.DecisionApprove, mockSvc.lastReview.Decision)
}

func TestEditHandlerReviewServiceError(t *testing.T) {
	mockSvc := &editServiceMock{reviewErr: appErrors.Clone(appErrors.ErrValidation, "edit does not exist")}
	handler := NewEditHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/edits/404/review", `{"decision":"APPROVE"}`)
	c.Params = gin.Params{{Key: "id", Value: "404"}}
	handler.Review(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditHandlerRevertNoOp(t *testing.T) {
	mockSvc := &editServiceMock{}
	handler := NewEditHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/edits/7/revert", "")
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	handler.Revert(c)
	// a status-only response is not flushed to the recorder until gin
	// writes the header, which ServeHTTP normally does after the handler
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.revertCalled)
}

func TestEditHandlerResetNoOp(t *testing.T) {
	mockSvc := &editServiceMock{}
	handler := NewEditHandler(mockSvc)

	c, w := testContext(t, http.MethodPost, "/edits/8/reset", "")
	c.Params = gin.Params{{Key: "id", Value: "8"}}
	handler.Reset(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.resetCalled)
}

func TestEditHandlerBadID(t *testing.T) {
	handler := NewEditHandler(&editServiceMock{})

	c, w := testContext(t, http.MethodPost, "/edits/abc/reset", "")
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	handler.Reset(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
