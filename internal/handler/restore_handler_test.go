package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-archive-api/internal/dto"
	"github.com/noah-isme/sma-archive-api/internal/models"
	appErrors "github.com/noah-isme/sma-archive-api/pkg/errors"
)

type restoreServiceMock struct {
	result    *models.RestoreResult
	err       error
	lastReq   dto.RestoreArchiveRequest
	lastActor models.Actor
	previewed bool
}

func (m *restoreServiceMock) Preview(_ context.Context, req dto.RestoreArchiveRequest) (*models.RestorePreview, error) {
	m.previewed = true
	m.lastReq = req
	return &models.RestorePreview{ArchiveID: req.ArchiveID, RequiresConfirmation: true}, nil
}

func (m *restoreServiceMock) Restore(_ context.Context, req dto.RestoreArchiveRequest, actor models.Actor) (*models.RestoreResult, error) {
	m.lastReq = req
	m.lastActor = actor
	return m.result, m.err
}

const restoreBody = `{"archiveId":"arch-1","targetTerm":"First Term","targetYear":"2025/2026","overwriteMode":"replace","confirm":true}`

func TestRestoreHandlerRestore(t *testing.T) {
	mockSvc := &restoreServiceMock{result: &models.RestoreResult{
		RestoreCounts: models.RestoreCounts{RestoredMarks: 10, RestoredRemarks: 3},
		Target:        models.Period{Term: "First Term", AcademicYear: "2025/2026"},
	}}
	handler := NewRestoreHandler(mockSvc)
	c, w := newArchiveTestContext(http.MethodPost, "/restore-archive", restoreBody)

	handler.Restore(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.lastReq.Confirm)
	assert.Equal(t, "replace", mockSvc.lastReq.OverwriteMode)
	assert.Equal(t, "head-1", mockSvc.lastActor.UserID)
	assert.Equal(t, "Restored 10 marks and 3 remarks into First Term 2025/2026", decodeEnvelope(t, w).Message)
}

func TestRestoreHandlerUnconfirmedIs412(t *testing.T) {
	warning := "Replace permanently deletes 4 marks and 1 remarks in First Term 2025/2026 before restoring. Resend with confirm set to true to proceed."
	handler := NewRestoreHandler(&restoreServiceMock{err: appErrors.Clone(appErrors.ErrPreconditionFailed, warning)})
	c, w := newArchiveTestContext(http.MethodPost, "/restore-archive", restoreBody)

	handler.Restore(c)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, envelope.Code)
	assert.Equal(t, warning, envelope.Message)
}

func TestRestoreHandlerRejectsMalformedBody(t *testing.T) {
	mockSvc := &restoreServiceMock{}
	handler := NewRestoreHandler(mockSvc)
	c, w := newArchiveTestContext(http.MethodPost, "/restore-archive", `{"archiveId":`)

	handler.Restore(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.lastReq.ArchiveID)
}

func TestRestoreHandlerPreview(t *testing.T) {
	mockSvc := &restoreServiceMock{}
	handler := NewRestoreHandler(mockSvc)
	c, w := newArchiveTestContext(http.MethodPost, "/restore-archive/preview", restoreBody)

	handler.Preview(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.previewed)
	data := decodeEnvelope(t, w).Data.(map[string]interface{})
	assert.Equal(t, true, data["requiresConfirmation"])
}
