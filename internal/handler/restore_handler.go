package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-archive-api/internal/dto"
	"github.com/noah-isme/sma-archive-api/internal/models"
	appErrors "github.com/noah-isme/sma-archive-api/pkg/errors"
	"github.com/noah-isme/sma-archive-api/pkg/response"
)

type restoreService interface {
	Preview(ctx context.Context, req dto.RestoreArchiveRequest) (*models.RestorePreview, error)
	Restore(ctx context.Context, req dto.RestoreArchiveRequest, actor models.Actor) (*models.RestoreResult, error)
}

// RestoreHandler exposes archive restore endpoints.
type RestoreHandler struct {
	service restoreService
}

// NewRestoreHandler constructs the restore handler.
func NewRestoreHandler(svc restoreService) *RestoreHandler {
	return &RestoreHandler{service: svc}
}

// Restore godoc
// @Summary Restore an archive into a target term
// @Description replace against a populated target, or merge over conflicting rows, needs confirm=true; otherwise 412 with the warning.
// @Tags Restore
// @Accept json
// @Produce json
// @Param payload body dto.RestoreArchiveRequest true "Restore payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /restore-archive [post]
func (h *RestoreHandler) Restore(c *gin.Context) {
	req, ok := bindRestoreRequest(c)
	if !ok {
		return
	}
	result, err := h.service.Restore(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		fail(c, err)
		return
	}
	message := fmt.Sprintf("Restored %d marks and %d remarks into %s", result.RestoredMarks, result.RestoredRemarks, result.Target)
	response.Message(c, http.StatusOK, message, "", result)
}

// Preview godoc
// @Summary Preview a restore without writing
// @Tags Restore
// @Accept json
// @Produce json
// @Param payload body dto.RestoreArchiveRequest true "Restore payload"
// @Success 200 {object} response.Envelope
// @Router /restore-archive/preview [post]
func (h *RestoreHandler) Preview(c *gin.Context) {
	req, ok := bindRestoreRequest(c)
	if !ok {
		return
	}
	preview, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview)
}

func bindRestoreRequest(c *gin.Context) (dto.RestoreArchiveRequest, bool) {
	var req dto.RestoreArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return req, false
	}
	return req, true
}
