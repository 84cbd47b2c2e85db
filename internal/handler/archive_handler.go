package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-archive-api/internal/dto"
	"github.com/noah-isme/sma-archive-api/internal/middleware"
	"github.com/noah-isme/sma-archive-api/internal/models"
	"github.com/noah-isme/sma-archive-api/internal/service"
	appErrors "github.com/noah-isme/sma-archive-api/pkg/errors"
	"github.com/noah-isme/sma-archive-api/pkg/response"
)

type archiveService interface {
	List(ctx context.Context, query dto.ArchiveListQuery) (*models.ArchivePage, bool, error)
	GetDetail(ctx context.Context, id string) (*models.ArchiveDetail, bool, error)
	Create(ctx context.Context, req dto.CreateArchiveRequest, actor models.Actor) (*models.Archive, error)
	Delete(ctx context.Context, id string, actor models.Actor) (*models.Archive, error)
	Analytics(ctx context.Context, id string) (*models.ArchiveAnalytics, error)
	Compare(ctx context.Context, ids []string) (*models.ArchiveComparison, error)
}

// ArchiveHandler exposes the archive endpoints.
type ArchiveHandler struct {
	service archiveService
}

// NewArchiveHandler constructs the archive handler.
func NewArchiveHandler(svc archiveService) *ArchiveHandler {
	return &ArchiveHandler{service: svc}
}

// List godoc
// @Summary List archives or fetch one archive's records
// @Description With archiveId returns {archive, marks, remarks, students}; otherwise archive summaries with counts, newest first, plus pagination with the total match count.
// @Tags Archives
// @Produce json
// @Param archiveId query string false "Archive ID"
// @Param term query string false "Term filter"
// @Param year query string false "Academic year filter"
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /archives [get]
func (h *ArchiveHandler) List(c *gin.Context) {
	var query dto.ArchiveListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}

	if strings.TrimSpace(query.ArchiveID) != "" {
		detail, cacheHit, err := h.service.GetDetail(c.Request.Context(), query.ArchiveID)
		if err != nil {
			fail(c, err)
			return
		}
		middleware.SetCacheHit(c, cacheHit)
		response.JSON(c, http.StatusOK, detail, middleware.ResponseMeta(c))
		return
	}

	page, cacheHit, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		fail(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.Page(c, http.StatusOK, page.Items, page.Pagination, middleware.ResponseMeta(c))
}

// Create godoc
// @Summary Archive a term
// @Tags Archives
// @Accept json
// @Produce json
// @Param payload body dto.CreateArchiveRequest true "Archive payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /archives [post]
func (h *ArchiveHandler) Create(c *gin.Context) {
	var req dto.CreateArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	archive, err := h.service.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, fmt.Sprintf("Archive created for %s", archive.Period()), archive)
}

// Delete godoc
// @Summary Delete an archive marker
// @Description Removes only the archive row. Marks, remarks and students are preserved.
// @Tags Archives
// @Produce json
// @Param id query string true "Archive ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /archives [delete]
func (h *ArchiveHandler) Delete(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		id = c.Param("id")
	}
	archive, err := h.service.Delete(c.Request.Context(), id, actorFromContext(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Archive deleted", service.DeletionNote(archive.Period()), gin.H{"id": archive.ID})
}

// Analytics godoc
// @Summary Analyse one archive's marks
// @Tags Archives
// @Produce json
// @Param id path string true "Archive ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /archives/{id}/analytics [get]
func (h *ArchiveHandler) Analytics(c *gin.Context) {
	analytics, err := h.service.Analytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, middleware.ResponseMeta(c))
}

// Compare godoc
// @Summary Compare analytics of several archives
// @Tags Archives
// @Produce json
// @Param ids query string true "Comma separated archive IDs"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /archives/compare [get]
func (h *ArchiveHandler) Compare(c *gin.Context) {
	var ids []string
	for _, raw := range c.QueryArray("ids") {
		ids = append(ids, strings.Split(raw, ",")...)
	}
	comparison, err := h.service.Compare(c.Request.Context(), ids)
	if err != nil {
		fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comparison, middleware.ResponseMeta(c))
}
