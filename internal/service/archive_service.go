package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-archive-api/internal/dto"
	"github.com/noah-isme/sma-archive-api/internal/models"
	"github.com/noah-isme/sma-archive-api/internal/repository"
	appErrors "github.com/noah-isme/sma-archive-api/pkg/errors"
)

const (
	maxListLimit      = 200
	archiveResource   = "archive"
	archiveNotFound   = "Archive not found"
	defaultCompareMax = 6
)

type archiveStore interface {
	Create(ctx context.Context, archive *models.Archive) error
	GetByID(ctx context.Context, id string) (*models.Archive, error)
	FindByPeriod(ctx context.Context, period models.Period) (*models.Archive, error)
	List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, error)
	ListWithCounts(ctx context.Context, filter models.ArchiveFilter) ([]models.ArchiveSummaryRow, error)
	Count(ctx context.Context, filter models.ArchiveFilter) (int, error)
	Fingerprint(ctx context.Context) (string, error)
	CountsForPeriod(ctx context.Context, period models.Period) (models.ArchiveCounts, error)
	Delete(ctx context.Context, id string) error
}

type archiveMarkReader interface {
	CountByPeriod(ctx context.Context, period models.Period) (int, error)
	ListRecordsByPeriod(ctx context.Context, period models.Period) ([]models.MarkRecord, error)
}

type archiveRemarkReader interface {
	ListRecordsByPeriod(ctx context.Context, period models.Period) ([]models.RemarkRecord, error)
}

type archiveStudentReader interface {
	ListByPeriod(ctx context.Context, period models.Period) ([]models.Student, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ArchiveServiceConfig holds validation and listing parameters.
type ArchiveServiceConfig struct {
	Terms            []string
	ListLimit        int
	CountConcurrency int
	CompareMax       int
}

// ArchiveService lists, creates, deletes, assembles and analyses term archives.
type ArchiveService struct {
	archives archiveStore
	marks    archiveMarkReader
	remarks  archiveRemarkReader
	students archiveStudentReader
	cache    *CacheService
	metrics  *MetricsService
	audit    auditLogger
	logger   *zap.Logger
	cfg      ArchiveServiceConfig
	terms    termVocabulary
	validate *validator.Validate
}

// NewArchiveService constructs the service with defaults.
func NewArchiveService(archives archiveStore, marks archiveMarkReader, remarks archiveRemarkReader, students archiveStudentReader, cache *CacheService, metrics *MetricsService, audit auditLogger, logger *zap.Logger, cfg ArchiveServiceConfig) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ListLimit <= 0 || cfg.ListLimit > maxListLimit {
		cfg.ListLimit = 50
	}
	if cfg.CountConcurrency <= 0 {
		cfg.CountConcurrency = 4
	}
	if cfg.CompareMax < 2 {
		cfg.CompareMax = defaultCompareMax
	}
	terms := newTermVocabulary(cfg.Terms)
	return &ArchiveService{
		archives: archives,
		marks:    marks,
		remarks:  remarks,
		students: students,
		cache:    cache,
		metrics:  metrics,
		audit:    audit,
		logger:   logger,
		cfg:      cfg,
		terms:    terms,
		validate: newRequestValidator(terms),
	}
}

// List returns one page of archive summaries newest first along with the total match count.
// Counts come from one grouped query; when that query fails every archive is counted on its
// own and a failing archive reports zeros.
func (s *ArchiveService) List(ctx context.Context, query dto.ArchiveListQuery) (*models.ArchivePage, bool, error) {
	filter := models.ArchiveFilter{
		AcademicYear: strings.TrimSpace(query.Year),
		Limit:        query.Limit,
		Offset:       query.Offset,
	}
	if strings.TrimSpace(query.Term) != "" {
		filter.Term = s.terms.Canonical(query.Term)
	}
	if filter.Limit <= 0 {
		filter.Limit = s.cfg.ListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	version, cacheable := s.recordsVersion(ctx)
	cacheKey := fmt.Sprintf("%s%s|%s|%s|%d|%d", archiveListKeyPrefix, version, filter.Term, filter.AcademicYear, filter.Limit, filter.Offset)
	if cacheable {
		var cached models.ArchivePage
		if s.cache.Get(ctx, cacheKey, &cached) {
			return &cached, true, nil
		}
	}

	total, err := s.archives.Count(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Store(err, "failed to count archives")
	}

	start := time.Now()
	rows, err := s.archives.ListWithCounts(ctx, filter)
	s.metrics.ObserveDBQuery("archive_list_counts", time.Since(start))
	var summaries []models.ArchiveSummary
	if err == nil {
		summaries = make([]models.ArchiveSummary, len(rows))
		for i, row := range rows {
			summaries[i] = row.Summary()
		}
	} else {
		s.logger.Warn("grouped archive counts failed, counting per archive", zap.Error(err))
		s.metrics.RecordCountFallback()
		summaries, err = s.listWithPerArchiveCounts(ctx, filter)
		if err != nil {
			return nil, false, appErrors.Store(err, "failed to list archives")
		}
	}
	if summaries == nil {
		summaries = []models.ArchiveSummary{}
	}

	page := &models.ArchivePage{Items: summaries, Pagination: models.NewPagination(filter.Limit, filter.Offset, total)}
	if cacheable {
		s.cache.Set(ctx, cacheKey, page)
	}
	return page, false, nil
}

// recordsVersion returns the record-store fingerprint that scopes cached archive views.
// It reports false when caching is off or the fingerprint cannot be read.
func (s *ArchiveService) recordsVersion(ctx context.Context) (string, bool) {
	if !s.cache.Enabled() {
		return "", false
	}
	version, err := s.archives.Fingerprint(ctx)
	if err != nil {
		s.logger.Warn("record fingerprint unavailable, bypassing archive cache", zap.Error(err))
		return "", false
	}
	return version, true
}

func (s *ArchiveService) listWithPerArchiveCounts(ctx context.Context, filter models.ArchiveFilter) ([]models.ArchiveSummary, error) {
	archives, err := s.archives.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.ArchiveSummary, len(archives))
	var g errgroup.Group
	g.SetLimit(s.cfg.CountConcurrency)
	for i := range archives {
		summaries[i].Archive = archives[i]
		g.Go(func() error {
			counts, err := s.archives.CountsForPeriod(ctx, archives[i].Period())
			if err != nil {
				s.logger.Warn("archive counts unavailable",
					zap.String("archive_id", archives[i].ID),
					zap.String("period", archives[i].Period().String()),
					zap.Error(err))
				return nil
			}
			summaries[i].Counts = counts
			return nil
		})
	}
	_ = g.Wait()
	return summaries, nil
}

// Get returns one archive row without counts.
func (s *ArchiveService) Get(ctx context.Context, id string) (*models.Archive, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "archiveId is required")
	}
	archive, err := s.archives.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, archiveNotFound)
		}
		return nil, appErrors.Store(err, "failed to load archive")
	}
	return archive, nil
}

// GetDetail assembles an archive with its marks, remarks and the students holding marks.
func (s *ArchiveService) GetDetail(ctx context.Context, id string) (*models.ArchiveDetail, bool, error) {
	archive, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	version, cacheable := s.recordsVersion(ctx)
	cacheKey := archiveDetailKeyPrefix + archive.ID + "|" + version
	if cacheable {
		var cached models.ArchiveDetail
		if s.cache.Get(ctx, cacheKey, &cached) {
			return &cached, true, nil
		}
	}

	period := archive.Period()
	detail := &models.ArchiveDetail{Archive: *archive}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		marks, err := s.marks.ListRecordsByPeriod(gctx, period)
		detail.Marks = marks
		return err
	})
	g.Go(func() error {
		remarks, err := s.remarks.ListRecordsByPeriod(gctx, period)
		detail.Remarks = remarks
		return err
	})
	g.Go(func() error {
		students, err := s.students.ListByPeriod(gctx, period)
		detail.Students = students
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, false, appErrors.Store(err, "failed to load archive records")
	}
	s.metrics.ObserveDBQuery("archive_detail", time.Since(start))

	if detail.Marks == nil {
		detail.Marks = []models.MarkRecord{}
	}
	if detail.Remarks == nil {
		detail.Remarks = []models.RemarkRecord{}
	}
	if detail.Students == nil {
		detail.Students = []models.Student{}
	}

	if cacheable {
		s.cache.Set(ctx, cacheKey, detail)
	}
	return detail, false, nil
}

// Create archives a period that has at least one mark.
func (s *ArchiveService) Create(ctx context.Context, req dto.CreateArchiveRequest, actor models.Actor) (*models.Archive, error) {
	req.Term = s.terms.Canonical(req.Term)
	req.AcademicYear = strings.TrimSpace(req.AcademicYear)
	if err := s.validate.Struct(req); err != nil {
		return nil, validationFailure(err, s.terms)
	}
	period := models.Period{Term: req.Term, AcademicYear: req.AcademicYear}

	existing, err := s.archives.FindByPeriod(ctx, period)
	switch {
	case err == nil && existing != nil:
		return nil, archiveConflict(period)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Store(err, "failed to check existing archives")
	}

	total, err := s.marks.CountByPeriod(ctx, period)
	if err != nil {
		return nil, appErrors.Store(err, "failed to count marks")
	}
	if total == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("no data to archive for %s", period))
	}

	archive := &models.Archive{
		Term:         period.Term,
		AcademicYear: period.AcademicYear,
		ArchivedBy:   actor.Ref(),
		Metadata:     models.ArchiveMetadata(req.Metadata),
	}
	if req.ArchivedBy != nil && strings.TrimSpace(*req.ArchivedBy) != "" {
		archivedBy := strings.TrimSpace(*req.ArchivedBy)
		archive.ArchivedBy = &archivedBy
	}
	if err := s.archives.Create(ctx, archive); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, archiveConflict(period)
		}
		return nil, appErrors.Store(err, "failed to create archive")
	}

	s.cache.InvalidateArchives(ctx)
	s.emitAudit(ctx, actor, models.AuditActionArchiveCreate, archive.ID, nil, archive)
	s.logger.Info("archive created",
		zap.String("archive_id", archive.ID),
		zap.String("period", period.String()),
		zap.Int("marks", total))
	return archive, nil
}

// Delete removes the archive row only and returns it. Marks, remarks and students stay.
func (s *ArchiveService) Delete(ctx context.Context, id string, actor models.Actor) (*models.Archive, error) {
	archive, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.archives.Delete(ctx, archive.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, archiveNotFound)
		}
		return nil, appErrors.Store(err, "failed to delete archive")
	}
	s.cache.InvalidateArchives(ctx)
	s.emitAudit(ctx, actor, models.AuditActionArchiveDelete, archive.ID, archive, nil)
	return archive, nil
}

// DeletionNote tells operators that deleting an archive kept the underlying records.
func DeletionNote(period models.Period) string {
	return fmt.Sprintf("Only the archive marker was removed. Marks, remarks and student records for %s are preserved.", period)
}

// Analytics computes grade, score and performance statistics over one archive's marks.
func (s *ArchiveService) Analytics(ctx context.Context, id string) (*models.ArchiveAnalytics, error) {
	archive, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.analyse(ctx, archive)
}

// Compare returns analytics for several archives in request order plus the union of subjects.
func (s *ArchiveService) Compare(ctx context.Context, ids []string) (*models.ArchiveComparison, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least two distinct archive ids are required")
	}
	if len(unique) > s.cfg.CompareMax {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d archives can be compared", s.cfg.CompareMax))
	}

	comparison := &models.ArchiveComparison{Archives: make([]models.ArchiveAnalytics, 0, len(unique))}
	subjects := make(map[string]struct{})
	for _, id := range unique {
		analytics, err := s.Analytics(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, perf := range analytics.SubjectPerformance {
			subjects[perf.Name] = struct{}{}
		}
		comparison.Archives = append(comparison.Archives, *analytics)
	}
	comparison.Subjects = make([]string, 0, len(subjects))
	for subject := range subjects {
		comparison.Subjects = append(comparison.Subjects, subject)
	}
	sort.Strings(comparison.Subjects)
	return comparison, nil
}

func (s *ArchiveService) analyse(ctx context.Context, archive *models.Archive) (*models.ArchiveAnalytics, error) {
	period := archive.Period()
	start := time.Now()
	records, err := s.marks.ListRecordsByPeriod(ctx, period)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load archive marks")
	}
	counts, err := s.archives.CountsForPeriod(ctx, period)
	if err != nil {
		return nil, appErrors.Store(err, "failed to count archive records")
	}
	s.metrics.ObserveDBQuery("archive_analytics", time.Since(start))

	marks := marksOf(records)
	return &models.ArchiveAnalytics{
		Archive:            *archive,
		Counts:             counts,
		OverallAverage:     OverallAverage(marks),
		PassRate:           PassRate(marks),
		GradeDistribution:  GradeDistribution(marks),
		SubjectPerformance: SubjectPerformance(marks),
		ClassPerformance:   ClassPerformance(marks),
		ScoreDistribution:  ScoreDistribution(marks),
	}, nil
}

func (s *ArchiveService) emitAudit(ctx context.Context, actor models.Actor, action, resourceID string, oldValues, newValues interface{}) {
	emitAudit(ctx, s.audit, s.logger, actor, action, resourceID, oldValues, newValues)
}

func emitAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, actor models.Actor, action, resourceID string, oldValues, newValues interface{}) {
	if audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     actor.Ref(),
		Action:     action,
		Resource:   archiveResource,
		ResourceID: &resourceID,
		OldValues:  auditPayload(oldValues),
		NewValues:  auditPayload(newValues),
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to write archive audit", zap.String("action", action), zap.Error(err))
	}
}

func auditPayload(value interface{}) models.JSONDocument {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return raw
}

func archiveConflict(period models.Period) error {
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("an archive already exists for %s", period))
}
