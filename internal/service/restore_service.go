package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-archive-api/internal/dto"
	"github.com/noah-isme/sma-archive-api/internal/models"
	appErrors "github.com/noah-isme/sma-archive-api/pkg/errors"
)

// Restore outcomes recorded in metrics.
const (
	RestoreOutcomeSuccess     = "success"
	RestoreOutcomeUnconfirmed = "unconfirmed"
	RestoreOutcomeFailed      = "failed"
)

type restoreArchiveReader interface {
	GetByID(ctx context.Context, id string) (*models.Archive, error)
}

type restoreMarkStore interface {
	ListByPeriod(ctx context.Context, q sqlx.ExtContext, period models.Period) ([]models.Mark, error)
	Occupancy(ctx context.Context, q sqlx.ExtContext, source, target models.Period) (int, int, error)
	DeleteByPeriod(ctx context.Context, q sqlx.ExtContext, period models.Period) (int64, error)
	Insert(ctx context.Context, q sqlx.ExtContext, mark *models.Mark) error
	Upsert(ctx context.Context, q sqlx.ExtContext, mark *models.Mark) error
	InsertIfAbsent(ctx context.Context, q sqlx.ExtContext, mark *models.Mark) (bool, error)
}

type restoreRemarkStore interface {
	ListByPeriod(ctx context.Context, q sqlx.ExtContext, period models.Period) ([]models.Remark, error)
	Occupancy(ctx context.Context, q sqlx.ExtContext, source, target models.Period) (int, int, error)
	DeleteByPeriod(ctx context.Context, q sqlx.ExtContext, period models.Period) (int64, error)
	Insert(ctx context.Context, q sqlx.ExtContext, remark *models.Remark) error
	Upsert(ctx context.Context, q sqlx.ExtContext, remark *models.Remark) error
	InsertIfAbsent(ctx context.Context, q sqlx.ExtContext, remark *models.Remark) (bool, error)
}

type txProvider interface {
	sqlx.ExtContext
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// RestoreService copies an archive's period into a target period under an overwrite mode.
// Every restore runs in one transaction.
type RestoreService struct {
	db       txProvider
	archives restoreArchiveReader
	marks    restoreMarkStore
	remarks  restoreRemarkStore
	strategy restoreStrategy
	cache    *CacheService
	metrics  *MetricsService
	audit    auditLogger
	logger   *zap.Logger
	terms    termVocabulary
	validate *validator.Validate
}

// NewRestoreService constructs the service.
func NewRestoreService(db txProvider, archives restoreArchiveReader, marks restoreMarkStore, remarks restoreRemarkStore, cache *CacheService, metrics *MetricsService, audit auditLogger, logger *zap.Logger, terms []string) *RestoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	vocab := newTermVocabulary(terms)
	return &RestoreService{
		db:       db,
		archives: archives,
		marks:    marks,
		remarks:  remarks,
		strategy: &periodWriter{marks: marks, remarks: remarks, logger: logger},
		cache:    cache,
		metrics:  metrics,
		audit:    audit,
		logger:   logger,
		terms:    vocab,
		validate: newRequestValidator(vocab),
	}
}

type restorePlan struct {
	archive *models.Archive
	mode    models.OverwriteMode
	source  models.Period
	target  models.Period
}

// Preview reports what a restore would do without writing anything.
func (s *RestoreService) Preview(ctx context.Context, req dto.RestoreArchiveRequest) (*models.RestorePreview, error) {
	plan, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	marks, remarks, occupancy, err := s.inspect(ctx, s.db, plan)
	if err != nil {
		return nil, err
	}
	return &models.RestorePreview{
		ArchiveID:            plan.archive.ID,
		Mode:                 plan.mode,
		Source:               plan.source,
		Target:               plan.target,
		SourceMarks:          len(marks),
		SourceRemarks:        len(remarks),
		Occupancy:            occupancy,
		RequiresConfirmation: requiresConfirmation(plan.mode, occupancy),
		Warnings:             restoreWarnings(plan, len(marks), len(remarks), occupancy),
	}, nil
}

// Restore applies the overwrite mode inside a transaction. A destructive restore against
// existing rows fails with PRECONDITION_FAILED unless req.Confirm is set.
func (s *RestoreService) Restore(ctx context.Context, req dto.RestoreArchiveRequest, actor models.Actor) (*models.RestoreResult, error) {
	plan, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	outcome := RestoreOutcomeFailed
	var counts models.RestoreCounts
	defer func() {
		s.metrics.RecordRestore(plan.mode, outcome, counts)
	}()

	start := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Store(err, "failed to start restore")
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("restore rollback failed", zap.String("archive_id", plan.archive.ID), zap.Error(rbErr))
			}
		}
	}()

	marks, remarks, occupancy, err := s.inspect(ctx, tx, plan)
	if err != nil {
		return nil, err
	}
	warnings := restoreWarnings(plan, len(marks), len(remarks), occupancy)
	if requiresConfirmation(plan.mode, occupancy) && !req.Confirm {
		outcome = RestoreOutcomeUnconfirmed
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, warnings[0]+" Resend with confirm set to true to proceed.")
	}

	batch := rekeyBatch(plan.target, marks, remarks)
	counts, err = applyRestore(ctx, s.strategy, plan.mode, tx, batch)
	if err != nil {
		return nil, appErrors.Store(err, "failed to restore archive")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Store(err, "failed to commit restore")
	}
	committed = true
	outcome = RestoreOutcomeSuccess
	s.metrics.ObserveDBQuery("archive_restore", time.Since(start))

	result := &models.RestoreResult{
		RestoreCounts: counts,
		ArchiveID:     plan.archive.ID,
		Mode:          plan.mode,
		Source:        plan.source,
		Target:        plan.target,
		Warnings:      warnings,
	}
	s.cache.InvalidateArchives(ctx)
	emitAudit(ctx, s.audit, s.logger, actor, models.AuditActionArchiveRestore, plan.archive.ID, nil, result)
	s.logger.Info("archive restored",
		zap.String("archive_id", plan.archive.ID),
		zap.String("mode", string(plan.mode)),
		zap.String("source", plan.source.String()),
		zap.String("target", plan.target.String()),
		zap.Int("restored_marks", counts.RestoredMarks),
		zap.Int("restored_remarks", counts.RestoredRemarks),
		zap.Int("skipped_marks", counts.SkippedMarks),
		zap.Int("skipped_remarks", counts.SkippedRemarks))
	return result, nil
}

func (s *RestoreService) prepare(ctx context.Context, req dto.RestoreArchiveRequest) (*restorePlan, error) {
	req.ArchiveID = strings.TrimSpace(req.ArchiveID)
	req.TargetTerm = s.terms.Canonical(req.TargetTerm)
	req.TargetYear = strings.TrimSpace(req.TargetYear)
	if err := s.validate.Struct(req); err != nil {
		return nil, validationFailure(err, s.terms)
	}
	mode, ok := models.ParseOverwriteMode(req.OverwriteMode)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "overwriteMode must be one of: merge, replace, skip")
	}

	archive, err := s.archives.GetByID(ctx, req.ArchiveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, archiveNotFound)
		}
		return nil, appErrors.Store(err, "failed to load archive")
	}
	return &restorePlan{
		archive: archive,
		mode:    mode,
		source:  archive.Period(),
		target:  models.Period{Term: req.TargetTerm, AcademicYear: req.TargetYear},
	}, nil
}

func (s *RestoreService) inspect(ctx context.Context, q sqlx.ExtContext, plan *restorePlan) ([]models.Mark, []models.Remark, models.TargetOccupancy, error) {
	var occupancy models.TargetOccupancy
	marks, err := s.marks.ListByPeriod(ctx, q, plan.source)
	if err != nil {
		return nil, nil, occupancy, appErrors.Store(err, "failed to read archived marks")
	}
	remarks, err := s.remarks.ListByPeriod(ctx, q, plan.source)
	if err != nil {
		return nil, nil, occupancy, appErrors.Store(err, "failed to read archived remarks")
	}
	occupancy.ExistingMarks, occupancy.ConflictingMarks, err = s.marks.Occupancy(ctx, q, plan.source, plan.target)
	if err != nil {
		return nil, nil, occupancy, appErrors.Store(err, "failed to inspect target marks")
	}
	occupancy.ExistingRemarks, occupancy.ConflictingRemarks, err = s.remarks.Occupancy(ctx, q, plan.source, plan.target)
	if err != nil {
		return nil, nil, occupancy, appErrors.Store(err, "failed to inspect target remarks")
	}
	return marks, remarks, occupancy, nil
}

// requiresConfirmation reports whether a destructive mode would touch existing target rows:
// replace deletes whatever the target holds, merge overwrites only colliding rows.
func requiresConfirmation(mode models.OverwriteMode, occupancy models.TargetOccupancy) bool {
	if !mode.Destructive() {
		return false
	}
	if mode == models.OverwriteReplace {
		return occupancy.Populated()
	}
	return occupancy.Conflicts()
}

// restoreWarnings lists caller-facing warnings; the destructive one, when present, comes first.
func restoreWarnings(plan *restorePlan, sourceMarks, sourceRemarks int, occupancy models.TargetOccupancy) []string {
	var warnings []string
	switch {
	case plan.mode == models.OverwriteReplace && occupancy.Populated():
		warnings = append(warnings, fmt.Sprintf("Replace permanently deletes %d marks and %d remarks in %s before restoring.",
			occupancy.ExistingMarks, occupancy.ExistingRemarks, plan.target))
	case plan.mode == models.OverwriteMerge && occupancy.Conflicts():
		warnings = append(warnings, fmt.Sprintf("Merge overwrites %d marks and %d remarks already present in %s.",
			occupancy.ConflictingMarks, occupancy.ConflictingRemarks, plan.target))
	case plan.mode == models.OverwriteSkip && occupancy.Conflicts():
		warnings = append(warnings, fmt.Sprintf("Skip leaves %d marks and %d remarks in %s unchanged; those archived rows are not restored.",
			occupancy.ConflictingMarks, occupancy.ConflictingRemarks, plan.target))
	}
	if sourceMarks == 0 && sourceRemarks == 0 {
		warnings = append(warnings, fmt.Sprintf("%s has no marks or remarks left to restore.", plan.source))
	}
	return warnings
}

type restoreBatch struct {
	target  models.Period
	marks   []models.Mark
	remarks []models.Remark
}

// rekeyBatch moves source rows into the target period under fresh ids.
func rekeyBatch(target models.Period, marks []models.Mark, remarks []models.Remark) restoreBatch {
	batch := restoreBatch{
		target:  target,
		marks:   make([]models.Mark, len(marks)),
		remarks: make([]models.Remark, len(remarks)),
	}
	for i, mark := range marks {
		mark.ID = uuid.NewString()
		mark.Term = target.Term
		mark.AcademicYear = target.AcademicYear
		batch.marks[i] = mark
	}
	for i, remark := range remarks {
		remark.ID = uuid.NewString()
		remark.Term = target.Term
		remark.AcademicYear = target.AcademicYear
		batch.remarks[i] = remark
	}
	return batch
}
