package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-archive-api/internal/models"
)

// restoreStrategy has one method per overwrite mode. All methods write through tx.
type restoreStrategy interface {
	Merge(ctx context.Context, tx *sqlx.Tx, batch restoreBatch) (models.RestoreCounts, error)
	Replace(ctx context.Context, tx *sqlx.Tx, batch restoreBatch) (models.RestoreCounts, error)
	Skip(ctx context.Context, tx *sqlx.Tx, batch restoreBatch) (models.RestoreCounts, error)
}

func applyRestore(ctx context.Context, strategy restoreStrategy, mode models.OverwriteMode, tx *sqlx.Tx, batch restoreBatch) (models.RestoreCounts, error) {
	switch mode {
	case models.OverwriteMerge:
		return strategy.Merge(ctx, tx, batch)
	case models.OverwriteReplace:
		return strategy.Replace(ctx, tx, batch)
	case models.OverwriteSkip:
		return strategy.Skip(ctx, tx, batch)
	default:
		return models.RestoreCounts{}, fmt.Errorf("unsupported overwrite mode %q", mode)
	}
}

// periodWriter applies restore batches with the mark and remark stores.
type periodWriter struct {
	marks   restoreMarkStore
	remarks restoreRemarkStore
	logger  *zap.Logger
}

// Merge upserts every row; target rows outside the batch keys are untouched.
func (w *periodWriter) Merge(ctx context.Context, tx *sqlx.Tx, batch restoreBatch) (models.RestoreCounts, error) {
	var counts models.RestoreCounts
	for i := range batch.marks {
		if err := w.marks.Upsert(ctx, tx, &batch.marks[i]); err != nil {
			return models.RestoreCounts{}, err
		}
		counts.RestoredMarks++
	}
	for i := range batch.remarks {
		if err := w.remarks.Upsert(ctx, tx, &batch.remarks[i]); err != nil {
			return models.RestoreCounts{}, err
		}
		counts.RestoredRemarks++
	}
	return counts, nil
}

// Replace clears the target period and inserts the batch.
func (w *periodWriter) Replace(ctx context.Context, tx *sqlx.Tx, batch restoreBatch) (models.RestoreCounts, error) {
	deletedMarks, err := w.marks.DeleteByPeriod(ctx, tx, batch.target)
	if err != nil {
		return models.RestoreCounts{}, err
	}
	deletedRemarks, err := w.remarks.DeleteByPeriod(ctx, tx, batch.target)
	if err != nil {
		return models.RestoreCounts{}, err
	}
	w.logger.Warn("replacing target period",
		zap.String("target", batch.target.String()),
		zap.Int64("deleted_marks", deletedMarks),
		zap.Int64("deleted_remarks", deletedRemarks))

	var counts models.RestoreCounts
	for i := range batch.marks {
		if err := w.marks.Insert(ctx, tx, &batch.marks[i]); err != nil {
			return models.RestoreCounts{}, err
		}
		counts.RestoredMarks++
	}
	for i := range batch.remarks {
		if err := w.remarks.Insert(ctx, tx, &batch.remarks[i]); err != nil {
			return models.RestoreCounts{}, err
		}
		counts.RestoredRemarks++
	}
	return counts, nil
}

// Skip inserts rows whose key is free and counts the rest as skipped.
func (w *periodWriter) Skip(ctx context.Context, tx *sqlx.Tx, batch restoreBatch) (models.RestoreCounts, error) {
	var counts models.RestoreCounts
	for i := range batch.marks {
		inserted, err := w.marks.InsertIfAbsent(ctx, tx, &batch.marks[i])
		if err != nil {
			return models.RestoreCounts{}, err
		}
		if inserted {
			counts.RestoredMarks++
		} else {
			counts.SkippedMarks++
		}
	}
	for i := range batch.remarks {
		inserted, err := w.remarks.InsertIfAbsent(ctx, tx, &batch.remarks[i])
		if err != nil {
			return models.RestoreCounts{}, err
		}
		if inserted {
			counts.RestoredRemarks++
		} else {
			counts.SkippedRemarks++
		}
	}
	return counts, nil
}
