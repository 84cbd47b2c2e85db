package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-archive-api/internal/models"
)

const remarkColumns = `id, student_id, term, academic_year, conduct, attitude, interest, remarks, class_teacher_id`

// RemarkRepository reads and writes term remarks.
type RemarkRepository struct {
	db *sqlx.DB
}

// NewRemarkRepository constructs the repository.
func NewRemarkRepository(db *sqlx.DB) *RemarkRepository {
	return &RemarkRepository{db: db}
}

// ListRecordsByPeriod returns remarks joined with student identity.
func (r *RemarkRepository) ListRecordsByPeriod(ctx context.Context, period models.Period) ([]models.RemarkRecord, error) {
	query := r.db.Rebind(`SELECT rm.id, rm.student_id, rm.term, rm.academic_year, rm.conduct, rm.attitude,
       rm.interest, rm.remarks, rm.class_teacher_id,
       s.full_name AS student_name, s.student_number AS student_number
	FROM remarks rm
	LEFT JOIN students s ON s.id = rm.student_id
	WHERE rm.term = ? AND rm.academic_year = ?
	ORDER BY COALESCE(s.full_name, ''), rm.id`)
	var records []models.RemarkRecord
	if err := r.db.SelectContext(ctx, &records, query, period.Term, period.AcademicYear); err != nil {
		return nil, fmt.Errorf("list remark records: %w", err)
	}
	return records, nil
}

// ListByPeriod returns the raw remarks of a period.
func (r *RemarkRepository) ListByPeriod(ctx context.Context, q sqlx.ExtContext, period models.Period) ([]models.Remark, error) {
	query := q.Rebind(`SELECT ` + remarkColumns + ` FROM remarks WHERE term = ? AND academic_year = ? ORDER BY student_id`)
	var remarks []models.Remark
	if err := sqlx.SelectContext(ctx, q, &remarks, query, period.Term, period.AcademicYear); err != nil {
		return nil, fmt.Errorf("list remarks: %w", err)
	}
	return remarks, nil
}

// Occupancy counts remarks already in target and how many share a student with source.
func (r *RemarkRepository) Occupancy(ctx context.Context, q sqlx.ExtContext, source, target models.Period) (existing, conflicting int, err error) {
	countQuery := q.Rebind(`SELECT COUNT(*) FROM remarks WHERE term = ? AND academic_year = ?`)
	if err = sqlx.GetContext(ctx, q, &existing, countQuery, target.Term, target.AcademicYear); err != nil {
		return 0, 0, fmt.Errorf("count target remarks: %w", err)
	}
	if existing == 0 {
		return 0, 0, nil
	}
	conflictQuery := q.Rebind(`SELECT COUNT(*) FROM remarks t
	INNER JOIN remarks s ON s.student_id = t.student_id
	WHERE t.term = ? AND t.academic_year = ? AND s.term = ? AND s.academic_year = ?`)
	if err = sqlx.GetContext(ctx, q, &conflicting, conflictQuery, target.Term, target.AcademicYear, source.Term, source.AcademicYear); err != nil {
		return 0, 0, fmt.Errorf("count conflicting remarks: %w", err)
	}
	return existing, conflicting, nil
}

// DeleteByPeriod removes every remark of a period.
func (r *RemarkRepository) DeleteByPeriod(ctx context.Context, q sqlx.ExtContext, period models.Period) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM remarks WHERE term = ? AND academic_year = ?`), period.Term, period.AcademicYear)
	if err != nil {
		return 0, fmt.Errorf("delete remarks: %w", err)
	}
	return res.RowsAffected()
}

// Insert writes a remark and fails on a duplicate key.
func (r *RemarkRepository) Insert(ctx context.Context, q sqlx.ExtContext, remark *models.Remark) error {
	if _, err := sqlx.NamedExecContext(ctx, q, insertRemarkSQL, remark); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert remark: %w", ErrDuplicate)
		}
		return fmt.Errorf("insert remark: %w", err)
	}
	return nil
}

// Upsert writes a remark, overwriting an existing row for the same student and period.
func (r *RemarkRepository) Upsert(ctx context.Context, q sqlx.ExtContext, remark *models.Remark) error {
	const query = insertRemarkSQL + ` ON CONFLICT (student_id, term, academic_year) DO UPDATE SET
		conduct = excluded.conduct,
		attitude = excluded.attitude,
		interest = excluded.interest,
		remarks = excluded.remarks,
		class_teacher_id = excluded.class_teacher_id,
		updated_at = CURRENT_TIMESTAMP`
	if _, err := sqlx.NamedExecContext(ctx, q, query, remark); err != nil {
		return fmt.Errorf("upsert remark: %w", err)
	}
	return nil
}

// InsertIfAbsent writes a remark unless the student already has one in that period.
func (r *RemarkRepository) InsertIfAbsent(ctx context.Context, q sqlx.ExtContext, remark *models.Remark) (bool, error) {
	const query = insertRemarkSQL + ` ON CONFLICT (student_id, term, academic_year) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, q, query, remark)
	if err != nil {
		return false, fmt.Errorf("insert remark if absent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check remark insert rows: %w", err)
	}
	return affected > 0, nil
}

const insertRemarkSQL = `INSERT INTO remarks (` + remarkColumns + `)
	VALUES (:id, :student_id, :term, :academic_year, :conduct, :attitude, :interest, :remarks, :class_teacher_id)`
