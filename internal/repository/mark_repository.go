package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-archive-api/internal/models"
)

const markColumns = `id, student_id, class_name, subject, term, academic_year, class_score, exams_score, grade, remarks, teacher_id`

// MarkRepository reads and writes term marks. Methods taking a sqlx.ExtContext run on
// whatever handle the caller passes, which lets restores share one transaction.
type MarkRepository struct {
	db *sqlx.DB
}

// NewMarkRepository constructs the repository.
func NewMarkRepository(db *sqlx.DB) *MarkRepository {
	return &MarkRepository{db: db}
}

// CountByPeriod returns the number of marks stored under a period.
func (r *MarkRepository) CountByPeriod(ctx context.Context, period models.Period) (int, error) {
	var total int
	query := r.db.Rebind(`SELECT COUNT(*) FROM marks WHERE term = ? AND academic_year = ?`)
	if err := r.db.GetContext(ctx, &total, query, period.Term, period.AcademicYear); err != nil {
		return 0, fmt.Errorf("count marks: %w", err)
	}
	return total, nil
}

// ListRecordsByPeriod returns marks joined with student identity. Marks whose student
// row is gone are still returned with empty identity fields.
func (r *MarkRepository) ListRecordsByPeriod(ctx context.Context, period models.Period) ([]models.MarkRecord, error) {
	query := r.db.Rebind(`SELECT m.id, m.student_id, m.class_name, m.subject, m.term, m.academic_year,
       m.class_score, m.exams_score, m.grade, m.remarks, m.teacher_id,
       s.full_name AS student_name, s.student_number AS student_number
	FROM marks m
	LEFT JOIN students s ON s.id = m.student_id
	WHERE m.term = ? AND m.academic_year = ?
	ORDER BY COALESCE(s.full_name, ''), m.subject, m.id`)
	var records []models.MarkRecord
	if err := r.db.SelectContext(ctx, &records, query, period.Term, period.AcademicYear); err != nil {
		return nil, fmt.Errorf("list mark records: %w", err)
	}
	return records, nil
}

// ListByPeriod returns the raw marks of a period.
func (r *MarkRepository) ListByPeriod(ctx context.Context, q sqlx.ExtContext, period models.Period) ([]models.Mark, error) {
	query := q.Rebind(`SELECT ` + markColumns + ` FROM marks WHERE term = ? AND academic_year = ? ORDER BY student_id, subject`)
	var marks []models.Mark
	if err := sqlx.SelectContext(ctx, q, &marks, query, period.Term, period.AcademicYear); err != nil {
		return nil, fmt.Errorf("list marks: %w", err)
	}
	return marks, nil
}

// Occupancy counts marks already in target and how many of them share a
// (student, subject) key with a mark in source.
func (r *MarkRepository) Occupancy(ctx context.Context, q sqlx.ExtContext, source, target models.Period) (existing, conflicting int, err error) {
	countQuery := q.Rebind(`SELECT COUNT(*) FROM marks WHERE term = ? AND academic_year = ?`)
	if err = sqlx.GetContext(ctx, q, &existing, countQuery, target.Term, target.AcademicYear); err != nil {
		return 0, 0, fmt.Errorf("count target marks: %w", err)
	}
	if existing == 0 {
		return 0, 0, nil
	}
	conflictQuery := q.Rebind(`SELECT COUNT(*) FROM marks t
	INNER JOIN marks s ON s.student_id = t.student_id AND s.subject = t.subject
	WHERE t.term = ? AND t.academic_year = ? AND s.term = ? AND s.academic_year = ?`)
	if err = sqlx.GetContext(ctx, q, &conflicting, conflictQuery, target.Term, target.AcademicYear, source.Term, source.AcademicYear); err != nil {
		return 0, 0, fmt.Errorf("count conflicting marks: %w", err)
	}
	return existing, conflicting, nil
}

// DeleteByPeriod removes every mark of a period and reports how many went.
func (r *MarkRepository) DeleteByPeriod(ctx context.Context, q sqlx.ExtContext, period models.Period) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM marks WHERE term = ? AND academic_year = ?`), period.Term, period.AcademicYear)
	if err != nil {
		return 0, fmt.Errorf("delete marks: %w", err)
	}
	return res.RowsAffected()
}

// Insert writes a mark and fails on a duplicate key.
func (r *MarkRepository) Insert(ctx context.Context, q sqlx.ExtContext, mark *models.Mark) error {
	if _, err := sqlx.NamedExecContext(ctx, q, insertMarkSQL, mark); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert mark: %w", ErrDuplicate)
		}
		return fmt.Errorf("insert mark: %w", err)
	}
	return nil
}

// Upsert writes a mark, overwriting the scores of an existing row with the same key.
// The existing row keeps its id.
func (r *MarkRepository) Upsert(ctx context.Context, q sqlx.ExtContext, mark *models.Mark) error {
	const query = insertMarkSQL + ` ON CONFLICT (student_id, subject, term, academic_year) DO UPDATE SET
		class_name = excluded.class_name,
		class_score = excluded.class_score,
		exams_score = excluded.exams_score,
		grade = excluded.grade,
		remarks = excluded.remarks,
		teacher_id = excluded.teacher_id,
		updated_at = CURRENT_TIMESTAMP`
	if _, err := sqlx.NamedExecContext(ctx, q, query, mark); err != nil {
		return fmt.Errorf("upsert mark: %w", err)
	}
	return nil
}

// InsertIfAbsent writes a mark unless its key is taken. It reports whether a row was written.
func (r *MarkRepository) InsertIfAbsent(ctx context.Context, q sqlx.ExtContext, mark *models.Mark) (bool, error) {
	const query = insertMarkSQL + ` ON CONFLICT (student_id, subject, term, academic_year) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, q, query, mark)
	if err != nil {
		return false, fmt.Errorf("insert mark if absent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check mark insert rows: %w", err)
	}
	return affected > 0, nil
}

const insertMarkSQL = `INSERT INTO marks (` + markColumns + `)
	VALUES (:id, :student_id, :class_name, :subject, :term, :academic_year, :class_score, :exams_score, :grade, :remarks, :teacher_id)`
