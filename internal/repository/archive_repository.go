package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-archive-api/internal/models"
)

const archiveColumns = `id, term, academic_year, archived_date, archived_by, metadata`

// ArchiveRepository handles persistence of archive markers and their aggregate counts.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository constructs the repository.
func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// Create stores a new archive row. A second row for the same period yields ErrDuplicate.
func (r *ArchiveRepository) Create(ctx context.Context, archive *models.Archive) error {
	if archive.ID == "" {
		archive.ID = uuid.NewString()
	}
	if archive.ArchivedDate.IsZero() {
		archive.ArchivedDate = time.Now().UTC()
	}
	const query = `INSERT INTO archives (id, term, academic_year, archived_date, archived_by, metadata)
	VALUES (:id, :term, :academic_year, :archived_date, :archived_by, :metadata)`
	if _, err := r.db.NamedExecContext(ctx, query, archive); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create archive %s: %w", archive.Period(), ErrDuplicate)
		}
		return fmt.Errorf("create archive: %w", err)
	}
	return nil
}

// GetByID retrieves one archive row.
func (r *ArchiveRepository) GetByID(ctx context.Context, id string) (*models.Archive, error) {
	query := r.db.Rebind(`SELECT ` + archiveColumns + ` FROM archives WHERE id = ?`)
	var archive models.Archive
	if err := r.db.GetContext(ctx, &archive, query, id); err != nil {
		return nil, err
	}
	return &archive, nil
}

// FindByPeriod returns the archive of a period or sql.ErrNoRows.
func (r *ArchiveRepository) FindByPeriod(ctx context.Context, period models.Period) (*models.Archive, error) {
	query := r.db.Rebind(`SELECT ` + archiveColumns + ` FROM archives WHERE term = ? AND academic_year = ?`)
	var archive models.Archive
	if err := r.db.GetContext(ctx, &archive, query, period.Term, period.AcademicYear); err != nil {
		return nil, err
	}
	return &archive, nil
}

// List returns archives newest first without counts.
func (r *ArchiveRepository) List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, error) {
	where, args := archiveConditions("", filter)
	query := r.db.Rebind(`SELECT ` + archiveColumns + ` FROM archives` + where +
		` ORDER BY archived_date DESC, id` + pageClause(filter))
	var archives []models.Archive
	if err := r.db.SelectContext(ctx, &archives, query, args...); err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	return archives, nil
}

// ListWithCounts returns archives newest first with mark, remark and distinct student counts
// computed by one grouped query. Periods without rows coalesce to zero.
func (r *ArchiveRepository) ListWithCounts(ctx context.Context, filter models.ArchiveFilter) ([]models.ArchiveSummaryRow, error) {
	where, args := archiveConditions("a.", filter)
	query := r.db.Rebind(`SELECT a.id, a.term, a.academic_year, a.archived_date, a.archived_by, a.metadata,
       COALESCE(m.mark_count, 0) AS mark_count,
       COALESCE(rm.remark_count, 0) AS remark_count,
       COALESCE(m.student_count, 0) AS student_count
	FROM archives a
	LEFT JOIN (
		SELECT term, academic_year, COUNT(*) AS mark_count, COUNT(DISTINCT student_id) AS student_count
		FROM marks GROUP BY term, academic_year
	) m ON m.term = a.term AND m.academic_year = a.academic_year
	LEFT JOIN (
		SELECT term, academic_year, COUNT(*) AS remark_count
		FROM remarks GROUP BY term, academic_year
	) rm ON rm.term = a.term AND rm.academic_year = a.academic_year` + where +
		` ORDER BY a.archived_date DESC, a.id` + pageClause(filter))
	var rows []models.ArchiveSummaryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list archives with counts: %w", err)
	}
	return rows, nil
}

// Count returns how many archives match the filter, ignoring paging.
func (r *ArchiveRepository) Count(ctx context.Context, filter models.ArchiveFilter) (int, error) {
	where, args := archiveConditions("", filter)
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM archives`+where), args...); err != nil {
		return 0, fmt.Errorf("count archives: %w", err)
	}
	return total, nil
}

type recordStoreVersion struct {
	Marks           int    `db:"marks"`
	MarksUpdated    string `db:"marks_updated"`
	Remarks         int    `db:"remarks"`
	RemarksUpdated  string `db:"remarks_updated"`
	Students        int    `db:"students"`
	StudentsUpdated string `db:"students_updated"`
}

// Fingerprint summarises the marks, remarks and students tables by row count and latest
// update. Writes made outside this service change the value.
func (r *ArchiveRepository) Fingerprint(ctx context.Context) (string, error) {
	const query = `SELECT
       (SELECT COUNT(*) FROM marks) AS marks,
       (SELECT COALESCE(CAST(MAX(updated_at) AS TEXT), '') FROM marks) AS marks_updated,
       (SELECT COUNT(*) FROM remarks) AS remarks,
       (SELECT COALESCE(CAST(MAX(updated_at) AS TEXT), '') FROM remarks) AS remarks_updated,
       (SELECT COUNT(*) FROM students) AS students,
       (SELECT COALESCE(CAST(MAX(updated_at) AS TEXT), '') FROM students) AS students_updated`
	var v recordStoreVersion
	if err := r.db.GetContext(ctx, &v, query); err != nil {
		return "", fmt.Errorf("fingerprint record store: %w", err)
	}
	return fmt.Sprintf("m%d@%s|r%d@%s|s%d@%s", v.Marks, v.MarksUpdated, v.Remarks, v.RemarksUpdated, v.Students, v.StudentsUpdated), nil
}

// CountsForPeriod computes the aggregates of a single period with independent queries.
func (r *ArchiveRepository) CountsForPeriod(ctx context.Context, period models.Period) (models.ArchiveCounts, error) {
	var counts models.ArchiveCounts
	markQuery := r.db.Rebind(`SELECT COUNT(*) AS mark_count, COUNT(DISTINCT student_id) AS student_count
	FROM marks WHERE term = ? AND academic_year = ?`)
	if err := r.db.QueryRowxContext(ctx, markQuery, period.Term, period.AcademicYear).Scan(&counts.Marks, &counts.Students); err != nil {
		return models.ArchiveCounts{}, fmt.Errorf("count marks for %s: %w", period, err)
	}
	remarkQuery := r.db.Rebind(`SELECT COUNT(*) FROM remarks WHERE term = ? AND academic_year = ?`)
	if err := r.db.GetContext(ctx, &counts.Remarks, remarkQuery, period.Term, period.AcademicYear); err != nil {
		return models.ArchiveCounts{}, fmt.Errorf("count remarks for %s: %w", period, err)
	}
	return counts, nil
}

// Delete removes the archive row only. Marks, remarks and students are never touched.
func (r *ArchiveRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM archives WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete archive: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check archive delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func archiveConditions(alias string, filter models.ArchiveFilter) (string, []interface{}) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	if filter.Term != "" {
		conditions = append(conditions, alias+"term = ?")
		args = append(args, filter.Term)
	}
	if filter.AcademicYear != "" {
		conditions = append(conditions, alias+"academic_year = ?")
		args = append(args, filter.AcademicYear)
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func pageClause(filter models.ArchiveFilter) string {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}
