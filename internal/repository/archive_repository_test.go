package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-archive-api/internal/models"
)

func newArchiveRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var archiveRowColumns = []string{"id", "term", "academic_year", "archived_date", "archived_by", "metadata"}

func TestArchiveRepositoryCreateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newArchiveRepoMock(t)
	defer cleanup()

	repo := NewArchiveRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO archives")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation, Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), &models.Archive{Term: "First Term", AcademicYear: "2024/2025"})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveRepositoryCreateAssignsIdentity(t *testing.T) {
	db, mock, cleanup := newArchiveRepoMock(t)
	defer cleanup()

	repo := NewArchiveRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO archives")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	archive := &models.Archive{Term: "First Term", AcademicYear: "2024/2025", Metadata: models.ArchiveMetadata{"note": "end of term"}}
	require.NoError(t, repo.Create(context.Background(), archive))
	require.NotEmpty(t, archive.ID)
	require.False(t, archive.ArchivedDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newArchiveRepoMock(t)
	defer cleanup()

	repo := NewArchiveRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, term, academic_year")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(archiveRowColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestArchiveRepositoryListWithCountsFilters(t *testing.T) {
	db, mock, cleanup := newArchiveRepoMock(t)
	defer cleanup()

	repo := NewArchiveRepository(db)
	columns := append(append([]string{}, archiveRowColumns...), "mark_count", "remark_count", "student_count")
	rows := sqlmock.NewRows(columns).
		AddRow("arch-1", "First Term", "2024/2025", time.Now(), nil, []byte(`{"source":"report"}`), 10, 3, 3)
	mock.ExpectQuery(`(?s)COALESCE\(m\.mark_count, 0\).*WHERE a\.term = \? AND a\.academic_year = \?.*LIMIT 20 OFFSET 40`).
		WithArgs("First Term", "2024/2025").
		WillReturnRows(rows)

	result, err := repo.ListWithCounts(context.Background(), models.ArchiveFilter{
		Term: "First Term", AcademicYear: "2024/2025", Limit: 20, Offset: 40,
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	summary := result[0].Summary()
	require.Equal(t, models.ArchiveCounts{Marks: 10, Remarks: 3, Students: 3}, summary.Counts)
	require.Equal(t, "report", summary.Metadata["source"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveRepositoryCountsForPeriod(t *testing.T) {
	db, mock, cleanup := newArchiveRepoMock(t)
	defer cleanup()

	repo := NewArchiveRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS mark_count, COUNT(DISTINCT student_id)")).
		WithArgs("Second Term", "2023/2024").
		WillReturnRows(sqlmock.NewRows([]string{"mark_count", "student_count"}).AddRow(7, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM remarks")).
		WithArgs("Second Term", "2023/2024").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	counts, err := repo.CountsForPeriod(context.Background(), models.Period{Term: "Second Term", AcademicYear: "2023/2024"})
	require.NoError(t, err)
	require.Equal(t, models.ArchiveCounts{Marks: 7, Remarks: 2, Students: 2}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newArchiveRepoMock(t)
	defer cleanup()

	repo := NewArchiveRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM archives WHERE id = ?")).
		WithArgs("arch-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.Delete(context.Background(), "arch-9"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPageClauseBounds(t *testing.T) {
	require.Equal(t, " LIMIT 50 OFFSET 0", pageClause(models.ArchiveFilter{}))
	require.Equal(t, " LIMIT 50 OFFSET 0", pageClause(models.ArchiveFilter{Limit: 500, Offset: -3}))
	require.Equal(t, " LIMIT 5 OFFSET 10", pageClause(models.ArchiveFilter{Limit: 5, Offset: 10}))
}
