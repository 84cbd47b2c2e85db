package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-archive-api/internal/models"
)

func TestMarkRepositoryInsertIfAbsentReportsSkip(t *testing.T) {
	db, mock, cleanup := newArchiveRepoMock(t)
	defer cleanup()

	repo := NewMarkRepository(db)
	mock.ExpectExec(`(?s)INSERT INTO marks .* ON CONFLICT \(student_id, subject, term, academic_year\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)INSERT INTO marks .* DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mark := &models.Mark{ID: "m-1", StudentID: "s-1", Subject: "Maths", Term: "First Term", AcademicYear: "2024/2025"}
	inserted, err := repo.InsertIfAbsent(context.Background(), db, mark)
	require.NoError(t, err)
	require.False(t, inserted)

	inserted, err = repo.InsertIfAbsent(context.Background(), db, mark)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryOccupancyShortCircuitsEmptyTarget(t *testing.T) {
	db, mock, cleanup := newArchiveRepoMock(t)
	defer cleanup()

	repo := NewMarkRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM marks WHERE term = ? AND academic_year = ?")).
		WithArgs("Third Term", "2025/2026").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	existing, conflicting, err := repo.Occupancy(context.Background(), db,
		models.Period{Term: "First Term", AcademicYear: "2024/2025"},
		models.Period{Term: "Third Term", AcademicYear: "2025/2026"})
	require.NoError(t, err)
	require.Zero(t, existing)
	require.Zero(t, conflicting)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRepositoryUpsertTargetsNaturalKey(t *testing.T) {
	db, mock, cleanup := newArchiveRepoMock(t)
	defer cleanup()

	repo := NewMarkRepository(db)
	mock.ExpectExec(`(?s)ON CONFLICT \(student_id, subject, term, academic_year\) DO UPDATE SET.*class_score = excluded\.class_score`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), db, &models.Mark{ID: "m-1", StudentID: "s-1", Subject: "Maths"}))
	require.NoError(t, mock.ExpectationsWereMet())
}
