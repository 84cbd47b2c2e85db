package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-archive-api/internal/dto"
	"github.com/noah-isme/sma-archive-api/internal/models"
	"github.com/noah-isme/sma-archive-api/internal/repository"
	"github.com/noah-isme/sma-archive-api/pkg/database"
	appErrors "github.com/noah-isme/sma-archive-api/pkg/errors"
)

var (
	sourcePeriod = models.Period{Term: "First Term", AcademicYear: "2023/2024"}
	targetPeriod = models.Period{Term: "First Term", AcademicYear: "2024/2025"}
)

type restoreFixture struct {
	db        *sqlx.DB
	archiveID string
	audit     *repository.AuditRepository
	metrics   *MetricsService
	svc       *RestoreService
}

// newRestoreFixture archives sourcePeriod with three marks and one remark, and seeds
// targetPeriod with one mark and one remark that collide with the source plus one mark that does not.
func newRestoreFixture(t *testing.T) *restoreFixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLite(ctx, database.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(ctx, db))

	insertMark(t, db, "src-1", "s-1", "Maths", sourcePeriod, 70)
	insertMark(t, db, "src-2", "s-1", "English", sourcePeriod, 60)
	insertMark(t, db, "src-3", "s-2", "Maths", sourcePeriod, 50)
	insertRemark(t, db, "src-r1", "s-1", sourcePeriod, "Excellent")

	insertMark(t, db, "tgt-1", "s-1", "Maths", targetPeriod, 40)
	insertMark(t, db, "tgt-2", "s-3", "Science", targetPeriod, 80)
	insertRemark(t, db, "tgt-r1", "s-1", targetPeriod, "Fair")

	archives := repository.NewArchiveRepository(db)
	archive := &models.Archive{Term: sourcePeriod.Term, AcademicYear: sourcePeriod.AcademicYear}
	require.NoError(t, archives.Create(ctx, archive))

	fixture := &restoreFixture{
		db:        db,
		archiveID: archive.ID,
		audit:     repository.NewAuditRepository(db),
		metrics:   NewMetricsService(),
	}
	fixture.svc = NewRestoreService(db, archives, repository.NewMarkRepository(db), repository.NewRemarkRepository(db),
		nil, fixture.metrics, fixture.audit, zap.NewNop(), nil)
	return fixture
}

func insertMark(t *testing.T, db *sqlx.DB, id, studentID, subject string, period models.Period, total float64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO marks (id, student_id, class_name, subject, term, academic_year, class_score, exams_score)
		VALUES (?, ?, 'JHS1', ?, ?, ?, ?, ?)`, id, studentID, subject, period.Term, period.AcademicYear, total/2, total/2)
	require.NoError(t, err)
}

func insertRemark(t *testing.T, db *sqlx.DB, id, studentID string, period models.Period, conduct string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO remarks (id, student_id, term, academic_year, conduct) VALUES (?, ?, ?, ?, ?)`,
		id, studentID, period.Term, period.AcademicYear, conduct)
	require.NoError(t, err)
}

func scrape(t *testing.T, metrics *MetricsService) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func (f *restoreFixture) request(mode string, confirm bool) dto.RestoreArchiveRequest {
	return dto.RestoreArchiveRequest{
		ArchiveID:     f.archiveID,
		TargetTerm:    targetPeriod.Term,
		TargetYear:    targetPeriod.AcademicYear,
		OverwriteMode: mode,
		Confirm:       confirm,
	}
}

// totals maps "student/subject" to the mark total stored in period.
func (f *restoreFixture) totals(t *testing.T, period models.Period) map[string]float64 {
	t.Helper()
	rows := []struct {
		StudentID string  `db:"student_id"`
		Subject   string  `db:"subject"`
		Total     float64 `db:"total"`
	}{}
	require.NoError(t, f.db.Select(&rows, `SELECT student_id, subject, class_score + exams_score AS total
		FROM marks WHERE term = ? AND academic_year = ?`, period.Term, period.AcademicYear))
	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.StudentID+"/"+row.Subject] = row.Total
	}
	return out
}

func (f *restoreFixture) conduct(t *testing.T, period models.Period, studentID string) string {
	t.Helper()
	var conduct string
	require.NoError(t, f.db.Get(&conduct, `SELECT conduct FROM remarks WHERE student_id = ? AND term = ? AND academic_year = ?`,
		studentID, period.Term, period.AcademicYear))
	return conduct
}

func TestRestoreSkipLeavesConflictingRowsUntouched(t *testing.T) {
	f := newRestoreFixture(t)

	result, err := f.svc.Restore(context.Background(), f.request("skip", false), models.Actor{UserID: "head-1"})
	require.NoError(t, err)
	require.Equal(t, models.RestoreCounts{RestoredMarks: 2, SkippedMarks: 1, SkippedRemarks: 1}, result.RestoreCounts)
	require.Equal(t, models.OverwriteSkip, result.Mode)
	require.NotEmpty(t, result.Warnings)

	require.Equal(t, map[string]float64{
		"s-1/Maths":   40,
		"s-1/English": 60,
		"s-2/Maths":   50,
		"s-3/Science": 80,
	}, f.totals(t, targetPeriod))
	require.Equal(t, "Fair", f.conduct(t, targetPeriod, "s-1"))
}

func TestRestoreReplaceRequiresConfirmation(t *testing.T) {
	f := newRestoreFixture(t)
	before := f.totals(t, targetPeriod)

	_, err := f.svc.Restore(context.Background(), f.request("replace", false), models.Actor{})
	require.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
	require.Contains(t, appErrors.FromError(err).Message, "confirm")
	require.Equal(t, before, f.totals(t, targetPeriod))
	require.Contains(t, scrape(t, f.metrics), `archive_restores_total{mode="replace",outcome="unconfirmed"} 1`)
}

func TestRestoreReplaceSwapsTargetContents(t *testing.T) {
	f := newRestoreFixture(t)

	result, err := f.svc.Restore(context.Background(), f.request("REPLACE", true), models.Actor{UserID: "admin"})
	require.NoError(t, err)
	require.Equal(t, models.RestoreCounts{RestoredMarks: 3, RestoredRemarks: 1}, result.RestoreCounts)

	require.Equal(t, map[string]float64{
		"s-1/Maths":   70,
		"s-1/English": 60,
		"s-2/Maths":   50,
	}, f.totals(t, targetPeriod))
	require.Equal(t, "Excellent", f.conduct(t, targetPeriod, "s-1"))
	require.Len(t, f.totals(t, sourcePeriod), 3, "source period is never modified")

	var ids []string
	require.NoError(t, f.db.Select(&ids, `SELECT id FROM marks WHERE academic_year = ?`, targetPeriod.AcademicYear))
	for _, id := range ids {
		require.NotContains(t, []string{"src-1", "src-2", "src-3"}, id)
	}
	require.Contains(t, scrape(t, f.metrics), `archive_restores_total{mode="replace",outcome="success"} 1`)
}

func TestRestoreMergeOverwritesConflictsAndKeepsTheRest(t *testing.T) {
	f := newRestoreFixture(t)

	_, err := f.svc.Restore(context.Background(), f.request("", false), models.Actor{})
	require.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	result, err := f.svc.Restore(context.Background(), f.request("", true), models.Actor{})
	require.NoError(t, err)
	require.Equal(t, models.OverwriteMerge, result.Mode)
	require.Equal(t, models.RestoreCounts{RestoredMarks: 3, RestoredRemarks: 1}, result.RestoreCounts)

	require.Equal(t, map[string]float64{
		"s-1/Maths":   70,
		"s-1/English": 60,
		"s-2/Maths":   50,
		"s-3/Science": 80,
	}, f.totals(t, targetPeriod))
	require.Equal(t, "Excellent", f.conduct(t, targetPeriod, "s-1"))
}

func TestRestoreIntoEmptyPeriodNeedsNoConfirmation(t *testing.T) {
	f := newRestoreFixture(t)
	req := f.request("replace", false)
	req.TargetTerm = "third term"

	result, err := f.svc.Restore(context.Background(), req, models.Actor{})
	require.NoError(t, err)
	require.Equal(t, "Third Term", result.Target.Term)
	require.Equal(t, 3, result.RestoredMarks)
	require.Empty(t, result.Warnings)
}

func TestRestorePreviewDoesNotWrite(t *testing.T) {
	f := newRestoreFixture(t)
	before := f.totals(t, targetPeriod)

	preview, err := f.svc.Preview(context.Background(), f.request("replace", false))
	require.NoError(t, err)
	require.Equal(t, 3, preview.SourceMarks)
	require.Equal(t, 1, preview.SourceRemarks)
	require.Equal(t, models.TargetOccupancy{ExistingMarks: 2, ExistingRemarks: 1, ConflictingMarks: 1, ConflictingRemarks: 1}, preview.Occupancy)
	require.True(t, preview.RequiresConfirmation)
	require.Contains(t, preview.Warnings[0], "Replace permanently deletes 2 marks and 1 remarks")

	skip, err := f.svc.Preview(context.Background(), f.request("skip", false))
	require.NoError(t, err)
	require.False(t, skip.RequiresConfirmation)
	require.Equal(t, before, f.totals(t, targetPeriod))
}

func TestRestoreValidation(t *testing.T) {
	f := newRestoreFixture(t)
	ctx := context.Background()

	req := f.request("overwrite", true)
	_, err := f.svc.Restore(ctx, req, models.Actor{})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	require.Contains(t, appErrors.FromError(err).Message, "overwriteMode")

	req = f.request("merge", true)
	req.TargetTerm = "Summer"
	_, err = f.svc.Restore(ctx, req, models.Actor{})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	req = f.request("merge", true)
	req.TargetYear = "2024"
	_, err = f.svc.Restore(ctx, req, models.Actor{})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	req = f.request("merge", true)
	req.ArchiveID = "missing"
	_, err = f.svc.Restore(ctx, req, models.Actor{})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRestoreWritesAuditEntry(t *testing.T) {
	f := newRestoreFixture(t)
	actor := models.Actor{UserID: "head-1", IPAddress: "10.1.1.1", UserAgent: "test"}

	_, err := f.svc.Restore(context.Background(), f.request("skip", false), actor)
	require.NoError(t, err)

	logs, err := f.audit.ListByResource(context.Background(), archiveResource, f.archiveID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, models.AuditActionArchiveRestore, logs[0].Action)
	require.Equal(t, "head-1", *logs[0].UserID)
	require.Contains(t, string(logs[0].NewValues), `"skippedMarks":1`)
}

type failingMarkStore struct {
	*repository.MarkRepository
	failAfter int
	calls     int
}

func (s *failingMarkStore) Insert(ctx context.Context, q sqlx.ExtContext, mark *models.Mark) error {
	s.calls++
	if s.calls > s.failAfter {
		return errors.New("disk full")
	}
	return s.MarkRepository.Insert(ctx, q, mark)
}

func TestRestoreRollsBackOnFailure(t *testing.T) {
	f := newRestoreFixture(t)
	before := f.totals(t, targetPeriod)
	marks := &failingMarkStore{MarkRepository: repository.NewMarkRepository(f.db), failAfter: 1}
	svc := NewRestoreService(f.db, repository.NewArchiveRepository(f.db), marks, repository.NewRemarkRepository(f.db),
		nil, nil, f.audit, zap.NewNop(), nil)

	_, err := svc.Restore(context.Background(), f.request("replace", true), models.Actor{})
	require.ErrorIs(t, err, appErrors.ErrStore)
	require.Equal(t, before, f.totals(t, targetPeriod))
	require.Equal(t, "Fair", f.conduct(t, targetPeriod, "s-1"))

	logs, err := f.audit.ListByResource(context.Background(), archiveResource, f.archiveID)
	require.NoError(t, err)
	require.Empty(t, logs)
}

func TestRequiresConfirmationOnlyForDestructiveModes(t *testing.T) {
	populated := models.TargetOccupancy{ExistingMarks: 2}
	colliding := models.TargetOccupancy{ExistingMarks: 2, ConflictingMarks: 1}

	cases := []struct {
		name      string
		mode      models.OverwriteMode
		occupancy models.TargetOccupancy
		want      bool
	}{
		{"skip never asks", models.OverwriteSkip, colliding, false},
		{"replace into empty target", models.OverwriteReplace, models.TargetOccupancy{}, false},
		{"replace into populated target", models.OverwriteReplace, populated, true},
		{"merge without collisions", models.OverwriteMerge, populated, false},
		{"merge with collisions", models.OverwriteMerge, colliding, true},
		{"merge with remark collision", models.OverwriteMerge, models.TargetOccupancy{ExistingRemarks: 1, ConflictingRemarks: 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, requiresConfirmation(tc.mode, tc.occupancy))
		})
	}
}
