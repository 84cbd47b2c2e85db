package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-archive-api/internal/dto"
	"github.com/noah-isme/sma-archive-api/internal/models"
	"github.com/noah-isme/sma-archive-api/internal/repository"
	"github.com/noah-isme/sma-archive-api/pkg/database"
)

func TestArchiveCacheSeesRecordWritesMadeElsewhere(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewSQLite(ctx, database.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(ctx, db))

	insertMark(t, db, "m-1", "s-1", "Maths", sourcePeriod, 70)
	archives := repository.NewArchiveRepository(db)
	archive := &models.Archive{Term: sourcePeriod.Term, AcademicYear: sourcePeriod.AcademicYear}
	require.NoError(t, archives.Create(ctx, archive))

	repo := &stubCacheRepo{}
	svc := NewArchiveService(archives, repository.NewMarkRepository(db), repository.NewRemarkRepository(db),
		repository.NewStudentRepository(db), NewCacheService(repo, nil, time.Hour, zap.NewNop(), true),
		nil, nil, zap.NewNop(), ArchiveServiceConfig{})

	page, hit, err := svc.List(ctx, dto.ArchiveListQuery{})
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 1, page.Items[0].Counts.Marks)
	_, hit, err = svc.List(ctx, dto.ArchiveListQuery{})
	require.NoError(t, err)
	require.True(t, hit)

	detail, hit, err := svc.GetDetail(ctx, archive.ID)
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, detail.Marks, 1)
	_, hit, err = svc.GetDetail(ctx, archive.ID)
	require.NoError(t, err)
	require.True(t, hit)

	// Written straight to the store, so no invalidation runs.
	insertMark(t, db, "m-2", "s-2", "Maths", sourcePeriod, 50)

	page, hit, err = svc.List(ctx, dto.ArchiveListQuery{})
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 2, page.Items[0].Counts.Marks)
	require.Equal(t, 2, page.Items[0].Counts.Students)

	detail, hit, err = svc.GetDetail(ctx, archive.ID)
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, detail.Marks, 2)

	_, err = db.Exec(`UPDATE marks SET exams_score = 5, updated_at = '2099-01-01 00:00:00' WHERE id = 'm-1'`)
	require.NoError(t, err)

	detail, hit, err = svc.GetDetail(ctx, archive.ID)
	require.NoError(t, err)
	require.False(t, hit)
	for _, mark := range detail.Marks {
		if mark.ID == "m-1" {
			require.Equal(t, 5.0, *mark.ExamsScore)
		}
	}

	_, hit, err = svc.GetDetail(ctx, archive.ID)
	require.NoError(t, err)
	require.True(t, hit)
}
