package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codereview/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSnapshot(taken time.Time) *models.Snapshot {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Snapshot{
		Ref:     "meta/review",
		TakenAt: taken,
		Reviews: []*models.Review{
			{
				Path:         "a1.yaml",
				Title:        "Add retry",
				SourceBranch: "feature/retry",
				TargetBranch: "master",
				Author:       "alice@example.com",
				Body:         "Retries flaky calls.",
				CreatedAt:    created,
				Reviewers: []models.ReviewerScore{
					{Identity: "carol@example.com", Score: 2},
					{Identity: "bob@example.com", Score: -1},
				},
			},
			{
				Path:         "b2.yaml",
				Title:        "Drop legacy API",
				SourceBranch: "feature/drop",
				TargetBranch: "master",
				Author:       "bob@example.com",
				CreatedAt:    created.Add(time.Hour),
				Merged:       true,
			},
		},
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestSaveSnapshot_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	taken := time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC)

	snap := sampleSnapshot(taken)
	require.NoError(t, s.SaveSnapshot(ctx, snap))
	assert.Len(t, snap.ID, 26, "ULID assigned")

	got, err := s.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, "meta/review", got.Ref)
	assert.True(t, taken.Equal(got.TakenAt))

	require.Len(t, got.Reviews, 2)
	first := got.Reviews[0]
	assert.Equal(t, "Add retry", first.Title)
	assert.Equal(t, "feature/retry", first.SourceBranch)
	assert.Equal(t, "Retries flaky calls.", first.Body)
	assert.True(t, snap.Reviews[0].CreatedAt.Equal(first.CreatedAt))
	assert.False(t, first.Merged)
	assert.Equal(t, []models.ReviewerScore{
		{Identity: "carol@example.com", Score: 2},
		{Identity: "bob@example.com", Score: -1},
	}, first.Reviewers, "reviewer order preserved")

	second := got.Reviews[1]
	assert.Equal(t, "Drop legacy API", second.Title)
	assert.True(t, second.Merged)
	assert.Empty(t, second.Reviewers)
}

func TestSaveSnapshot_DefaultsTakenAt(t *testing.T) {
	s := newTestStore(t)
	snap := &models.Snapshot{Ref: "meta/review"}

	require.NoError(t, s.SaveSnapshot(context.Background(), snap))
	assert.False(t, snap.TakenAt.IsZero())
	assert.NotEmpty(t, snap.ID)
}

func TestGetSnapshot_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSnapshot(context.Background(), "01NOPE")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestListSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	older := sampleSnapshot(base)
	newer := sampleSnapshot(base.Add(500 * time.Millisecond))
	other := sampleSnapshot(base.Add(time.Hour))
	other.Ref = "reviews"
	for _, snap := range []*models.Snapshot{older, newer, other} {
		require.NoError(t, s.SaveSnapshot(ctx, snap))
	}

	all, err := s.ListSnapshots(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, other.ID, all[0].ID, "newest first")
	assert.Nil(t, all[0].Reviews, "headers only")

	meta, err := s.ListSnapshots(ctx, "meta/review")
	require.NoError(t, err)
	require.Len(t, meta, 2)
	assert.Equal(t, newer.ID, meta[0].ID)
	assert.Equal(t, older.ID, meta[1].ID)
}

func TestDeleteSnapshot_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := sampleSnapshot(time.Now().UTC())
	require.NoError(t, s.SaveSnapshot(ctx, snap))
	require.NoError(t, s.DeleteSnapshot(ctx, snap.ID))

	_, err := s.GetSnapshot(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviewer_scores").Scan(&n))
	assert.Zero(t, n)

	assert.ErrorIs(t, s.DeleteSnapshot(ctx, snap.ID), ErrSnapshotNotFound)
}
