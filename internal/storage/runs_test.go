package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/report"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func summary(runID string, at time.Time) report.Summary {
	results := []domain.PageResult{
		{
			PageIndex: 0,
			Alignment: domain.AlignmentResult{Strategy: domain.AlignIdentity},
			PixelDiff: domain.PixelDiffResult{ChangedPixels: 0, OverlayGenerated: true},
		},
		{
			PageIndex: 1,
			Alignment: domain.AlignmentResult{Strategy: domain.AlignRegistered},
			PixelDiff: domain.PixelDiffResult{ChangedPixels: 420, OverlayGenerated: true},
			Spans:     []domain.DiffSpan{{Op: domain.DiffInsert, Text: "new"}},
			Changes:   []domain.ChangeRecord{{PageIndex: 1, Kind: domain.ChangeInsert}},
		},
	}
	s := report.Build(runID, results, at)
	s.Reference, s.Comparison, s.OutputPath = "a.pdf", "b.pdf", "out/diff.pdf"
	return s
}

func TestRunRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	want := uuid.New()

	id, err := store.Runs().Save(ctx, summary(want.String(), at))
	require.NoError(t, err)
	assert.Equal(t, want, id)

	run, err := store.Runs().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", run.Reference)
	assert.Equal(t, "out/diff.pdf", run.OutputPath)
	assert.True(t, run.GeneratedAt.Equal(at))
	assert.Equal(t, 420, run.Totals.ChangedPixels)
	assert.Equal(t, 1, run.Totals.MappedBoxes)

	require.Len(t, run.Pages, 2)
	assert.Equal(t, domain.AlignRegistered, run.Pages[1].Alignment)
	assert.Equal(t, 1, run.Pages[1].Inserts)
	assert.True(t, run.Pages[0].OverlayGenerated)
}

func TestRunRepository_InvalidRunIDGetsFreshUUID(t *testing.T) {
	id, err := openStore(t).Runs().Save(context.Background(), summary("not-a-uuid", time.Now()))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
}

func TestRunRepository_NotFound(t *testing.T) {
	_, err := openStore(t).Runs().GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunRepository_DuplicateRunRollsBack(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	id := uuid.New().String()

	_, err := store.Runs().Save(ctx, summary(id, time.Now()))
	require.NoError(t, err)
	_, err = store.Runs().Save(ctx, summary(id, time.Now()))
	assert.Error(t, err)

	runs, err := store.Runs().List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := store.Runs().Save(ctx, summary(uuid.New().String(), base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	runs, err := store.Runs().List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].GeneratedAt.After(runs[1].GeneratedAt))
	assert.Empty(t, runs[0].Pages)
}
