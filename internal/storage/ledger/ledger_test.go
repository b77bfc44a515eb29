package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestChecksumUnknownKey(t *testing.T) {
	l := openTestLedger(t)

	sum, err := l.Checksum(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "", sum)
}

func TestCommitAndLookup(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Commit(ctx, "jane-doe", "abc123", "https://intranet.example.com/employee/jane-doe"))

	sum, err := l.Checksum(ctx, "jane-doe")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sum)
}

func TestCommitUpserts(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Commit(ctx, "jane-doe", "abc123", "u"))
	require.NoError(t, l.Commit(ctx, "jane-doe", "def456", "u"))

	sum, err := l.Checksum(ctx, "jane-doe")
	require.NoError(t, err)
	assert.Equal(t, "def456", sum)
}

func TestRecordAndReadLastRun(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	none, err := l.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	first := RunSummary{
		StartedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		Attempted: 10, Succeeded: 7, Partial: 2, Failed: 1,
		Elapsed: 90 * time.Second,
	}
	require.NoError(t, l.RecordRun(ctx, first))

	second := RunSummary{
		StartedAt: time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC),
		Attempted: 3, Succeeded: 3, Skipped: 7,
		Elapsed: 20 * time.Second,
	}
	require.NoError(t, l.RecordRun(ctx, second))

	got, err := l.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Attempted)
	assert.Equal(t, 7, got.Skipped)
	assert.Equal(t, 20*time.Second, got.Elapsed)
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Close())
}
