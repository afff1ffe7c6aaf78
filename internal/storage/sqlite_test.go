package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(t *testing.T, s *Storage, name string, occ int, status models.ExportStatus, started time.Time) int64 {
	t.Helper()
	done := started.Add(time.Minute)
	id, err := s.RecordExport(&models.ExportRecord{
		RunID:        "run-" + name,
		Conversation: name,
		Occurrence:   occ,
		Status:       status,
		RunDir:       "/runs/" + name,
		Artifacts:    []string{"/runs/" + name + "/A.txt"},
		StartedAt:    started,
		CompletedAt:  &done,
	})
	require.NoError(t, err)
	return id
}

func TestRecordAndGetExport(t *testing.T) {
	s := newStorage(t)
	started := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)

	rec := &models.ExportRecord{
		RunID:        "abc",
		Conversation: "Alice",
		Occurrence:   2,
		Status:       models.ExportStatusFailed,
		Reason:       "share target not found",
		StartedAt:    started,
	}
	id, err := s.RecordExport(rec)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)

	got, err := s.GetExport(id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Conversation)
	assert.Equal(t, 2, got.Occurrence)
	assert.Equal(t, models.ExportStatusFailed, got.Status)
	assert.Equal(t, "share target not found", got.Reason)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.Artifacts)

	_, err = s.GetExport(id + 100)
	assert.Error(t, err)
}

func TestLastSuccess(t *testing.T) {
	s := newStorage(t)
	base := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)

	record(t, s, "Alice", 1, models.ExportStatusSuccess, base)
	latest := record(t, s, "Alice", 1, models.ExportStatusSuccess, base.Add(time.Hour))
	record(t, s, "Alice", 1, models.ExportStatusFailed, base.Add(2*time.Hour))
	record(t, s, "Alice", 2, models.ExportStatusFailed, base)

	got, err := s.LastSuccess("Alice", 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, latest, got.ID)
	assert.Equal(t, []string{"/runs/Alice/A.txt"}, got.Artifacts)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(base.Add(time.Hour+time.Minute)))

	got, err = s.LastSuccess("Alice", 2)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListAndDeleteExports(t *testing.T) {
	s := newStorage(t)
	base := time.Now().UTC()

	first := record(t, s, "Alice", 1, models.ExportStatusSuccess, base)
	record(t, s, "Bob", 1, models.ExportStatusSuccess, base)
	record(t, s, "Carol", 1, models.ExportStatusDryRun, base)

	recs, err := s.ListExports(2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Carol", recs[0].Conversation)
	assert.Equal(t, "Bob", recs[1].Conversation)

	require.NoError(t, s.DeleteExport(first))
	assert.Error(t, s.DeleteExport(first))

	got, err := s.LastSuccess("Alice", 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNew_ReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := New(path)
	require.NoError(t, err)
	record(t, s, "Alice", 1, models.ExportStatusSuccess, time.Now())
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	recs, err := s.ListExports(10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestFormatTimeAgo(t *testing.T) {
	assert.Equal(t, "just now", FormatTimeAgo(time.Now()))
	assert.Equal(t, "5m ago", FormatTimeAgo(time.Now().Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "3h ago", FormatTimeAgo(time.Now().Add(-3*time.Hour-time.Second)))
}
