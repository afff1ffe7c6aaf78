package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	base := t.TempDir()
	now := time.Date(2026, 3, 7, 22, 15, 4, 0, time.UTC)

	r, err := Create(base, "Family / Friends 🎉", now)
	require.NoError(t, err)

	assert.Len(t, r.ID, 36)
	assert.Equal(t, now, r.StartedAt)
	assert.True(t, strings.HasPrefix(filepath.Base(r.Path), "20260307T221504_Family_Friends_"))

	info, err := os.Stat(r.SnapshotDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	other, err := Create(base, "Family / Friends 🎉", now)
	require.NoError(t, err)
	assert.NotEqual(t, r.Path, other.Path, "attempts never share a directory")
}

func TestWriteSnapshot_NumbersInOrder(t *testing.T) {
	r, err := Create(t.TempDir(), "Alice", time.Now())
	require.NoError(t, err)

	first, err := r.WriteSnapshot("ConversationListed", "<hierarchy/>")
	require.NoError(t, err)
	second, err := r.WriteSnapshot("ConversationOpened", "<hierarchy/>")
	require.NoError(t, err)

	assert.Equal(t, "01_ConversationListed.xml", filepath.Base(first))
	assert.Equal(t, "02_ConversationOpened.xml", filepath.Base(second))
}

func TestRunMetadata_RoundTrip(t *testing.T) {
	r, err := Create(t.TempDir(), "Alice", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, err)

	meta := &RunMetadata{
		RunID:     r.ID,
		Selection: models.ConversationSelection{Name: "Alice", OccurrenceIndex: 2},
		StartedAt: r.StartedAt,
		Outcome:   models.OutcomeSuccess,
		Artifacts: []string{"A.txt"},
	}
	require.NoError(t, r.WriteRunMetadata(meta))

	got, err := ReadRunMetadata(r.Path)
	require.NoError(t, err)
	assert.Equal(t, meta, got)

	_, err = ReadRunMetadata(t.TempDir())
	assert.Error(t, err)
}
