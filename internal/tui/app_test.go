package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	records []*models.ExportRecord
	deleted []int64
	err     error
}

func (m *memStore) ListExports(limit int) ([]*models.ExportRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.ExportRecord
	for _, r := range m.records {
		gone := false
		for _, id := range m.deleted {
			if id == r.ID {
				gone = true
			}
		}
		if !gone {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) DeleteExport(id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var now = time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T, store *memStore) *App {
	t.Helper()
	a := NewApp(store)
	a.now = func() time.Time { return now }
	a.Update(a.Init()())
	return a
}

func sampleStore() *memStore {
	done := now.Add(-time.Hour + 90*time.Second)
	return &memStore{records: []*models.ExportRecord{
		{ID: 2, Conversation: "Bob", Occurrence: 1, Status: models.ExportStatusFailed, Reason: "ShareSheetShown: share target not found", StartedAt: now.Add(-30 * time.Minute)},
		{ID: 1, Conversation: "Alice", Occurrence: 2, Status: models.ExportStatusSuccess, Artifacts: []string{"/runs/a/WA_ALICE.txt"}, StartedAt: now.Add(-time.Hour), CompletedAt: &done},
	}}
}

func TestApp_ListsHistory(t *testing.T) {
	a := newTestApp(t, sampleStore())

	out := a.View()
	assert.Contains(t, out, "Export History")
	assert.Contains(t, out, "Alice #2")
	assert.Contains(t, out, "30m")
	assert.Contains(t, out, "1h")
}

func TestApp_Navigation(t *testing.T) {
	a := newTestApp(t, sampleStore())

	a.Update(key("k"))
	assert.Equal(t, 0, a.selectedIdx)
	a.Update(key("j"))
	assert.Equal(t, 1, a.selectedIdx)
	a.Update(key("j"))
	assert.Equal(t, 1, a.selectedIdx)

	a.Update(key("enter"))
	assert.Equal(t, ViewDetail, a.view)
	out := a.View()
	assert.Contains(t, out, "Export #1: Alice")
	assert.Contains(t, out, "WA_ALICE.txt")

	a.Update(key("esc"))
	assert.Equal(t, ViewHistory, a.view)
}

func TestApp_DetailShowsFailureReason(t *testing.T) {
	a := newTestApp(t, sampleStore())
	a.Update(key("enter"))
	assert.Contains(t, a.View(), "share target not found")
}

func TestApp_ForgetRemovesRecord(t *testing.T) {
	store := sampleStore()
	a := newTestApp(t, store)
	a.Update(key("j"))

	_, cmd := a.Update(key("d"))
	require.NotNil(t, cmd)
	_, reload := a.Update(cmd())
	require.NotNil(t, reload)
	a.Update(reload())

	assert.Equal(t, []int64{1}, store.deleted)
	require.Len(t, a.records, 1)
	assert.Equal(t, 0, a.selectedIdx)
}

func TestApp_ShowsLoadError(t *testing.T) {
	a := newTestApp(t, &memStore{err: errors.New("database is locked")})
	assert.Contains(t, a.View(), "database is locked")
	assert.Contains(t, a.View(), "No exports recorded yet")
}

func TestApp_Quit(t *testing.T) {
	a := newTestApp(t, sampleStore())
	_, cmd := a.Update(key("q"))
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}
