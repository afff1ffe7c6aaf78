package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jlmalone/WhatsLiberation/internal/device/devicetest"
	"github.com/jlmalone/WhatsLiberation/internal/matcher"
	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rowID = "com.whatsapp:id/conversations_row_contact_name"

var fallback = models.Rect{Right: devicetest.Width, Bottom: devicetest.Height}

func listScreen(d *devicetest.Driver, name, next string, rows ...string) {
	var els []devicetest.Element
	for i, r := range rows {
		els = append(els, devicetest.Row(rowID, r, i, ""))
	}
	d.Add(name, els...).Scroll = next
}

func selections(entries []matcher.Entry) []models.ConversationSelection {
	var out []models.ConversationSelection
	for _, e := range entries {
		out = append(out, e.Selection)
	}
	return out
}

func TestScan_DuplicateNamesAcrossPages(t *testing.T) {
	d := devicetest.New("p1")
	listScreen(d, "p1", "p2", "Alice", "Alice")
	listScreen(d, "p2", "", "Bob", "Charlie")

	s := New(d, Options{RowNameID: rowID, Limit: 4, MaxScrolls: 10, Fallback: fallback}, zerolog.Nop())
	entries, err := s.Scan(context.Background())
	require.NoError(t, err)

	want := []models.ConversationSelection{
		{Name: "Alice", OccurrenceIndex: 1},
		{Name: "Alice", OccurrenceIndex: 2},
		{Name: "Bob", OccurrenceIndex: 1},
		{Name: "Charlie", OccurrenceIndex: 1},
	}
	if diff := cmp.Diff(want, selections(entries)); diff != "" {
		t.Errorf("selections mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, d.Swipes)
	assert.Equal(t, 0, entries[1].Page)
	assert.Equal(t, 1, entries[2].Page)
}

func TestScan_StopsOnStagnation(t *testing.T) {
	d := devicetest.New("p0")
	listScreen(d, "p0", "p1", "Alice", "Bob")
	listScreen(d, "p1", "end", "Bob", "Carol")
	listScreen(d, "end", "", "Bob", "Carol")

	s := New(d, Options{RowNameID: rowID, Limit: 50, MaxScrolls: 40, Fallback: fallback}, zerolog.Nop())
	entries, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Len(t, entries, 3)
	// p0, p1, then two stagnant pages
	assert.Equal(t, 4, d.Snapshots)
	assert.Equal(t, 3, d.Swipes)
}

func TestScan_HardCeiling(t *testing.T) {
	d := devicetest.New("p0")
	for i := 0; i < 20; i++ {
		listScreen(d, fmt.Sprintf("p%d", i), fmt.Sprintf("p%d", i+1), fmt.Sprintf("Chat %d", i))
	}

	s := New(d, Options{RowNameID: rowID, Limit: 100, MaxScrolls: 3, Fallback: fallback}, zerolog.Nop())
	entries, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Len(t, entries, 4)
	assert.Equal(t, 3, d.Swipes)
}

func TestScan_NoDuplicateSelections(t *testing.T) {
	d := devicetest.New("p0")
	listScreen(d, "p0", "p1", "A", "B", "A", "C")
	listScreen(d, "p1", "p2", "A", "C", "D", "A")
	listScreen(d, "p2", "p3", "D", "A", "E")
	listScreen(d, "p3", "", "E")

	s := New(d, Options{RowNameID: rowID, Limit: 100, MaxScrolls: 10, StagnationLimit: 1, Fallback: fallback}, zerolog.Nop())
	entries, err := s.Scan(context.Background())
	require.NoError(t, err)

	seen := make(map[models.ConversationSelection]bool)
	for _, e := range entries {
		assert.False(t, seen[e.Selection], "duplicate %s", e.Selection)
		seen[e.Selection] = true
	}
}

func TestScan_LimitTruncates(t *testing.T) {
	d := devicetest.New("p0")
	listScreen(d, "p0", "", "A", "B", "C")

	s := New(d, Options{RowNameID: rowID, Limit: 2, MaxScrolls: 10, Fallback: fallback}, zerolog.Nop())
	entries, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Len(t, entries, 2)
	assert.Zero(t, d.Swipes)
}

func TestScan_SnapshotFailure(t *testing.T) {
	d := devicetest.New("p0")
	d.SnapshotErr = models.NewError(models.CodeDeviceCommandFailed, "dump failed", nil)

	s := New(d, Options{RowNameID: rowID, Limit: 5, Fallback: fallback}, zerolog.Nop())
	_, err := s.Scan(context.Background())
	assert.True(t, errors.Is(err, models.ErrDeviceCommandFailed))
}

func TestScan_Cancelled(t *testing.T) {
	d := devicetest.New("p0")
	listScreen(d, "p0", "", "A")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(d, Options{RowNameID: rowID, Limit: 5, Fallback: fallback}, zerolog.Nop())
	_, err := s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, d.Snapshots)
}

func TestScrollDown(t *testing.T) {
	d := devicetest.New("p0")
	require.NoError(t, ScrollDown(context.Background(), d, models.Rect{Right: 1080, Bottom: 2400}))
	assert.Equal(t, []string{"swipe 540 1800 540 600"}, d.Calls)
}
