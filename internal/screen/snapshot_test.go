package screen

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rowID = "com.whatsapp:id/conversations_row_contact_name"

var fallback = models.Rect{Right: 1080, Bottom: 2400}

const listDump = `UI hierchary dumped to: /sdcard/window_dump.xml
<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="com.whatsapp" content-desc="" bounds="[0,0][1080,2400]">
    <node index="0" text="" resource-id="com.whatsapp:id/menuitem_overflow" content-desc="More options" bounds="[980,100][1060,180]"/>
    <node index="1" text="Alice" resource-id="com.whatsapp:id/conversations_row_contact_name" bounds="[200,300][800,360]"/>
    <node index="2" text="Bob &amp; Co" resource-id="com.whatsapp:id/conversations_row_contact_name" bounds="[200,500][800,560]"/>
    <node index="3" text="Broken" resource-id="com.whatsapp:id/conversations_row_contact_name" bounds="[200,700]"/>
    <node index="4" text="" resource-id="com.whatsapp:id/conversations_row_contact_name" bounds="[200,900][800,960]"/>
    <node index="5" text="Offscreen" resource-id="com.whatsapp:id/conversations_row_contact_name" bounds="[200,2600][800,2660]"/>
    <node index="6" text="Degenerate" resource-id="com.whatsapp:id/conversations_row_contact_name" bounds="[200,1000][200,1060]"/>
    <node index="7" text="Export chat" resource-id="android:id/title" bounds="[100,1200][900,1300]"/>
  </node>
</hierarchy>
trailing noise`

func mustParse(t *testing.T, raw string) *Snapshot {
	t.Helper()
	s, err := Parse(raw, fallback)
	require.NoError(t, err)
	return s
}

func TestParse_TrimsNoiseAndUsesRootBounds(t *testing.T) {
	s := mustParse(t, listDump)
	assert.Equal(t, models.Rect{Right: 1080, Bottom: 2400}, s.Screen)
	assert.NotContains(t, s.Raw, "trailing noise")
	assert.NotContains(t, s.Raw, "dumped to")
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("ERROR: null root node returned by UiTestAutomationBridge.", fallback)
	assert.Error(t, err)

	_, err = Parse("<?xml version='1.0'?><hierarchy><node bounds=</hierarchy>", fallback)
	assert.Error(t, err)
}

func TestParse_BareAmpersand(t *testing.T) {
	s := mustParse(t, `<hierarchy><node text="Tom & Jerry" resource-id="x:id/name" bounds="[0,0][100,100]"/></hierarchy>`)
	text, ok := s.TextOf("name")
	require.True(t, ok)
	assert.Equal(t, "Tom & Jerry", text)
	assert.Equal(t, models.Rect{Right: 100, Bottom: 100}, s.Screen)
}

func TestCandidates_SkipsMalformedRows(t *testing.T) {
	s := mustParse(t, listDump)

	got := s.Candidates(rowID)
	want := []models.ConversationCandidate{
		{DisplayName: "Alice", TapPoint: models.Point{X: 500, Y: 330}},
		{DisplayName: "Bob & Co", TapPoint: models.Point{X: 500, Y: 530}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, got, s.Candidates("conversations_row_contact_name"), "short id form")
	assert.Empty(t, s.Candidates(""))
}

func TestLocate(t *testing.T) {
	s := mustParse(t, listDump)

	p, ok := s.Locate("menuitem_overflow")
	require.True(t, ok)
	assert.Equal(t, models.Point{X: 1020, Y: 140}, p)

	_, ok = s.Locate("com.whatsapp:id/missing")
	assert.False(t, ok)

	_, ok = s.Locate("")
	assert.False(t, ok)
}

func TestLocateByText(t *testing.T) {
	s := mustParse(t, listDump)

	tests := []struct {
		name string
		id   string
		text string
		mode TextMatch
		want bool
	}{
		{"exact text", "", "Export chat", MatchExact, true},
		{"exact is case sensitive", "", "export CHAT", MatchExact, false},
		{"fold ignores case", "", "export CHAT", MatchFold, true},
		{"content-desc", "", "More options", MatchExact, true},
		{"id filter", "title", "Alice", MatchExact, false},
		{"offscreen is not found", "", "Offscreen", MatchExact, false},
		{"degenerate is not found", "", "Degenerate", MatchExact, false},
		{"empty text", "", "", MatchExact, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := s.LocateByText(tt.id, tt.text, tt.mode)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestLocateContaining(t *testing.T) {
	s := mustParse(t, listDump)

	p, ok := s.LocateContaining("", "EXPORT")
	require.True(t, ok)
	assert.Equal(t, models.Point{X: 500, Y: 1250}, p)

	_, ok = s.LocateContaining("", "import")
	assert.False(t, ok)
}

func TestParseBounds(t *testing.T) {
	r, ok := ParseBounds("[1,2][3,4]")
	require.True(t, ok)
	assert.Equal(t, models.Rect{Left: 1, Top: 2, Right: 3, Bottom: 4}, r)

	for _, bad := range []string{"", "[1,2]", "[a,b][c,d]", "1,2,3,4"} {
		_, ok := ParseBounds(bad)
		assert.False(t, ok, bad)
	}
}

func TestMatchesID(t *testing.T) {
	assert.True(t, MatchesID("com.whatsapp:id/entry", "entry"))
	assert.True(t, MatchesID("com.whatsapp:id/entry", "com.whatsapp:id/entry"))
	assert.True(t, MatchesID("anything", ""))
	assert.False(t, MatchesID("com.whatsapp:id/entry_label", "entry"))
}
