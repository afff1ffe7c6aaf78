package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func existsIn(paths ...string) func(string) bool {
	set := make(map[string]bool)
	for _, p := range paths {
		set[p] = true
	}
	return func(p string) bool { return set[p] }
}

func TestPlan_ArrivalOrderAndSuffixes(t *testing.T) {
	local := []string{"/run/WhatsApp Chat with Alice.txt"}
	cloud := []string{"/run/cloud-1.txt", "/run/cloud-2.txt"}

	got := Plan(local, cloud, "ALICE_FROM_CHAT_20260307.txt", existsIn(append(local, cloud...)...))

	want := []Rename{
		{From: "/run/WhatsApp Chat with Alice.txt", To: "/run/ALICE_FROM_CHAT_20260307.txt"},
		{From: "/run/cloud-1.txt", To: "/run/ALICE_FROM_CHAT_20260307_2.txt"},
		{From: "/run/cloud-2.txt", To: "/run/ALICE_FROM_CHAT_20260307_3.txt"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_SkipsForeignFiles(t *testing.T) {
	got := Plan([]string{"/run/a.txt"}, nil, "X.txt", existsIn("/run/a.txt", "/run/X.txt", "/run/X_2.txt"))
	assert.Equal(t, []Rename{{From: "/run/a.txt", To: "/run/X_3.txt"}}, got)
}

func TestPlan_LaterInputKeepsPreferredName(t *testing.T) {
	local := []string{"/run/a.txt"}
	cloud := []string{"/run/X.txt"}

	got := Plan(local, cloud, "X.txt", existsIn("/run/a.txt", "/run/X.txt"))

	want := []Rename{
		{From: "/run/a.txt", To: "/run/X_2.txt"},
		{From: "/run/X.txt", To: "/run/X.txt"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_DuplicateInputsCollapse(t *testing.T) {
	got := Plan([]string{"/run/a.txt"}, []string{"/run/./a.txt"}, "X.txt", existsIn("/run/a.txt"))
	assert.Len(t, got, 1)
}

func TestPlan_Idempotent(t *testing.T) {
	local := []string{"/run/a.txt"}
	cloud := []string{"/run/b.txt"}
	first := Plan(local, cloud, "X.txt", existsIn("/run/a.txt", "/run/b.txt"))

	var outputs []string
	for _, r := range first {
		outputs = append(outputs, r.To)
	}
	second := Plan(outputs[:1], outputs[1:], "X.txt", existsIn(outputs...))

	for _, r := range second {
		assert.Equal(t, r.From, r.To, "re-planning must not rename")
	}
}

func TestPlan_ExistingPreferredNameIsKept(t *testing.T) {
	got := Plan([]string{"/run/a.txt"}, []string{"/run/X.txt"}, "X.txt", existsIn("/run/a.txt", "/run/X.txt"))

	want := []Rename{
		{From: "/run/a.txt", To: "/run/X_2.txt"},
		{From: "/run/X.txt", To: "/run/X.txt"},
	}
	assert.Equal(t, want, got)
}

func TestReconcile_RenamesOnDisk(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "WhatsApp Chat with Alice.txt")
	b := filepath.Join(dir, "download.txt")
	foreign := filepath.Join(dir, "ALICE_FROM_CHAT_20260307.txt")
	for _, p := range []string{a, b, foreign} {
		require.NoError(t, os.WriteFile(p, []byte(filepath.Base(p)), 0644))
	}

	r := NewReconciler(zerolog.Nop())
	got, err := r.Reconcile([]string{a}, []string{b}, "ALICE_FROM_CHAT_20260307.txt")
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, "ALICE_FROM_CHAT_20260307_2.txt"),
		filepath.Join(dir, "ALICE_FROM_CHAT_20260307_3.txt"),
	}
	assert.Equal(t, want, got)

	data, err := os.ReadFile(want[0])
	require.NoError(t, err)
	assert.Equal(t, "WhatsApp Chat with Alice.txt", string(data))

	again, err := r.Reconcile(got[:1], got[1:], "ALICE_FROM_CHAT_20260307.txt")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestReconcile_Empty(t *testing.T) {
	got, err := NewReconciler(zerolog.Nop()).Reconcile(nil, nil, "X.txt")
	require.NoError(t, err)
	assert.Empty(t, got)
}
