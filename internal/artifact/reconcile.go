package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

type Rename struct {
	From string
	To   string
}

// Plan decides the final path of every artifact. Arrival order is local
// then cloud. The first artifact gets preferredName, later ones get _2, _3
// and so on before the extension. Names taken by other files, as reported
// by exists, are skipped. Artifacts already carrying a valid name keep it.
//
// A name already held by a later input is not taken from it: the earlier
// input moves on to the next suffix, so every plan is a set of renames into
// free names and Apply never overwrites an input. Fresh run directories
// never hold the preferred name before reconciliation.
func Plan(local, cloud []string, preferredName string, exists func(path string) bool) []Rename {
	ext := filepath.Ext(preferredName)
	base := strings.TrimSuffix(preferredName, ext)

	var inputs []string
	seen := make(map[string]bool)
	for _, p := range append(append([]string(nil), local...), cloud...) {
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		inputs = append(inputs, p)
	}

	claimed := make(map[string]bool)
	plan := make([]Rename, 0, len(inputs))
	for _, in := range inputs {
		dir := filepath.Dir(in)
		for k := 1; ; k++ {
			name := preferredName
			if k > 1 {
				name = fmt.Sprintf("%s_%d%s", base, k, ext)
			}
			target := filepath.Join(dir, name)
			if claimed[target] {
				continue
			}
			if target != in && exists(target) {
				continue
			}
			claimed[target] = true
			plan = append(plan, Rename{From: in, To: target})
			break
		}
	}
	return plan
}

// Apply performs the renames of a plan and returns the final paths.
func Apply(plan []Rename) ([]string, error) {
	out := make([]string, 0, len(plan))
	for _, r := range plan {
		if r.From != r.To {
			if err := os.Rename(r.From, r.To); err != nil {
				return out, fmt.Errorf("failed to rename %s: %w", r.From, err)
			}
		}
		out = append(out, r.To)
	}
	return out, nil
}

// Reconciler names the artifacts of one export on the local filesystem.
type Reconciler struct {
	logger zerolog.Logger
}

func NewReconciler(logger zerolog.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

func (r *Reconciler) Reconcile(local, cloud []string, preferredName string) ([]string, error) {
	plan := Plan(local, cloud, preferredName, fileExists)
	for _, step := range plan {
		if step.From != step.To {
			r.logger.Debug().Str("from", filepath.Base(step.From)).Str("to", filepath.Base(step.To)).Msg("renaming artifact")
		}
	}
	return Apply(plan)
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
