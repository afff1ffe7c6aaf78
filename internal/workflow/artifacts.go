package workflow

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/jlmalone/WhatsLiberation/internal/artifact"
)

// collectArtifacts gathers the export from the device and from the cloud
// and gives the files their final names. Finding nothing is not an error.
func (w *Workflow) collectArtifacts(ctx context.Context, r *run, name string) ([]string, error) {
	local := w.pullExports(ctx, r)

	var fromCloud []string
	if w.deps.Cloud != nil {
		files, err := w.deps.Cloud.DownloadExport(ctx, r.displayName, r.mediaApplied, r.rc.Path, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn().Err(err).Msg("cloud download failed")
		}
		fromCloud = files
	}

	if len(local) == 0 && len(fromCloud) == 0 {
		r.logger.Warn().Str("file", name).Msg("export uploaded but no artifact was collected")
		return nil, nil
	}

	return w.reconciler.Reconcile(local, fromCloud, name)
}

// pullExports copies export files for the current chat from the device's
// export locations into the run directory.
func (w *Workflow) pullExports(ctx context.Context, r *run) []string {
	export := w.opts.Profile.Export
	prefix := export.FilePrefix + r.displayName

	var pulled []string
	for _, loc := range export.Locations {
		out, err := w.deps.Driver.Shell(ctx, 0, "ls", "-1", loc)
		if err != nil {
			r.logger.Debug().Err(err).Str("dir", loc).Msg("export location not readable")
			continue
		}

		for _, line := range strings.Split(out, "\n") {
			file := strings.TrimSpace(line)
			if !artifact.IsExportFile(file, prefix) {
				continue
			}
			local := filepath.Join(r.rc.Path, file)
			if err := w.deps.Driver.Pull(ctx, path.Join(loc, file), local); err != nil {
				r.logger.Warn().Err(err).Str("file", file).Msg("failed to pull export")
				continue
			}
			r.logger.Info().Str("file", file).Msg("pulled export from device")
			pulled = append(pulled, local)
		}
	}
	return pulled
}
