package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/jlmalone/WhatsLiberation/internal/matcher"
	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/jlmalone/WhatsLiberation/internal/scanner"
	"github.com/jlmalone/WhatsLiberation/internal/screen"
)

// capture takes a fresh snapshot and saves it under label.
func (w *Workflow) capture(ctx context.Context, r *run, label State) (*screen.Snapshot, error) {
	snap, err := scanner.Capture(ctx, w.deps.Driver, w.opts.Fallback)
	if err != nil {
		return nil, err
	}
	r.snap = snap
	w.saveSnapshot(r, label)
	return snap, nil
}

func (w *Workflow) saveSnapshot(r *run, label State) {
	if r.rc == nil || r.snap == nil {
		return
	}
	if _, err := r.rc.WriteSnapshot(string(label), r.snap.Raw); err != nil {
		r.logger.Warn().Err(err).Msg("failed to save snapshot")
	}
}

func (w *Workflow) tap(ctx context.Context, p models.Point) error {
	if err := w.deps.Driver.Tap(ctx, p); err != nil {
		return err
	}
	return w.pause(ctx)
}

func elementNotFound(state State, what string) error {
	return &models.AppError{
		Code:    models.CodeElementNotFound,
		Message: fmt.Sprintf("%s not found", what),
		Details: map[string]any{"state": string(state)},
	}
}

// locateControl finds a control by id, falling back to its label.
func locateControl(snap *screen.Snapshot, id, label string) (models.Point, bool) {
	if p, ok := snap.Locate(id); ok {
		return p, true
	}
	return snap.LocateByText("", label, screen.MatchFold)
}

func (w *Workflow) openConversation(ctx context.Context, r *run, row models.Point) error {
	if err := w.tap(ctx, row); err != nil {
		return err
	}
	w.enter(r, StateConversationOpened)
	return nil
}

func (w *Workflow) openOverflowMenu(ctx context.Context, r *run) error {
	snap, err := w.capture(ctx, r, r.state)
	if err != nil {
		return err
	}
	menu := w.opts.Profile.Menu
	p, ok := locateControl(snap, menu.OverflowID, menu.OverflowDesc)
	if !ok {
		return elementNotFound(r.state, "overflow menu")
	}
	if err := w.tap(ctx, p); err != nil {
		return err
	}
	w.enter(r, StateOverflowMenuOpened)
	return nil
}

// openSecondaryMenu taps "More". Builds that list the export entry in the
// first menu skip it.
func (w *Workflow) openSecondaryMenu(ctx context.Context, r *run) error {
	snap, err := w.capture(ctx, r, r.state)
	if err != nil {
		return err
	}
	menu := w.opts.Profile.Menu
	if p, ok := snap.LocateByText("", menu.MoreText, screen.MatchFold); ok {
		if err := w.tap(ctx, p); err != nil {
			return err
		}
		w.enter(r, StateSecondaryMenuOpened)
		return nil
	}
	if _, ok := snap.LocateByText("", menu.ExportText, screen.MatchFold); ok {
		r.logger.Debug().Msg("export entry in overflow menu")
		w.enter(r, StateSecondaryMenuOpened)
		return nil
	}
	return elementNotFound(r.state, fmt.Sprintf("%q menu entry", menu.MoreText))
}

func (w *Workflow) chooseExport(ctx context.Context, r *run) error {
	snap, err := w.capture(ctx, r, r.state)
	if err != nil {
		return err
	}
	export := w.opts.Profile.Menu.ExportText
	p, ok := snap.LocateByText("", export, screen.MatchFold)
	if !ok {
		p, ok = snap.LocateContaining("", export)
	}
	if !ok {
		return elementNotFound(r.state, fmt.Sprintf("%q menu entry", export))
	}
	if err := w.tap(ctx, p); err != nil {
		return err
	}
	w.enter(r, StateExportDialogShown)
	return nil
}

// chooseMedia answers the media prompt. The requested option is used when
// offered, the other one otherwise; chats without media show no prompt.
func (w *Workflow) chooseMedia(ctx context.Context, r *run) error {
	snap, err := w.capture(ctx, r, r.state)
	if err != nil {
		return err
	}
	dialog := w.opts.Profile.MediaDialog
	wanted, other := dialog.WithoutText, dialog.IncludeText
	if r.req.IncludeMedia {
		wanted, other = other, wanted
	}

	if p, ok := snap.LocateByText("", wanted, screen.MatchFold); ok {
		r.mediaApplied = r.req.IncludeMedia
		if err := w.tap(ctx, p); err != nil {
			return err
		}
	} else if p, ok := snap.LocateByText("", other, screen.MatchFold); ok {
		r.logger.Warn().
			Str("requested", wanted).
			Str("used", other).
			Msg("requested media option not offered, using the other one")
		r.mediaApplied = !r.req.IncludeMedia
		if err := w.tap(ctx, p); err != nil {
			return err
		}
	} else {
		r.logger.Debug().Msg("no media prompt shown")
		r.mediaApplied = false
	}

	w.enter(r, StateShareSheetShown)
	return nil
}

// shareLabels lists the labels that identify target, most specific first.
func shareLabels(target string, synonyms map[string][]string) []string {
	labels := []string{target}
	for key, alts := range synonyms {
		if matcher.Equal(key, target) {
			labels = append(labels, alts...)
		}
	}
	return labels
}

// chooseShareTarget picks the upload app from the share sheet, scrolling a
// bounded number of times when it is not on the first page.
func (w *Workflow) chooseShareTarget(ctx context.Context, r *run) error {
	snap, err := w.capture(ctx, r, r.state)
	if err != nil {
		return err
	}
	sheet := w.opts.Profile.ShareSheet
	labels := shareLabels(w.opts.ShareTarget, sheet.Synonyms)

	for attempt := 0; ; attempt++ {
		for _, label := range labels {
			p, ok := snap.LocateByText(sheet.LabelID, label, screen.MatchFold)
			if !ok {
				continue
			}
			if attempt > 0 {
				r.logger.Debug().Int("scrolls", attempt).Str("label", label).Msg("share target found after scrolling")
			}
			if err := w.tap(ctx, p); err != nil {
				return err
			}
			return w.verifyFolder(ctx, r)
		}

		if attempt >= w.opts.ShareScrollAttempts {
			return &models.AppError{
				Code:    models.CodeShareTargetNotFound,
				Message: fmt.Sprintf("share target %q not found after %d scrolls", w.opts.ShareTarget, attempt),
				Details: map[string]any{"labels": labels},
			}
		}
		if err := scanner.ScrollDown(ctx, w.deps.Driver, snap.Screen); err != nil {
			return err
		}
		if err := w.pause(ctx); err != nil {
			return err
		}
		if snap, err = w.capture(ctx, r, r.state+"_scroll"); err != nil {
			return err
		}
	}
}

// verifyFolder makes the upload dialog point at the configured folder.
func (w *Workflow) verifyFolder(ctx context.Context, r *run) error {
	want := w.opts.DriveFolder
	drive := w.opts.Profile.Drive

	snap, err := w.capture(ctx, r, r.state+"_upload")
	if err != nil {
		return err
	}
	if want == "" {
		return nil
	}

	for attempt := 1; ; attempt++ {
		label, _ := snap.TextOf(drive.FolderLabelID)
		if matcher.Equal(label, want) {
			return nil
		}
		if attempt > w.opts.FolderAttempts {
			break
		}
		r.logger.Debug().Str("shown", label).Str("want", want).Int("attempt", attempt).Msg("changing upload folder")

		p, ok := snap.Locate(drive.FolderLabelID)
		if !ok {
			return elementNotFound(r.state, "upload folder label")
		}
		if err := w.tap(ctx, p); err != nil {
			return err
		}
		if err := w.pickFolder(ctx, r, want); err != nil {
			return err
		}
		if snap, err = w.capture(ctx, r, r.state+"_upload"); err != nil {
			return err
		}
	}

	label, _ := snap.TextOf(drive.FolderLabelID)
	return &models.AppError{
		Code:    models.CodeDriveFolderMismatch,
		Message: fmt.Sprintf("upload folder is %q, want %q", label, want),
		Details: map[string]any{"attempts": w.opts.FolderAttempts},
	}
}

// pickFolder selects want in the folder picker: on the current level, then
// from the root, then one page further down.
func (w *Workflow) pickFolder(ctx context.Context, r *run, want string) error {
	drive := w.opts.Profile.Drive
	snap, err := w.capture(ctx, r, r.state+"_picker")
	if err != nil {
		return err
	}

	find := func(s *screen.Snapshot) (models.Point, bool) {
		return s.LocateByText(drive.PickerItemID, want, screen.MatchFold)
	}

	p, ok := find(snap)
	if !ok && drive.RootFolder != "" && !matcher.Equal(drive.RootFolder, want) {
		if root, found := snap.LocateByText("", drive.RootFolder, screen.MatchFold); found {
			if err := w.tap(ctx, root); err != nil {
				return err
			}
			if snap, err = w.capture(ctx, r, r.state+"_picker"); err != nil {
				return err
			}
			p, ok = find(snap)
		}
	}
	if !ok {
		if err := scanner.ScrollDown(ctx, w.deps.Driver, snap.Screen); err != nil {
			return err
		}
		if err := w.pause(ctx); err != nil {
			return err
		}
		if snap, err = w.capture(ctx, r, r.state+"_picker"); err != nil {
			return err
		}
		p, ok = find(snap)
	}

	if ok {
		if err := w.tap(ctx, p); err != nil {
			return err
		}
		if snap, err = w.capture(ctx, r, r.state+"_picker"); err != nil {
			return err
		}
	} else {
		r.logger.Warn().Str("folder", want).Msg("folder not found in picker")
	}

	if sel, found := snap.LocateByText("", drive.SelectText, screen.MatchFold); found {
		return w.tap(ctx, sel)
	}
	return nil
}

// confirmUpload taps save and waits for the upload dialog to close.
func (w *Workflow) confirmUpload(ctx context.Context, r *run) error {
	drive := w.opts.Profile.Drive
	p, ok := locateControl(r.snap, drive.SaveID, drive.SaveText)
	if !ok {
		return elementNotFound(r.state, "upload button")
	}
	if err := w.tap(ctx, p); err != nil {
		return err
	}
	w.enter(r, StateUploadTargetConfirmed)

	for i := 0; i < w.opts.UploadPollAttempts; i++ {
		snap, err := w.capture(ctx, r, r.state)
		if err != nil {
			return err
		}
		if _, still := locateControl(snap, drive.SaveID, drive.SaveText); !still {
			w.enter(r, StateUploadCompleted)
			return nil
		}
		if err := w.pause(ctx); err != nil {
			return err
		}
	}

	return &models.AppError{
		Code:    models.CodeElementNotFound,
		Message: fmt.Sprintf("upload did not complete after %d checks", w.opts.UploadPollAttempts),
		Details: map[string]any{"state": string(r.state)},
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
