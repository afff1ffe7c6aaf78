package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/jlmalone/WhatsLiberation/internal/artifact"
	"github.com/jlmalone/WhatsLiberation/internal/clock"
	"github.com/jlmalone/WhatsLiberation/internal/cloud"
	"github.com/jlmalone/WhatsLiberation/internal/contacts"
	"github.com/jlmalone/WhatsLiberation/internal/device"
	"github.com/jlmalone/WhatsLiberation/internal/matcher"
	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/jlmalone/WhatsLiberation/internal/scanner"
	"github.com/jlmalone/WhatsLiberation/internal/screen"
	"github.com/jlmalone/WhatsLiberation/internal/workspace"
	"github.com/rs/zerolog"
)

type State string

const (
	StateInit                  State = "Init"
	StateConversationListed    State = "ConversationListed"
	StateConversationOpened    State = "ConversationOpened"
	StateOverflowMenuOpened    State = "OverflowMenuOpened"
	StateSecondaryMenuOpened   State = "SecondaryMenuOpened"
	StateExportDialogShown     State = "ExportDialogShown"
	StateShareSheetShown       State = "ShareSheetShown"
	StateUploadTargetConfirmed State = "UploadTargetConfirmed"
	StateUploadCompleted       State = "UploadCompleted"
	StateArtifactsCollected    State = "ArtifactsCollected"
	StateDone                  State = "Done"
)

type Options struct {
	Profile       *models.Profile
	RemoteWorkDir string
	RunsDir       string
	Channel       string
	RestartApp    bool
	ShareTarget   string
	// Empty leaves the destination folder as the upload dialog shows it.
	DriveFolder         string
	ShareScrollAttempts int
	UploadPollAttempts  int
	FolderAttempts      int
	StepDelay           time.Duration
	// Screen used when a snapshot does not report its own bounds.
	Fallback models.Rect
}

// Deps are the collaborators of a workflow. Cloud and Contacts are
// optional.
type Deps struct {
	Driver   device.Driver
	Matcher  *matcher.Matcher
	Cloud    cloud.Downloader
	Contacts contacts.Directory
	Clock    clock.Clock
}

// Request is one conversation to export. Page is the number of scrolls
// after which the conversation was first seen, when known. Exact disables
// substring and fuzzy matching, for names taken verbatim from a scan.
type Request struct {
	Name         string
	Occurrence   int
	Page         int
	Exact        bool
	IncludeMedia bool
	DryRun       bool
}

type Workflow struct {
	deps       Deps
	opts       Options
	reconciler *artifact.Reconciler
	logger     zerolog.Logger
}

func New(deps Deps, opts Options, logger zerolog.Logger) *Workflow {
	if deps.Clock == nil {
		deps.Clock = clock.System
	}
	if opts.UploadPollAttempts < 1 {
		opts.UploadPollAttempts = 1
	}
	if opts.FolderAttempts < 1 {
		opts.FolderAttempts = 1
	}
	return &Workflow{
		deps:       deps,
		opts:       opts,
		reconciler: artifact.NewReconciler(logger),
		logger:     logger,
	}
}

// run is the state of one attempt.
type run struct {
	req    Request
	state  State
	snap   *screen.Snapshot
	rc     *workspace.RunContext
	logger zerolog.Logger

	displayName  string
	selection    models.ConversationSelection
	mediaApplied bool

	// contact is looked up at most once per run.
	contact       *contacts.Contact
	contactLooked bool
}

// Run exports one conversation. Per-conversation problems are reported in
// the outcome; the error is non-nil only when device setup failed and the
// caller should stop using the device.
func (w *Workflow) Run(ctx context.Context, req Request) (models.ExportOutcome, error) {
	if req.Occurrence < 1 {
		req.Occurrence = 1
	}
	r := &run{
		req:    req,
		state:  StateInit,
		logger: w.logger.With().Str("conversation", req.Name).Int("occurrence", req.Occurrence).Logger(),
	}

	defer w.cleanup(r)

	if err := w.setup(ctx); err != nil {
		r.logger.Error().Err(err).Msg("device setup failed")
		return models.Failed(fmt.Sprintf("%s: %v", StateInit, err), err), err
	}

	outcome := w.execute(ctx, r)
	w.finish(r, outcome)
	return outcome, nil
}

func (w *Workflow) setup(ctx context.Context) error {
	if _, err := w.deps.Driver.Shell(ctx, 0, "mkdir", "-p", w.opts.RemoteWorkDir); err != nil {
		return models.WrapError(models.CodeDeviceCommandFailed, "failed to create device working directory", err)
	}
	p := w.opts.Profile
	if err := w.deps.Driver.LaunchApp(ctx, p.Package, p.Activity, w.opts.RestartApp); err != nil {
		return models.WrapError(models.CodeDeviceCommandFailed, "failed to launch "+p.Package, err)
	}
	return w.pause(ctx)
}

// cleanup removes the device working directory. Failures are only logged.
func (w *Workflow) cleanup(r *run) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := w.deps.Driver.Shell(ctx, 0, "rm", "-rf", w.opts.RemoteWorkDir); err != nil {
		r.logger.Warn().Err(err).Str("dir", w.opts.RemoteWorkDir).Msg("failed to remove device working directory")
	}
}

func (w *Workflow) execute(ctx context.Context, r *run) models.ExportOutcome {
	match, err := w.resolve(ctx, r)
	if err != nil {
		return w.fail(r, err)
	}
	r.displayName = match.Candidate.DisplayName
	r.selection = match.Selection
	r.logger = r.logger.With().Str("selected", match.Selection.String()).Logger()

	name := w.plannedName(r, r.req.IncludeMedia)
	if r.req.DryRun {
		r.logger.Info().Str("file", name).Msg("dry run, not exporting")
		return models.PlannedDryRun(name)
	}

	rc, err := workspace.Create(w.opts.RunsDir, r.displayName, w.deps.Clock.Now())
	if err != nil {
		return w.fail(r, err)
	}
	r.rc = rc
	r.logger = r.logger.With().Str("run", rc.ID).Logger()
	w.saveSnapshot(r, r.state)

	steps := []func(context.Context, *run) error{
		func(ctx context.Context, r *run) error { return w.openConversation(ctx, r, match.Candidate.TapPoint) },
		w.openOverflowMenu,
		w.openSecondaryMenu,
		w.chooseExport,
		w.chooseMedia,
		w.chooseShareTarget,
		w.confirmUpload,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return w.fail(r, err)
		}
		if err := step(ctx, r); err != nil {
			return w.fail(r, err)
		}
	}

	name = w.plannedName(r, r.mediaApplied)
	artifacts, err := w.collectArtifacts(ctx, r, name)
	if err != nil {
		return w.fail(r, err)
	}
	w.enter(r, StateArtifactsCollected)
	w.enter(r, StateDone)

	return models.Succeeded(r.displayName, rc.Path, artifacts)
}

// resolve walks to the page where the conversation was first seen and
// picks it with the matcher, using every page on the way.
func (w *Workflow) resolve(ctx context.Context, r *run) (matcher.Match, error) {
	var pages [][]models.ConversationCandidate
	for page := 0; ; page++ {
		snap, err := scanner.Capture(ctx, w.deps.Driver, w.opts.Fallback)
		if err != nil {
			return matcher.Match{}, err
		}
		r.snap = snap
		pages = append(pages, snap.Candidates(w.opts.Profile.ConversationList.RowNameID))
		if page >= r.req.Page {
			break
		}
		if err := scanner.ScrollDown(ctx, w.deps.Driver, snap.Screen); err != nil {
			return matcher.Match{}, err
		}
		if err := w.pause(ctx); err != nil {
			return matcher.Match{}, err
		}
	}
	w.enter(r, StateConversationListed)

	return w.deps.Matcher.Resolve(matcher.Request{Name: r.req.Name, Occurrence: r.req.Occurrence, Exact: r.req.Exact}, pages...)
}

func (w *Workflow) plannedName(r *run, includeMedia bool) string {
	parts := artifact.NameParts{
		Channel:      w.opts.Channel,
		ChatName:     r.displayName,
		Date:         w.deps.Clock.Now(),
		IncludeMedia: includeMedia,
	}

	if c := w.lookupContact(r); c != nil {
		if c.DisplayName != "" {
			parts.ChatName = c.DisplayName
		}
		parts.ExternalID = c.ExternalID
		parts.PhoneDigits = artifact.Digits(r.displayName)
	}
	return artifact.BuildName(parts)
}

// lookupContact resolves a phone-like display name through the contact
// directory on first use and remembers the answer.
func (w *Workflow) lookupContact(r *run) *contacts.Contact {
	if r.contactLooked {
		return r.contact
	}
	r.contactLooked = true
	if w.deps.Contacts == nil || !artifact.IsPhoneLike(r.displayName) {
		return nil
	}
	if c, ok := w.deps.Contacts.LookupByPhone(artifact.Digits(r.displayName)); ok {
		r.contact = &c
	}
	return r.contact
}

func (w *Workflow) enter(r *run, s State) {
	r.logger.Debug().Str("from", string(r.state)).Str("to", string(s)).Msg("state")
	r.state = s
}

func (w *Workflow) fail(r *run, err error) models.ExportOutcome {
	reason := fmt.Sprintf("%s: %v", r.state, err)
	r.logger.Warn().Err(err).Str("state", string(r.state)).Msg("export failed")
	return models.Failed(reason, err)
}

func (w *Workflow) finish(r *run, outcome models.ExportOutcome) {
	if r.rc == nil {
		return
	}
	done := w.deps.Clock.Now()
	meta := &workspace.RunMetadata{
		RunID:        r.rc.ID,
		Selection:    r.selection,
		StartedAt:    r.rc.StartedAt,
		FinishedAt:   &done,
		Outcome:      outcome.Kind(),
		Reason:       outcome.Reason(),
		IncludeMedia: r.mediaApplied,
		Artifacts:    outcome.Artifacts(),
	}
	if err := r.rc.WriteRunMetadata(meta); err != nil {
		r.logger.Warn().Err(err).Msg("failed to write run metadata")
	}
}

func (w *Workflow) pause(ctx context.Context) error {
	return w.deps.Clock.Sleep(ctx, w.opts.StepDelay)
}
