package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jlmalone/WhatsLiberation/internal/clock"
	"github.com/jlmalone/WhatsLiberation/internal/device"
	"github.com/jlmalone/WhatsLiberation/internal/matcher"
	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/jlmalone/WhatsLiberation/internal/workflow"
	"github.com/rs/zerolog"
)

type Scanner interface {
	Scan(ctx context.Context) ([]matcher.Entry, error)
}

type Exporter interface {
	Run(ctx context.Context, req workflow.Request) (models.ExportOutcome, error)
}

// Registry remembers finished exports across invocations.
type Registry interface {
	LastSuccess(conversation string, occurrence int) (*models.ExportRecord, error)
	RecordExport(rec *models.ExportRecord) (int64, error)
}

type Config struct {
	IncludeMedia bool
	DryRun       bool

	// Force exports conversations the registry considers fresh.
	Force     bool
	Freshness time.Duration

	// Names restricts the batch to these conversations when non-empty.
	Names      []string
	SummaryDir string

	// RemoteWorkDir is created before scanning; UI dumps are written there.
	RemoteWorkDir string
}

// Deps are the collaborators of a batch. Registry is optional.
type Deps struct {
	Driver   device.Driver
	Profile  *models.Profile
	Scanner  Scanner
	Exporter Exporter
	Registry Registry
	Clock    clock.Clock
}

type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger zerolog.Logger
}

func New(deps Deps, cfg Config, logger zerolog.Logger) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = clock.System
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger}
}

type Result struct {
	BatchID     string
	Batch       *models.BatchResult
	Summary     models.BatchSummary
	SummaryPath string
}

// Run exports every conversation found by the scanner, one at a time. A
// failed conversation does not stop the batch; device setup failures and
// cancellation do. The summary file is written in every case.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		BatchID: uuid.NewString(),
		Batch:   &models.BatchResult{},
	}
	logger := o.logger.With().Str("batch", res.BatchID[:8]).Logger()
	started := o.deps.Clock.Now()

	aborted, runErr := o.runBatch(ctx, res, logger)
	o.cleanup(logger)

	res.Summary = res.Batch.Summary(started, o.deps.Clock.Now())
	res.Summary.Aborted = aborted

	path, err := o.writeSummary(res.Summary, res.BatchID, started)
	if err != nil {
		logger.Error().Err(err).Msg("failed to write batch summary")
		if runErr == nil {
			runErr = err
		}
	}
	res.SummaryPath = path

	logger.Info().
		Int("succeeded", len(res.Batch.Succeeded)).
		Int("skipped", len(res.Batch.Skipped)).
		Int("failed", len(res.Batch.Failed)).
		Int("files", len(res.Batch.Artifacts)).
		Str("summary", path).
		Msg("batch finished")

	return res, runErr
}

func (o *Orchestrator) runBatch(ctx context.Context, res *Result, logger zerolog.Logger) (string, error) {
	if o.cfg.RemoteWorkDir != "" {
		if _, err := o.deps.Driver.Shell(ctx, 0, "mkdir", "-p", o.cfg.RemoteWorkDir); err != nil {
			err = models.WrapError(models.CodeDeviceCommandFailed, "failed to create device working directory", err)
			logger.Error().Err(err).Msg("device setup failed")
			return "device setup failed: " + err.Error(), err
		}
	}

	p := o.deps.Profile
	if err := o.deps.Driver.LaunchApp(ctx, p.Package, p.Activity, true); err != nil {
		err = models.WrapError(models.CodeDeviceCommandFailed, "failed to launch "+p.Package, err)
		logger.Error().Err(err).Msg("device setup failed")
		return "device setup failed: " + err.Error(), err
	}

	entries, err := o.deps.Scanner.Scan(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("scan failed")
		return "scan failed: " + err.Error(), err
	}
	entries = o.filter(entries)
	logger.Info().Int("conversations", len(entries)).Msg("starting batch")

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			logger.Warn().Int("remaining", len(entries)-i).Msg("batch cancelled")
			return "cancelled", err
		}

		sel := e.Selection
		label := sel.String()

		if o.isFresh(sel, logger) {
			res.Batch.AddSkipped(label)
			now := o.deps.Clock.Now()
			o.record(&models.ExportRecord{
				RunID:        res.BatchID,
				Conversation: sel.Name,
				Occurrence:   sel.OccurrenceIndex,
				Status:       models.ExportStatusSkipped,
				Reason:       "exported within the freshness window",
				StartedAt:    now,
				CompletedAt:  &now,
			}, logger)
			continue
		}

		startedAt := o.deps.Clock.Now()
		outcome, err := o.deps.Exporter.Run(ctx, workflow.Request{
			Name:         sel.Name,
			Occurrence:   sel.OccurrenceIndex,
			Page:         e.Page,
			Exact:        true,
			IncludeMedia: o.cfg.IncludeMedia,
			DryRun:       o.cfg.DryRun,
		})

		switch outcome.Kind() {
		case models.OutcomeSuccess:
			res.Batch.AddSuccess(label, outcome.Artifacts())
			logger.Info().Str("conversation", label).Int("files", len(outcome.Artifacts())).Msg("exported")
		case models.OutcomeDryRun:
			res.Batch.AddSkipped(label)
			logger.Info().Str("conversation", label).Str("file", outcome.PlannedName()).Msg("would export")
		case models.OutcomeFailure:
			res.Batch.AddFailure(label, outcome.Reason())
			logger.Warn().Str("conversation", label).Str("reason", outcome.Reason()).Msg("export failed")
		}
		done := o.deps.Clock.Now()
		o.record(&models.ExportRecord{
			RunID:        res.BatchID,
			Conversation: sel.Name,
			Occurrence:   sel.OccurrenceIndex,
			Status:       models.StatusFor(outcome.Kind()),
			Reason:       outcome.Reason(),
			RunDir:       outcome.RunDir(),
			Artifacts:    outcome.Artifacts(),
			StartedAt:    startedAt,
			CompletedAt:  &done,
		}, logger)

		if err != nil {
			logger.Error().Err(err).Msg("aborting batch")
			return fmt.Sprintf("aborted at %s: %v", label, err), err
		}
	}

	return "", nil
}

// cleanup removes the device working directory. Failures are only logged.
func (o *Orchestrator) cleanup(logger zerolog.Logger) {
	if o.cfg.RemoteWorkDir == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := o.deps.Driver.Shell(ctx, 0, "rm", "-rf", o.cfg.RemoteWorkDir); err != nil {
		logger.Warn().Err(err).Str("dir", o.cfg.RemoteWorkDir).Msg("failed to remove device working directory")
	}
}

func (o *Orchestrator) filter(entries []matcher.Entry) []matcher.Entry {
	if len(o.cfg.Names) == 0 {
		return entries
	}
	var out []matcher.Entry
	for _, e := range entries {
		for _, n := range o.cfg.Names {
			if matcher.Equal(e.Selection.Name, n) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// isFresh reports whether the registry holds a recent successful export.
func (o *Orchestrator) isFresh(sel models.ConversationSelection, logger zerolog.Logger) bool {
	if o.deps.Registry == nil || o.cfg.Force || o.cfg.Freshness <= 0 {
		return false
	}
	rec, err := o.deps.Registry.LastSuccess(sel.Name, sel.OccurrenceIndex)
	if err != nil {
		logger.Warn().Err(err).Msg("registry lookup failed")
		return false
	}
	if rec == nil {
		return false
	}
	at := rec.StartedAt
	if rec.CompletedAt != nil {
		at = *rec.CompletedAt
	}
	if o.deps.Clock.Now().Sub(at) >= o.cfg.Freshness {
		return false
	}
	logger.Info().Str("conversation", sel.String()).Time("exported", at).Msg("skipping recently exported conversation")
	return true
}

func (o *Orchestrator) record(rec *models.ExportRecord, logger zerolog.Logger) {
	if o.deps.Registry == nil {
		return
	}
	if _, err := o.deps.Registry.RecordExport(rec); err != nil {
		logger.Warn().Err(err).Str("conversation", rec.Conversation).Msg("failed to record export")
	}
}

func (o *Orchestrator) writeSummary(summary models.BatchSummary, batchID string, started time.Time) (string, error) {
	if o.cfg.SummaryDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(o.cfg.SummaryDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create summary directory: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}

	path := filepath.Join(o.cfg.SummaryDir, fmt.Sprintf("batch_summary_%s_%s.json", started.Format("20060102T150405"), batchID[:8]))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return path, nil
}
