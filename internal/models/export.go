package models

import "time"

type ExportStatus string

const (
	ExportStatusSuccess ExportStatus = "success"
	ExportStatusFailed  ExportStatus = "failed"
	ExportStatusDryRun  ExportStatus = "dry_run"
	ExportStatusSkipped ExportStatus = "skipped"
)

// ExportRecord is one finished export attempt as stored in the registry.
type ExportRecord struct {
	ID           int64
	RunID        string
	Conversation string
	Occurrence   int
	Status       ExportStatus
	Reason       string
	RunDir       string
	Artifacts    []string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// StatusFor maps an outcome kind onto the registry status vocabulary.
func StatusFor(kind OutcomeKind) ExportStatus {
	switch kind {
	case OutcomeSuccess:
		return ExportStatusSuccess
	case OutcomeDryRun:
		return ExportStatusDryRun
	default:
		return ExportStatusFailed
	}
}
