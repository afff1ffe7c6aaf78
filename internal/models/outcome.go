package models

type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
	OutcomeDryRun  OutcomeKind = "dry_run"
)

// ExportOutcome is the single result of one conversation export attempt.
// Build it with Succeeded, Failed or PlannedDryRun; fields are read-only
// afterwards. Callers switch on Kind and must handle all three cases.
type ExportOutcome struct {
	kind         OutcomeKind
	conversation string
	runDir       string
	artifacts    []string
	reason       string
	cause        error
	plannedName  string
}

func Succeeded(conversation, runDir string, artifacts []string) ExportOutcome {
	return ExportOutcome{
		kind:         OutcomeSuccess,
		conversation: conversation,
		runDir:       runDir,
		artifacts:    append([]string(nil), artifacts...),
	}
}

func Failed(reason string, cause error) ExportOutcome {
	return ExportOutcome{kind: OutcomeFailure, reason: reason, cause: cause}
}

func PlannedDryRun(plannedName string) ExportOutcome {
	return ExportOutcome{kind: OutcomeDryRun, plannedName: plannedName}
}

func (o ExportOutcome) Kind() OutcomeKind    { return o.kind }
func (o ExportOutcome) Conversation() string { return o.conversation }
func (o ExportOutcome) RunDir() string       { return o.runDir }
func (o ExportOutcome) Reason() string       { return o.reason }
func (o ExportOutcome) Cause() error         { return o.cause }
func (o ExportOutcome) PlannedName() string  { return o.plannedName }

// Artifacts returns a copy of the collected artifact paths.
func (o ExportOutcome) Artifacts() []string {
	return append([]string(nil), o.artifacts...)
}
