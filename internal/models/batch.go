package models

import "time"

type FailedChat struct {
	ChatName string `json:"chatName"`
	Reason   string `json:"reason"`
}

// BatchResult accumulates outcomes for one backup run. It is append-only.
type BatchResult struct {
	Succeeded []string
	Artifacts []string
	Skipped   []string
	Failed    []FailedChat

	seenArtifacts map[string]bool
}

func (b *BatchResult) AddSuccess(name string, artifacts []string) {
	b.Succeeded = append(b.Succeeded, name)
	if b.seenArtifacts == nil {
		b.seenArtifacts = make(map[string]bool)
	}
	for _, a := range artifacts {
		if b.seenArtifacts[a] {
			continue
		}
		b.seenArtifacts[a] = true
		b.Artifacts = append(b.Artifacts, a)
	}
}

func (b *BatchResult) AddSkipped(name string) {
	b.Skipped = append(b.Skipped, name)
}

func (b *BatchResult) AddFailure(name, reason string) {
	b.Failed = append(b.Failed, FailedChat{ChatName: name, Reason: reason})
}

// Total is the number of conversations that reached a classification.
func (b *BatchResult) Total() int {
	return len(b.Succeeded) + len(b.Skipped) + len(b.Failed)
}

// BatchSummary is the JSON document written once per batch run.
type BatchSummary struct {
	SuccessfulChats []string     `json:"successfulChats"`
	DownloadedFiles []string     `json:"downloadedFiles"`
	SkippedChats    []string     `json:"skippedChats"`
	FailedChats     []FailedChat `json:"failedChats"`
	StartedAt       time.Time    `json:"startedAt"`
	FinishedAt      time.Time    `json:"finishedAt"`
	Aborted         string       `json:"aborted,omitempty"`
}

func (b *BatchResult) Summary(startedAt, finishedAt time.Time) BatchSummary {
	s := BatchSummary{
		SuccessfulChats: append([]string{}, b.Succeeded...),
		DownloadedFiles: append([]string{}, b.Artifacts...),
		SkippedChats:    append([]string{}, b.Skipped...),
		FailedChats:     append([]FailedChat{}, b.Failed...),
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
	}
	return s
}
