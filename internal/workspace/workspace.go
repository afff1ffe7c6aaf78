package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jlmalone/WhatsLiberation/internal/models"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// RunContext owns the directory of one export attempt. It is created once
// the conversation has been resolved and never reused.
type RunContext struct {
	ID        string
	Path      string
	StartedAt time.Time

	snapshots int
}

type RunMetadata struct {
	RunID        string                       `json:"run_id"`
	Selection    models.ConversationSelection `json:"selection"`
	StartedAt    time.Time                    `json:"started_at"`
	FinishedAt   *time.Time                   `json:"finished_at,omitempty"`
	Outcome      models.OutcomeKind           `json:"outcome,omitempty"`
	Reason       string                       `json:"reason,omitempty"`
	PlannedName  string                       `json:"planned_name,omitempty"`
	IncludeMedia bool                         `json:"include_media"`
	Artifacts    []string                     `json:"artifacts,omitempty"`
}

func Create(baseDir, conversation string, now time.Time) (*RunContext, error) {
	id := uuid.NewString()
	slug := strings.Trim(unsafeChars.ReplaceAllString(conversation, "_"), "_")
	if slug == "" {
		slug = "conversation"
	}
	if len(slug) > 48 {
		slug = slug[:48]
	}

	path := filepath.Join(baseDir, fmt.Sprintf("%s_%s_%s", now.Format("20060102T150405"), slug, id[:8]))

	r := &RunContext{
		ID:        id,
		Path:      path,
		StartedAt: now,
	}

	if err := os.MkdirAll(r.SnapshotDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	return r, nil
}

func (r *RunContext) SnapshotDir() string {
	return filepath.Join(r.Path, "snapshots")
}

// WriteSnapshot stores a UI dump as NN_<state>.xml, numbered in capture
// order.
func (r *RunContext) WriteSnapshot(state, xml string) (string, error) {
	r.snapshots++
	name := fmt.Sprintf("%02d_%s.xml", r.snapshots, unsafeChars.ReplaceAllString(state, "_"))
	path := filepath.Join(r.SnapshotDir(), name)

	if err := os.WriteFile(path, []byte(xml), 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot %s: %w", name, err)
	}
	return path, nil
}

func (r *RunContext) WriteRunMetadata(meta *RunMetadata) error {
	path := filepath.Join(r.Path, "run.json")

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run.json: %w", err)
	}

	return nil
}

func ReadRunMetadata(runDir string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(runDir, "run.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run.json not found in %s", runDir)
		}
		return nil, fmt.Errorf("failed to read run.json: %w", err)
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse run.json: %w", err)
	}

	return &meta, nil
}
