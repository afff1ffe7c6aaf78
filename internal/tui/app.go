package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/jlmalone/WhatsLiberation/internal/workspace"
)

// Store is the part of the export registry the browser reads and edits.
type Store interface {
	ListExports(limit int) ([]*models.ExportRecord, error)
	DeleteExport(id int64) error
}

type View int

const (
	ViewHistory View = iota
	ViewDetail
)

const historyLimit = 100

type App struct {
	store Store

	view        View
	records     []*models.ExportRecord
	selectedIdx int
	detail      viewport.Model
	now         func() time.Time

	width  int
	height int
	err    error
}

func NewApp(store Store) *App {
	return &App{
		store:  store,
		view:   ViewHistory,
		detail: viewport.New(80, 20),
		now:    time.Now,
	}
}

func (a *App) Init() tea.Cmd {
	return a.loadRecords
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.detail.Width = msg.Width
		a.detail.Height = max(msg.Height-4, 1)
		return a, nil

	case recordsLoadedMsg:
		a.records = msg.records
		a.err = msg.err
		if a.selectedIdx >= len(a.records) {
			a.selectedIdx = max(len(a.records)-1, 0)
		}
		return a, nil

	case recordDeletedMsg:
		a.err = msg.err
		return a, a.loadRecords
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}
	if a.view == ViewDetail {
		return a.handleDetailKey(msg)
	}

	switch msg.String() {
	case "q":
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.records)-1 {
			a.selectedIdx++
		}

	case "enter":
		if rec := a.selected(); rec != nil {
			a.detail.SetContent(a.renderDetail(rec))
			a.detail.GotoTop()
			a.view = ViewDetail
		}

	case "r":
		return a, a.loadRecords

	case "d":
		if rec := a.selected(); rec != nil {
			return a, a.deleteRecord(rec.ID)
		}
	}

	return a, nil
}

func (a *App) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewHistory
		return a, nil
	}

	var cmd tea.Cmd
	a.detail, cmd = a.detail.Update(msg)
	return a, cmd
}

func (a *App) selected() *models.ExportRecord {
	if a.selectedIdx < 0 || a.selectedIdx >= len(a.records) {
		return nil
	}
	return a.records[a.selectedIdx]
}

func (a *App) View() string {
	if a.view == ViewDetail {
		return a.viewDetail()
	}
	return a.viewHistory()
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statusSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusDryRun  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func (a *App) viewHistory() string {
	s := titleStyle.Render("WhatsLiberation") + "\n\n"

	if a.err != nil {
		s += fmt.Sprintf("Error: %v\n", a.err)
	}

	if len(a.records) == 0 {
		s += "No exports recorded yet.\n"
	} else {
		s += "Export History\n"
		s += "──────────────\n"

		for i, rec := range a.records {
			line := a.formatRecordLine(rec)
			if i == a.selectedIdx {
				line = selectedStyle.Render("▶ " + line)
			} else if rec.Status != models.ExportStatusSuccess {
				line = "  " + dimStyle.Render(line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("[enter] view  [d] forget  [r] refresh  [q] quit")

	return s
}

func (a *App) formatRecordLine(rec *models.ExportRecord) string {
	name := models.ConversationSelection{Name: rec.Conversation, OccurrenceIndex: rec.Occurrence}.String()
	return fmt.Sprintf("#%-4d %-28s %s  %-4s  %d file(s)",
		rec.ID, truncate(name, 28), formatStatus(rec.Status), a.formatAge(rec.StartedAt), len(rec.Artifacts))
}

func (a *App) formatAge(t time.Time) string {
	d := a.now().Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func formatStatus(status models.ExportStatus) string {
	switch status {
	case models.ExportStatusSuccess:
		return statusSuccess.Render("✓ success")
	case models.ExportStatusFailed:
		return statusFailed.Render("✗ failed ")
	case models.ExportStatusDryRun:
		return statusDryRun.Render("○ dry run")
	default:
		return string(status)
	}
}

func (a *App) viewDetail() string {
	rec := a.selected()
	if rec == nil {
		return "No export selected"
	}
	header := fmt.Sprintf("Export #%d: %s", rec.ID, rec.Conversation)
	s := titleStyle.Render(header) + "  " + formatStatus(rec.Status) + "\n\n"
	s += a.detail.View() + "\n"
	s += helpStyle.Render("[↑/↓] scroll  [esc] back")
	return s
}

func (a *App) renderDetail(rec *models.ExportRecord) string {
	var b strings.Builder

	field := func(label, value string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-12s", label)) + value + "\n")
	}

	field("Batch", rec.RunID)
	field("Occurrence", fmt.Sprintf("%d", rec.Occurrence))
	field("Started", rec.StartedAt.Local().Format(time.DateTime))
	if rec.CompletedAt != nil {
		field("Duration", formatDuration(rec.CompletedAt.Sub(rec.StartedAt)))
	}
	if rec.Reason != "" {
		field("Reason", statusFailed.Render(rec.Reason))
	}
	if rec.RunDir != "" {
		field("Run dir", dimStyle.Render(rec.RunDir))
	}

	b.WriteString("\nArtifacts\n─────────\n")
	if len(rec.Artifacts) == 0 {
		b.WriteString("(none)\n")
	}
	for _, art := range rec.Artifacts {
		b.WriteString("  " + art + "\n")
	}

	if rec.RunDir == "" {
		return b.String()
	}
	meta, err := workspace.ReadRunMetadata(rec.RunDir)
	if err != nil {
		b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("run metadata unavailable: %v", err)) + "\n")
		return b.String()
	}

	b.WriteString("\nRun\n───\n")
	field("Run id", meta.RunID)
	field("Outcome", string(meta.Outcome))
	if meta.PlannedName != "" {
		field("File name", meta.PlannedName)
	}
	field("Media", fmt.Sprintf("%t", meta.IncludeMedia))
	return b.String()
}

// Messages

type recordsLoadedMsg struct {
	records []*models.ExportRecord
	err     error
}

type recordDeletedMsg struct {
	id  int64
	err error
}

// Commands

func (a *App) loadRecords() tea.Msg {
	records, err := a.store.ListExports(historyLimit)
	return recordsLoadedMsg{records: records, err: err}
}

func (a *App) deleteRecord(id int64) tea.Cmd {
	return func() tea.Msg {
		if err := a.store.DeleteExport(id); err != nil {
			return recordDeletedMsg{err: err}
		}
		return recordDeletedMsg{id: id}
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
