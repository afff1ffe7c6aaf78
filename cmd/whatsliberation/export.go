package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/jlmalone/WhatsLiberation/internal/orchestrator"
	"github.com/jlmalone/WhatsLiberation/internal/workflow"
	"github.com/spf13/cobra"
)

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [name]",
		Short: "Export one conversation",
		Long:  "Export the conversation with the given name, or the first visible conversation when no name is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			occurrence, _ := cmd.Flags().GetInt("occurrence")
			media, _ := cmd.Flags().GetBool("media")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			shareTarget, _ := cmd.Flags().GetString("share-target")
			driveFolder, _ := cmd.Flags().GetString("drive-folder")

			if occurrence < 1 {
				return fmt.Errorf("occurrence must be at least 1")
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("media") {
				media = a.cfg.Export.IncludeMedia
			}

			wf, err := a.workflow(a.driver(), workflowOverrides{shareTarget: shareTarget, driveFolder: driveFolder})
			if err != nil {
				return err
			}

			store, err := a.registry()
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			started := time.Now()
			outcome, runErr := wf.Run(cmd.Context(), workflow.Request{
				Name:         name,
				Occurrence:   occurrence,
				IncludeMedia: media,
				DryRun:       dryRun,
			})

			if store != nil {
				done := time.Now()
				rec := &models.ExportRecord{
					RunID:        uuid.NewString(),
					Conversation: name,
					Occurrence:   occurrence,
					Status:       models.StatusFor(outcome.Kind()),
					Reason:       outcome.Reason(),
					RunDir:       outcome.RunDir(),
					Artifacts:    outcome.Artifacts(),
					StartedAt:    started,
					CompletedAt:  &done,
				}
				if outcome.Conversation() != "" {
					rec.Conversation = outcome.Conversation()
				}
				if _, err := store.RecordExport(rec); err != nil {
					a.logger.Warn().Err(err).Msg("failed to record export")
				}
			}

			if runErr != nil {
				return runErr
			}

			switch outcome.Kind() {
			case models.OutcomeSuccess:
				fmt.Printf("Exported %s\n", outcome.Conversation())
				fmt.Printf("Run directory: %s\n", outcome.RunDir())
				for _, art := range outcome.Artifacts() {
					fmt.Printf("  %s\n", art)
				}
			case models.OutcomeDryRun:
				fmt.Printf("Would export as %s\n", outcome.PlannedName())
			case models.OutcomeFailure:
				return fmt.Errorf("export failed: %s", outcome.Reason())
			}
			return nil
		},
	}

	cmd.Flags().Int("occurrence", 1, "Which of several conversations with the same name to export (1-based)")
	cmd.Flags().Bool("media", false, "Include media in the export")
	cmd.Flags().Bool("dry-run", false, "Resolve the conversation and print the file name without exporting")
	cmd.Flags().String("share-target", "", "Share sheet target (default from config)")
	cmd.Flags().String("drive-folder", "", "Upload folder to select (default from config)")
	return cmd
}

func newBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export every visible conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			media, _ := cmd.Flags().GetBool("media")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			force, _ := cmd.Flags().GetBool("force")
			names, _ := cmd.Flags().GetStringSlice("name")
			summaryDir, _ := cmd.Flags().GetString("summary")

			a, err := loadApp()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("media") {
				media = a.cfg.Export.IncludeMedia
			}
			if summaryDir == "" {
				summaryDir = a.cfg.SummaryDir()
			}

			d := a.driver()
			wf, err := a.workflow(d, workflowOverrides{})
			if err != nil {
				return err
			}

			deps := orchestrator.Deps{
				Driver:   d,
				Profile:  a.profile,
				Scanner:  a.scanner(d, limit),
				Exporter: wf,
			}
			store, err := a.registry()
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
				deps.Registry = store
			}

			orch := orchestrator.New(deps, orchestrator.Config{
				IncludeMedia:  media,
				DryRun:        dryRun,
				Force:         force,
				Freshness:     a.cfg.Registry.Freshness,
				Names:         names,
				SummaryDir:    summaryDir,
				RemoteWorkDir: a.cfg.Device.RemoteWorkDir,
			}, a.logger)

			res, runErr := orch.Run(cmd.Context())
			if res != nil {
				printBatch(res)
			}
			return runErr
		},
	}

	cmd.Flags().Int("limit", 0, "Maximum number of conversations (default from config)")
	cmd.Flags().Bool("media", false, "Include media in the exports")
	cmd.Flags().Bool("dry-run", false, "Print planned file names without exporting")
	cmd.Flags().Bool("force", false, "Export conversations even if exported recently")
	cmd.Flags().StringSlice("name", nil, "Only export conversations with these names")
	cmd.Flags().String("summary", "", "Directory for the batch summary (default <data_dir>/summaries)")
	return cmd
}

func printBatch(res *orchestrator.Result) {
	t := newTable()
	t.AppendHeader(table.Row{"Conversation", "Result", "Detail"})
	for _, name := range res.Batch.Succeeded {
		t.AppendRow(table.Row{name, "exported", ""})
	}
	for _, name := range res.Batch.Skipped {
		t.AppendRow(table.Row{name, "skipped", ""})
	}
	for _, f := range res.Batch.Failed {
		t.AppendRow(table.Row{f.ChatName, "failed", truncate(f.Reason, 60)})
	}
	t.AppendFooter(table.Row{"Total", res.Batch.Total(), fmt.Sprintf("%d file(s)", len(res.Batch.Artifacts))})
	t.Render()

	if res.Summary.Aborted != "" {
		fmt.Printf("Batch stopped: %s\n", res.Summary.Aborted)
	}
	if res.SummaryPath != "" {
		fmt.Printf("Summary: %s\n", res.SummaryPath)
	}
}

func newScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List the conversations visible on the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := loadApp()
			if err != nil {
				return err
			}

			d := a.driver()
			workDir := a.cfg.Device.RemoteWorkDir
			if _, err := d.Shell(cmd.Context(), 0, "mkdir", "-p", workDir); err != nil {
				return models.WrapError(models.CodeDeviceCommandFailed, "failed to create device working directory", err)
			}
			defer func() {
				if _, err := d.Shell(context.Background(), 0, "rm", "-rf", workDir); err != nil {
					a.logger.Warn().Err(err).Str("dir", workDir).Msg("failed to remove device working directory")
				}
			}()

			if err := d.LaunchApp(cmd.Context(), a.profile.Package, a.profile.Activity, a.cfg.Device.RestartApp); err != nil {
				return models.WrapError(models.CodeDeviceCommandFailed, "failed to launch "+a.profile.Package, err)
			}

			entries, err := a.scanner(d, limit).Scan(cmd.Context())
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No conversations found.")
				return nil
			}

			t := newTable()
			t.AppendHeader(table.Row{"#", "Conversation", "Occurrence", "Page"})
			for i, e := range entries {
				t.AppendRow(table.Row{i + 1, e.Selection.Name, e.Selection.OccurrenceIndex, e.Page})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().Int("limit", 0, "Maximum number of conversations (default from config)")
	return cmd
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
