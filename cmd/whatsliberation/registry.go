package main

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/jlmalone/WhatsLiberation/internal/storage"
	"github.com/jlmalone/WhatsLiberation/internal/tui"
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListExports(limit)
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Println("No exports found.")
				return nil
			}

			t := newTable()
			t.AppendHeader(table.Row{"ID", "Conversation", "Status", "When", "Files", "Reason"})
			for _, rec := range records {
				name := models.ConversationSelection{Name: rec.Conversation, OccurrenceIndex: rec.Occurrence}.String()
				t.AppendRow(table.Row{
					rec.ID, name, rec.Status, storage.FormatTimeAgo(rec.StartedAt),
					len(rec.Artifacts), truncate(rec.Reason, 50),
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Number of exports to show")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Browse recorded exports interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			p := tea.NewProgram(tui.NewApp(store), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}

func newForgetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <id>",
		Short: "Delete a recorded export so it is exported again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid export ID: %w", err)
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteExport(id); err != nil {
				return fmt.Errorf("failed to forget export: %w", err)
			}

			fmt.Printf("Forgot export #%d\n", id)
			return nil
		},
	}
}
