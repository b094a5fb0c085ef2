package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mandelmovie/ledger"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-dir>",
		Short: "Show the recorded state of every frame of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(args[0], ledger.FileName)
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no frame ledger in %s: %w", args[0], err)
			}
			frameLedger, err := ledger.Open(path)
			if err != nil {
				return err
			}
			defer frameLedger.Close()

			out := cmd.OutOrStdout()
			rows, err := statusRows(cmd.Context(), frameLedger)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No frames recorded")
				return nil
			}
			style := table.StyleDefault
			if isTerminal(out) {
				style = table.StyleRounded
			}
			fmt.Fprintln(out, renderTable(style, []string{"Frame", "Scale", "Status", "Duration", "Error"}, rows))
			return nil
		},
	}
}

func statusRows(ctx context.Context, frameLedger *ledger.Ledger) ([][]string, error) {
	entries, err := frameLedger.Entries(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		duration := ""
		if !entry.StartedAt.IsZero() && !entry.FinishedAt.IsZero() {
			duration = entry.FinishedAt.Sub(entry.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			strconv.Itoa(entry.Index),
			strconv.FormatFloat(entry.Scale, 'g', 6, 64),
			entry.Status,
			duration,
			entry.Error,
		})
	}
	return rows, nil
}
