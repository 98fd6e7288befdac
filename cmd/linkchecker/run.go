package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/user/linkchecker-service/internal/entity"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Reconcile tracked entities and extract links from changed content",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, func(a *app) func(context.Context) (*entity.ScanRun, error) { return a.scanner.Scan })
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check every unchecked link in the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, func(a *app) func(context.Context) (*entity.ScanRun, error) { return a.scanner.Check })
		},
	}
}

// runOnce wires the service, runs one pipeline to completion and prints its summary.
func runOnce(cmd *cobra.Command, pick func(*app) func(context.Context) (*entity.ScanRun, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := pick(a)(ctx)
	if err != nil {
		return err
	}
	renderRun(cmd.OutOrStdout(), run)
	return nil
}

func renderRun(w io.Writer, run *entity.ScanRun) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Kind", "State", "Total", "Processed", "Failed", "Elapsed"})

	elapsed := "-"
	if run.FinishedAt != nil {
		elapsed = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
	}
	t.AppendRow(table.Row{run.ID, run.Kind, run.State, run.Total, run.Processed, run.Failed, elapsed})
	t.Render()
}
