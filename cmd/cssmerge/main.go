package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/sokinpui/cssmerge/cli"
	"github.com/sokinpui/cssmerge/cssmerge"
	"github.com/sokinpui/cssmerge/internal/log"
	"github.com/sokinpui/cssmerge/internal/tui"
	"github.com/sokinpui/cssmerge/internal/ui"
	"github.com/sokinpui/cssmerge/model"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if err := cli.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	cfg, err := cli.ParseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	logger := log.New(cfg.Verbose, os.Stderr)
	defer logger.Sync()

	app, err := cssmerge.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		return 1
	}
	app.SetLogger(logger)

	// Modes that print to stdout, or that are asked to stay quiet, skip the TUI.
	if cfg.NoAnimation || cfg.Stdout || cfg.DryRun || cfg.Undo || cfg.Redo || cfg.Verbose {
		return runPlain(app, cfg)
	}

	p := tea.NewProgram(tui.New(app), tea.WithOutput(os.Stderr))
	app.SetProgressCallback(func(current, total int) {
		p.Send(tui.ProgressMsg{Current: current, Total: total})
	})
	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		return 1
	}
	if m, ok := final.(tui.Model); ok && m.Err() != nil {
		return 1
	}
	return 0
}

func runPlain(app *cssmerge.App, cfg *cli.Config) int {
	var bar *ui.ProgressBar
	if cfg.Manifest != "" && !cfg.NoAnimation {
		app.SetProgressCallback(func(current, total int) {
			if bar == nil {
				bar = ui.NewProgressBar(total, "Merging")
				bar.Start()
				return
			}
			bar.Increment()
		})
	}

	summary, err := app.Execute()
	if bar != nil {
		bar.Finish()
	}

	if !cfg.Stdout {
		report(cfg, summary)
	}
	if err != nil {
		var detailed *cssmerge.DetailedError
		if errors.As(err, &detailed) {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		ui.Error("Error: %v", err)
		if errors.Is(err, cssmerge.ErrSourceMissing) {
			ui.Warning("Check --restore/--current or the CSSMERGE_RESTORE and CSSMERGE_CURRENT variables.")
		}
		return 1
	}
	return 0
}

func report(cfg *cli.Config, summary model.Summary) {
	switch {
	case cfg.Undo:
		ui.PrintHistorySummary("undo", summary.Written, summary.Failed)
	case cfg.Redo:
		ui.PrintHistorySummary("redo", summary.Written, summary.Failed)
	case len(summary.Jobs) > 0:
		ui.Header(summary.Message)
		for _, job := range summary.Jobs {
			if job.Baseline == "" {
				ui.Error("Failed: %s", job.Output)
				continue
			}
			ui.PrintMergeSummary(job)
		}
	case summary.Baseline != "":
		ui.PrintMergeSummary(summary)
	}
}
