package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/sokinpui/cssmerge/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
)

// Out receives all progress and summary output.
var Out io.Writer = os.Stderr

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(Out, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(Out, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(Out, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(Out, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(Out, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	PathColor.Fprintf(Out, "  "+format+"\n", a...)
}

// --- Summaries ---

// PrintMergeSummary reports the counts of a merge, mirroring the progress
// messages of a single run: indexed selectors, then new blocks.
func PrintMergeSummary(s model.Summary) {
	Header("\n--- Merge Summary ---")
	if s.Message != "" {
		Info(s.Message)
	}
	Info("Indexed %d selectors from %s.", s.Indexed, s.Baseline)
	Info("Scanned %d blocks from %s.", s.Candidates, s.Candidate)
	if s.Skipped > 0 {
		Warning("Skipped %d block(s) without a selector.", s.Skipped)
	}
	Success("Found %d new blocks.", s.Novel)
	for _, k := range s.NovelKeys {
		Path("+ %s", k)
	}

	switch {
	case s.DryRun:
		Info("Dry run: nothing was written.")
	case len(s.Written) > 0:
		Success("Merge complete.")
		for _, f := range s.Written {
			Path("- %s", f)
		}
	}
	if len(s.Failed) > 0 {
		Error("Failed to write %d file(s):", len(s.Failed))
		for _, f := range s.Failed {
			Path("- %s", f)
		}
	}
}

// PrintHistorySummary reports the outcome of an undo or redo.
func PrintHistorySummary(action string, done, failed []string) {
	Header("\n--- %s Summary ---", strings.ToUpper(action[:1])+action[1:])
	if len(done) == 0 && len(failed) == 0 {
		Info("No operation to %s.", action)
		return
	}
	if len(done) > 0 {
		Success("Successfully %s %d file(s):", pastTense(action), len(done))
		for _, f := range done {
			Path("- %s", f)
		}
	}
	if len(failed) > 0 {
		Error("Failed to %s %d file(s) (changed since the merge):", action, len(failed))
		for _, f := range failed {
			Path("- %s", f)
		}
	}
}

func pastTense(action string) string {
	switch action {
	case "undo":
		return "undid"
	case "redo":
		return "redid"
	default:
		return action + "ed"
	}
}

// --- Progress Bar ---

type ProgressBar struct {
	total   int
	prefix  string
	current int
}

func NewProgressBar(total int, prefix string) *ProgressBar {
	return &ProgressBar{total: total, prefix: prefix}
}

func (p *ProgressBar) Start() {
	p.draw()
}

func (p *ProgressBar) Increment() {
	p.current++
	p.draw()
}

func (p *ProgressBar) Finish() {
	fmt.Fprintln(Out)
}

func (p *ProgressBar) draw() {
	if p.total == 0 {
		return
	}
	const barLength = 40
	percent := float64(p.current) / float64(p.total)
	filledLength := int(percent * barLength)
	bar := strings.Repeat("█", filledLength) + strings.Repeat("-", barLength-filledLength)

	percentStr := fmt.Sprintf("%.1f%%", percent*100)
	countStr := fmt.Sprintf("[%d/%d]", p.current, p.total)

	fmt.Fprintf(Out, "\r%s |%s| %s %s", p.prefix, bar, countStr, percentStr)
}
