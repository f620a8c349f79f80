package cssmerge

import (
	"fmt"
	"io"

	"github.com/sokinpui/cssmerge/cli"
	"github.com/sokinpui/cssmerge/internal/merger"
	"github.com/sokinpui/cssmerge/internal/parser"
	"github.com/sokinpui/cssmerge/internal/source"
	"github.com/sokinpui/cssmerge/model"
)

// Marker is the banner placed between the baseline and the appended blocks.
const Marker = merger.Marker

// ErrSourceMissing reports a document that could not be located.
var ErrSourceMissing = source.ErrSourceMissing

// Block is a selector and its brace-delimited body.
type Block = model.Block

// Scan splits text into its top-level blocks, in order.
func Scan(text string) []Block {
	return parser.ScanBlocks(text)
}

// Merge returns baseline followed by Marker and every block of candidate
// whose selector does not appear in baseline.
func Merge(baseline, candidate string) string {
	return merger.Merge(baseline, candidate).Text
}

// Config for using cssmerge as a library.
type Config struct {
	// Root is the directory relative paths resolve against and where undo
	// history is kept (the enclosing git worktree, if any). Empty means the
	// working directory.
	Root string
	// Restore is the baseline stylesheet.
	Restore string
	// Current is the stylesheet new blocks are taken from.
	Current string
	// Output is written with the result; empty means Current.
	Output string
	// Rev reads Restore as of a git revision.
	Rev string
	// Markdown takes the css code blocks of Current as the stylesheet.
	Markdown bool
	// DryRun writes a unified diff to Stdout instead of changing Output.
	DryRun bool
	// Stdout receives the diff of a dry run. Nil discards it.
	Stdout io.Writer
}

// MergeFiles merges the files named by config and writes the result,
// recording it so it can be undone from the command line.
func MergeFiles(config Config) (model.Summary, error) {
	cliCfg := &cli.Config{
		Root:        config.Root,
		Restore:     config.Restore,
		Current:     config.Current,
		Output:      config.Output,
		Rev:         config.Rev,
		Markdown:    config.Markdown,
		DryRun:      config.DryRun,
		NoAnimation: true,
	}
	if err := cliCfg.Validate(); err != nil {
		return model.Summary{}, err
	}

	app, err := New(cliCfg)
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to initialize cssmerge app: %w", err)
	}
	if config.Stdout != nil {
		app.SetStdout(config.Stdout)
	} else {
		app.SetStdout(io.Discard)
	}
	return app.Execute()
}
