package cssmerge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sokinpui/cssmerge/cli"
	"github.com/sokinpui/cssmerge/internal/batch"
	"github.com/sokinpui/cssmerge/internal/config"
	"github.com/sokinpui/cssmerge/internal/fs"
	"github.com/sokinpui/cssmerge/internal/log"
	"github.com/sokinpui/cssmerge/internal/merger"
	"github.com/sokinpui/cssmerge/internal/nvim"
	"github.com/sokinpui/cssmerge/internal/parser"
	"github.com/sokinpui/cssmerge/internal/source"
	"github.com/sokinpui/cssmerge/internal/state"
	"github.com/sokinpui/cssmerge/model"
)

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(current, total int)

// App orchestrates the entire application logic.
type App struct {
	cfg              *cli.Config
	pathResolver     *fs.PathResolver
	sourceProvider   *source.SourceProvider
	progressCallback ProgressUpdate
	logger           *zap.Logger
	stdout           io.Writer
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// StackTrace returns the stack captured when the panic was recovered.
func (e *DetailedError) StackTrace() []byte {
	return e.Stack
}

// plan is a computed merge waiting to be written.
type plan struct {
	job     config.Job
	text    string
	before  string
	existed bool
	summary model.Summary
}

// New creates a new App instance.
func New(cfg *cli.Config) (*App, error) {
	pathResolver, err := fs.NewPathResolver(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize path resolver: %w", err)
	}

	return &App{
		cfg:            cfg,
		pathResolver:   pathResolver,
		sourceProvider: source.New(),
		logger:         zap.NewNop(),
		stdout:         os.Stdout,
	}, nil
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progressCallback = cb
}

// SetLogger sets the diagnostic logger.
func (a *App) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	a.logger = l
}

// SetStdout redirects what --stdout and --dry-run print.
func (a *App) SetStdout(w io.Writer) {
	a.stdout = w
}

// Execute executes the main application logic based on parsed flags.
func (a *App) Execute() (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	ctx := log.With(context.Background(), a.logger)

	switch {
	case a.cfg.Undo:
		return a.undoLastOperation()
	case a.cfg.Redo:
		return a.redoLastOperation()
	case a.cfg.Manifest != "":
		return a.runManifest(ctx)
	default:
		return a.runSingle(ctx)
	}
}

// runSingle merges the pair of documents named by the flags.
func (a *App) runSingle(ctx context.Context) (model.Summary, error) {
	job := config.Job{
		Restore:  a.pathResolver.Resolve(a.cfg.Restore),
		Current:  a.pathResolver.Resolve(a.cfg.Current),
		Output:   a.pathResolver.Resolve(a.cfg.OutputPath()),
		Rev:      a.cfg.Rev,
		Markdown: a.cfg.Markdown,
	}
	job.Name = filepath.Base(job.Output)
	if job.Output == "" {
		job.Name = "stdout"
	}

	a.reportProgress(0, 1)
	p, err := a.prepare(ctx, job)
	if err != nil {
		return model.Summary{}, err
	}
	a.reportProgress(1, 1)

	if err := a.commit(ctx, []*plan{p}); err != nil {
		return p.summary, err
	}
	a.relativizeSummaryPaths(&p.summary)
	return p.summary, nil
}

// runManifest computes every merge of the manifest concurrently, then
// writes the successful ones.
func (a *App) runManifest(ctx context.Context) (model.Summary, error) {
	m, err := config.Load(a.pathResolver.Resolve(a.cfg.Manifest))
	if err != nil {
		return model.Summary{}, err
	}

	concurrency := m.Concurrency
	if a.cfg.Jobs > 0 {
		concurrency = a.cfg.Jobs
	}

	total := len(m.Jobs)
	plans := make([]*plan, total)
	run := func(ctx context.Context, i int, job config.Job) (model.Summary, error) {
		p, err := a.prepare(ctx, job)
		if err != nil {
			return model.Summary{Output: job.Output, Failed: []string{job.Output}}, err
		}
		plans[i] = p
		return p.summary, nil
	}

	var mu sync.Mutex
	done := 0
	a.reportProgress(0, total)
	onDone := func() {
		mu.Lock()
		defer mu.Unlock()
		done++
		a.reportProgress(done, total)
	}

	summaries, runErr := batch.Run(ctx, m.Jobs, concurrency, run, onDone)

	var ready []*plan
	for _, p := range plans {
		if p != nil {
			ready = append(ready, p)
		}
	}
	commitErr := a.commit(ctx, ready)

	for i, p := range plans {
		if p != nil {
			summaries[i] = p.summary
		}
		a.relativizeSummaryPaths(&summaries[i])
	}

	summary := model.Summary{
		Jobs:    summaries,
		Message: fmt.Sprintf("Merged %d of %d manifest job(s).", len(ready), total),
	}
	return summary, errors.Join(runErr, commitErr)
}

// prepare loads both documents and computes the merge.
func (a *App) prepare(ctx context.Context, job config.Job) (*plan, error) {
	logger := log.From(ctx).With(zap.String("job", job.Name))

	baselineLoc := source.Location{Path: job.Restore, Rev: job.Rev}
	candidateLoc := source.Location{Path: job.Current, Markdown: job.Markdown, Clipboard: a.cfg.Clipboard && a.cfg.Manifest == ""}

	logger.Debug("reading files", zap.Stringer("restore", baselineLoc), zap.Stringer("current", candidateLoc))
	baseline, err := a.sourceProvider.Load(baselineLoc)
	if err != nil {
		return nil, err
	}
	candidate, err := a.sourceProvider.Load(candidateLoc)
	if err != nil {
		return nil, err
	}

	logDangling(logger, "restore", baseline)
	logDangling(logger, "current", candidate)

	res := merger.Merge(baseline, candidate)
	logger.Debug("merged",
		zap.Int("indexed", res.Indexed),
		zap.Int("candidates", res.Candidates),
		zap.Int("skipped", res.Skipped),
		zap.Int("novel", len(res.Novel)))

	p := &plan{
		job:  job,
		text: res.Text,
		summary: model.Summary{
			Baseline:   a.displayLocation(baselineLoc),
			Candidate:  a.displayLocation(candidateLoc),
			Output:     job.Output,
			Indexed:    res.Indexed,
			Candidates: res.Candidates,
			Skipped:    res.Skipped,
			Novel:      len(res.Novel),
			NovelKeys:  res.NovelKeys(),
			DryRun:     a.cfg.DryRun,
		},
	}

	if job.Output != "" {
		before, err := os.ReadFile(job.Output)
		switch {
		case err == nil:
			p.before, p.existed = string(before), true
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read output %s: %w", job.Output, err)
		}
	}
	return p, nil
}

// logDangling notes a trailing block whose braces never closed. Such a block
// is left out of the merge; this is informational only.
func logDangling(logger *zap.Logger, doc, text string) {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	s := parser.NewScanner(text)
	for {
		if _, ok := s.Next(); !ok {
			break
		}
	}
	if offset, ok := s.Dangling(); ok {
		logger.Debug("dropped unbalanced trailing block", zap.String("document", doc), zap.Int("offset", offset))
	}
}

// commit emits the merged documents according to the output mode.
func (a *App) commit(ctx context.Context, plans []*plan) error {
	if len(plans) == 0 {
		return nil
	}

	switch {
	case a.cfg.Stdout:
		for _, p := range plans {
			if _, err := io.WriteString(a.stdout, p.text); err != nil {
				return fmt.Errorf("failed to write to stdout: %w", err)
			}
		}
		return nil

	case a.cfg.DryRun:
		for _, p := range plans {
			name := p.job.Output
			if name == "" {
				name = "merged.css"
			}
			diff, err := merger.UnifiedDiff(a.displayPath(name), p.before, p.text)
			if err != nil {
				return err
			}
			p.summary.Diff = diff
			if _, err := io.WriteString(a.stdout, diff); err != nil {
				return fmt.Errorf("failed to write to stdout: %w", err)
			}
		}
		return nil
	}

	for _, p := range plans {
		if p.job.Output == "" {
			return fmt.Errorf("no output file for %s: use --output or --stdout", p.summary.Candidate)
		}
	}

	if a.cfg.Buffer {
		return a.applyToBuffers(plans)
	}
	return a.writeFiles(ctx, plans)
}

// applyToBuffers loads the merged documents into Neovim buffers.
func (a *App) applyToBuffers(plans []*plan) error {
	manager, err := nvim.New()
	if err != nil {
		return err
	}
	defer manager.Close()

	changes := make([]model.FileChange, len(plans))
	byPath := make(map[string]*plan, len(plans))
	for i, p := range plans {
		changes[i] = model.FileChange{Path: p.job.Output, Content: strings.Split(p.text, "\n")}
		byPath[p.job.Output] = p
	}

	updated, failed := manager.ApplyChanges(changes, nil)
	for _, path := range updated {
		byPath[path].summary.Written = append(byPath[path].summary.Written, path)
	}
	for _, path := range failed {
		byPath[path].summary.Failed = append(byPath[path].summary.Failed, path)
	}
	if manager.SelfStarted() && len(updated) > 0 {
		// A headless instance goes away with its buffers, so persist them.
		if err := manager.SaveAllBuffers(); err != nil {
			return fmt.Errorf("failed to save buffers: %w", err)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to update %d buffer(s)", len(failed))
	}
	return nil
}

// writeFiles writes the merged documents and records them for undo.
func (a *App) writeFiles(ctx context.Context, plans []*plan) error {
	stateManager, err := state.New(a.pathResolver.Root())
	if err != nil {
		return fmt.Errorf("failed to initialize state manager: %w", err)
	}

	var ops []state.Operation
	var errs []error
	for _, p := range plans {
		action := fs.FileAction(p.job.Output)
		op, err := stateManager.CreateOperation(p.job.Output, p.before, p.existed, p.text)
		if err == nil {
			err = fs.WriteFile(p.job.Output, p.text)
		}
		if err != nil {
			p.summary.Failed = append(p.summary.Failed, p.job.Output)
			errs = append(errs, err)
			continue
		}
		ops = append(ops, op)
		p.summary.Written = append(p.summary.Written, p.job.Output)
		log.From(ctx).Debug("wrote merged stylesheet", zap.String("path", p.job.Output), zap.String("action", action))
	}

	if len(ops) > 0 {
		if err := stateManager.Write(ops); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// undoLastOperation handles the undo logic.
func (a *App) undoLastOperation() (model.Summary, error) {
	stateManager, err := state.New(a.pathResolver.Root())
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to initialize state manager: %w", err)
	}
	if !stateManager.CanUndo() {
		return model.Summary{Message: "No operation to undo."}, nil
	}

	undone, failed, err := stateManager.Undo()
	summary := model.Summary{
		Written: undone,
		Failed:  failed,
		Message: "Undid last merge.",
	}
	a.relativizeSummaryPaths(&summary)
	return summary, err
}

// redoLastOperation handles the redo logic.
func (a *App) redoLastOperation() (model.Summary, error) {
	stateManager, err := state.New(a.pathResolver.Root())
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to initialize state manager: %w", err)
	}
	if !stateManager.CanRedo() {
		return model.Summary{Message: "No operation to redo."}, nil
	}

	redone, failed, err := stateManager.Redo()
	summary := model.Summary{
		Written: redone,
		Failed:  failed,
		Message: "Redid last undone merge.",
	}
	a.relativizeSummaryPaths(&summary)
	return summary, err
}

func (a *App) reportProgress(current, total int) {
	if a.progressCallback != nil {
		a.progressCallback(current, total)
	}
}

// displayPath makes path relative to the root directory when possible.
func (a *App) displayPath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(a.pathResolver.Root(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func (a *App) displayLocation(loc source.Location) string {
	loc.Path = a.displayPath(loc.Path)
	return loc.String()
}

// relativizeSummaryPaths converts absolute file paths in a summary to be
// relative to the root directory for cleaner display.
func (a *App) relativizeSummaryPaths(summary *model.Summary) {
	makeRelative := func(paths []string) []string {
		if paths == nil {
			return nil
		}
		rel := make([]string, len(paths))
		for i, p := range paths {
			rel[i] = a.displayPath(p)
		}
		return rel
	}

	summary.Output = a.displayPath(summary.Output)
	summary.Written = makeRelative(summary.Written)
	summary.Failed = makeRelative(summary.Failed)
}
