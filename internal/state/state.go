package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"

	"github.com/sokinpui/cssmerge/internal/fs"
)

const (
	stateDirName  = ".cssmerge"
	stateFileName = "state.cssmerge"
	SnapshotDir   = "snapshots"

	// noHash marks an output that did not exist before the merge.
	noHash = "-"
)

// Operation records one write of a merged document.
type Operation struct {
	Path       string
	BeforeHash string // Empty when the file did not exist.
	AfterHash  string
}

// HistoryEntry represents one complete run of the tool.
type HistoryEntry struct {
	Timestamp  int64
	Operations []Operation
}

// State represents the entire state file.
type State struct {
	History      []HistoryEntry
	CurrentIndex int
}

// Manager handles the lifecycle of the state file and its snapshots.
type Manager struct {
	statePath string
	state     *State
	StateDir  string
}

// FindRoot returns the worktree root of the git repository containing dir,
// or dir itself when it is not inside a repository.
func FindRoot(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return dir
	}
	wt, err := repo.Worktree()
	if err != nil {
		return dir
	}
	return wt.Filesystem.Root()
}

// New creates and loads a state manager for the repository containing dir.
// An empty dir means the current working directory.
func New(dir string) (*Manager, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current working directory: %w", err)
		}
		dir = wd
	}

	stateDir := filepath.Join(FindRoot(dir), stateDirName)
	if err := os.MkdirAll(filepath.Join(stateDir, SnapshotDir), 0755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	m := &Manager{
		statePath: filepath.Join(stateDir, stateFileName),
		StateDir:  stateDir,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func emptyState() *State {
	return &State{CurrentIndex: -1, History: []HistoryEntry{}}
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.state = emptyState()
			return nil
		}
		return err
	}

	// Normalize line endings to LF
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")

	if len(blocks) == 0 || strings.TrimSpace(blocks[0]) == "" {
		m.state = emptyState()
		return nil
	}

	// First block is current index
	index, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return fmt.Errorf("invalid state file: could not parse current index: %w", err)
	}

	m.state = &State{CurrentIndex: index, History: []HistoryEntry{}}

	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")

		ts, err := strconv.ParseInt(lines[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid state file: could not parse timestamp from '%s': %w", lines[0], err)
		}

		entry := HistoryEntry{Timestamp: ts}
		opLines := lines[1:]
		if len(opLines)%3 != 0 {
			return fmt.Errorf("invalid state file: incomplete operation record")
		}
		for i := 0; i < len(opLines); i += 3 {
			op := Operation{
				Path:       opLines[i],
				BeforeHash: opLines[i+1],
				AfterHash:  opLines[i+2],
			}
			if op.BeforeHash == noHash {
				op.BeforeHash = ""
			}
			entry.Operations = append(entry.Operations, op)
		}
		m.state.History = append(m.state.History, entry)
	}

	if m.state.CurrentIndex >= len(m.state.History) {
		m.state.CurrentIndex = len(m.state.History) - 1
	}
	return nil
}

func (m *Manager) save() error {
	var blocks []string

	// Current index block
	blocks = append(blocks, strconv.Itoa(m.state.CurrentIndex))

	// History entry blocks
	for _, entry := range m.state.History {
		lines := []string{strconv.FormatInt(entry.Timestamp, 10)}
		for _, op := range entry.Operations {
			before := op.BeforeHash
			if before == "" {
				before = noHash
			}
			lines = append(lines, op.Path, before, op.AfterHash)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	content := strings.Join(blocks, "\n\n") + "\n"
	if err := os.WriteFile(m.statePath, []byte(content), 0644); err != nil {
		return fmt.Errorf("could not write state file: %w", err)
	}
	return nil
}

// Snapshot stores content under its hash and returns the hash.
func (m *Manager) Snapshot(content string) (string, error) {
	hash := fs.HashContent([]byte(content))
	path := m.snapshotPath(hash)
	if fs.Exists(path) {
		return hash, nil
	}
	if err := fs.WriteFile(path, content); err != nil {
		return "", fmt.Errorf("could not store snapshot: %w", err)
	}
	return hash, nil
}

func (m *Manager) snapshotPath(hash string) string {
	return filepath.Join(m.StateDir, SnapshotDir, hash)
}

// CreateOperation snapshots the content of path before and after a write.
// existed tells whether path had content (before) prior to the write.
func (m *Manager) CreateOperation(path, before string, existed bool, after string) (Operation, error) {
	op := Operation{Path: path}
	if existed {
		hash, err := m.Snapshot(before)
		if err != nil {
			return Operation{}, err
		}
		op.BeforeHash = hash
	}
	hash, err := m.Snapshot(after)
	if err != nil {
		return Operation{}, err
	}
	op.AfterHash = hash
	return op, nil
}

// Write adds a new set of operations to the history, discarding any
// operations that were undone and not redone.
func (m *Manager) Write(operations []Operation) error {
	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}

	ops := append([]Operation(nil), operations...)
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Path < ops[j].Path
	})

	m.state.History = append(m.state.History, HistoryEntry{
		Timestamp:  time.Now().UTC().Unix(),
		Operations: ops,
	})
	m.state.CurrentIndex++
	return m.save()
}

// CanUndo reports whether there is an operation to undo.
func (m *Manager) CanUndo() bool {
	return m.state.CurrentIndex >= 0
}

// CanRedo reports whether there is an undone operation to redo.
func (m *Manager) CanRedo() bool {
	return m.state.CurrentIndex+1 < len(m.state.History)
}

// Undo restores every file of the last entry to its content before the
// merge. Files changed since the merge are left alone and reported as failed.
func (m *Manager) Undo() (undone, failed []string, err error) {
	if !m.CanUndo() {
		return nil, nil, nil
	}
	for _, op := range m.state.History[m.state.CurrentIndex].Operations {
		if m.restore(op.Path, op.AfterHash, op.BeforeHash) {
			undone = append(undone, op.Path)
		} else {
			failed = append(failed, op.Path)
		}
	}
	m.state.CurrentIndex--
	return undone, failed, m.save()
}

// Redo re-applies the last undone entry.
func (m *Manager) Redo() (redone, failed []string, err error) {
	if !m.CanRedo() {
		return nil, nil, nil
	}
	m.state.CurrentIndex++
	for _, op := range m.state.History[m.state.CurrentIndex].Operations {
		if m.restore(op.Path, op.BeforeHash, op.AfterHash) {
			redone = append(redone, op.Path)
		} else {
			failed = append(failed, op.Path)
		}
	}
	return redone, failed, m.save()
}

// restore moves path from the snapshot expectHash to the snapshot wantHash.
// An empty hash stands for "file absent".
func (m *Manager) restore(path, expectHash, wantHash string) bool {
	currentHash, err := fs.GetFileSHA256(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		currentHash = ""
	case err != nil:
		return false
	}

	// Core safety check: if the file has been changed, leave it untouched.
	if currentHash != expectHash {
		return false
	}

	if wantHash == "" {
		return os.Remove(path) == nil
	}
	content, err := os.ReadFile(m.snapshotPath(wantHash))
	if err != nil {
		return false
	}
	return fs.WriteFile(path, string(content)) == nil
}
