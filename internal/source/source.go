package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/sokinpui/cssmerge/internal/parser"
)

// ErrSourceMissing is returned, wrapped in a *MissingError, when a document
// cannot be located.
var ErrSourceMissing = errors.New("source not found")

// MissingError identifies the document that could not be located.
type MissingError struct {
	Path string
	Rev  string
	Err  error
}

func (e *MissingError) Error() string {
	where := e.Path
	if e.Rev != "" {
		where = fmt.Sprintf("%s@%s", e.Path, e.Rev)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrSourceMissing, where, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrSourceMissing, where)
}

func (e *MissingError) Is(target error) bool {
	return target == ErrSourceMissing
}

func (e *MissingError) Unwrap() error {
	return e.Err
}

// Location describes where a document is read from.
type Location struct {
	// Path is a file path, or "-" for stdin.
	Path string
	// Rev, when set, reads Path as of this git revision instead of the
	// working tree.
	Rev string
	// Clipboard reads the system clipboard; Path is then only a label.
	Clipboard bool
	// Markdown extracts the stylesheet code blocks from a markdown document.
	Markdown bool
}

// String describes the location for display.
func (l Location) String() string {
	switch {
	case l.Clipboard:
		return "clipboard"
	case l.Path == "-":
		return "stdin"
	case l.Rev != "":
		return fmt.Sprintf("%s@%s", l.Path, l.Rev)
	default:
		return l.Path
	}
}

// SourceProvider retrieves document content.
type SourceProvider struct {
	stdin         io.Reader
	readClipboard func() (string, error)
}

// New creates a new SourceProvider reading stdin and the system clipboard.
func New() *SourceProvider {
	return &SourceProvider{
		stdin:         os.Stdin,
		readClipboard: clipboard.ReadAll,
	}
}

// Load reads the document at loc.
func (sp *SourceProvider) Load(loc Location) (string, error) {
	content, err := sp.read(loc)
	if err != nil {
		return "", err
	}
	if !loc.Markdown {
		return content, nil
	}

	css, err := parser.ExtractStylesheet([]byte(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse markdown from %s: %w", loc, err)
	}
	return css, nil
}

func (sp *SourceProvider) read(loc Location) (string, error) {
	switch {
	case loc.Clipboard:
		content, err := sp.readClipboard()
		if err != nil {
			return "", fmt.Errorf("failed to read from clipboard: %w", err)
		}
		if strings.TrimSpace(content) == "" {
			return "", nil
		}
		return content, nil

	case loc.Path == "-":
		content, err := io.ReadAll(sp.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(content), nil

	case loc.Rev != "":
		return readAtRevision(loc.Path, loc.Rev)

	default:
		content, err := os.ReadFile(loc.Path)
		if errors.Is(err, os.ErrNotExist) {
			return "", &MissingError{Path: loc.Path}
		}
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", loc.Path, err)
		}
		return string(content), nil
	}
}

// readAtRevision reads path from the commit rev resolves to, in the git
// repository containing path.
func readAtRevision(path, rev string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path '%s': %w", path, err)
	}

	repo, err := git.PlainOpenWithOptions(filepath.Dir(abs), &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("open repo for %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree for %s: %w", path, err)
	}

	rel, err := filepath.Rel(wt.Filesystem.Root(), abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside the repository at %s", path, wt.Filesystem.Root())
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", &MissingError{Path: path, Rev: rev, Err: err}
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", rev, err)
	}

	file, err := commit.File(filepath.ToSlash(rel))
	if errors.Is(err, object.ErrFileNotFound) {
		return "", &MissingError{Path: path, Rev: rev}
	}
	if err != nil {
		return "", fmt.Errorf("read %s at %s: %w", path, rev, err)
	}

	content, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("read %s at %s: %w", path, rev, err)
	}
	return content, nil
}
