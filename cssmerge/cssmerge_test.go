package cssmerge_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/cssmerge/cli"
	"github.com/sokinpui/cssmerge/cssmerge"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newApp(t *testing.T, cfg *cli.Config) (*cssmerge.App, *bytes.Buffer) {
	t.Helper()
	app, err := cssmerge.New(cfg)
	require.NoError(t, err)
	var out bytes.Buffer
	app.SetStdout(&out)
	return app, &out
}

func TestExecute_MergeUndoRedo(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app_restore.css"), ".x{color:red;}")
	writeFile(t, filepath.Join(root, "src/app.css"), ".x{color:blue;}.y{color:green;}")

	cfg := &cli.Config{Root: root, Restore: "app_restore.css", Current: "src/app.css"}
	app, _ := newApp(t, cfg)

	var progress [][2]int
	app.SetProgressCallback(func(c, n int) { progress = append(progress, [2]int{c, n}) })

	summary, err := app.Execute()
	require.NoError(t, err)
	merged := ".x{color:red;}" + cssmerge.Marker + ".y{color:green;}"
	assert.Equal(t, merged, readFile(t, filepath.Join(root, "src/app.css")))
	assert.Equal(t, 1, summary.Indexed)
	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, 1, summary.Novel)
	assert.Equal(t, []string{".y"}, summary.NovelKeys)
	assert.Equal(t, []string{filepath.Join("src", "app.css")}, summary.Written)
	assert.Equal(t, "app_restore.css", summary.Baseline)
	assert.Equal(t, [][2]int{{0, 1}, {1, 1}}, progress)

	undoApp, _ := newApp(t, &cli.Config{Root: root, Restore: "x", Undo: true})
	summary, err = undoApp.Execute()
	require.NoError(t, err)
	assert.Len(t, summary.Written, 1)
	assert.Equal(t, ".x{color:blue;}.y{color:green;}", readFile(t, filepath.Join(root, "src/app.css")))

	redoApp, _ := newApp(t, &cli.Config{Root: root, Restore: "x", Redo: true})
	_, err = redoApp.Execute()
	require.NoError(t, err)
	assert.Equal(t, merged, readFile(t, filepath.Join(root, "src/app.css")))

	summary, err = redoApp.Execute()
	require.NoError(t, err)
	assert.Equal(t, "No operation to redo.", summary.Message)
}

func TestExecute_MissingBaseline(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.css"), ".a{}")

	app, _ := newApp(t, &cli.Config{Root: root, Restore: "app_restore.css", Current: "app.css"})
	_, err := app.Execute()
	require.Error(t, err)
	assert.True(t, errors.Is(err, cssmerge.ErrSourceMissing))
	assert.Equal(t, ".a{}", readFile(t, filepath.Join(root, "app.css")), "nothing is written")
}

func TestExecute_Stdout(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old.css"), "A{1}B{2}")
	writeFile(t, filepath.Join(root, "new.css"), "A{3}C{4}B{5}D{6}")

	app, out := newApp(t, &cli.Config{Root: root, Restore: "old.css", Current: "new.css", Stdout: true})
	summary, err := app.Execute()
	require.NoError(t, err)
	assert.Equal(t, "A{1}B{2}"+cssmerge.Marker+"C{4}\nD{6}", out.String())
	assert.Empty(t, summary.Written)
	assert.Equal(t, "A{3}C{4}B{5}D{6}", readFile(t, filepath.Join(root, "new.css")))
}

func TestExecute_DryRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old.css"), ".a{}\n")
	writeFile(t, filepath.Join(root, "new.css"), ".a{}\n.b{}\n")

	app, out := newApp(t, &cli.Config{Root: root, Restore: "old.css", Current: "new.css", Output: "out.css", DryRun: true})
	summary, err := app.Execute()
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Contains(t, out.String(), "+++ b/out.css")
	assert.Contains(t, out.String(), "+   MERGED NEW FEATURES")
	assert.Equal(t, out.String(), summary.Diff)
	_, err = os.Stat(filepath.Join(root, "out.css"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExecute_MarkdownCandidate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old.css"), ".a{}")
	writeFile(t, filepath.Join(root, "answer.md"), "Add this:\n\n```css\n.a { x: 1; }\n.b { y: 2; }\n```\n")

	app, _ := newApp(t, &cli.Config{Root: root, Restore: "old.css", Current: "answer.md", Output: "out.css", Markdown: true})
	summary, err := app.Execute()
	require.NoError(t, err)
	assert.Equal(t, []string{".b"}, summary.NovelKeys)
	assert.Equal(t, ".a{}"+cssmerge.Marker+"\n.b { y: 2; }", readFile(t, filepath.Join(root, "out.css")))
}

func TestExecute_BaselineFromRevision(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "app.css"), ".old{}")
	_, err = wt.Add("app.css")
	require.NoError(t, err)
	_, err = wt.Commit("restore point", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	// The working copy was rewritten since the commit.
	writeFile(t, filepath.Join(root, "app.css"), ".old{}.new{}")

	app, _ := newApp(t, &cli.Config{Root: root, Restore: "app.css", Rev: "HEAD", Current: "app.css"})
	summary, err := app.Execute()
	require.NoError(t, err)
	assert.Equal(t, "app.css@HEAD", summary.Baseline)
	assert.Equal(t, ".old{}"+cssmerge.Marker+".new{}", readFile(t, filepath.Join(root, "app.css")))
	assert.DirExists(t, filepath.Join(root, ".cssmerge"))
}

func TestExecute_Manifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a_restore.css"), ".a{}")
	writeFile(t, filepath.Join(root, "a.css"), ".a{}.a2{}")
	writeFile(t, filepath.Join(root, "b.css"), ".b{}")
	writeFile(t, filepath.Join(root, "cssmerge.yml"), `
concurrency: 2
jobs:
  - name: a
    restore: a_restore.css
    current: a.css
  - name: b
    restore: missing_restore.css
    current: b.css
`)

	var last [2]int
	app, _ := newApp(t, &cli.Config{Root: root, Restore: "unused", Manifest: "cssmerge.yml"})
	app.SetProgressCallback(func(c, n int) { last = [2]int{c, n} })

	summary, err := app.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, cssmerge.ErrSourceMissing)
	assert.Equal(t, [2]int{2, 2}, last)

	require.Len(t, summary.Jobs, 2)
	assert.Equal(t, []string{".a2"}, summary.Jobs[0].NovelKeys)
	assert.Equal(t, []string{"a.css"}, summary.Jobs[0].Written)
	assert.Equal(t, []string{"b.css"}, summary.Jobs[1].Failed)
	assert.Equal(t, ".a{}"+cssmerge.Marker+".a2{}", readFile(t, filepath.Join(root, "a.css")))
	assert.Equal(t, ".b{}", readFile(t, filepath.Join(root, "b.css")))
}

func TestExecute_InPlaceWithoutNovelBlocks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old.css"), ".a{}")

	app, _ := newApp(t, &cli.Config{Root: root, Restore: "old.css", Current: filepath.Join(root, "old.css")})
	_, err := app.Execute()
	require.NoError(t, err)
	assert.Equal(t, ".a{}"+cssmerge.Marker, readFile(t, filepath.Join(root, "old.css")))
}
