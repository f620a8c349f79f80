package state

import (
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeMerge simulates a merge that replaced path's content with after.
func writeMerge(t *testing.T, m *Manager, path, after string) {
	t.Helper()
	before, err := os.ReadFile(path)
	existed := err == nil

	op, err := m.CreateOperation(path, string(before), existed, after)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(after), 0644))
	require.NoError(t, m.Write([]Operation{op}))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestUndoRedo_Modify(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".cssmerge"), m.StateDir)

	path := filepath.Join(dir, "app.css")
	require.NoError(t, os.WriteFile(path, []byte(".a{}"), 0644))
	writeMerge(t, m, path, ".a{}\n.b{}")

	assert.True(t, m.CanUndo())
	assert.False(t, m.CanRedo())

	undone, failed, err := m.Undo()
	require.NoError(t, err)
	assert.Equal(t, []string{path}, undone)
	assert.Empty(t, failed)
	assert.Equal(t, ".a{}", readFile(t, path))

	redone, failed, err := m.Redo()
	require.NoError(t, err)
	assert.Equal(t, []string{path}, redone)
	assert.Empty(t, failed)
	assert.Equal(t, ".a{}\n.b{}", readFile(t, path))
}

func TestUndo_CreatedFileIsRemoved(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "merged.css")
	writeMerge(t, m, path, ".x{}")

	undone, _, err := m.Undo()
	require.NoError(t, err)
	assert.Equal(t, []string{path}, undone)
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = m.Redo()
	require.NoError(t, err)
	assert.Equal(t, ".x{}", readFile(t, path))
}

func TestUndo_RefusesEditedFile(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "app.css")
	require.NoError(t, os.WriteFile(path, []byte(".a{}"), 0644))
	writeMerge(t, m, path, ".a{}.b{}")
	require.NoError(t, os.WriteFile(path, []byte("hand edited"), 0644))

	undone, failed, err := m.Undo()
	require.NoError(t, err)
	assert.Empty(t, undone)
	assert.Equal(t, []string{path}, failed)
	assert.Equal(t, "hand edited", readFile(t, path))
}

func TestUndo_NothingToDo(t *testing.T) {
	m, err := New(t.TempDir())
	require.NoError(t, err)

	undone, failed, err := m.Undo()
	require.NoError(t, err)
	assert.Nil(t, undone)
	assert.Nil(t, failed)

	redone, _, err := m.Redo()
	require.NoError(t, err)
	assert.Nil(t, redone)
}

func TestWrite_TruncatesRedoTail(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "app.css")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0644))
	writeMerge(t, m, path, "v1")
	_, _, err = m.Undo()
	require.NoError(t, err)

	writeMerge(t, m, path, "v2")
	assert.False(t, m.CanRedo())
	assert.Len(t, m.state.History, 1)
}

func TestState_PersistsAcrossManagers(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "app.css")
	writeMerge(t, m, path, "first")
	writeMerge(t, m, path, "second")

	reloaded, err := New(dir)
	require.NoError(t, err)
	require.Len(t, reloaded.state.History, 2)
	assert.Equal(t, 1, reloaded.state.CurrentIndex)
	assert.Empty(t, reloaded.state.History[0].Operations[0].BeforeHash)
	assert.Equal(t, reloaded.state.History[0].Operations[0].AfterHash,
		reloaded.state.History[1].Operations[0].BeforeHash)

	_, _, err = reloaded.Undo()
	require.NoError(t, err)
	assert.Equal(t, "first", readFile(t, path))
}

func TestLoad_InvalidStateFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".cssmerge"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".cssmerge", "state.cssmerge"), []byte("not-a-number"), 0644))

	_, err := New(dir)
	assert.ErrorContains(t, err, "invalid state file")
}

func TestFindRoot(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, FindRoot(dir))

	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	sub := filepath.Join(dir, "src", "css")
	require.NoError(t, os.MkdirAll(sub, 0755))
	assert.Equal(t, dir, FindRoot(sub))
}
