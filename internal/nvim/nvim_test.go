package nvim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessSequentially(t *testing.T) {
	var progress []int
	ok, failed := processSequentially(
		[]string{"a.css", "bad.css", "b.css"},
		func(p string) (string, bool) { return p, p != "bad.css" },
		func(n int) { progress = append(progress, n) },
	)
	assert.Equal(t, []string{"a.css", "b.css"}, ok)
	assert.Equal(t, []string{"bad.css"}, failed)
	assert.Equal(t, []int{1, 2, 3}, progress)
}

func TestProcessSequentially_Empty(t *testing.T) {
	ok, failed := processSequentially(nil, func(p string) (string, bool) { return p, true }, nil)
	assert.Nil(t, ok)
	assert.Nil(t, failed)
}
