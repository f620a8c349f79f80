package merger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifiedDiff(t *testing.T) {
	before := ".a{}\n"
	after := ".a{}\n.b{}\n"

	diff, err := UnifiedDiff("app.css", before, after)
	require.NoError(t, err)
	assert.Contains(t, diff, "--- a/app.css")
	assert.Contains(t, diff, "+++ b/app.css")
	assert.Contains(t, diff, "+.b{}")
}

func TestUnifiedDiff_Equal(t *testing.T) {
	diff, err := UnifiedDiff("app.css", "x", "x")
	require.NoError(t, err)
	assert.Empty(t, diff)
}
