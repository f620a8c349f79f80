package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestFrom_DefaultsToNop(t *testing.T) {
	l := From(context.Background())
	assert.NotNil(t, l)
	l.Info("dropped")
}

func TestWith_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := New(true, &buf)
	ctx := With(context.Background(), l)

	From(ctx).Debug("scanned", zap.Int("blocks", 3))
	assert.Contains(t, buf.String(), "scanned")
	assert.Contains(t, buf.String(), "blocks")
}

func TestNew_QuietSuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New(false, &buf)
	l.Debug("hidden")
	l.Info("also hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
