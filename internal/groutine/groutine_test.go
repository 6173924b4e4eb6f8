package groutine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoNamesContext(t *testing.T) {
	names := make(chan string, 1)

	Go(nil, "link-monitor", func(ctx context.Context) { //nolint:staticcheck // nil parent is supported
		names <- Name(ctx)
	})

	select {
	case name := <-names:
		assert.Equal(t, "link-monitor", name, "goroutine context MUST carry its name")
	case <-time.After(time.Second):
		require.FailNow(t, "goroutine did not run")
	}
}

func TestNameWithoutLabel(t *testing.T) {
	assert.Empty(t, Name(context.Background()))
	assert.Empty(t, Name(nil)) //nolint:staticcheck // nil context is supported
}
