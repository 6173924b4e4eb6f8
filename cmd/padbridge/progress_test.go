package main

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// safeBuffer is a bytes.Buffer guarded for the progress goroutine
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressPrinter_StartStop(t *testing.T) {
	var buf safeBuffer
	p := NewProgressPrinter(&buf, "Connecting", "Scanning")

	p.Start()
	p.SetPhase("Calibrating")
	p.Stop()

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\rConnecting (Scanning...)"), "first line MUST show the initial phase: %q", out)
	assert.True(t, strings.HasSuffix(out, clearLineSequence), "Stop MUST clear the line")
}

func TestProgressPrinter_StopWithoutStart(t *testing.T) {
	var buf safeBuffer
	p := NewProgressPrinter(&buf, "Connecting", "Scanning")

	p.Stop()
	p.Stop()

	assert.Empty(t, buf.String(), "an unstarted printer MUST write nothing")
}

func TestProgressPrinter_StartTwicePanics(t *testing.T) {
	var buf safeBuffer
	p := NewProgressPrinter(&buf, "Connecting", "Scanning")
	p.Start()
	defer p.Stop()

	assert.Panics(t, p.Start)
}
