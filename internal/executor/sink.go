package executor

import "sync"

// OutputSink receives non-blank output lines in the order the child wrote them.
type OutputSink interface {
	AppendLine(line string)
}

// SinkFunc adapts a function to OutputSink.
type SinkFunc func(line string)

// AppendLine calls f(line).
func (f SinkFunc) AppendLine(line string) {
	f(line)
}

// LineBuffer is an ordered, concurrency-safe line collection.
type LineBuffer struct {
	mu    sync.Mutex
	lines []string
}

// NewLineBuffer creates an empty line buffer.
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{}
}

// AppendLine adds a line to the end of the buffer.
func (b *LineBuffer) AppendLine(line string) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.mu.Unlock()
}

// Lines returns a copy of the captured lines.
func (b *LineBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == 0 {
		return nil
	}
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Len returns the number of captured lines.
func (b *LineBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
