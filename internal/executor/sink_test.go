package executor

import (
	"slices"
	"sync"
	"testing"
)

func TestLineBufferOrder(t *testing.T) {
	b := NewLineBuffer()
	if b.Lines() != nil {
		t.Errorf("empty buffer Lines() = %q, want nil", b.Lines())
	}

	b.AppendLine("one")
	b.AppendLine("two")
	b.AppendLine("three")

	want := []string{"one", "two", "three"}
	if got := b.Lines(); !slices.Equal(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}
	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}
}

func TestLineBufferReturnsCopy(t *testing.T) {
	b := NewLineBuffer()
	b.AppendLine("original")

	lines := b.Lines()
	lines[0] = "mutated"

	if got := b.Lines()[0]; got != "original" {
		t.Errorf("buffer modified through returned slice: %q", got)
	}
}

func TestLineBufferConcurrentAppend(t *testing.T) {
	b := NewLineBuffer()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				b.AppendLine("x")
			}
		}()
	}
	wg.Wait()

	if b.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000", b.Len())
	}
}

func TestSinkFunc(t *testing.T) {
	var got []string
	var sink OutputSink = SinkFunc(func(line string) {
		got = append(got, line)
	})

	sink.AppendLine("a")
	sink.AppendLine("b")

	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("got %q, want [a b]", got)
	}
}
