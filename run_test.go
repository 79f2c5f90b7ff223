package main

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/smazurov/nodeexec/internal/config"
	"github.com/smazurov/nodeexec/internal/dispatch"
)

func newTestRunner() *batchRunner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &batchRunner{
		dispatcher: dispatch.New(dispatch.Options{Logger: logger}),
		logger:     logger,
	}
}

func TestLatestKeepsNewest(t *testing.T) {
	ch := make(chan *config.JobFile, 1)
	forward := latest(ch)

	first := &config.JobFile{Master: config.Master{WaitTime: "1s"}}
	second := &config.JobFile{Master: config.Master{WaitTime: "2s"}}
	forward(first)
	forward(second)

	select {
	case got := <-ch:
		if got != second {
			t.Errorf("got wait time %q, want the newest reload", got.Master.WaitTime)
		}
	default:
		t.Fatal("expected a pending reload")
	}
	if len(ch) != 0 {
		t.Errorf("pending = %d, want 0", len(ch))
	}
}

func TestBatchRunnerRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX shell")
	}

	tests := []struct {
		name string
		jobs []config.JobSpec
		want bool
	}{
		{
			name: "all succeed",
			jobs: []config.JobSpec{{ID: "a", Args: []string{"true"}}, {ID: "b", Args: []string{"echo", "hi"}}},
			want: true,
		},
		{
			name: "one exits non-zero",
			jobs: []config.JobSpec{{ID: "a", Args: []string{"true"}}, {ID: "b", Args: []string{"false"}}},
			want: false,
		},
		{
			name: "spawn failure",
			jobs: []config.JobSpec{{ID: "a", Args: []string{"/nonexistent/binary"}}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner()
			if got := r.run(context.Background(), &config.JobFile{Jobs: tt.jobs}); got != tt.want {
				t.Errorf("run() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBatchRunnerRejectsInvalidMaster(t *testing.T) {
	r := newTestRunner()
	jf := &config.JobFile{
		Master: config.Master{WaitTime: "forever"},
		Jobs:   []config.JobSpec{{ID: "a", Args: []string{"true"}}},
	}
	if r.run(context.Background(), jf) {
		t.Error("expected run to fail with an unparseable wait time")
	}
}

func TestBatchRunnerWatch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX shell")
	}

	r := newTestRunner()
	ctx, cancel := context.WithCancel(context.Background())
	reloads := make(chan *config.JobFile, 1)

	done := make(chan struct{})
	go func() {
		r.watch(ctx, reloads)
		close(done)
	}()

	reloads <- &config.JobFile{Jobs: []config.JobSpec{{ID: "reloaded", Args: []string{"echo", "again"}}}}

	deadline := time.After(5 * time.Second)
	for {
		info, ok := r.dispatcher.Status("reloaded")
		if ok && len(info.Lines) == 1 && info.Lines[0] == "again" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("reloaded job never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}
