package api

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/smazurov/nodeexec/internal/api/models"
	"github.com/smazurov/nodeexec/internal/dispatch"
	"github.com/smazurov/nodeexec/internal/events"
	"github.com/smazurov/nodeexec/internal/executor"
	"github.com/smazurov/nodeexec/internal/metrics"
)

// mockJobs is a test implementation of JobController.
type mockJobs struct {
	mu      sync.Mutex
	infos   []dispatch.Info
	stopped []string
	stopErr error
}

func (m *mockJobs) List() []dispatch.Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dispatch.Info(nil), m.infos...)
}

func (m *mockJobs) Status(id string) (*dispatch.Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.infos {
		if m.infos[i].ID == id {
			info := m.infos[i]
			return &info, true
		}
	}
	return nil, false
}

func (m *mockJobs) Stop(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopErr != nil {
		return m.stopErr
	}
	for _, info := range m.infos {
		if info.ID == id {
			m.stopped = append(m.stopped, id)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", dispatch.ErrJobNotFound, id)
}

func newMockJobs() *mockJobs {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &mockJobs{infos: []dispatch.Info{
		{
			ID:         "uptime",
			Node:       "edge-01",
			BatchID:    "batch-1",
			Args:       []string{"uptime"},
			State:      executor.StateExited,
			ExitCode:   0,
			Lines:      []string{"up 3 days"},
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
		},
		{
			ID:        "tail",
			Node:      "edge-02",
			BatchID:   "batch-1",
			Args:      []string{"tail", "-f", "/var/log/syslog"},
			Elevated:  true,
			State:     executor.StateRunning,
			ExitCode:  executor.ExitCodeNotStarted,
			StartedAt: started,
		},
		{
			ID:        "missing",
			Node:      "edge-03",
			BatchID:   "batch-1",
			Args:      []string{"/nonexistent"},
			State:     executor.StateSpawnFailed,
			ExitCode:  executor.ExitCodeNotStarted,
			LastError: errors.New("node edge-03: spawn: no such file or directory"),
		},
	}}
}

func authHeader(user, pass string) string {
	return "Authorization: Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func newTestAPI(t *testing.T, jobs *mockJobs) (*Server, humatest.TestAPI) {
	t.Helper()
	s := NewServer(&Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		Jobs:         jobs,
		EventBus:     events.New(),
	})
	return s, humatest.Wrap(t, s.api)
}

func TestHealthNoAuth(t *testing.T) {
	_, api := newTestAPI(t, newMockJobs())

	resp := api.Get("/api/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var body models.HealthData
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestVersionNoAuth(t *testing.T) {
	_, api := newTestAPI(t, newMockJobs())

	resp := api.Get("/api/version")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"go_version"`) {
		t.Errorf("missing go_version: %s", resp.Body.String())
	}
}

func TestExecutorsRequireAuth(t *testing.T) {
	_, api := newTestAPI(t, newMockJobs())

	tests := []struct {
		name   string
		header []any
		want   int
	}{
		{"no credentials", nil, http.StatusUnauthorized},
		{"wrong password", []any{authHeader("admin", "nope")}, http.StatusUnauthorized},
		{"wrong scheme", []any{"Authorization: Bearer token"}, http.StatusUnauthorized},
		{"valid", []any{authHeader("admin", "secret")}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.Get("/api/executors", tt.header...)
			if resp.Code != tt.want {
				t.Errorf("status = %d, want %d", resp.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && resp.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestListExecutors(t *testing.T) {
	_, api := newTestAPI(t, newMockJobs())

	resp := api.Get("/api/executors", authHeader("admin", "secret"))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.Code, resp.Body.String())
	}

	var body models.ExecutorListData
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 3 || len(body.Executors) != 3 {
		t.Fatalf("count = %d, want 3", body.Count)
	}

	first := body.Executors[0]
	if first.ID != "uptime" || first.State != "exited" || first.Lines != 1 || first.FinishedAt == nil {
		t.Errorf("unexpected first executor: %+v", first)
	}
	if running := body.Executors[1]; running.FinishedAt != nil || !running.Elevated {
		t.Errorf("unexpected running executor: %+v", running)
	}
	if failed := body.Executors[2]; failed.Error == "" || failed.StartedAt != nil {
		t.Errorf("unexpected failed executor: %+v", failed)
	}
}

func TestGetExecutor(t *testing.T) {
	_, api := newTestAPI(t, newMockJobs())

	resp := api.Get("/api/executors/uptime", authHeader("admin", "secret"))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var body models.ExecutorDetailData
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Node != "edge-01" || len(body.Output) != 1 || body.Output[0] != "up 3 days" {
		t.Errorf("unexpected body: %+v", body)
	}

	resp = api.Get("/api/executors/tail", authHeader("admin", "secret"))
	if !strings.Contains(resp.Body.String(), `"output":[]`) {
		t.Errorf("expected empty output array: %s", resp.Body.String())
	}

	resp = api.Get("/api/executors/nope", authHeader("admin", "secret"))
	if resp.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", resp.Code)
	}
}

func TestStopExecutor(t *testing.T) {
	jobs := newMockJobs()
	_, api := newTestAPI(t, jobs)

	resp := api.Post("/api/executors/tail/stop", authHeader("admin", "secret"))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", resp.Code, resp.Body.String())
	}
	if len(jobs.stopped) != 1 || jobs.stopped[0] != "tail" {
		t.Errorf("stopped = %v, want [tail]", jobs.stopped)
	}

	resp = api.Post("/api/executors/nope/stop", authHeader("admin", "secret"))
	if resp.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", resp.Code)
	}

	jobs.stopErr = errors.New("boom")
	resp = api.Post("/api/executors/tail/stop", authHeader("admin", "secret"))
	if resp.Code != http.StatusInternalServerError {
		t.Errorf("failing stop status = %d, want 500", resp.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("nodeexec_executor_running 0\n"))
	})
	s := NewServer(&Options{Jobs: newMockJobs(), PrometheusHandler: metrics})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "nodeexec_executor_running") {
		t.Errorf("metrics = %d %q", rec.Code, rec.Body.String())
	}
}

func TestNodeStats(t *testing.T) {
	metrics.DeleteNodeMetrics("api-node-b")
	metrics.DeleteNodeMetrics("api-node-a")
	defer metrics.DeleteNodeMetrics("api-node-b")

	metrics.ExecutorStarted("api-node-b")
	metrics.OutputLine("api-node-b")
	metrics.ExecutorFinished("api-node-b", metrics.OutcomeExited, 3, time.Millisecond)
	metrics.ExecutorStarted("api-node-a")
	metrics.ExecutorFinished("api-node-a", metrics.OutcomeExited, 0, time.Millisecond)

	_, api := newTestAPI(t, newMockJobs())

	resp := api.Get("/api/nodes", authHeader("admin", "secret"))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var body models.NodeStatsListData
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var a, b *models.NodeStatsData
	for i := range body.Nodes {
		switch body.Nodes[i].Node {
		case "api-node-a":
			a = &body.Nodes[i]
		case "api-node-b":
			b = &body.Nodes[i]
			if a == nil {
				t.Error("nodes not sorted by name")
			}
		}
	}
	if a == nil || b == nil {
		t.Fatalf("missing nodes in %+v", body.Nodes)
	}
	if b.Runs != 1 || b.Failures != 1 || b.OutputLines != 1 || b.LastExit != 3 || b.Running != 0 {
		t.Errorf("unexpected stats for api-node-b: %+v", *b)
	}

	resp = api.Delete("/api/nodes/api-node-a", authHeader("admin", "secret"))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d, want 204: %s", resp.Code, resp.Body.String())
	}
	if metrics.GetNodeStats("api-node-a") != nil {
		t.Error("stats still present after reset")
	}

	resp = api.Delete("/api/nodes/api-node-a", authHeader("admin", "secret"))
	if resp.Code != http.StatusNotFound {
		t.Errorf("second reset status = %d, want 404", resp.Code)
	}
}

func TestNoAuthConfigured(t *testing.T) {
	s := NewServer(&Options{Jobs: newMockJobs()})
	api := humatest.Wrap(t, s.api)

	if resp := api.Get("/api/executors"); resp.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 without configured credentials", resp.Code)
	}
}

func TestEventStream(t *testing.T) {
	bus := events.New()
	s := NewServer(&Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		Jobs:         newMockJobs(),
		EventBus:     bus,
	})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	// Response headers may not be flushed until the first event is sent, so
	// publish continuously until one arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				bus.Publish(events.ExecutorFinishedEvent{Node: "edge-01", ExitCode: 7, Outcome: "exited"})
			}
		}
	}()

	credentials := base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	resp, err := http.Get(ts.URL + "/api/events?auth=" + credentials)
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	messages := make(chan string, 10)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data:") {
				messages <- line
			}
		}
	}()

	select {
	case msg := <-messages:
		if !strings.Contains(msg, "edge-01") || !strings.Contains(msg, `"exit_code":7`) {
			t.Errorf("unexpected event: %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for executor event")
	}
}
