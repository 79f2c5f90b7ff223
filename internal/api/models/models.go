package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2026-01-15 14:30" doc:"Build timestamp"`
	Dirty     bool   `json:"dirty,omitempty" doc:"Built from a modified working tree"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Executor models
type ExecutorData struct {
	ID         string     `json:"id" example:"restart-agent" doc:"Job identifier"`
	Node       string     `json:"node" example:"edge-01" doc:"Node the job runs on"`
	BatchID    string     `json:"batch_id" doc:"Batch the job was dispatched in"`
	Args       []string   `json:"args" doc:"Argument vector"`
	Elevated   bool       `json:"elevated" doc:"Whether the job runs with elevated privileges"`
	State      string     `json:"state" example:"running" enum:"created,running,exited,stopped,spawn_failed,terminated" doc:"Lifecycle state"`
	ExitCode   int        `json:"exit_code" example:"0" doc:"Exit code, -1 while running or if never started"`
	Lines      int        `json:"lines" example:"12" doc:"Number of captured output lines"`
	StartedAt  *time.Time `json:"started_at,omitempty" doc:"When the job started"`
	FinishedAt *time.Time `json:"finished_at,omitempty" doc:"When the job finished"`
	Error      string     `json:"error,omitempty" doc:"Spawn or read failure"`
}

type ExecutorDetailData struct {
	ExecutorData
	Output []string `json:"output" doc:"Captured output lines"`
}

type ExecutorListData struct {
	Executors []ExecutorData `json:"executors" doc:"Tracked executors in dispatch order"`
	Count     int            `json:"count" example:"3" doc:"Number of executors"`
}

type ExecutorListResponse struct {
	Body ExecutorListData
}

type ExecutorResponse struct {
	Body ExecutorDetailData
}

type ExecutorIDInput struct {
	ID string `path:"id" example:"restart-agent" doc:"Job identifier"`
}

type StopData struct {
	ID      string `json:"id" example:"restart-agent" doc:"Job identifier"`
	Message string `json:"message" example:"Stop requested" doc:"Status message"`
}

type StopResponse struct {
	Body StopData
}

// NodeStatsData is the aggregate executor counters for one node.
type NodeStatsData struct {
	Node        string `json:"node" example:"edge-01" doc:"Node name"`
	Running     int    `json:"running" doc:"Child processes currently running"`
	Runs        int    `json:"runs" doc:"Completed executor runs"`
	Failures    int    `json:"failures" doc:"Runs that failed or exited non-zero"`
	OutputLines int    `json:"output_lines" doc:"Non-blank output lines captured"`
	LastExit    int    `json:"last_exit" doc:"Exit code of the most recent run"`
}

// NodeStatsListData represents the per-node counters response.
type NodeStatsListData struct {
	Nodes []NodeStatsData `json:"nodes" doc:"Counters per node, sorted by name"`
}

// NodeStatsResponse represents the API response for node counters.
type NodeStatsResponse struct {
	Body NodeStatsListData
}

// NodeInput identifies a node by name.
type NodeInput struct {
	Node string `path:"node" doc:"Node name"`
}
