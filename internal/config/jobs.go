package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidJobFile is wrapped by every job file validation failure.
var ErrInvalidJobFile = errors.New("invalid job file")

// JobSpec describes one command to run on a node.
type JobSpec struct {
	ID       string   `toml:"id"`
	Node     string   `toml:"node"`
	Args     []string `toml:"args"`
	Elevated bool     `toml:"elevated"`
	Quiet    bool     `toml:"quiet"`
}

// JobFile is the document passed via --jobs:
//
//	[master]
//	wait_time = "2m"
//
//	[[jobs]]
//	id = "uptime"
//	node = "edge-01"
//	args = ["uptime"]
type JobFile struct {
	Master Master    `toml:"master"`
	Jobs   []JobSpec `toml:"jobs"`
}

// LoadJobFile reads, normalizes and validates a job file.
func LoadJobFile(path string) (*JobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	return ParseJobFile(data)
}

// ParseJobFile decodes a TOML job document. Jobs without a node run on a
// node named after their ID.
func ParseJobFile(data []byte) (*JobFile, error) {
	var jf JobFile
	if err := toml.Unmarshal(data, &jf); err != nil {
		return nil, fmt.Errorf("failed to parse job file: %w", err)
	}
	for i := range jf.Jobs {
		if jf.Jobs[i].Node == "" {
			jf.Jobs[i].Node = jf.Jobs[i].ID
		}
	}
	if err := jf.Validate(); err != nil {
		return nil, err
	}
	return &jf, nil
}

// Validate checks job IDs are present and unique and every job has a program.
func (jf *JobFile) Validate() error {
	if len(jf.Jobs) == 0 {
		return fmt.Errorf("%w: no jobs defined", ErrInvalidJobFile)
	}
	if _, err := jf.Master.WaitDuration(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJobFile, err)
	}

	seen := make(map[string]bool, len(jf.Jobs))
	for i, job := range jf.Jobs {
		if job.ID == "" {
			return fmt.Errorf("%w: job %d: missing id", ErrInvalidJobFile, i)
		}
		if seen[job.ID] {
			return fmt.Errorf("%w: duplicate job id %q", ErrInvalidJobFile, job.ID)
		}
		seen[job.ID] = true

		if len(job.Args) == 0 || job.Args[0] == "" {
			return fmt.Errorf("%w: job %q: empty args", ErrInvalidJobFile, job.ID)
		}
	}
	return nil
}
