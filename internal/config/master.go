package config

import (
	"fmt"
	"time"
)

// Master holds the coordinator settings shared by every job in a batch.
type Master struct {
	Share       string `toml:"share" json:"share"`
	WaitTime    string `toml:"wait_time" json:"waitTime"`
	LocalFolder string `toml:"local_folder" json:"localFolder"`
}

// String renders the settings for log lines.
func (m Master) String() string {
	return fmt.Sprintf("Master [share = %s, waitTime = %s, localFolder = %s]", m.Share, m.WaitTime, m.LocalFolder)
}

// WaitDuration parses WaitTime as a Go duration or a number of seconds.
// An empty WaitTime means no deadline and returns zero.
func (m Master) WaitDuration() (time.Duration, error) {
	if m.WaitTime == "" {
		return 0, nil
	}
	d, err := parseDuration(m.WaitTime)
	if err != nil {
		return 0, fmt.Errorf("master wait_time: %w", err)
	}
	return d, nil
}
