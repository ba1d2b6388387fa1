package domain

import "time"

// JobStatus describes a scheduled sweep.
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule,omitempty"`
	NextRun   *time.Time `json:"nextRun,omitempty"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastCount int        `json:"lastCount"`
	LastError string     `json:"lastError,omitempty"`
	Running   bool       `json:"running"`
}

// JobRunResponse is the result of a manually triggered job.
type JobRunResponse struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
