// Package job tracks server-side dump and import jobs and waits for them to
// reach a terminal state.
package job

import "time"

// Status is the server-reported state of a sync job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
	StatusExpired Status = "expired"
)

// Terminal reports whether the status will never change again.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed || s == StatusExpired
}

// SyncJob identifies one remote dump or restore operation. It is created by a
// request call, mutated only by polling responses, and discarded once the
// artifact has been retrieved or the job errors.
type SyncJob struct {
	ID          string    `json:"uuid"`
	Environment string    `json:"environment"`
	Prefix      string    `json:"prefix"`
	Status      Status    `json:"status"`
	DownloadURL string    `json:"download_url,omitempty"`
	UploadURL   string    `json:"upload_url,omitempty"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
