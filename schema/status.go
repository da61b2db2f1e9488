package schema

// Status is the lifecycle status of a job as reported to clients.
type Status string

const (
	// StatusInitializing means the job was received and queued.
	StatusInitializing Status = "INITIALIZING"
	// StatusDone means the job finished and a result record exists.
	StatusDone Status = "DONE"
	// StatusError means the job was rejected or failed during execution.
	StatusError Status = "ERROR"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// StatusRecord is the per-job status message. Detail and ErrorMessage are
// append-only: every processing stage adds to them, preserving the full
// audit trail across retried calls.
type StatusRecord struct {
	JobID        string `json:"job_id"`
	Status       Status `json:"status"`
	Detail       string `json:"detail"`
	ErrorMessage string `json:"error_message"`
}

// NewStatusRecord returns the initial status record for a freshly
// submitted job.
func NewStatusRecord(jobID string) StatusRecord {
	return StatusRecord{
		JobID:        jobID,
		Status:       StatusInitializing,
		Detail:       "Got your json.",
		ErrorMessage: "None",
	}
}

// AppendDetail adds a message to the detail trail.
func (s *StatusRecord) AppendDetail(msg string) {
	s.Detail += "; " + msg
}

// AppendError adds a message to both the detail and error trails.
func (s *StatusRecord) AppendError(msg string) {
	s.Detail += "; " + msg
	s.ErrorMessage += "; " + msg
}
