package schema

// ResultRecord is produced when the pipeline finishes a job. It is never
// partially written: either the whole record reaches storage or nothing
// does.
type ResultRecord struct {
	// BackendName is the long backend name. It is stamped on read from the
	// owning backend's configuration and not stored.
	BackendName string `json:"backend_name,omitempty"`

	DisplayName    string             `json:"display_name"`
	BackendVersion string             `json:"backend_version"`
	JobID          string             `json:"job_id"`
	QobjID         *string            `json:"qobj_id"`
	Success        bool               `json:"success"`
	Status         string             `json:"status"`
	Header         map[string]any     `json:"header"`
	Results        []ExperimentResult `json:"results"`
}

// NewResultRecord returns an empty result record for the given job.
func NewResultRecord(displayName, backendVersion, jobID string) ResultRecord {
	return ResultRecord{
		DisplayName:    displayName,
		BackendVersion: backendVersion,
		JobID:          jobID,
		Status:         string(StatusInitializing),
		Header:         map[string]any{},
		Results:        []ExperimentResult{},
	}
}

// ErrorResultRecord returns the record served when a result cannot be
// found for the given job.
func ErrorResultRecord(displayName, jobID string) ResultRecord {
	return ResultRecord{
		DisplayName: displayName,
		JobID:       jobID,
		Success:     false,
		Status:      string(StatusError),
		Header:      map[string]any{},
		Results:     []ExperimentResult{},
	}
}

// NextJob identifies a claimed job and where its payload now lives.
type NextJob struct {
	JobID string `json:"job_id"`
	Path  string `json:"job_json_path"`
}

// NoNextJob is the sentinel returned when the queue is empty.
var NoNextJob = NextJob{JobID: "0", Path: "None"}

// IsNone reports whether the value is the empty-queue sentinel.
func (n NextJob) IsNone() bool {
	return n.Path == "None" || n.Path == ""
}
