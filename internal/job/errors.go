package job

import "fmt"

// InvalidStateError is returned when a lifecycle action is attempted on a job
// whose current status does not permit it, e.g. starting a job twice.
type InvalidStateError struct {
	JobID         string
	CurrentStatus string
	Action        string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s job %s in status %q", e.Action, e.JobID, e.CurrentStatus)
}
