package provisioning

import "errors"

// Report summarizes one reconciliation pass. It is returned to the caller
// that saved the settings and never turns into a save failure.
type Report struct {
	// Skipped is set when a prerequisite failed and no operation ran.
	Skipped bool `json:"skipped"`

	SharedLink       string   `json:"shared_link,omitempty"`
	GoalsCreated     []int64  `json:"goals_created,omitempty"` // IDs returned by get-or-create calls
	GoalsDeleted     []int64  `json:"goals_deleted,omitempty"`
	FunnelID         int64    `json:"funnel_id,omitempty"`
	CustomProperties []string `json:"custom_properties,omitempty"`

	Errors   []OperationError `json:"errors,omitempty"`
	Warnings []OperationError `json:"warnings,omitempty"`
}

// OperationError records a failed or degraded operation.
type OperationError struct {
	Operation string `json:"operation"`
	Message   string `json:"message"`
	err       error
}

func (e OperationError) Error() string { return e.Operation + ": " + e.Message }

func (e OperationError) Unwrap() error { return e.err }

func (r *Report) fail(op string, err error) {
	r.Errors = append(r.Errors, OperationError{Operation: op, Message: err.Error(), err: err})
}

func (r *Report) warn(op string, err error) {
	r.Warnings = append(r.Warnings, OperationError{Operation: op, Message: err.Error(), err: err})
}

// Err joins all recorded errors, or returns nil.
func (r *Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Failed reports whether the named operation recorded an error.
func (r *Report) Failed(op string) bool {
	for _, e := range r.Errors {
		if e.Operation == op {
			return true
		}
	}
	return false
}
