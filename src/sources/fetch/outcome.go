package fetch

// Status is the terminal state of one source fetch.
type Status string

const (
	StatusOk     Status = "Ok"
	StatusFailed Status = "Failed"
)

// DocumentError records a single document that could not be used. The
// source as a whole can still succeed.
type DocumentError struct {
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
}

// Outcome is what an adapter reports once it stops yielding.
type Outcome struct {
	Status         Status          `json:"status"`
	Count          int             `json:"count"`
	Reason         string          `json:"reason,omitempty"`
	DocumentErrors []DocumentError `json:"document_errors,omitempty"`
}

// Ok builds a successful outcome.
func Ok(count int, docErrs []DocumentError) Outcome {
	return Outcome{Status: StatusOk, Count: count, DocumentErrors: docErrs}
}

// Failed builds a failed outcome from the error that stopped the fetch.
func Failed(count int, err error) Outcome {
	return Outcome{Status: StatusFailed, Count: count, Reason: err.Error()}
}
