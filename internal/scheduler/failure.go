package scheduler

import (
	"encoding/json"
	"net/http"
)

// Failure is the structured result of a run aborted by an unexpected failure.
type Failure struct {
	StatusCode int         `json:"statusCode"`
	Body       FailureBody `json:"body"`
}

// FailureBody carries the failure message.
type FailureBody struct {
	Error string `json:"error"`
}

func newFailure(msg string) *Failure {
	return &Failure{StatusCode: http.StatusInternalServerError, Body: FailureBody{Error: msg}}
}

func (f *Failure) Error() string {
	return f.Body.Error
}

// JSON renders the failure for process output.
func (f *Failure) JSON() []byte {
	data, err := json.Marshal(f)
	if err != nil {
		return []byte(`{"statusCode":500}`)
	}
	return data
}
