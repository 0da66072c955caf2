package relay

import (
	"github.com/segmentio/encoding/json"
)

// StatusOK is the status code of a successful query response
const StatusOK = 0

// Result carries the status and human-readable message of a query response
type Result struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Response is the wire shape of a query response
type Response struct {
	Result Result `json:"result"`
}

// FormatResponse encodes a query response. Identical inputs yield
// byte-identical output.
func FormatResponse(status int, message string) ([]byte, error) {
	return json.Marshal(Response{
		Result: Result{
			Status:  status,
			Message: message,
		},
	})
}
