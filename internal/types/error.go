package types

import "fmt"

// CustomError carries the HTTP status and machine-readable type through the
// fiber error handler into the JSON envelope.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}
