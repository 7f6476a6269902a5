// Package tools exposes user-scoped task operations as Genkit tools.
//
// Each tool call is self-contained: the user id arrives as a tool argument
// and every operation filters by it. Results cross the model boundary as
// JSON-encoded strings so the agent can interpret success, not-found, and
// failure uniformly.
package tools

import (
	"encoding/json"
	"fmt"
)

// Status represents a tool execution outcome.
type Status string

const (
	// StatusSuccess indicates the operation completed.
	StatusSuccess Status = "success"
	// StatusNotFound indicates a title lookup miss. Not-found is a
	// structured result, not a failure: the agent narrates it to the user
	// and the turn continues.
	StatusNotFound Status = "not_found"
	// StatusError indicates a validation or execution failure.
	StatusError Status = "error"
)

// Error codes for Result.Error.
const (
	// ErrCodeValidation indicates malformed tool input.
	ErrCodeValidation = "VALIDATION_FAILED"
	// ErrCodeExecution indicates a storage or execution failure.
	ErrCodeExecution = "EXECUTION_FAILED"
	// ErrCodeNotFound indicates a title lookup miss.
	ErrCodeNotFound = "NOT_FOUND"
)

// Error carries a machine-readable code and a human-readable message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the discriminated outcome of a tool operation. It is held as a
// typed value internally and serialized to the wire format only at the
// model boundary via Wire.
type Result struct {
	Status Status         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
	Error  *Error         `json:"error,omitempty"`
}

// Success builds a successful Result with the given payload.
func Success(data map[string]any) Result {
	return Result{Status: StatusSuccess, Data: data}
}

// NotFound builds a not-found Result with the given message.
func NotFound(message string) Result {
	return Result{
		Status: StatusNotFound,
		Error:  &Error{Code: ErrCodeNotFound, Message: message},
	}
}

// Failure builds an error Result with the given code and message.
func Failure(code, message string) Result {
	return Result{
		Status: StatusError,
		Error:  &Error{Code: code, Message: message},
	}
}

// Wire serializes the Result to the JSON string handed to the model:
// {"success":true,...data} on success, {"success":false,"error":msg}
// otherwise.
func (r Result) Wire() string {
	payload := make(map[string]any, len(r.Data)+2)
	if r.Status == StatusSuccess {
		payload["success"] = true
		for k, v := range r.Data {
			payload[k] = v
		}
	} else {
		payload["success"] = false
		if r.Error != nil {
			payload["error"] = r.Error.Message
		}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		// Only unmarshalable Data values can land here.
		return fmt.Sprintf(`{"success":false,"error":%q}`, "internal serialization failure")
	}
	return string(b)
}
