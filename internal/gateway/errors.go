package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Static errors.
var (
	ErrCloneNameEmpty = errors.New("clone name cannot be empty")
	ErrCloneNoFiles   = errors.New("clone request requires at least one audio file")
	ErrTextEmpty      = errors.New("text cannot be empty")
	ErrEmptyAudio     = errors.New("received empty audio data")
)

// FallbackErrorMessage is shown when a failure carries no identifiable
// message of its own.
const FallbackErrorMessage = "An unexpected error occurred"

// errorBodyLimit caps how much of an error response body is read while
// looking for a structured detail/message payload.
const errorBodyLimit = 64 * 1024

// APIError is a non-2xx response from the service. Detail and Message are
// populated from the JSON body when the service provides one.
type APIError struct {
	StatusCode int    `json:"-"`
	Detail     string `json:"detail"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("service returned %d: %s", e.StatusCode, e.Detail)
	case e.Message != "":
		return fmt.Sprintf("service returned %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("service returned %d", e.StatusCode)
	}
}

// newAPIError builds an *APIError from a non-2xx response, decoding the
// optional structured body. Decode failures are ignored; the status code
// alone is still diagnostic.
func newAPIError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Detail:     "",
		Message:    "",
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if err == nil && len(body) > 0 {
		_ = json.Unmarshal(body, apiErr)
	}

	return apiErr
}

// HumanizeError reduces an arbitrary failure to a single human-readable
// message. The fallback order is load-bearing: a server-supplied detail
// field wins, then a server-supplied message field, then the underlying
// error's own text, then the fixed fallback string.
func HumanizeError(err error) string {
	if err == nil {
		return FallbackErrorMessage
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}

		if apiErr.Message != "" {
			return apiErr.Message
		}

		return FallbackErrorMessage
	}

	if msg := err.Error(); msg != "" {
		return msg
	}

	return FallbackErrorMessage
}
