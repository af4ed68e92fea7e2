package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	networkErrorMessage  = "We could not reach the clinic right now. Please check your connection and try again."
	badResponseMessage   = "The clinic returned an unexpected response. Please try again."
	maxLoggedBodyLength  = 300
	maxResponseBytes     = 1 << 20
	statusTransportError = 0
)

// APIError is the only error shape the gateway returns. StatusCode is 0 when
// no HTTP response was received (network failure, timeout, cancellation).
type APIError struct {
	StatusCode int
	Message    string
	Details    map[string]string
}

func (e *APIError) Error() string {
	if e.StatusCode == statusTransportError {
		return fmt.Sprintf("clinic api: %s", e.Message)
	}
	return fmt.Sprintf("clinic api returned %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether repeating the same call may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == statusTransportError || e.StatusCode >= 500
}

// AsAPIError extracts an *APIError from err, wrapping anything else as a
// transport failure so callers always get the normalized shape.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{StatusCode: statusTransportError, Message: networkErrorMessage}
}

func transportError() *APIError {
	return &APIError{StatusCode: statusTransportError, Message: networkErrorMessage}
}

type errorBody struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
	Details json.RawMessage `json:"details"`
}

// normalizeError turns a non-2xx response into an APIError, pulling the
// message and any field errors out of the common body shapes the clinic API
// uses: {"message": "..."}, {"message": ["..."]}, {"errors": {...}} and
// {"errors": [{"field": "...", "message": "..."}]}.
func normalizeError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var parsed errorBody
	if err := json.Unmarshal(bytes.TrimSpace(body), &parsed); err == nil {
		apiErr.Message = parseMessage(parsed.Message)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(parsed.Error)
		}
		details := parseFieldErrors(parsed.Errors)
		for k, v := range parseFieldErrors(parsed.Details) {
			if details == nil {
				details = make(map[string]string)
			}
			details[k] = v
		}
		apiErr.Details = details
	}

	switch {
	case status >= 500:
		apiErr.Message = networkErrorMessage
	case apiErr.Message == "":
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func parseMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.TrimSpace(strings.Join(list, "; "))
	}
	return ""
}

type fieldError struct {
	Field    string `json:"field"`
	Path     string `json:"path"`
	Property string `json:"property"`
	Message  string `json:"message"`
	Msg      string `json:"msg"`
}

func (f fieldError) name() string {
	switch {
	case f.Field != "":
		return f.Field
	case f.Path != "":
		return f.Path
	default:
		return f.Property
	}
}

func (f fieldError) text() string {
	if f.Message != "" {
		return f.Message
	}
	return f.Msg
}

func parseFieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	out := make(map[string]string)

	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err == nil {
		for k, v := range flat {
			out[k] = v
		}
		return nonEmpty(out)
	}

	var multi map[string][]string
	if err := json.Unmarshal(raw, &multi); err == nil {
		for k, v := range multi {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
		return nonEmpty(out)
	}

	var list []fieldError
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, fe := range list {
			if name := fe.name(); name != "" {
				if _, seen := out[name]; !seen {
					out[name] = fe.text()
				}
			}
		}
	}
	return nonEmpty(out)
}

func nonEmpty(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}

// truncate cuts b for logging without splitting a UTF-8 sequence.
func truncate(b []byte) string {
	if len(b) <= maxLoggedBodyLength {
		return string(b)
	}
	n := maxLoggedBodyLength
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n])
}
