package harvest

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind labels a per-document failure. The set is closed: downstream
// diagnostics aggregate on these exact values.
type Kind string

// Failure taxonomy.
const (
	KindHTTPError        Kind = "HTTPError"
	KindTimeout          Kind = "Timeout"
	KindRequestException Kind = "RequestException"
	KindExtractionError  Kind = "ExtractionError"
	KindUnknownError     Kind = "UnknownError"
)

// DocumentError is a failure scoped to one document. It never escapes the
// worker; it is converted into an error-variant Record and the pool moves on.
type DocumentError struct {
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *DocumentError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ClassifyFetch maps a completed fetch attempt (after the retry budget is
// spent) onto the taxonomy. A nil return means the page is usable.
func ClassifyFetch(page Page, err error) *DocumentError {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &DocumentError{Kind: KindTimeout, Message: "request timeout"}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &DocumentError{Kind: KindTimeout, Message: "request timeout"}
		}
		return &DocumentError{Kind: KindRequestException, Message: err.Error()}
	}
	if page.StatusCode < 200 || page.StatusCode >= 300 {
		return &DocumentError{
			Kind:       KindHTTPError,
			StatusCode: page.StatusCode,
			Message:    fmt.Sprintf("HTTP %d", page.StatusCode),
		}
	}
	return nil
}

// ExtractionFailure wraps a parser error that could not be reduced to a
// Record.
func ExtractionFailure(err error) *DocumentError {
	return &DocumentError{Kind: KindExtractionError, Message: err.Error()}
}

// UnknownFailure is the catch-all for anything outside the taxonomy; the
// caller is expected to log the full detail separately.
func UnknownFailure(detail string) *DocumentError {
	return &DocumentError{Kind: KindUnknownError, Message: detail}
}
