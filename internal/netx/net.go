// Package netx has HTTP helpers shared by the remote backends.
package netx

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody caps how much of a failed response is kept for the message.
const maxErrorBody = 4 << 10

// StatusError is returned by CheckResponse for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %s", e.Status)
	}
	return fmt.Sprintf("unexpected status %s; body: %s", e.Status, e.Body)
}

// CheckResponse returns nil for 2xx responses. Otherwise it drains and
// closes the body and returns a *StatusError carrying a trimmed body.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Code:   resp.StatusCode,
		Status: resp.Status,
		Body:   strings.TrimSpace(string(b)),
	}
}

// NewClient returns an *http.Client bounded by timeout. A zero timeout
// means no client-side limit.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
