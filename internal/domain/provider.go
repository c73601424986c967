package domain

import (
	"fmt"
	"net/http"
	"time"
)

// MeetingRequest is what the provider needs to host a meeting.
type MeetingRequest struct {
	Topic           string
	Start           time.Time
	Timezone        string
	DurationMinutes int
}

// RemoteMeeting identifies a meeting hosted by the provider.
type RemoteMeeting struct {
	ID      string
	JoinURL string
}

// ProviderResult is the outcome of one provider call. A result is a success
// only when Err is nil and StatusCode is 2xx.
type ProviderResult struct {
	Meeting    RemoteMeeting
	StatusCode int
	Message    string // provider error message, if any
	Err        error
	Duration   time.Duration
}

func (r ProviderResult) IsSuccess() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

func (r ProviderResult) IsNotFound() bool {
	return r.Err == nil && r.StatusCode == http.StatusNotFound
}

// Reason describes a failed result.
func (r ProviderResult) Reason() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	if r.IsSuccess() {
		return ""
	}
	if r.Message != "" {
		return fmt.Sprintf("status %d: %s", r.StatusCode, r.Message)
	}
	return fmt.Sprintf("unexpected status %d", r.StatusCode)
}

// AsError returns nil on success, otherwise an error wrapping ErrProviderFailure.
func (r ProviderResult) AsError() error {
	if r.IsSuccess() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrProviderFailure, r.Reason())
}
