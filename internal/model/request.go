package model

import "time"

// StatusAccepted is the admission status returned for accepted submissions.
const StatusAccepted = "accepted"

// BatchRequest is the body of a batch submission. Items stay untyped until
// each one is validated on its own.
type BatchRequest struct {
	Events []any `json:"events"`
}

// EventAccepted is returned for an admitted single event.
type EventAccepted struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

// FieldError names a field that failed validation and why.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// InvalidEvent is a rejected batch item.
type InvalidEvent struct {
	Index  int          `json:"index"`
	Event  any          `json:"event"`
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

// BatchResult summarizes a batch submission.
type BatchResult struct {
	Status         string         `json:"status"`
	ProcessedCount int            `json:"processed_count"`
	InvalidCount   int            `json:"invalid_count"`
	InvalidEvents  []InvalidEvent `json:"invalid_events,omitempty"`
}

// ErrorResponse is the body of a rejected request.
type ErrorResponse struct {
	Error  string       `json:"error"`
	Detail string       `json:"detail,omitempty"`
	Fields []FieldError `json:"fields,omitempty"`
}

// Health is the liveness probe payload.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DeadLetter is an accepted event whose background publish failed.
type DeadLetter struct {
	ID         string
	EventID    string
	UserID     string
	EventType  Kind
	Payload    []byte
	Reason     string
	FailedAt   time.Time
	ReplayedAt *time.Time
}

// DeadLetterCursor is a position in the (failed_at, id) order of dead
// letters. The zero value is before every record.
type DeadLetterCursor struct {
	FailedAt time.Time
	ID       string
}

// After returns the cursor just past dl.
func (dl DeadLetter) After() DeadLetterCursor {
	return DeadLetterCursor{FailedAt: dl.FailedAt, ID: dl.ID}
}
