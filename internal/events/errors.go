package events

import (
	"fmt"
	"time"
)

// ValidationError reports a malformed inbound payload. The event is rejected
// and never retried; the caller must resubmit a corrected payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ClockSkewError reports a timestamp implausibly far in the future.
type ClockSkewError struct {
	OccurredAt time.Time
	Limit      time.Duration
}

func (e *ClockSkewError) Error() string {
	return fmt.Sprintf("timestamp %s is more than %s in the future", e.OccurredAt.Format(time.RFC3339), e.Limit)
}
