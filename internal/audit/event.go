// Package audit provides the decision audit trail. Every finished evaluation
// can be recorded asynchronously without touching the decision hot path.
package audit

import (
	"time"
)

// Event is one audit record for a finished evaluation
type Event struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	TenantID      string    `json:"tenantId,omitempty"`
	SubjectID     string    `json:"subjectId,omitempty"`
	Resource      string    `json:"resource"`
	Action        string    `json:"action"`
	Outcome       string    `json:"outcome"`
	Reason        string    `json:"reason"`
	PolicyVersion string    `json:"policyVersion,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
	CacheHit      bool      `json:"cacheHit,omitempty"`
	DurationUS    int64     `json:"durationUs,omitempty"`
}
