// Package audit records the cleaning transformations applied to the dataset.
//
// Every coding rule that rewrites a cell produces an event, so any published
// value can be traced back to the raw cell and the rule that changed it.
// Events are transport-agnostic; sinks (Kafka, memory) fan out behind the
// Publisher.
package audit

import (
	"time"

	id "vaxcov/pkg/domain"
)

// EventCategory classifies audit events by their retention needs.
type EventCategory string

const (
	// CategoryCompliance covers job-level summaries. These make ingest runs
	// accountable and are kept in full, never sampled.
	// Examples: job started, job completed, job failed.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers high-volume row-level detail. These can be
	// sampled with shorter retention; the job diagnostics keep the totals.
	// Examples: coverage filled to zero, status backfilled, record served.
	CategoryOperations EventCategory = "operations"
)

// Event is one audited action over the dataset.
type Event struct {
	Category  EventCategory  `json:"category"`
	Timestamp time.Time      `json:"timestamp"`
	Action    AuditEvent     `json:"action"`
	JobID     string         `json:"job_id,omitempty"`
	Country   id.CountryCode `json:"country_code,omitempty"`
	Year      int            `json:"year,omitempty"`
	Column    string         `json:"column,omitempty"`
	Rule      string         `json:"rule,omitempty"`
	OldValue  string         `json:"old_value,omitempty"`
	NewValue  string         `json:"new_value,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string `json:"request_id,omitempty"`
}

// AuditEvent names an audited action.
type AuditEvent string

const (
	// Cleaning events
	EventCoverageFilled  AuditEvent = "coverage_filled"
	EventCoverageVoided  AuditEvent = "coverage_voided"
	EventStatusRelabeled AuditEvent = "status_relabeled"
	EventRowDropped      AuditEvent = "row_dropped"

	// Ingest job events
	EventIngestStarted   AuditEvent = "ingest_started"
	EventIngestCompleted AuditEvent = "ingest_completed"
	EventIngestFailed    AuditEvent = "ingest_failed"

	// Query events
	EventRecordServed AuditEvent = "record_served"
)

// eventCategories is the source of truth for category routing.
var eventCategories = map[AuditEvent]EventCategory{
	EventCoverageFilled:  CategoryOperations,
	EventCoverageVoided:  CategoryOperations,
	EventStatusRelabeled: CategoryOperations,
	EventRowDropped:      CategoryOperations,
	EventRecordServed:    CategoryOperations,

	EventIngestStarted:   CategoryCompliance,
	EventIngestCompleted: CategoryCompliance,
	EventIngestFailed:    CategoryCompliance,
}

// Category returns the routing category for the action. Unknown actions route
// to compliance so nothing is silently sampled away.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryCompliance
}
