package domain

// JobStatus is the lifecycle state of a job
type JobStatus string

// Job status constants
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusRetrying   JobStatus = "retrying"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status ends the job lifecycle
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobKind identifies which orchestrator owns a job
type JobKind string

// Job kind constants
const (
	JobKindTranslation      JobKind = "translation"
	JobKindScheduledPublish JobKind = "scheduled_publish"
	JobKindSync             JobKind = "sync"
)

// Valid reports whether k is a known job kind
func (k JobKind) Valid() bool {
	switch k {
	case JobKindTranslation, JobKindScheduledPublish, JobKindSync:
		return true
	}
	return false
}

// DeliveryStatus is the state of one (event, destination) webhook relationship
type DeliveryStatus string

// Delivery status constants
const (
	DeliveryStatusPending  DeliveryStatus = "pending"
	DeliveryStatusSuccess  DeliveryStatus = "success"
	DeliveryStatusRetrying DeliveryStatus = "retrying"
	DeliveryStatusFailed   DeliveryStatus = "failed"
)

// DestinationKind selects where a scheduled-publish job publishes to
type DestinationKind string

// Destination kind constants
const (
	DestinationInternal DestinationKind = "internal"
	DestinationExternal DestinationKind = "external"
)
