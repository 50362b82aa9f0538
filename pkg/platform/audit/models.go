package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers changes to beneficiary records, which the
	// organization must be able to account for.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers changes to who can operate where, such as a
	// branch being switched off.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers background activity useful for debugging,
	// such as reciprocal edges written by propagation.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject is the id of the record acted on (beneficiary or branch).
	Subject string
	Action  string
	// BranchID is the branch the action happened in, empty for organization-wide actions.
	BranchID  string
	Reason    string
	RequestID string
	// ActorID is the token subject of the operator, or the role when headers carry the actor.
	ActorID string
}

type AuditEvent string

const (
	// Beneficiary events
	EventBeneficiaryCreated       AuditEvent = "beneficiary_created"
	EventBeneficiaryUpdated       AuditEvent = "beneficiary_updated"
	EventBeneficiaryReplicated    AuditEvent = "beneficiary_replicated"
	EventReplicationPartialFailed AuditEvent = "replication_partial_failure"
	EventReciprocalEdgeWritten    AuditEvent = "reciprocal_edge_written"

	// Branch events
	EventBranchCreated     AuditEvent = "branch_created"
	EventBranchDeactivated AuditEvent = "branch_deactivated"
	EventBranchReactivated AuditEvent = "branch_reactivated"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventBeneficiaryCreated:       CategoryCompliance,
	EventBeneficiaryUpdated:       CategoryCompliance,
	EventBeneficiaryReplicated:    CategoryCompliance,
	EventReplicationPartialFailed: CategoryCompliance,

	EventBranchDeactivated: CategorySecurity,
	EventBranchReactivated: CategorySecurity,

	EventReciprocalEdgeWritten: CategoryOperations,
	EventBranchCreated:         CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
