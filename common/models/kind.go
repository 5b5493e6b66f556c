package models

import "fmt"

// Kind identifies a workflow entity kind
type Kind string

const (
	KindSIA              Kind = "sia"
	KindLandNotification Kind = "land_notification"
	KindAward            Kind = "award"
	KindPossession       Kind = "possession"
	KindObjection        Kind = "objection"
)

// Kinds lists every declared kind in a stable order
var Kinds = []Kind{KindSIA, KindLandNotification, KindAward, KindPossession, KindObjection}

// ParseKind validates a kind received from the route layer
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind: %q", s)
}

// State is a workflow status. State names are shared across kinds; the
// registry decides which names are members of which kind.
type State string

const (
	StateDraft            State = "draft"
	StatePublished        State = "published"
	StateHearingScheduled State = "hearing_scheduled"
	StateHearingCompleted State = "hearing_completed"
	StateReportGenerated  State = "report_generated"
	StateClosed           State = "closed"

	StateLegalReview         State = "legal_review"
	StateApproved            State = "approved"
	StateObjectionWindowOpen State = "objection_window_open"
	StateObjectionResolved   State = "objection_resolved"

	StateFinReview State = "fin_review"
	StateIssued    State = "issued"
	StatePaid      State = "paid"

	StateScheduled         State = "scheduled"
	StateInProgress        State = "in_progress"
	StateEvidenceCaptured  State = "evidence_captured"
	StateCertificateIssued State = "certificate_issued"
	StateRegistryUpdated   State = "registry_updated"

	StateReceived    State = "received"
	StateUnderReview State = "under_review"
	StateResolved    State = "resolved"
	StateRejected    State = "rejected"
)

// NotificationType distinguishes statutory notification sections
type NotificationType string

const (
	NotificationSec11 NotificationType = "sec11"
	NotificationSec19 NotificationType = "sec19"
)

// Valid reports whether t is a known notification section
func (t NotificationType) Valid() bool {
	return t == NotificationSec11 || t == NotificationSec19
}

// Role is an actor's portal role
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleLegalOfficer   Role = "legal_officer"
	RoleFinanceOfficer Role = "finance_officer"
	RoleCaseOfficer    Role = "case_officer"
	RoleFieldOfficer   Role = "field_officer"
	RoleCitizen        Role = "citizen"
)

// Roles lists every portal role
var Roles = []Role{RoleAdmin, RoleLegalOfficer, RoleFinanceOfficer, RoleCaseOfficer, RoleFieldOfficer, RoleCitizen}

// Valid reports whether r is a declared role
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}
