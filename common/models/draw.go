package models

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus tracks a scheme application through allotment
type ApplicationStatus string

const (
	ApplicationEligible    ApplicationStatus = "eligible"
	ApplicationAllotted    ApplicationStatus = "allotted"
	ApplicationNotAllotted ApplicationStatus = "not_allotted"
)

// Application is a citizen's application to a property scheme
// Maps to: scheme_application table
type Application struct {
	ID            string            `db:"id" json:"id"`
	SchemeID      string            `db:"scheme_id" json:"scheme_id"`
	ApplicantName string            `db:"applicant_name" json:"applicant_name"`
	Status        ApplicationStatus `db:"status" json:"status"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// ApplicationFilter selects applications for a draw pool
type ApplicationFilter struct {
	SchemeID string
	Status   ApplicationStatus
}

// DrawResult is one applicant's outcome in a draw
// Maps to: draw_result table
type DrawResult struct {
	ApplicationID string `db:"application_id" json:"applicationId"`
	Selected      bool   `db:"selected" json:"selected"`

	// 1..selectedCount for selected applications, 0 otherwise
	DrawSequence int `db:"draw_sequence" json:"drawSequence"`

	AuditHash string `db:"audit_hash" json:"auditHash"`
}

// DrawAudit is the reproducible record of a scheme allotment lottery
// Maps to: draw_audit table
type DrawAudit struct {
	DrawID   uuid.UUID `db:"draw_id" json:"drawId"`
	SchemeID string    `db:"scheme_id" json:"schemeId"`

	// Hex-encoded random seed generated before the shuffle
	RandomSeed string `db:"random_seed" json:"randomSeed"`

	SelectedCount int `db:"selected_count" json:"selectedCount"`
	PoolSize      int `db:"pool_size" json:"poolSize"`

	// Results in shuffled order
	Results []DrawResult `db:"-" json:"results"`

	// Aggregate hash over draw id, scheme id, sorted result hashes and seed
	AuditHash string `db:"audit_hash" json:"auditHash"`

	ReferenceNo *string   `db:"reference_no" json:"referenceNo,omitempty"`
	ConductedBy string    `db:"conducted_by" json:"conductedBy,omitempty"`
	ConductedAt time.Time `db:"conducted_at" json:"conductedAt"`
}

// Selected returns the selected results ordered by draw sequence
func (a *DrawAudit) Selected() []DrawResult {
	out := make([]DrawResult, 0, a.SelectedCount)
	for _, r := range a.Results {
		if r.Selected {
			out = append(out, r)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].DrawSequence < out[j-1].DrawSequence; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
