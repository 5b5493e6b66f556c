package statemachine

import "github.com/landrecords/portal/common/models"

// Guards for the two publish edges of a land notification. The state name
// `published` is reused for the sec11 and the final sec19 publish, so the
// outgoing edges depend on the notification type and on whether objections
// have already been resolved.
const (
	guardSec11FirstPublish = `entity.type == "sec11" && !("objection_resolved" in entity.history)`
	guardFinalPublish      = `entity.type == "sec19" || "objection_resolved" in entity.history`
)

// SIA returns the social impact assessment graph
func SIA() *Definition {
	return &Definition{
		Kind: models.KindSIA,
		States: []models.State{
			models.StateDraft,
			models.StatePublished,
			models.StateHearingScheduled,
			models.StateHearingCompleted,
			models.StateReportGenerated,
			models.StateClosed,
		},
		Edges: []Edge{
			{From: models.StateDraft, To: models.StatePublished},
			{From: models.StatePublished, To: models.StateHearingScheduled},
			{From: models.StateHearingScheduled, To: models.StateHearingCompleted},
			{From: models.StateHearingCompleted, To: models.StateReportGenerated},
			{From: models.StateReportGenerated, To: models.StateClosed},
		},
	}
}

// LandNotification returns the sec11/sec19 notification graph
func LandNotification() *Definition {
	return &Definition{
		Kind: models.KindLandNotification,
		States: []models.State{
			models.StateDraft,
			models.StateLegalReview,
			models.StateApproved,
			models.StatePublished,
			models.StateObjectionWindowOpen,
			models.StateObjectionResolved,
			models.StateClosed,
		},
		Edges: []Edge{
			{From: models.StateDraft, To: models.StateLegalReview},
			{From: models.StateLegalReview, To: models.StateApproved},
			{From: models.StateLegalReview, To: models.StateDraft},
			{From: models.StateApproved, To: models.StatePublished},
			{From: models.StatePublished, To: models.StateObjectionWindowOpen, Guard: guardSec11FirstPublish},
			{From: models.StatePublished, To: models.StateClosed, Guard: guardFinalPublish},
			{From: models.StateObjectionWindowOpen, To: models.StateObjectionResolved},
			{From: models.StateObjectionResolved, To: models.StatePublished},
		},
		GatedBy: map[models.State][]models.Role{
			models.StateLegalReview: {models.RoleLegalOfficer},
			models.StateApproved:    {models.RoleLegalOfficer},
		},
	}
}

// Award returns the compensation award graph
func Award() *Definition {
	return &Definition{
		Kind: models.KindAward,
		States: []models.State{
			models.StateDraft,
			models.StateFinReview,
			models.StateIssued,
			models.StatePaid,
			models.StateClosed,
		},
		Edges: []Edge{
			{From: models.StateDraft, To: models.StateFinReview},
			{From: models.StateFinReview, To: models.StateIssued},
			{From: models.StateFinReview, To: models.StateDraft},
			{From: models.StateIssued, To: models.StatePaid},
			{From: models.StatePaid, To: models.StateClosed},
		},
		GatedBy: map[models.State][]models.Role{
			models.StateFinReview: {models.RoleFinanceOfficer},
			models.StateIssued:    {models.RoleFinanceOfficer},
		},
	}
}

// Possession returns the possession handoff graph
func Possession() *Definition {
	return &Definition{
		Kind: models.KindPossession,
		States: []models.State{
			models.StateScheduled,
			models.StateInProgress,
			models.StateEvidenceCaptured,
			models.StateCertificateIssued,
			models.StateRegistryUpdated,
			models.StateClosed,
		},
		Edges: []Edge{
			{From: models.StateScheduled, To: models.StateInProgress},
			{From: models.StateInProgress, To: models.StateEvidenceCaptured},
			{From: models.StateEvidenceCaptured, To: models.StateCertificateIssued},
			{From: models.StateCertificateIssued, To: models.StateRegistryUpdated},
			{From: models.StateRegistryUpdated, To: models.StateClosed},
		},
	}
}

// Objection returns the objection lifecycle graph
func Objection() *Definition {
	return &Definition{
		Kind: models.KindObjection,
		States: []models.State{
			models.StateReceived,
			models.StateUnderReview,
			models.StateResolved,
			models.StateRejected,
		},
		Edges: []Edge{
			{From: models.StateReceived, To: models.StateUnderReview},
			{From: models.StateReceived, To: models.StateRejected},
			{From: models.StateUnderReview, To: models.StateResolved},
			{From: models.StateUnderReview, To: models.StateRejected},
		},
		GatedBy: map[models.State][]models.Role{
			models.StateResolved: {models.RoleLegalOfficer},
			models.StateRejected: {models.RoleLegalOfficer},
		},
	}
}
