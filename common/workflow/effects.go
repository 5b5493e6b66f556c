package workflow

import (
	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/sequence"
)

// effect is what entering a state produces besides the status change
type effect struct {
	documentType string
	prefix       func(e *models.Entity) string
}

type effectKey struct {
	kind   models.Kind
	target models.State
}

func fixedPrefix(p string) func(*models.Entity) string {
	return func(*models.Entity) string { return p }
}

// notificationPrefix picks SEC19 for the final declaration: either a sec19
// notification or the second publish of a sec11 notification.
func notificationPrefix(e *models.Entity) string {
	if e.Type == string(models.NotificationSec19) || e.HasEntered(models.StateObjectionResolved) {
		return sequence.PrefixSEC19
	}
	return sequence.PrefixSEC11
}

var effects = map[effectKey]effect{
	{models.KindLandNotification, models.StatePublished}: {
		documentType: models.DocNotification,
		prefix:       notificationPrefix,
	},
	{models.KindAward, models.StateIssued}: {
		documentType: models.DocAwardOrder,
		prefix:       fixedPrefix(sequence.PrefixAward),
	},
	{models.KindPossession, models.StateCertificateIssued}: {
		documentType: models.DocPossessionCertificate,
		prefix:       fixedPrefix(sequence.PrefixPoss),
	},
	{models.KindSIA, models.StateReportGenerated}: {
		documentType: models.DocSIAReport,
		prefix:       fixedPrefix(sequence.PrefixSIA),
	},
}

// effectFor returns the side effect of entering target, if any
func effectFor(kind models.Kind, target models.State) (effect, bool) {
	ef, ok := effects[effectKey{kind, target}]
	return ef, ok
}

// DocumentTypeFor returns the document issued when kind enters target
func DocumentTypeFor(kind models.Kind, target models.State) (string, bool) {
	ef, ok := effectFor(kind, target)
	return ef.documentType, ok
}
