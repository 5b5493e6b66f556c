package statemachine

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/models"
)

func entityAt(kind models.Kind, status models.State, typ string, history ...models.State) *models.Entity {
	e := &models.Entity{Kind: kind, Status: status, Type: typ, StateEnteredAt: map[models.State]time.Time{}}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, s := range history {
		e.StateEnteredAt[s] = base.Add(time.Duration(i) * time.Hour)
	}
	e.StateEnteredAt[status] = base.Add(time.Duration(len(history)) * time.Hour)
	return e
}

func TestDefaultRegistryKinds(t *testing.T) {
	r := Default()
	assert.Equal(t, models.Kinds, r.Kinds())

	initial := map[models.Kind]models.State{
		models.KindSIA:              models.StateDraft,
		models.KindLandNotification: models.StateDraft,
		models.KindAward:            models.StateDraft,
		models.KindPossession:       models.StateScheduled,
		models.KindObjection:        models.StateReceived,
	}
	for kind, want := range initial {
		got, err := r.Initial(kind)
		require.NoError(t, err)
		assert.Equal(t, want, got, kind)
	}
}

func TestValidNextStates(t *testing.T) {
	r := Default()

	tests := []struct {
		kind    models.Kind
		current models.State
		want    []models.State
	}{
		{models.KindSIA, models.StateDraft, []models.State{models.StatePublished}},
		{models.KindSIA, models.StateClosed, []models.State{}},
		{models.KindLandNotification, models.StateLegalReview, []models.State{models.StateDraft, models.StateApproved}},
		{models.KindLandNotification, models.StatePublished, []models.State{models.StateObjectionWindowOpen, models.StateClosed}},
		{models.KindAward, models.StateFinReview, []models.State{models.StateDraft, models.StateIssued}},
		{models.KindPossession, models.StateEvidenceCaptured, []models.State{models.StateCertificateIssued}},
		{models.KindObjection, models.StateReceived, []models.State{models.StateUnderReview, models.StateRejected}},
		{models.KindAward, "bogus", []models.State{}},
		{"bogus", models.StateDraft, []models.State{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+string(tt.current), func(t *testing.T) {
			assert.Equal(t, tt.want, r.ValidNextStates(tt.kind, tt.current))
		})
	}
}

func TestTerminalStates(t *testing.T) {
	r := Default()
	assert.True(t, r.IsTerminal(models.KindSIA, models.StateClosed))
	assert.True(t, r.IsTerminal(models.KindAward, models.StateClosed))
	assert.True(t, r.IsTerminal(models.KindObjection, models.StateResolved))
	assert.True(t, r.IsTerminal(models.KindObjection, models.StateRejected))
	assert.False(t, r.IsTerminal(models.KindObjection, models.StateReceived))
	assert.False(t, r.IsTerminal(models.KindAward, "bogus"))
}

func TestPublishGuards(t *testing.T) {
	r := Default()

	t.Run("sec11 first publish opens the objection window", func(t *testing.T) {
		e := entityAt(models.KindLandNotification, models.StatePublished, "sec11", models.StateDraft)
		next, err := r.ValidNextStatesFor(e)
		require.NoError(t, err)
		assert.Equal(t, []models.State{models.StateObjectionWindowOpen}, next)
		assert.Error(t, r.Allowed(e, models.StateClosed))
	})

	t.Run("sec11 second publish closes", func(t *testing.T) {
		e := entityAt(models.KindLandNotification, models.StatePublished, "sec11",
			models.StateDraft, models.StateObjectionWindowOpen, models.StateObjectionResolved)
		next, err := r.ValidNextStatesFor(e)
		require.NoError(t, err)
		assert.Equal(t, []models.State{models.StateClosed}, next)
		assert.NoError(t, r.Allowed(e, models.StateClosed))
	})

	t.Run("sec19 publish is terminal", func(t *testing.T) {
		e := entityAt(models.KindLandNotification, models.StatePublished, "sec19", models.StateDraft)
		next, err := r.ValidNextStatesFor(e)
		require.NoError(t, err)
		assert.Equal(t, []models.State{models.StateClosed}, next)

		err = r.Allowed(e, models.StateObjectionWindowOpen)
		assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition))
		assert.Contains(t, apperr.DetailsOf(err), "guard")
	})
}

func TestRoleAllowed(t *testing.T) {
	r := Default()

	assert.True(t, r.RoleAllowed(models.KindLandNotification, models.StateLegalReview, models.RoleLegalOfficer))
	assert.True(t, r.RoleAllowed(models.KindLandNotification, models.StateLegalReview, models.RoleAdmin))
	assert.False(t, r.RoleAllowed(models.KindLandNotification, models.StateLegalReview, models.RoleCaseOfficer))
	assert.False(t, r.RoleAllowed(models.KindAward, models.StateIssued, models.RoleLegalOfficer))
	assert.True(t, r.RoleAllowed(models.KindAward, models.StatePaid, models.RoleCitizen))
	assert.Nil(t, r.Gate(models.KindPossession, models.StateInProgress))
}

// Every (from, to) pair that is not a declared edge must be rejected
func TestAllowedRejectsUndeclaredPairs(t *testing.T) {
	r := Default()
	for _, kind := range r.Kinds() {
		def, err := r.Definition(kind)
		require.NoError(t, err)
		for _, from := range def.States {
			for _, to := range def.States {
				e := entityAt(kind, from, "sec11")
				err := r.Allowed(e, to)
				if r.CanTransition(kind, from, to) {
					continue
				}
				assert.Truef(t, apperr.HasCode(err, apperr.CodeInvalidTransition), "%s %s->%s", kind, from, to)
			}
		}
	}
}

func TestAllowedRejectsArbitraryTargets(t *testing.T) {
	r := Default()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("undeclared targets are invalid transitions", prop.ForAll(
		func(kindIdx, fromIdx int, target string) bool {
			kind := models.Kinds[kindIdx]
			def, _ := r.Definition(kind)
			from := def.States[fromIdx%len(def.States)]
			if r.CanTransition(kind, from, models.State(target)) {
				return true
			}
			err := r.Allowed(entityAt(kind, from, "sec19"), models.State(target))
			return apperr.HasCode(err, apperr.CodeInvalidTransition)
		},
		gen.IntRange(0, len(models.Kinds)-1),
		gen.IntRange(0, 100),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestNewRegistryRejectsBadDefinitions(t *testing.T) {
	_, err := NewRegistry(&Definition{Kind: models.KindSIA})
	assert.Error(t, err)

	_, err = NewRegistry(&Definition{
		Kind:   models.KindSIA,
		States: []models.State{models.StateDraft},
		Edges:  []Edge{{From: models.StateDraft, To: models.StateClosed}},
	})
	assert.Error(t, err)

	_, err = NewRegistry(&Definition{
		Kind:   models.KindSIA,
		States: []models.State{models.StateDraft, models.StateClosed},
		Edges:  []Edge{{From: models.StateDraft, To: models.StateClosed, Guard: "entity.type"}},
	})
	assert.Error(t, err, "non-boolean guard")

	_, err = NewRegistry(SIA(), SIA())
	assert.Error(t, err)
}

func TestGuardProgramsAreCached(t *testing.T) {
	r := Default()
	assert.Equal(t, 2, r.guards.size())

	e := entityAt(models.KindLandNotification, models.StatePublished, "sec11")
	for i := 0; i < 3; i++ {
		_, err := r.ValidNextStatesFor(e)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, r.guards.size())
}
