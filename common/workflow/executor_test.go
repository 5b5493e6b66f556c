package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/integrity"
	"github.com/landrecords/portal/common/logger"
	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/render"
	"github.com/landrecords/portal/common/statemachine"
	"github.com/landrecords/portal/common/store/memory"
	"github.com/landrecords/portal/common/workflow"
	"github.com/landrecords/portal/common/workflow/mocks"
)

const (
	adminID   = "admin-1"
	legalID   = "legal-1"
	financeID = "fin-1"
	caseID    = "case-1"
	citizenID = "citizen-1"
)

// tickingClock advances one second per reading so every render is distinct
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	sealer   *integrity.Sealer
	notifier *mocks.MockNotifier
	exec     *workflow.Executor
}

func newFixture(t *testing.T, renderer workflow.Renderer, sealer workflow.Sealer) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		ctx:      context.Background(),
		store:    memory.New(),
		sealer:   integrity.NewSealer(t.TempDir(), "https://portal.example", nil),
		notifier: mocks.NewMockNotifier(ctrl),
	}
	if renderer == nil {
		renderer = render.NewJSONRenderer()
	}
	if sealer == nil {
		sealer = f.sealer
	}

	for id, role := range map[string]models.Role{
		adminID:   models.RoleAdmin,
		legalID:   models.RoleLegalOfficer,
		financeID: models.RoleFinanceOfficer,
		caseID:    models.RoleCaseOfficer,
		citizenID: models.RoleCitizen,
	} {
		require.NoError(t, f.store.UpsertUser(f.ctx, models.User{ID: id, Name: id, Role: role}))
	}

	clock := &tickingClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	f.exec = workflow.NewExecutor(f.store, statemachine.Default(), renderer, sealer, f.notifier, logger.Discard(),
		workflow.WithClock(clock.Now))
	return f
}

func (f *fixture) quietNotifier() {
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

// place inserts an entity directly at status
func (f *fixture) place(t *testing.T, kind models.Kind, status models.State, typ string) *models.Entity {
	t.Helper()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &models.Entity{
		ID:             uuid.New(),
		Kind:           kind,
		Status:         status,
		Type:           typ,
		StateEnteredAt: map[models.State]time.Time{status: now},
		Version:        1,
		CreatedBy:      caseID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.store.InTx(f.ctx, func(ctx context.Context, tx workflow.Tx) error {
		return tx.CreateEntity(ctx, e)
	}))
	return e
}

func (f *fixture) move(t *testing.T, e *models.Entity, target models.State, actor string) *workflow.Result {
	t.Helper()
	res, err := f.exec.Transition(f.ctx, workflow.TransitionRequest{Kind: e.Kind, EntityID: e.ID, Target: target, ActorID: actor})
	require.NoError(t, err, "%s -> %s", e.Kind, target)
	return res
}

func (f *fixture) status(t *testing.T, e *models.Entity) models.State {
	t.Helper()
	got, err := f.store.GetEntity(f.ctx, e.Kind, e.ID)
	require.NoError(t, err)
	return got.Status
}

func TestLegalReviewRequiresLegalOfficer(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.quietNotifier()

	n, err := f.exec.Create(f.ctx, workflow.CreateRequest{Kind: models.KindLandNotification, Type: "sec11", ActorID: caseID})
	require.NoError(t, err)
	assert.Equal(t, models.StateDraft, n.Status)

	_, err = f.exec.Transition(f.ctx, workflow.TransitionRequest{
		Kind: models.KindLandNotification, EntityID: n.ID, Target: models.StateLegalReview, ActorID: caseID,
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
	assert.Equal(t, models.StateDraft, f.status(t, n))

	res := f.move(t, n, models.StateLegalReview, legalID)
	assert.Equal(t, models.StateLegalReview, res.Entity.Status)
	assert.Equal(t, models.StateLegalReview, f.status(t, n))
	require.NotNil(t, res.Record.ActorRole)
	assert.Equal(t, models.RoleLegalOfficer, *res.Record.ActorRole)
}

func TestGateEdgeCases(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.quietNotifier()

	for _, actor := range []string{"", "ghost"} {
		a := f.place(t, models.KindAward, models.StateDraft, "")
		_, err := f.exec.Transition(f.ctx, workflow.TransitionRequest{
			Kind: models.KindAward, EntityID: a.ID, Target: models.StateFinReview, ActorID: actor,
		})
		assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized), "actor %q", actor)
	}

	a := f.place(t, models.KindAward, models.StateDraft, "")
	f.move(t, a, models.StateFinReview, adminID)

	// ungated targets need no known actor
	p := f.place(t, models.KindPossession, models.StateScheduled, "")
	f.move(t, p, models.StateInProgress, "ghost")
}

func TestUndeclaredTransitionsLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.quietNotifier()
	reg := statemachine.Default()

	for _, kind := range reg.Kinds() {
		def, err := reg.Definition(kind)
		require.NoError(t, err)
		for _, from := range def.States {
			for _, to := range def.States {
				if reg.CanTransition(kind, from, to) {
					continue
				}
				e := f.place(t, kind, from, "sec11")
				_, err := f.exec.Transition(f.ctx, workflow.TransitionRequest{Kind: kind, EntityID: e.ID, Target: to, ActorID: adminID})
				assert.Truef(t, apperr.HasCode(err, apperr.CodeInvalidTransition), "%s %s->%s: %v", kind, from, to, err)
				assert.Equal(t, from, f.status(t, e))
			}
		}
	}
}

func TestUnknownEntity(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, err := f.exec.Transition(f.ctx, workflow.TransitionRequest{
		Kind: models.KindAward, EntityID: uuid.New(), Target: models.StateFinReview, ActorID: adminID,
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	_, err = f.exec.Transition(f.ctx, workflow.TransitionRequest{Kind: "deed", EntityID: uuid.New(), Target: "x"})
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

func openWindow(t *testing.T, f *fixture) *models.Entity {
	t.Helper()
	n, err := f.exec.Create(f.ctx, workflow.CreateRequest{Kind: models.KindLandNotification, Type: "sec11", ActorID: caseID})
	require.NoError(t, err)
	f.move(t, n, models.StateLegalReview, legalID)
	f.move(t, n, models.StateApproved, legalID)
	f.move(t, n, models.StatePublished, caseID)
	f.move(t, n, models.StateObjectionWindowOpen, caseID)
	return n
}

func TestObjectionGate(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.quietNotifier()
	n := openWindow(t, f)

	obj, err := f.exec.FileObjection(f.ctx, workflow.FileObjectionRequest{
		NotificationID: n.ID, ParcelID: "SY-12/4", Grounds: "boundary dispute", ActorID: citizenID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StateReceived, obj.Status)

	_, err = f.exec.Transition(f.ctx, workflow.TransitionRequest{
		Kind: models.KindLandNotification, EntityID: n.ID, Target: models.StateObjectionResolved, ActorID: legalID,
	})
	require.True(t, apperr.HasCode(err, apperr.CodeObjectionsPending), "%v", err)
	details := apperr.DetailsOf(err)
	assert.Equal(t, 1, details["count"])
	assert.Equal(t, []string{obj.ID.String()}, details["objection_ids"])
	assert.Equal(t, models.StateObjectionWindowOpen, f.status(t, n))

	objEntity := &models.Entity{ID: obj.ID, Kind: models.KindObjection}
	f.move(t, objEntity, models.StateUnderReview, caseID)

	_, err = f.exec.Transition(f.ctx, workflow.TransitionRequest{
		Kind: models.KindObjection, EntityID: obj.ID, Target: models.StateResolved, ActorID: caseID,
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
	f.move(t, objEntity, models.StateResolved, legalID)

	res := f.move(t, n, models.StateObjectionResolved, legalID)
	assert.Equal(t, models.StateObjectionResolved, res.Entity.Status)
}

func TestRejectedObjectionsDoNotBlock(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.quietNotifier()
	n := openWindow(t, f)

	obj, err := f.exec.FileObjection(f.ctx, workflow.FileObjectionRequest{NotificationID: n.ID, ParcelID: "SY-1", ActorID: citizenID})
	require.NoError(t, err)
	f.move(t, &models.Entity{ID: obj.ID, Kind: models.KindObjection}, models.StateRejected, legalID)

	f.move(t, n, models.StateObjectionResolved, legalID)
}

func TestFileObjectionOutsideWindow(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.quietNotifier()
	n := f.place(t, models.KindLandNotification, models.StateApproved, "sec11")

	_, err := f.exec.FileObjection(f.ctx, workflow.FileObjectionRequest{NotificationID: n.ID, ParcelID: "SY-1", ActorID: citizenID})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition))

	_, err = f.exec.FileObjection(f.ctx, workflow.FileObjectionRequest{NotificationID: uuid.New(), ParcelID: "SY-1", ActorID: citizenID})
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	_, err = f.exec.FileObjection(f.ctx, workflow.FileObjectionRequest{NotificationID: n.ID, ActorID: citizenID})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
}

func TestNotificationReferenceNumbers(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.quietNotifier()
	n := openWindow(t, f)

	got, err := f.store.GetEntity(f.ctx, n.Kind, n.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReferenceNo)
	assert.Equal(t, "SEC11-2025-001", *got.ReferenceNo)
	require.NotNil(t, got.Document)
	assert.Equal(t, models.DocNotification, got.Document.DocumentType)

	f.move(t, n, models.StateObjectionResolved, legalID)
	res := f.move(t, n, models.StatePublished, caseID)
	assert.Equal(t, "SEC19-2025-001", *res.Entity.ReferenceNo)

	next, err := f.exec.NextStates(f.ctx, n.Kind, n.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.State{models.StateClosed}, next)
	f.move(t, n, models.StateClosed, caseID)

	// a sec19 notification publishes once and then closes
	s19, err := f.exec.Create(f.ctx, workflow.CreateRequest{Kind: models.KindLandNotification, Type: "sec19", ActorID: caseID})
	require.NoError(t, err)
	f.move(t, s19, models.StateLegalReview, legalID)
	f.move(t, s19, models.StateApproved, legalID)
	res = f.move(t, s19, models.StatePublished, caseID)
	assert.Equal(t, "SEC19-2025-002", *res.Entity.ReferenceNo)

	_, err = f.exec.Transition(f.ctx, workflow.TransitionRequest{
		Kind: s19.Kind, EntityID: s19.ID, Target: models.StateObjectionWindowOpen, ActorID: caseID,
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition))
}

func TestAwardIssueSealsDocument(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.quietNotifier()
	a := f.place(t, models.KindAward, models.StateFinReview, "")

	res := f.move(t, a, models.StateIssued, financeID)
	require.NotNil(t, res.Document)
	assert.Equal(t, models.DocAwardOrder, res.Document.DocumentType)
	assert.Equal(t, "AWARD-2025-001", *res.Document.ReferenceNo)
	assert.Equal(t, res.Document.Hash, *res.Record.DocumentHash)
	assert.Equal(t, "https://portal.example/verify/award_order/"+res.Document.Hash, *res.Document.QRVerificationURL)

	ok, err := integrity.Verify(res.Document.FilePath, res.Document.Hash)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := f.store.GetDocument(f.ctx, models.DocAwardOrder, res.Document.Hash)
	require.NoError(t, err)
	assert.Equal(t, a.ID, stored.EntityID)

	assert.Contains(t, string(res.Record.Patch), `"status":"issued"`)
	assert.Equal(t, int64(2), res.Entity.Version)
}

func TestRenderFailureLeavesAwardInReview(t *testing.T) {
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)
	f := newFixture(t, renderer, nil)
	f.quietNotifier()
	a := f.place(t, models.KindAward, models.StateFinReview, "")

	renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return(nil, errors.New("template missing"))
	_, err := f.exec.Transition(f.ctx, workflow.TransitionRequest{
		Kind: models.KindAward, EntityID: a.ID, Target: models.StateIssued, ActorID: financeID,
	})
	require.Error(t, err)
	assert.Equal(t, models.StateFinReview, f.status(t, a))

	recs, err := f.exec.History(f.ctx, a.Kind, a.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)

	// the failed attempt did not consume a reference number
	renderer.EXPECT().Render(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, req workflow.RenderRequest) (*workflow.Rendered, error) {
			assert.Equal(t, "AWARD-2025-001", req.ReferenceNo)
			assert.Equal(t, models.StateIssued, req.Entity.Status)
			return &workflow.Rendered{Data: []byte("award order"), MediaType: "application/pdf"}, nil
		})
	res := f.move(t, a, models.StateIssued, financeID)
	assert.Equal(t, "AWARD-2025-001", *res.Entity.ReferenceNo)
}

func TestSealMismatchAbortsTransition(t *testing.T) {
	ctrl := gomock.NewController(t)
	sealer := mocks.NewMockSealer(ctrl)
	f := newFixture(t, nil, sealer)
	f.quietNotifier()
	p := f.place(t, models.KindPossession, models.StateEvidenceCaptured, "")

	sealer.EXPECT().SealAndStore(gomock.Any(), models.DocPossessionCertificate, render.MediaType, gomock.Any()).
		Return(nil, apperr.New(apperr.CodeIntegrityMismatch, "re-read mismatch"))

	_, err := f.exec.Transition(f.ctx, workflow.TransitionRequest{
		Kind: p.Kind, EntityID: p.ID, Target: models.StateCertificateIssued, ActorID: caseID,
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeIntegrityMismatch))
	assert.Equal(t, models.StateEvidenceCaptured, f.status(t, p))
}

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t, nil, nil)
	p := f.place(t, models.KindPossession, models.StateScheduled, "")

	var mu sync.Mutex
	var recipients []string
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, n workflow.Notification) error {
			mu.Lock()
			defer mu.Unlock()
			recipients = append(recipients, n.UserID)
			assert.Equal(t, workflow.EventTransitioned, n.Event)
			assert.Equal(t, models.StateInProgress, n.To)
			return errors.New("broker down")
		}).Times(2)

	res := f.move(t, p, models.StateInProgress, financeID)
	assert.Equal(t, models.StateInProgress, res.Entity.Status)
	assert.ElementsMatch(t, []string{caseID, financeID}, recipients)
}

func TestNotifyDeduplicatesCreatorAndActor(t *testing.T) {
	f := newFixture(t, nil, nil)
	p := f.place(t, models.KindPossession, models.StateScheduled, "")

	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	f.move(t, p, models.StateInProgress, caseID)
}

func TestConcurrentTransitionsOnOneEntity(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.quietNotifier()
	a := f.place(t, models.KindAward, models.StateDraft, "")

	const n = 16
	var mu sync.Mutex
	succeeded := 0
	var eg errgroup.Group
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			_, err := f.exec.Transition(f.ctx, workflow.TransitionRequest{
				Kind: a.Kind, EntityID: a.ID, Target: models.StateFinReview, ActorID: financeID,
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return nil
			}
			if apperr.HasCode(err, apperr.CodeConcurrencyConflict) || apperr.HasCode(err, apperr.CodeInvalidTransition) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, 1, succeeded)

	got, err := f.store.GetEntity(f.ctx, a.Kind, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFinReview, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestReissueSupersedesDocument(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.quietNotifier()
	a := f.place(t, models.KindAward, models.StateFinReview, "")
	first := f.move(t, a, models.StateIssued, financeID)

	_, err := f.exec.Reissue(f.ctx, workflow.ReissueRequest{Kind: a.Kind, EntityID: a.ID, ActorID: caseID})
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))

	res, err := f.exec.Reissue(f.ctx, workflow.ReissueRequest{Kind: a.Kind, EntityID: a.ID, ActorID: financeID})
	require.NoError(t, err)
	assert.NotEqual(t, first.Document.Hash, res.Document.Hash)
	assert.Equal(t, models.StateIssued, res.Entity.Status)
	assert.Equal(t, res.Document.Hash, res.Entity.Document.Hash)
	assert.Equal(t, *first.Document.ReferenceNo, *res.Document.ReferenceNo)

	old, err := f.store.GetDocument(f.ctx, models.DocAwardOrder, first.Document.Hash)
	require.NoError(t, err)
	require.NotNil(t, old.SupersededBy)
	assert.Equal(t, res.Document.Hash, *old.SupersededBy)

	// the superseded artifact is untouched
	ok, err := integrity.Verify(first.Document.FilePath, first.Document.Hash)
	require.NoError(t, err)
	assert.True(t, ok)

	recs, err := f.exec.History(f.ctx, a.Kind, a.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, models.StateIssued, recs[1].FromState)
	assert.Equal(t, models.StateIssued, recs[1].ToState)

	draft := f.place(t, models.KindAward, models.StateDraft, "")
	_, err = f.exec.Reissue(f.ctx, workflow.ReissueRequest{Kind: draft.Kind, EntityID: draft.ID, ActorID: financeID})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.exec.Create(f.ctx, workflow.CreateRequest{Kind: models.KindLandNotification, Type: "sec4", ActorID: caseID})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))

	_, err = f.exec.Create(f.ctx, workflow.CreateRequest{Kind: models.KindAward, Type: "sec11", ActorID: caseID})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))

	_, err = f.exec.Create(f.ctx, workflow.CreateRequest{Kind: models.KindObjection, ActorID: caseID})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))

	_, err = f.exec.Create(f.ctx, workflow.CreateRequest{Kind: models.KindAward})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))

	_, err = f.exec.Create(f.ctx, workflow.CreateRequest{Kind: "deed", ActorID: caseID})
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	p, err := f.exec.Create(f.ctx, workflow.CreateRequest{Kind: models.KindPossession, ActorID: caseID, Attributes: map[string]any{"parcel": "SY-9"}})
	require.NoError(t, err)
	assert.Equal(t, models.StateScheduled, p.Status)
	assert.Equal(t, int64(1), p.Version)
}

func TestMergePatch(t *testing.T) {
	entered := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	before := &models.Entity{
		ID:             uuid.New(),
		Kind:           models.KindSIA,
		Status:         models.StateDraft,
		StateEnteredAt: map[models.State]time.Time{models.StateDraft: entered},
		Version:        1,
	}
	after := before.Clone()
	after.Status = models.StatePublished
	after.StateEnteredAt[models.StatePublished] = entered.Add(time.Hour)
	after.Version = 2

	patch, err := workflow.MergePatch(before, after)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"published","state_entered_at":{"published":"2025-01-01T01:00:00Z"},"version":2}`, string(patch))
}
