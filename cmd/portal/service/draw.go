package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/draw"
	"github.com/landrecords/portal/common/logger"
	"github.com/landrecords/portal/common/metrics"
	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/sequence"
)

// DrawStore is draw.Store plus application intake
type DrawStore interface {
	draw.Store
	CreateApplication(ctx context.Context, app *models.Application) error
}

// RoleLookup resolves an actor's role
type RoleLookup interface {
	GetUserRole(ctx context.Context, userID string) (models.Role, error)
}

// DrawService runs one allotment draw per scheme over its eligible
// applications.
type DrawService struct {
	store   DrawStore
	roles   RoleLookup
	engine  *draw.Engine
	metrics *metrics.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// NewDrawService creates a new draw service
func NewDrawService(store DrawStore, roles RoleLookup, engine *draw.Engine, m *metrics.Metrics, log *logger.Logger) *DrawService {
	return &DrawService{store: store, roles: roles, engine: engine, metrics: m, log: log, now: time.Now}
}

// ApplicationInput registers an applicant for a scheme
type ApplicationInput struct {
	ID            string `json:"id"`
	ApplicantName string `json:"applicant_name"`
}

// AddApplication registers an eligible application. Schemes that were
// already drawn are closed.
func (s *DrawService) AddApplication(ctx context.Context, schemeID string, in ApplicationInput) (*models.Application, error) {
	if strings.TrimSpace(schemeID) == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "scheme id is required")
	}
	if strings.TrimSpace(in.ApplicantName) == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "applicant name is required")
	}
	app := &models.Application{
		ID:            in.ID,
		SchemeID:      schemeID,
		ApplicantName: in.ApplicantName,
		Status:        models.ApplicationEligible,
		CreatedAt:     s.now().UTC(),
	}
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	err := s.store.InDrawTx(ctx, func(ctx context.Context, tx draw.Tx) error {
		if err := tx.LockScheme(ctx, schemeID); err != nil {
			return err
		}
		drawn, err := tx.SchemeDrawn(ctx, schemeID)
		if err != nil {
			return err
		}
		if drawn {
			return apperr.Newf(apperr.CodeInvalidArgument, "scheme %s was already drawn", schemeID)
		}
		if err := tx.CreateApplication(ctx, app); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.Wrap(err, apperr.CodeConcurrencyConflict, fmt.Sprintf("application %s already exists", app.ID))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// ConductRequest asks for a draw over a scheme's eligible pool
type ConductRequest struct {
	SchemeID      string
	SelectedCount int
	ActorID       string
}

// Conduct draws SelectedCount winners, assigns the draw reference number,
// marks every pooled application allotted or not_allotted and stores the
// audit, all in one unit of work. The scheme lock keeps AddApplication out
// until the pool is settled.
func (s *DrawService) Conduct(ctx context.Context, req ConductRequest) (*models.DrawAudit, error) {
	if err := s.authorize(ctx, req.ActorID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.SchemeID) == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "scheme id is required")
	}
	log := s.log.WithContext(ctx).WithActor(req.ActorID).WithFields(map[string]any{"scheme_id": req.SchemeID})

	var (
		audit    *models.DrawAudit
		poolSize int
	)
	err := s.store.InDrawTx(ctx, func(ctx context.Context, tx draw.Tx) error {
		if err := tx.LockScheme(ctx, req.SchemeID); err != nil {
			return err
		}
		drawn, err := tx.SchemeDrawn(ctx, req.SchemeID)
		if err != nil {
			return err
		}
		if drawn {
			return apperr.Newf(apperr.CodeConcurrencyConflict, "scheme %s was already drawn", req.SchemeID)
		}

		apps, err := tx.ListApplications(ctx, models.ApplicationFilter{
			SchemeID: req.SchemeID,
			Status:   models.ApplicationEligible,
		})
		if err != nil {
			return err
		}
		pool := make([]string, len(apps))
		for i, a := range apps {
			pool[i] = a.ID
		}
		poolSize = len(pool)

		audit, err = s.engine.Conduct(req.SchemeID, pool, req.SelectedCount)
		if err != nil {
			log.Warn("draw rejected", "pool_size", len(pool), "selected_count", req.SelectedCount, "error", err)
			return err
		}
		audit.ConductedBy = req.ActorID

		gen := sequence.NewGenerator(sequence.CounterFunc(tx.NextSequenceValue), s.metrics)
		ref, err := gen.NextFormatted(ctx, sequence.PrefixDraw, audit.ConductedAt.Year())
		if err != nil {
			return err
		}
		audit.ReferenceNo = &ref

		if err := tx.SaveDraw(ctx, audit); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.Wrap(err, apperr.CodeConcurrencyConflict, fmt.Sprintf("scheme %s was already drawn", req.SchemeID))
			}
			return err
		}
		for _, r := range audit.Results {
			status := models.ApplicationNotAllotted
			if r.Selected {
				status = models.ApplicationAllotted
			}
			if err := tx.SetApplicationStatus(ctx, r.ApplicationID, status); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDraw(poolSize)
	log.Info("draw conducted",
		"draw_id", audit.DrawID,
		"reference_no", *audit.ReferenceNo,
		"pool_size", audit.PoolSize,
		"selected_count", audit.SelectedCount,
		"audit_hash", audit.AuditHash,
	)
	return audit, nil
}

func (s *DrawService) authorize(ctx context.Context, actorID string) error {
	if actorID == "" {
		return apperr.New(apperr.CodeUnauthorized, "actor is required")
	}
	role, err := s.roles.GetUserRole(ctx, actorID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Newf(apperr.CodeUnauthorized, "unknown actor %s", actorID)
	}
	if err != nil {
		return err
	}
	if role != models.RoleAdmin && role != models.RoleCaseOfficer {
		return apperr.Newf(apperr.CodeUnauthorized, "role %s may not conduct draws", role).
			WithDetail("actor_role", string(role))
	}
	return nil
}

// Get returns a stored draw
func (s *DrawService) Get(ctx context.Context, id uuid.UUID) (*models.DrawAudit, error) {
	a, err := s.store.GetDraw(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Wrap(err, apperr.CodeNotFound, fmt.Sprintf("draw %s not found", id))
	}
	return a, err
}

// DrawVerification is the outcome of re-checking a stored draw
type DrawVerification struct {
	DrawID   uuid.UUID `json:"drawId"`
	Verified bool      `json:"verified"`
	Replayed bool      `json:"replayed"`
	Reason   string    `json:"reason,omitempty"`
}

// Verify recomputes the stored hashes and replays the shuffle over the
// scheme's drawn applications.
func (s *DrawService) Verify(ctx context.Context, id uuid.UUID) (*DrawVerification, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &DrawVerification{DrawID: a.DrawID}
	if err := draw.Check(a); err != nil {
		out.Reason = err.Error()
		return out, nil
	}
	out.Verified = true

	apps, err := s.store.ListApplications(ctx, models.ApplicationFilter{SchemeID: a.SchemeID})
	if err != nil {
		return nil, err
	}
	pool := make([]string, 0, len(apps))
	for _, app := range apps {
		if app.Status != models.ApplicationEligible {
			pool = append(pool, app.ID)
		}
	}
	if err := draw.Replay(a, pool); err != nil {
		out.Reason = err.Error()
		return out, nil
	}
	out.Replayed = true
	return out, nil
}
