package service

import (
	"context"
	"errors"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/metrics"
	"github.com/landrecords/portal/common/models"
	"github.com/landrecords/portal/common/sequence"
	"github.com/landrecords/portal/common/workflow"
)

// SequenceService exposes raw counter allocation to administrators
type SequenceService struct {
	store   workflow.Store
	metrics *metrics.Metrics
}

// NewSequenceService creates a new sequence service
func NewSequenceService(store workflow.Store, m *metrics.Metrics) *SequenceService {
	return &SequenceService{store: store, metrics: m}
}

// Allocation is one allocated sequence value
type Allocation struct {
	Name      string `json:"name"`
	Year      int    `json:"year"`
	Value     int64  `json:"value"`
	Formatted string `json:"formatted"`
}

// Next allocates the next value of (name, year)
func (s *SequenceService) Next(ctx context.Context, actorID, name string, year int) (*Allocation, error) {
	if err := sequence.Validate(name, year); err != nil {
		return nil, err
	}
	if actorID == "" {
		return nil, apperr.New(apperr.CodeUnauthorized, "actor is required")
	}
	role, err := s.store.GetUserRole(ctx, actorID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Newf(apperr.CodeUnauthorized, "unknown actor %s", actorID)
	}
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin {
		return nil, apperr.Newf(apperr.CodeUnauthorized, "role %s may not allocate sequence values", role)
	}

	var value int64
	err = s.store.InTx(ctx, func(ctx context.Context, tx workflow.Tx) error {
		var err error
		value, err = sequence.NewGenerator(sequence.CounterFunc(tx.NextSequenceValue), s.metrics).Next(ctx, name, year)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Allocation{Name: name, Year: year, Value: value, Formatted: sequence.Format(name, year, value)}, nil
}
