// Package shift implements the shift lifecycle: start, end and reset.
package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evn/shiftbot/internal/models"
	"github.com/evn/shiftbot/internal/services/events"
)

// Store is the part of the repository the lifecycle needs.
type Store interface {
	FindOpenShift(ctx context.Context, externalID string) (*models.Shift, error)
	CreateShift(ctx context.Context, externalID, department string, start time.Time) (*models.Shift, error)
	CloseShift(ctx context.Context, shiftID int, end time.Time, durationMinutes int) (*models.Shift, error)
	ListOpenShifts(ctx context.Context) ([]models.ActiveShift, error)
	DeleteAllShifts(ctx context.Context) (int64, error)
}

type Service struct {
	store  Store
	events events.Publisher
	now    func() time.Time
	log    *zap.Logger
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, publisher events.Publisher, logger *zap.Logger, opts ...Option) *Service {
	if publisher == nil {
		publisher = events.Nop
	}
	s := &Service{
		store:  store,
		events: publisher,
		now:    time.Now,
		log:    logger.Named("shift"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Active returns the actor's open shift or nil.
func (s *Service) Active(ctx context.Context, externalID string) (*models.Shift, error) {
	return s.store.FindOpenShift(ctx, externalID)
}

// Start opens a shift for the actor in the given department. Department labels
// are not validated here. Fails with models.ErrAlreadyActive when a shift is
// already open.
func (s *Service) Start(ctx context.Context, externalID, department string) (*models.Shift, error) {
	start := s.now().UTC()
	shift, err := s.store.CreateShift(ctx, externalID, department, start)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyActive) {
			return nil, err
		}
		return nil, fmt.Errorf("start shift: %w", err)
	}

	s.log.Info("shift started",
		zap.String("discord_id", externalID),
		zap.String("department", department),
		zap.Int("shift_id", shift.ID),
	)
	s.events.Publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       events.ShiftStarted,
		ExternalID: externalID,
		Department: department,
		At:         start,
	})
	return shift, nil
}

// End closes the actor's open shift and returns it with its duration. The open
// shift is always read from the store, so a second call fails with
// models.ErrNoActiveShift.
func (s *Service) End(ctx context.Context, externalID string) (*models.Shift, error) {
	open, err := s.store.FindOpenShift(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("end shift: %w", err)
	}
	if open == nil {
		return nil, models.ErrNoActiveShift
	}

	end := s.now().UTC()
	minutes := models.DurationMinutes(open.StartTime, end)

	closed, err := s.store.CloseShift(ctx, open.ID, end, minutes)
	if err != nil {
		return nil, fmt.Errorf("end shift %d: %w", open.ID, err)
	}

	s.log.Info("shift ended",
		zap.String("discord_id", externalID),
		zap.String("department", closed.Department),
		zap.Int("shift_id", closed.ID),
		zap.Int("duration_minutes", minutes),
	)
	s.events.Publish(ctx, events.Event{
		ID:              uuid.NewString(),
		Type:            events.ShiftEnded,
		ExternalID:      externalID,
		Department:      closed.Department,
		DurationMinutes: minutes,
		At:              end,
	})
	return closed, nil
}

// ListActive returns every open shift, oldest first.
func (s *Service) ListActive(ctx context.Context) ([]models.ActiveShift, error) {
	return s.store.ListOpenShifts(ctx)
}

// ResetAll deletes every shift. Callers are responsible for authorization.
func (s *Service) ResetAll(ctx context.Context) error {
	n, err := s.store.DeleteAllShifts(ctx)
	if err != nil {
		return fmt.Errorf("reset shifts: %w", err)
	}
	s.log.Warn("all shifts reset", zap.Int64("deleted", n))
	s.events.Publish(ctx, events.Event{
		ID:   uuid.NewString(),
		Type: events.ShiftsReset,
		At:   s.now().UTC(),
	})
	return nil
}
