package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/danielvega/gatherz-backend/pkg/logger"
)

type endedEventExpirer interface {
	ExpireEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventExpiryJobParams configure the event expiry sweep.
type EventExpiryJobParams struct {
	Logger *logger.Logger
	Events endedEventExpirer
	Now    func() time.Time
}

// NewEventExpiryJob builds the job that expires approved events whose end
// date has passed without a settlement. Finished events are untouched since
// the sweep only matches the approved status.
func NewEventExpiryJob(params EventExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("events repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &eventExpiryJob{
		logg:   params.Logger,
		events: params.Events,
		now:    now,
	}, nil
}

type eventExpiryJob struct {
	logg   *logger.Logger
	events endedEventExpirer
	now    func() time.Time
}

func (j *eventExpiryJob) Name() string { return "event-expiry" }

func (j *eventExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	expired, err := j.events.ExpireEndedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expire ended events: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "count", expired)
	j.logg.Info(logCtx, "event expiry sweep complete")
	return nil
}
