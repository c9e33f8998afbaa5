// Package duty tracks who is currently on shift in a Redis set, mirroring the
// shift store for cheap counting.
package duty

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/evn/shiftbot/internal/services/events"
)

const onDutyKey = "on_duty"

type Tracker struct {
	redis *redis.Client
	log   *zap.Logger
}

func NewTracker(client *redis.Client, logger *zap.Logger) *Tracker {
	return &Tracker{redis: client, log: logger.Named("duty")}
}

func (t *Tracker) Publish(ctx context.Context, e events.Event) {
	var err error
	switch e.Type {
	case events.ShiftStarted:
		err = t.redis.SAdd(ctx, onDutyKey, e.ExternalID).Err()
	case events.ShiftEnded:
		err = t.redis.SRem(ctx, onDutyKey, e.ExternalID).Err()
	case events.ShiftsReset:
		err = t.redis.Del(ctx, onDutyKey).Err()
	}
	if err != nil {
		t.log.Warn("failed to update on-duty set", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

// Count returns how many users are on duty.
func (t *Tracker) Count(ctx context.Context) (int64, error) {
	return t.redis.SCard(ctx, onDutyKey).Result()
}

// Sync replaces the set with the given ids. Called at start so the set
// matches the store after a restart.
func (t *Tracker) Sync(ctx context.Context, externalIDs []string) error {
	pipe := t.redis.TxPipeline()
	pipe.Del(ctx, onDutyKey)
	if len(externalIDs) > 0 {
		members := make([]interface{}, len(externalIDs))
		for i, id := range externalIDs {
			members[i] = id
		}
		pipe.SAdd(ctx, onDutyKey, members...)
	}
	_, err := pipe.Exec(ctx)
	return err
}
