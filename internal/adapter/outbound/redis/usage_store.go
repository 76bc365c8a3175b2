package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

const usageKeyPrefix = "usage:"

// casScript swaps the usage hash only if it still holds the expected state.
// ARGV: expectExists, oldPeriod, oldCount, newPeriod, newCount, updatedAt, ttlMillis
var casScript = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'period', 'count')
if ARGV[1] == '0' then
  if cur[1] then return 0 end
else
  if (not cur[1]) or cur[1] ~= ARGV[2] or tonumber(cur[2]) ~= tonumber(ARGV[3]) then return 0 end
end
redis.call('HSET', KEYS[1], 'period', ARGV[4], 'count', ARGV[5], 'updated_at', ARGV[6])
redis.call('PEXPIRE', KEYS[1], ARGV[7])
return 1
`)

// usageStore implements outbound.UsageStorePort on Redis hashes.
type usageStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUsageStore creates a Redis-backed usage store. Records expire after ttl.
func NewUsageStore(client *redis.Client, ttl time.Duration) outbound.UsageStorePort {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &usageStore{client: client, ttl: ttl}
}

func (s *usageStore) key(subjectID string) string {
	return usageKeyPrefix + subjectID
}

func (s *usageStore) Get(ctx context.Context, subjectID string) (*model.UsageRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(subjectID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	count, err := strconv.Atoi(fields["count"])
	if err != nil {
		return nil, fmt.Errorf("parse usage count: %w", err)
	}
	record := &model.UsageRecord{
		SubjectID: subjectID,
		PeriodKey: fields["period"],
		Count:     count,
	}
	if ts, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		record.UpdatedAt = time.Unix(ts, 0).UTC()
	}
	return record, nil
}

func (s *usageStore) Set(ctx context.Context, record *model.UsageRecord) error {
	key := s.key(record.SubjectID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"period", record.PeriodKey,
		"count", record.Count,
		"updated_at", updatedAt(record),
	)
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *usageStore) CompareAndSwap(ctx context.Context, subjectID string, old, next *model.UsageRecord) (bool, error) {
	expectExists, oldPeriod, oldCount := "0", "", 0
	if old != nil {
		expectExists, oldPeriod, oldCount = "1", old.PeriodKey, old.Count
	}

	swapped, err := casScript.Run(ctx, s.client, []string{s.key(subjectID)},
		expectExists, oldPeriod, oldCount,
		next.PeriodKey, next.Count, updatedAt(next), s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return swapped == 1, nil
}

func updatedAt(r *model.UsageRecord) int64 {
	if r.UpdatedAt.IsZero() {
		return time.Now().Unix()
	}
	return r.UpdatedAt.Unix()
}
