/*
Copyright 2024 Flashcart Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package flashcart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Quota store outcomes. The script returns exactly one of these per
// invocation.
const (
	QuotaOutcomeSuccess         = "SUCCESS"
	QuotaOutcomeSoldOut         = "SOLD_OUT"
	QuotaOutcomeExceedUserLimit = "EXCEED_USER_LIMIT"
	QuotaOutcomeAlreadyIssued   = "ALREADY_ISSUED"
)

const (
	quotaIssuedPrefix    = "coupon:issued:"
	quotaUserCountPrefix = "coupon:user:count:"
	quotaDataTTL         = 7 * 24 * time.Hour
)

// claimScript is the atomic quota claim. It runs as a single Lua script so
// the whole decision is one indivisible step under Redis's single-threaded
// execution; no interleaving of concurrent claimers can over-issue.
//
// Data layout per pool:
//   - KEYS[1] sorted set, member "userID:n" scored by issue timestamp (ms).
//     ZCARD is the authoritative issued count, ZRANK the issuance order.
//   - KEYS[2] hash of per-user issue counters, driven by HINCRBY.
//
// The decision sequence: check the total against the quota, bump the user's
// counter (rolling back past the per-user cap), ZADD NX the member (rolling
// back on duplicates), then re-check the total and roll everything back if a
// concurrent claimer pushed it past the quota. The final re-check is what
// makes the quota a hard upper bound rather than a best-effort one. On
// success the caller's rank is the position of their first member, 1-based.
var claimScript = redis.NewScript(`
local issuedKey = KEYS[1]
local userCountKey = KEYS[2]
local userId = ARGV[1]
local totalQuota = tonumber(ARGV[2]) or 0
local perUserQuota = tonumber(ARGV[3]) or 1
local timestamp = ARGV[4]
local ttl = tonumber(ARGV[5]) or 0

local currentCount = tonumber(redis.call('ZCARD', issuedKey))
if currentCount >= totalQuota then
    return {0, 'SOLD_OUT', currentCount}
end

local userCount = tonumber(redis.call('HINCRBY', userCountKey, userId, 1))
if userCount > perUserQuota then
    redis.call('HINCRBY', userCountKey, userId, -1)
    return {0, 'EXCEED_USER_LIMIT', userCount}
end

local member = userId .. ':' .. userCount
local added = tonumber(redis.call('ZADD', issuedKey, 'NX', timestamp, member))
if added == 0 then
    redis.call('HINCRBY', userCountKey, userId, -1)
    return {0, 'ALREADY_ISSUED', currentCount}
end

local newCount = tonumber(redis.call('ZCARD', issuedKey))
if newCount > totalQuota then
    redis.call('ZREM', issuedKey, member)
    redis.call('HINCRBY', userCountKey, userId, -1)
    return {0, 'SOLD_OUT', newCount - 1}
end

if ttl > 0 and redis.call('TTL', issuedKey) == -1 then
    redis.call('EXPIRE', issuedKey, ttl)
    redis.call('EXPIRE', userCountKey, ttl)
end

local firstMember = userId .. ':1'
local rank = tonumber(redis.call('ZRANK', issuedKey, firstMember))
if rank == nil then
    rank = tonumber(redis.call('ZRANK', issuedKey, member))
end
return {1, 'SUCCESS', newCount, rank + 1}
`)

// QuotaClaim is the decoded result of one quota store invocation.
type QuotaClaim struct {
	Outcome     string
	IssuedCount int64
	UserSeq     int64
	Rank        int64
}

func quotaIssuedKey(poolID string) string {
	return quotaIssuedPrefix + poolID
}

func quotaUserCountKey(poolID string) string {
	return quotaUserCountPrefix + poolID
}

// claimQuota invokes the claim script for one (pool, user) pair and decodes
// the tagged result. The script itself never fails a valid invocation; an
// error here means Redis was unreachable or returned a malformed reply.
func (f *Flashcart) claimQuota(ctx context.Context, poolID, userID string, totalQuota, perUserQuota int64) (*QuotaClaim, error) {
	timestamp := time.Now().UnixMilli()

	raw, err := claimScript.Run(ctx, f.redis,
		[]string{quotaIssuedKey(poolID), quotaUserCountKey(poolID)},
		userID, totalQuota, perUserQuota, timestamp, int64(quotaDataTTL.Seconds())).Result()
	if err != nil {
		return nil, errors.Wrap(err, "quota claim script failed")
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) < 3 {
		return nil, errors.Errorf("quota claim script returned malformed reply: %v", raw)
	}

	outcome, ok := reply[1].(string)
	if !ok {
		return nil, errors.Errorf("quota claim script returned malformed outcome: %v", reply[1])
	}

	claim := &QuotaClaim{Outcome: outcome}
	count, ok := reply[2].(int64)
	if !ok {
		return nil, errors.Errorf("quota claim script returned malformed count: %v", reply[2])
	}

	switch outcome {
	case QuotaOutcomeSuccess:
		claim.IssuedCount = count
		if len(reply) < 4 {
			return nil, errors.Errorf("quota claim script returned success without rank: %v", raw)
		}
		rank, ok := reply[3].(int64)
		if !ok {
			return nil, errors.Errorf("quota claim script returned malformed rank: %v", reply[3])
		}
		claim.Rank = rank
	case QuotaOutcomeExceedUserLimit:
		claim.UserSeq = count
	default:
		claim.IssuedCount = count
	}
	return claim, nil
}

// QuotaIssuedCount returns the authoritative number of claims issued for a
// pool, straight from the quota store.
func (f *Flashcart) QuotaIssuedCount(ctx context.Context, poolID string) (int64, error) {
	count, err := f.redis.ZCard(ctx, quotaIssuedKey(poolID)).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read issued count")
	}
	return count, nil
}

// QuotaUserCount returns how many claims a user holds in a pool according to
// the quota store.
func (f *Flashcart) QuotaUserCount(ctx context.Context, poolID, userID string) (int64, error) {
	val, err := f.redis.HGet(ctx, quotaUserCountKey(poolID), userID).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read user claim count")
	}
	return val, nil
}

// QuotaUserRank returns a user's 1-based issuance rank in a pool, based on
// their first claim. Returns 0 when the user holds no claim.
func (f *Flashcart) QuotaUserRank(ctx context.Context, poolID, userID string) (int64, error) {
	rank, err := f.redis.ZRank(ctx, quotaIssuedKey(poolID), fmt.Sprintf("%s:1", userID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read user rank")
	}
	return rank + 1, nil
}

// RosterEntry is one row of a pool's issuance roster: a user's first claim
// marker with its 1-based rank.
type RosterEntry struct {
	UserID string `json:"user_id"`
	Rank   int64  `json:"rank"`
}

// QuotaRoster returns the first n issuance markers for a pool in claim order.
// Markers are stored as userID:seq, so a user with multiple claims appears
// once per claim.
func (f *Flashcart) QuotaRoster(ctx context.Context, poolID string, n int64) ([]RosterEntry, error) {
	if n <= 0 {
		n = 100
	}
	members, err := f.redis.ZRange(ctx, quotaIssuedKey(poolID), 0, n-1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read issuance roster")
	}

	roster := make([]RosterEntry, 0, len(members))
	for i, member := range members {
		userID := member
		if idx := strings.LastIndex(member, ":"); idx > 0 {
			userID = member[:idx]
		}
		roster = append(roster, RosterEntry{UserID: userID, Rank: int64(i + 1)})
	}
	return roster, nil
}

// ResetQuota drops a pool's quota store state. Used when a pool is created
// fresh or reset before a sale, and by tests.
func (f *Flashcart) ResetQuota(ctx context.Context, poolID string) error {
	err := f.redis.Del(ctx, quotaIssuedKey(poolID), quotaUserCountKey(poolID)).Err()
	if err != nil {
		return errors.Wrap(err, "failed to reset quota store")
	}
	return nil
}
