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
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/hibiken/asynq"

	"github.com/flashcart/flashcart/config"
	redis_db "github.com/flashcart/flashcart/internal/redis-db"
	"github.com/flashcart/flashcart/model"
)

// Queue represents a queue for handling various tasks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// ClaimProjectionPayload represents the payload for a claim projection task.
type ClaimProjectionPayload struct {
	Data model.CouponClaim
}

// NewQueue initializes a new Queue instance with the provided configuration.
//
// Parameters:
// - conf *config.Configuration: The configuration for the queue.
//
// Returns:
// - *Queue: A pointer to the newly created Queue instance.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// Enqueue enqueues a claim projection task. Claims are distributed across
// numbered projection queues by hashing the pool ID, so all claims of one
// pool land on the same queue and its issued-count projection is applied
// serially without racing itself.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - claim *model.CouponClaim: The claim to project into the relational store.
//
// Returns:
// - error: An error if the claim could not be enqueued.
func (q *Queue) Enqueue(ctx context.Context, claim *model.CouponClaim) error {
	payload, err := json.Marshal(claim)
	if err != nil {
		return err
	}
	info, err := q.Client.EnqueueContext(ctx, q.getTask(claim, payload), asynq.MaxRetry(5))
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued claim projection: %+v", claim.ClaimID)

	return nil
}

// getTask generates a projection task for a claim and assigns it to a queue
// based on the pool ID hash. The task ID is the claim ID, so redelivered
// claims deduplicate at the queue.
func (q *Queue) getTask(claim *model.CouponClaim, payload []byte) *asynq.Task {
	cnf, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config: %v", err)
		return nil
	}
	queueIndex := hashPoolID(claim.PoolID) % cnf.Queue.NumberOfQueues
	queueName := fmt.Sprintf("%s_%d", cnf.Queue.ClaimProjectionQueue, queueIndex+1)

	taskOptions := []asynq.Option{asynq.TaskID(claim.ClaimID), asynq.Queue(queueName)}
	return asynq.NewTask(queueName, payload, taskOptions...)
}

// hashPoolID returns a consistent hash value for a string pool ID.
//
// Parameters:
// - poolID string: The pool ID to hash.
//
// Returns:
// - int: The hash value of the pool ID.
func hashPoolID(poolID string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(poolID))
	return int(hasher.Sum32())
}

// GetClaimFromQueue retrieves a pending claim projection from the queue by
// its claim ID.
//
// Parameters:
// - claimID string: The ID of the claim to retrieve.
//
// Returns:
// - *model.CouponClaim: A pointer to the CouponClaim model if found.
// - error: An error if the claim could not be retrieved.
func (q *Queue) GetClaimFromQueue(claimID string) (*model.CouponClaim, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	// Iterate over all specific projection queues
	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", cfg.Queue.ClaimProjectionQueue, i)
		task, err := q.Inspector.GetTaskInfo(queueName, claimID)
		if err == nil && task != nil {
			var claim model.CouponClaim
			if err := json.Unmarshal(task.Payload, &claim); err != nil {
				return nil, err
			}
			return &claim, nil
		}
	}

	return nil, fmt.Errorf("claim %s not found in any queue", claimID)
}
