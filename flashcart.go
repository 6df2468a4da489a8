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
	"embed"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/flashcart/flashcart/config"
	"github.com/flashcart/flashcart/database"
	redis_db "github.com/flashcart/flashcart/internal/redis-db"
)

// Flashcart represents the main struct for the Flashcart application. It
// owns the claim engine's quota store connection, the relational datasource,
// and the queue used for claim projection and webhook delivery.
type Flashcart struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewFlashcart initializes a new instance of Flashcart with the provided
// database datasource. It fetches the configuration and initializes the
// Redis client and task queue.
//
// Parameters:
// - db database.IDataSource: The datasource for database operations.
//
// Returns:
// - *Flashcart: A pointer to the newly created Flashcart instance.
// - error: An error if any of the initialization steps fail.
func NewFlashcart(db database.IDataSource) (*Flashcart, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)

	newFlashcart := &Flashcart{datasource: db, queue: newQueue, redis: redisClient.Client()}
	return newFlashcart, nil
}
