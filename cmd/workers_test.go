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

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flashcart/flashcart/config"
)

func TestInitializeWorkerServer(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: "localhost:6379"},
		Queue: config.QueueConfig{
			ClaimProjectionQueue: "new:claim_projection",
			WebhookQueue:         "new:webhook",
			NumberOfQueues:       2,
		},
	})
	conf, err := config.Fetch()
	assert.NoError(t, err)

	queues := initializeQueues()
	assert.Len(t, queues, 3)
	assert.Equal(t, 3, queues[conf.Queue.WebhookQueue])
	assert.Equal(t, 1, queues["new:claim_projection_1"])
	assert.Equal(t, 1, queues["new:claim_projection_2"])

	srv, err := initializeWorkerServer(conf, queues)
	assert.NoError(t, err)
	assert.NotNil(t, srv)
}
