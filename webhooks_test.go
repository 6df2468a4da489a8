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
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/flashcart/flashcart/config"
	"github.com/flashcart/flashcart/model"
	"github.com/hibiken/asynq"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

func TestSendWebhook(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	defer mr.Close()

	mockConfig := &config.Configuration{
		Redis: config.RedisConfig{
			Dns: mr.Addr(),
		},
		Queue: config.QueueConfig{WebhookQueue: "new:webhook", NumberOfQueues: 1},
		Notification: config.Notification{Webhook: struct {
			Url     string            `json:"url"`
			Headers map[string]string `json:"headers"`
		}(struct {
			Url     string
			Headers map[string]string
		}{Url: "https:localhost:5001/webhook", Headers: nil})},
	}

	config.ConfigStore.Store(mockConfig)
	testData := NewWebhook{
		Event: EventCouponIssued,
		Payload: model.CouponClaim{
			ClaimID: "clm_1",
			PoolID:  "pol_1",
			UserID:  "usr_1",
			Rank:    1,
		},
	}

	err = SendWebhook(testData)
	assert.NoError(t, err)

	// Verify that the task was enqueued
	tasks := mr.Keys()
	t.Log(tasks)
	assert.NotEmpty(t, tasks)
}

func TestSendWebhookSkippedWithoutURL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	defer mr.Close()

	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Queue: config.QueueConfig{WebhookQueue: "new:webhook", NumberOfQueues: 1},
	})

	err = SendWebhook(NewWebhook{Event: EventOrderCreated, Payload: nil})
	assert.NoError(t, err)

	assert.Empty(t, mr.Keys())
}

func TestProcessWebhookDeliversPayload(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(&config.Configuration{
		Queue: config.QueueConfig{WebhookQueue: "new:webhook", NumberOfQueues: 1},
	})
	conf, err := config.Fetch()
	assert.NoError(t, err)
	conf.Notification.Webhook.Url = "http://example.com/webhook"

	received := 0
	httpmock.RegisterResponder("POST", "http://example.com/webhook",
		func(req *http.Request) (*http.Response, error) {
			var payload NewWebhook
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				return httpmock.NewStringResponse(400, ""), nil
			}
			assert.Equal(t, EventCouponIssued, payload.Event)
			received++
			return httpmock.NewStringResponse(200, `{"ok":true}`), nil
		})

	payload, err := json.Marshal(NewWebhook{Event: EventCouponIssued, Payload: map[string]interface{}{"claim_id": "clm_1"}})
	assert.NoError(t, err)

	task := asynq.NewTask("new:webhook", payload)
	err = ProcessWebhook(context.Background(), task)
	assert.NoError(t, err)
	assert.Equal(t, 1, received)
}
