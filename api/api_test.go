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

package api

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	"github.com/flashcart/flashcart"
	"github.com/flashcart/flashcart/config"
	"github.com/flashcart/flashcart/database"
	"github.com/flashcart/flashcart/internal/cache"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	err := json.NewDecoder(resp.Body).Decode(&s.Response)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// setupRouter builds the full router against miniredis and a mocked
// relational connection so handler tests run without live backends.
func setupRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, error) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	t.Cleanup(mr.Close)

	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Queue: config.QueueConfig{
			ClaimProjectionQueue: "new:claim_projection",
			WebhookQueue:         "new:webhook",
			NumberOfQueues:       1,
		},
	})

	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}
	t.Cleanup(func() { _ = db.Close() })

	newCache, err := cache.NewCache()
	if err != nil {
		return nil, nil, err
	}

	ds := &database.Datasource{Conn: db, Cache: newCache}
	newFlashcart, err := flashcart.NewFlashcart(ds)
	if err != nil {
		return nil, nil, err
	}
	return NewAPI(newFlashcart).Router(), mock, nil
}
