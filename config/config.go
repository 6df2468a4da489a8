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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"

	// Queue names used by the asynq workers.
	CLAIM_PROJECTION_QUEUE = "claim_projection_queue"
	WEBHOOK_QUEUE          = "webhook_queue"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"FLASHCART_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"FLASHCART_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"FLASHCART_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"FLASHCART_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"FLASHCART_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"FLASHCART_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"FLASHCART_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"FLASHCART_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"FLASHCART_REDIS_SKIP_TLS_VERIFY"`
}

type QueueConfig struct {
	ClaimProjectionQueue string `json:"claim_projection_queue" envconfig:"FLASHCART_CLAIM_PROJECTION_QUEUE"`
	WebhookQueue         string `json:"webhook_queue" envconfig:"FLASHCART_WEBHOOK_QUEUE"`
	NumberOfQueues       int    `json:"number_of_queues" envconfig:"FLASHCART_NUMBER_OF_QUEUES"`
	MaxRetryAttempts     int    `json:"max_retry_attempts" envconfig:"FLASHCART_MAX_RETRY_ATTEMPTS"`
	MonitoringPort       string `json:"monitoring_port" envconfig:"FLASHCART_QUEUE_MONITORING_PORT"`
}

type OrderConfig struct {
	// MaxStockRetries bounds the optimistic read-decrement-write cycle for a
	// single line item before the attempt surfaces a retryable conflict.
	MaxStockRetries int `json:"max_stock_retries" envconfig:"FLASHCART_ORDER_MAX_STOCK_RETRIES"`
	// LockWaitSeconds and LockLeaseSeconds bound the per-user order lock.
	LockWaitSeconds  int `json:"lock_wait_seconds" envconfig:"FLASHCART_ORDER_LOCK_WAIT_SECONDS"`
	LockLeaseSeconds int `json:"lock_lease_seconds" envconfig:"FLASHCART_ORDER_LOCK_LEASE_SECONDS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"FLASHCART_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"FLASHCART_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"FLASHCART_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"FLASHCART_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Queue        QueueConfig      `json:"queue"`
	Order        OrderConfig      `json:"order"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`

	EnableTelemetry bool `json:"enable_telemetry" envconfig:"FLASHCART_ENABLE_TELEMETRY"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("flashcart", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called flashcart.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Flashcart Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.ClaimProjectionQueue == "" {
		cnf.Queue.ClaimProjectionQueue = CLAIM_PROJECTION_QUEUE
	}
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = WEBHOOK_QUEUE
	}
	if cnf.Queue.NumberOfQueues <= 0 {
		cnf.Queue.NumberOfQueues = 1
	}
	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = 5
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5004"
	}

	if cnf.Order.MaxStockRetries <= 0 {
		cnf.Order.MaxStockRetries = 5
	}
	if cnf.Order.LockWaitSeconds <= 0 {
		cnf.Order.LockWaitSeconds = 10
	}
	if cnf.Order.LockLeaseSeconds <= 0 {
		cnf.Order.LockLeaseSeconds = 30
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	// Set default cleanup interval if not specified
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
