package config

import (
	"time"

	"github.com/cuongbtq/meeting-pipeline/internal/queue"
	"github.com/cuongbtq/meeting-pipeline/shared/logger"
	"github.com/cuongbtq/meeting-pipeline/shared/postgresql"
	"github.com/cuongbtq/meeting-pipeline/shared/rabbitmq"
	"github.com/cuongbtq/meeting-pipeline/shared/redis"
)

// LoggerConfig maps the logging section to the shared logger
func (c *Config) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:        c.Logging.Level,
		Format:       c.Logging.Format,
		Output:       c.Logging.Output,
		EnableSource: c.Logging.EnableCaller,
		TimeFormat:   time.RFC3339,
	}
}

// PostgresConfig maps the database section to the shared PostgreSQL client
func (c *Config) PostgresConfig() *postgresql.Config {
	return &postgresql.Config{
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}

// RabbitMQClientConfig maps the rabbitmq section to the shared RabbitMQ client
func (c *Config) RabbitMQClientConfig() *rabbitmq.Config {
	r := c.RabbitMQ
	return &rabbitmq.Config{
		Host:               r.Host,
		Port:               r.Port,
		User:               r.User,
		Password:           r.Password,
		VHost:              r.VHost,
		ExchangeName:       r.Exchange.Name,
		ExchangeType:       r.Exchange.Type,
		ExchangeDurable:    r.Exchange.Durable,
		ExchangeAutoDelete: r.Exchange.AutoDelete,
		QueueName:          r.Queue.Name,
		QueueDurable:       r.Queue.Durable,
		QueueAutoDelete:    r.Queue.AutoDelete,
		QueueExclusive:     r.Queue.Exclusive,
		RetryQueueName:     r.Queue.RetryQueue,
		RoutingKey:         r.RoutingKey,
		RetryAttempts:      r.Connection.RetryAttempts,
		RetryInterval:      r.Connection.RetryInterval,
		Heartbeat:          r.Connection.Heartbeat,
		ConnectionTimeout:  r.Connection.ConnectionTimeout,
		PublishRetries:     r.Publish.RetryAttempts,
		PublishRetryDelay:  r.Publish.RetryInterval,
		PublishBackoffMult: r.Publish.BackoffMultiplier,
	}
}

// RedisClientConfig maps the redis section, or returns nil when Redis is not configured
func (c *Config) RedisClientConfig() *redis.Config {
	if c.Redis.Host == "" {
		return nil
	}
	return &redis.Config{
		Host:        c.Redis.Host,
		Port:        c.Redis.Port,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		DialTimeout: c.Redis.DialTimeout,
	}
}

// QueueOptions returns the retry policy given to new jobs
func (c *Config) QueueOptions() queue.Options {
	opts := queue.DefaultOptions()
	if c.Worker.MaxAttempts > 0 {
		opts.MaxAttempts = c.Worker.MaxAttempts
	}
	if c.Worker.BackoffDelay > 0 {
		opts.Backoff.Delay = c.Worker.BackoffDelay
	}
	return opts
}

// PrunerConfig maps the retention section
func (c *Config) PrunerConfig() queue.PrunerConfig {
	return queue.PrunerConfig{
		KeepCompleted: c.Worker.Retention.KeepCompleted,
		KeepFailed:    c.Worker.Retention.KeepFailed,
		Interval:      c.Worker.Retention.Interval,
	}
}
