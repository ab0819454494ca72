// Package redis stores the job ledger in Redis hashes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/runrelay/internal/domain"
	"github.com/davidbz/runrelay/internal/observability"
)

const keyPrefix = "job:"

// Config contains the Redis connection and retention settings of the ledger.
// An empty Addr disables the Redis ledger.
type Config struct {
	Addr      string        `env:"REDIS_ADDR"`
	Password  string        `env:"REDIS_PASSWORD"`
	DB        int           `env:"REDIS_DB"       envDefault:"0"`
	LedgerTTL time.Duration `env:"LEDGER_TTL"     envDefault:"24h"`
}

// Enabled reports whether a Redis address is configured.
func (c *Config) Enabled() bool {
	return c.Addr != ""
}

// NewClient opens a Redis client for the ledger.
func NewClient(config *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
}

// JobLedger implements domain.JobRecorder on top of Redis.
type JobLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewJobLedger creates a Redis-backed job ledger.
func NewJobLedger(client *redis.Client, ttl time.Duration) *JobLedger {
	return &JobLedger{
		client: client,
		ttl:    ttl,
	}
}

// Key returns the hash key of a job.
func Key(jobID string) string {
	return keyPrefix + jobID
}

// Record writes the latest state of a job and refreshes its expiry.
func (l *JobLedger) Record(ctx context.Context, job domain.Job) error {
	if job.ID == "" {
		return errors.New("job id cannot be empty")
	}

	logger := observability.FromContext(ctx)
	key := Key(job.ID)

	pipe := l.client.Pipeline()
	pipe.HSet(ctx, key,
		"model", job.Model,
		"status", string(job.Status),
		"created", job.Created,
		"output", job.Output,
		"updated_at", time.Now().Unix(),
	)

	if l.ttl > 0 {
		pipe.Expire(ctx, key, l.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("job ledger write failed", observability.Error(err))
		return fmt.Errorf("failed to record job: %w", err)
	}

	logger.Debug("job recorded", observability.String("status", string(job.Status)))
	return nil
}

// Get reads back a recorded job.
func (l *JobLedger) Get(ctx context.Context, jobID string) (domain.Job, error) {
	fields, err := l.client.HGetAll(ctx, Key(jobID)).Result()
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to read job: %w", err)
	}

	if len(fields) == 0 {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}

	return decodeJob(jobID, fields)
}

func decodeJob(jobID string, fields map[string]string) (domain.Job, error) {
	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return domain.Job{}, fmt.Errorf("invalid created field for job %s: %w", jobID, err)
	}

	return domain.Job{
		ID:      jobID,
		Model:   fields["model"],
		Created: created,
		Status:  domain.JobStatus(fields["status"]),
		Output:  fields["output"],
	}, nil
}
