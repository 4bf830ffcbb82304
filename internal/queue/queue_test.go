package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validJob() Job {
	return Job{
		RunID:      uuid.New().String(),
		MeetingID:  "m-1",
		Transcript: "John: hello",
		Metadata:   domain.Metadata{"meeting_title": "Kickoff"},
	}
}

func TestBackoffPolicy_DelayFor(t *testing.T) {
	policy := BackoffPolicy{Type: BackoffExponential, Delay: 2 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 2 * time.Second},
		{attempt: 1, want: 2 * time.Second},
		{attempt: 2, want: 4 * time.Second},
		{attempt: 3, want: 8 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.DelayFor(tt.attempt), "attempt %d", tt.attempt)
	}

	fixed := BackoffPolicy{Type: "fixed", Delay: time.Second}
	assert.Equal(t, time.Second, fixed.DelayFor(5))
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, 2*time.Second, opts.Backoff.Delay)

	filled := Options{}.withDefaults()
	assert.Equal(t, opts, filled)
}

func TestJob_Validate(t *testing.T) {
	assert.NoError(t, validJob().Validate())

	missing := validJob()
	missing.Transcript = ""
	assert.ErrorIs(t, missing.Validate(), domain.ErrInvalidPayload)

	badRun := validJob()
	badRun.RunID = "not-a-uuid"
	assert.ErrorIs(t, badRun.Validate(), domain.ErrInvalidPayload)
}

func TestMessage_EncodeDecode(t *testing.T) {
	msg := &Message{
		JobID:       uuid.New().String(),
		Attempt:     1,
		MaxAttempts: 3,
		BackoffMS:   2000,
		Job:         validJob(),
	}

	body, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := DecodeMessage(body)
	require.NoError(t, err)
	assert.Equal(t, msg.JobID, decoded.JobID)
	assert.Equal(t, "Kickoff", decoded.Job.Metadata.String("meeting_title"))
	assert.Equal(t, 2*time.Second, decoded.Backoff().DelayFor(1))
	assert.True(t, decoded.HasAttemptsLeft())

	next := decoded.Next().Next()
	assert.Equal(t, 3, next.Attempt)
	assert.False(t, next.HasAttemptsLeft())
	assert.Equal(t, 1, decoded.Attempt)
}

func TestDecodeMessage_Malformed(t *testing.T) {
	_, err := DecodeMessage([]byte(`{not json`))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = DecodeMessage([]byte(`{"job_id":"abc","attempt":1,"max_attempts":3}`))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

type fakePublisher struct {
	mu     sync.Mutex
	bodies [][]byte
	err    error
}

func (f *fakePublisher) PublishWithRetry(_ context.Context, body []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}

type fakeRecords struct {
	created map[string]Options
	failed  map[string]string
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{created: map[string]Options{}, failed: map[string]string{}}
}

func (f *fakeRecords) Create(_ context.Context, jobID, _ string, opts Options) error {
	f.created[jobID] = opts
	return nil
}

func (f *fakeRecords) MarkFailed(_ context.Context, jobID, lastErr string) error {
	f.failed[jobID] = lastErr
	return nil
}

func TestProducer_Enqueue(t *testing.T) {
	pub := &fakePublisher{}
	records := newFakeRecords()
	producer := NewProducer(pub, records, testLogger())

	job := validJob()
	jobID, err := producer.Enqueue(context.Background(), job, Options{})
	require.NoError(t, err)
	require.Contains(t, records.created, jobID)
	assert.Equal(t, DefaultOptions(), records.created[jobID])

	require.Len(t, pub.bodies, 1)
	msg, err := DecodeMessage(pub.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, jobID, msg.JobID)
	assert.Equal(t, 1, msg.Attempt)
	assert.Equal(t, int64(2000), msg.BackoffMS)
	assert.Equal(t, job.RunID, msg.Job.RunID)
}

func TestProducer_Enqueue_Errors(t *testing.T) {
	t.Run("invalid envelope is never recorded", func(t *testing.T) {
		records := newFakeRecords()
		producer := NewProducer(&fakePublisher{}, records, testLogger())

		_, err := producer.Enqueue(context.Background(), Job{}, DefaultOptions())
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
		assert.Empty(t, records.created)
	})

	t.Run("publish failure marks record failed", func(t *testing.T) {
		records := newFakeRecords()
		producer := NewProducer(&fakePublisher{err: errors.New("broker down")}, records, testLogger())

		_, err := producer.Enqueue(context.Background(), validJob(), DefaultOptions())
		require.Error(t, err)
		assert.Len(t, records.failed, 1)
	})
}

type fakePruneStore struct {
	cutoffs map[string]time.Time
	deleted map[string]int64
}

func (f *fakePruneStore) DeleteFinishedBefore(_ context.Context, status string, cutoff time.Time) (int64, error) {
	f.cutoffs[status] = cutoff
	return f.deleted[status], nil
}

func TestPruner_RunOnce(t *testing.T) {
	store := &fakePruneStore{
		cutoffs: map[string]time.Time{},
		deleted: map[string]int64{domain.JobStatusCompleted: 4, domain.JobStatusFailed: 1},
	}
	pruner := NewPruner(store, PrunerConfig{}, testLogger())

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	pruner.now = func() time.Time { return now }

	deleted, err := pruner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)
	assert.Equal(t, now.Add(-24*time.Hour), store.cutoffs[domain.JobStatusCompleted])
	assert.Equal(t, now.Add(-7*24*time.Hour), store.cutoffs[domain.JobStatusFailed])
}

func TestStore_MarkActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(sqlx.NewDb(db, "sqlmock"), testLogger())

	mock.ExpectExec("UPDATE jobs SET status = \\$1, attempt = \\$2").
		WithArgs(domain.JobStatusActive, 2, "job-1", domain.JobStatusQueued, domain.JobStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE jobs SET status = \\$1, attempt = \\$2").
		WithArgs(domain.JobStatusActive, 1, "job-2", domain.JobStatusQueued, domain.JobStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.MarkActive(context.Background(), "job-1", 2))
	assert.ErrorIs(t, store.MarkActive(context.Background(), "job-2", 1), domain.ErrJobFinished)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteFinishedBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(sqlx.NewDb(db, "sqlmock"), testLogger())
	cutoff := time.Now().Add(-time.Hour)

	mock.ExpectExec("DELETE FROM jobs").
		WithArgs(domain.JobStatusCompleted, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := store.DeleteFinishedBefore(context.Background(), domain.JobStatusCompleted, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
}
