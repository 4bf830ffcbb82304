package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cuongbtq/meeting-pipeline/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runCols = []string{"id", "meeting_id", "external_id", "status", "transcript", "metadata", "deliverables", "log", "created_at", "updated_at", "finished_at"}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return sqlx.NewDb(db, "sqlmock"), mock
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runRowValues(id, meetingID, status string, finished driver.Value) []driver.Value {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []driver.Value{
		id, meetingID, nil, status, "John: hi",
		[]byte(`{"meeting_title":"Kickoff"}`), []byte(`["PROPOSAL"]`), []byte(`[]`),
		now, now, finished,
	}
}

func addRunRow(rows *sqlmock.Rows, values []driver.Value) *sqlmock.Rows {
	return rows.AddRow(values...)
}

func TestRunStore_CreateIfAbsent_New(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewRunStore(db, testLogger())

	rows := addRunRow(sqlmock.NewRows(runCols), runRowValues("run-1", "m-1", domain.RunStatusPending, nil))
	mock.ExpectQuery("INSERT INTO runs").
		WithArgs(sqlmock.AnyArg(), "m-1", sqlmock.AnyArg(), domain.RunStatusPending, "John: hi", sqlmock.AnyArg()).
		WillReturnRows(rows)

	run, created, err := s.CreateIfAbsent(context.Background(), domain.NewRun{
		MeetingID:  "m-1",
		Transcript: "John: hi",
		Metadata:   domain.Metadata{"meeting_title": "Kickoff"},
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "Kickoff", run.Metadata.String("meeting_title"))
	assert.Equal(t, []domain.DeliverableType{domain.DeliverableProposal}, run.Deliverables)
	assert.Nil(t, run.FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_CreateIfAbsent_Existing(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewRunStore(db, testLogger())

	mock.ExpectQuery("INSERT INTO runs").WillReturnRows(sqlmock.NewRows(runCols))
	mock.ExpectQuery("SELECT (.+) FROM runs WHERE meeting_id").
		WithArgs("m-1").
		WillReturnRows(addRunRow(sqlmock.NewRows(runCols), runRowValues("run-1", "m-1", domain.RunStatusProcessing, nil)))

	run, created, err := s.CreateIfAbsent(context.Background(), domain.NewRun{MeetingID: "m-1", Transcript: "x"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, domain.RunStatusProcessing, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewRunStore(db, testLogger())

	mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunStore_UpdateStatus(t *testing.T) {
	t.Run("allowed transition", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewRunStore(db, testLogger())

		mock.ExpectExec("UPDATE runs").
			WithArgs(domain.RunStatusCompleted, nil, nil,
				domain.RunStatusCompleted, domain.RunStatusFailed, "run-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.UpdateStatus(context.Background(), "run-1", domain.RunStatusCompleted, domain.StatusUpdate{})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("metadata bound only when present", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewRunStore(db, testLogger())

		mock.ExpectExec("UPDATE runs").
			WithArgs(domain.RunStatusProcessing, nil, []byte(`{"meeting_title":"Kickoff"}`),
				domain.RunStatusCompleted, domain.RunStatusFailed, "run-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.UpdateStatus(context.Background(), "run-1", domain.RunStatusProcessing,
			domain.StatusUpdate{Metadata: domain.Metadata{"meeting_title": "Kickoff"}})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("completed run is final", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewRunStore(db, testLogger())

		finished := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)
		mock.ExpectExec("UPDATE runs").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").
			WithArgs("run-1").
			WillReturnRows(addRunRow(sqlmock.NewRows(runCols), runRowValues("run-1", "m-1", domain.RunStatusCompleted, finished)))

		transcript := "new transcript"
		err := s.UpdateStatus(context.Background(), "run-1", domain.RunStatusProcessing, domain.StatusUpdate{Transcript: &transcript})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing run", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewRunStore(db, testLogger())

		mock.ExpectExec("UPDATE runs").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").WillReturnError(sql.ErrNoRows)

		err := s.UpdateStatus(context.Background(), "run-x", domain.RunStatusFailed, domain.StatusUpdate{})
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("pending is never a target", func(t *testing.T) {
		db, _ := newMockDB(t)
		s := NewRunStore(db, testLogger())

		err := s.UpdateStatus(context.Background(), "run-1", domain.RunStatusPending, domain.StatusUpdate{})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestRunStore_AppendLogAndDeliverables(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewRunStore(db, testLogger())

	mock.ExpectExec("UPDATE runs SET log = log").
		WithArgs(sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE runs SET deliverables").
		WithArgs([]byte(`["PROPOSAL","FOLLOWUP_EMAIL"]`), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE runs SET log = log").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, s.AppendLog(ctx, "run-1", domain.NewLogEntry(domain.LogLevelInfo, "classified", nil)))
	require.NoError(t, s.SetDeliverables(ctx, "run-1", []domain.DeliverableType{domain.DeliverableProposal, domain.DeliverableFollowupEmail}))

	err := s.AppendLog(ctx, "gone", domain.NewLogEntry(domain.LogLevelError, "boom", nil))
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_List(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewRunStore(db, testLogger())

	cursorTime := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(runCols)
	addRunRow(rows, runRowValues("run-2", "m-2", domain.RunStatusCompleted, cursorTime))
	addRunRow(rows, runRowValues("run-1", "m-1", domain.RunStatusCompleted, cursorTime))

	mock.ExpectQuery(`SELECT (.+) FROM runs WHERE 1=1 AND status = \$1 AND \(created_at, id\) < \(\$2, \$3\) ORDER BY created_at DESC, id DESC LIMIT \$4`).
		WithArgs(domain.RunStatusCompleted, cursorTime, "run-9", 3).
		WillReturnRows(rows)

	runs, err := s.List(context.Background(), RunFilter{
		Status:   domain.RunStatusCompleted,
		PageSize: 2,
		Cursor:   &RunCursor{CreatedAt: cursorTime, RunID: "run-9"},
	})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	require.NotNil(t, runs[0].FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var outputCols = []string{"id", "run_id", "type", "title", "share_url", "external_ref", "extra", "created_at"}

func TestOutputStore_Record(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewOutputStore(db, testLogger())

	now := time.Now()
	mock.ExpectQuery("INSERT INTO outputs (.+) ON CONFLICT \\(run_id, type\\) DO UPDATE").
		WithArgs(sqlmock.AnyArg(), "run-1", "PROPOSAL", "Proposal - Kickoff - 2025-03-01", "https://docs/1", "doc-1", []byte(`{"exampleCount":2}`)).
		WillReturnRows(sqlmock.NewRows(outputCols).
			AddRow("out-1", "run-1", "PROPOSAL", "Proposal - Kickoff - 2025-03-01", "https://docs/1", "doc-1", []byte(`{"exampleCount":2}`), now))

	out, err := s.Record(context.Background(), domain.NewOutput{
		RunID:       "run-1",
		Type:        domain.DeliverableProposal,
		Title:       "Proposal - Kickoff - 2025-03-01",
		ShareURL:    "https://docs/1",
		ExternalRef: "doc-1",
		Extra:       map[string]any{"exampleCount": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "out-1", out.ID)
	assert.Equal(t, float64(2), out.Extra["exampleCount"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutputStore_Record_UnknownType(t *testing.T) {
	db, _ := newMockDB(t)
	s := NewOutputStore(db, testLogger())

	_, err := s.Record(context.Background(), domain.NewOutput{RunID: "run-1", Type: "INVOICE"})
	assert.ErrorIs(t, err, domain.ErrUnknownDeliverable)
}

func TestOutputStore_ListAndGet(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewOutputStore(db, testLogger())

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM outputs WHERE run_id = \\$1 ORDER BY").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(outputCols).
			AddRow("out-1", "run-1", "PROPOSAL", "P", "https://docs/1", "doc-1", []byte(`{}`), now).
			AddRow("out-2", "run-1", "SCOPE_OF_WORK", "S", "https://docs/2", "doc-2", []byte(`{}`), now))
	mock.ExpectQuery("SELECT (.+) FROM outputs WHERE run_id = \\$1 AND type = \\$2").
		WithArgs("run-1", "LEGAL_RESEARCH").
		WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	outputs, err := s.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, domain.DeliverableScopeOfWork, outputs[1].Type)

	_, err = s.GetByRunAndType(ctx, "run-1", domain.DeliverableLegalResearch)
	assert.ErrorIs(t, err, domain.ErrOutputNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExampleStore_ListByKind(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewExampleStore(db)

	mock.ExpectQuery("SELECT id, kind, title, content FROM example_documents").
		WithArgs("proposal", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "title", "content"}).
			AddRow("ex-1", "proposal", "Acme proposal", "body"))

	docs, err := s.ListByKind(context.Background(), "proposal", 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Acme proposal", docs[0].Title)
}
