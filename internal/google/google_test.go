package google

import (
	"context"
	"database/sql"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProvider(t *testing.T) (*IdentityProvider, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewIdentityProvider(sqlx.NewDb(db, "sqlmock"), OAuthConfig{ClientID: "id", ClientSecret: "secret"}, testLogger()), mock
}

func TestIdentityProvider_DefaultUser(t *testing.T) {
	p, mock := newProvider(t)

	mock.ExpectQuery("SELECT user_id FROM accounts").
		WithArgs(ProviderName).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-1"))
	mock.ExpectQuery("SELECT user_id FROM accounts").
		WithArgs(ProviderName).
		WillReturnError(sql.ErrNoRows)

	userID, err := p.DefaultUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = p.DefaultUser(context.Background())
	assert.ErrorIs(t, err, ErrNoAccountConnected)
}

func TestIdentityProvider_Client(t *testing.T) {
	p, mock := newProvider(t)
	cols := []string{"user_id", "access_token", "refresh_token", "token_type", "expires_at"}

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE user_id").
		WithArgs("user-1", ProviderName).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("user-1", "access", "refresh", "Bearer", time.Now().Add(time.Hour)))
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE user_id").
		WithArgs("user-2", ProviderName).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("user-2", "", "", "Bearer", nil))

	client, err := p.Client(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = p.Client(context.Background(), "user-2")
	assert.ErrorIs(t, err, ErrNoAccountConnected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeMessage(t *testing.T) {
	raw := EncodeMessage(Draft{To: "client@acme.test", Subject: "Follow-up: Kickoff", Body: "<p>Thanks</p>"})
	assert.NotContains(t, raw, "=")
	assert.NotContains(t, raw, "+")
	assert.NotContains(t, raw, "/")

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Equal(t, "To: client@acme.test\r\nSubject: Follow-up: Kickoff\r\nContent-Type: text/html; charset=utf-8\r\n\r\n<p>Thanks</p>", string(decoded))
}

type staticClientSource struct {
	client *http.Client
	err    error
}

func (s staticClientSource) DefaultUser(context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "user-1", nil
}

func (s staticClientSource) Client(context.Context, string) (*http.Client, error) {
	return s.client, nil
}

func TestWorkspace_CreateDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/users/me/drafts"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"draft-1","message":{"id":"msg-1"}}`))
	}))
	defer srv.Close()

	ws := NewWorkspace(staticClientSource{client: srv.Client()}, testLogger())
	ws.endpoint = srv.URL + "/"

	ref, err := ws.CreateDraft(context.Background(), Draft{To: "a@b.test", Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, "draft-1", ref.DraftID)
	assert.Equal(t, "msg-1", ref.MessageID)
}

func TestWorkspace_NoAccount(t *testing.T) {
	ws := NewWorkspace(staticClientSource{err: ErrNoAccountConnected}, testLogger())

	_, err := ws.CreateDocument(context.Background(), DocumentRequest{Title: "t"})
	assert.ErrorIs(t, err, ErrNoAccountConnected)

	_, err = ws.CreateDraft(context.Background(), Draft{})
	assert.ErrorIs(t, err, ErrNoAccountConnected)
}
