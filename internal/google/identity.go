// Package google resolves stored Google accounts into authorized clients and wraps the
// Docs, Drive and Gmail calls the generators need.
package google

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// ProviderName is the accounts.provider value of Google accounts
const ProviderName = "google"

// ErrNoAccountConnected is returned when no Google account is stored for the user
var ErrNoAccountConnected = errors.New("no Google account connected")

// OAuthConfig holds the OAuth client registration
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

type accountRow struct {
	UserID       string       `db:"user_id"`
	AccessToken  string       `db:"access_token"`
	RefreshToken string       `db:"refresh_token"`
	TokenType    string       `db:"token_type"`
	ExpiresAt    sql.NullTime `db:"expires_at"`
}

// IdentityProvider turns stored account tokens into authorized HTTP clients
type IdentityProvider struct {
	db     *sqlx.DB
	oauth  *oauth2.Config
	logger *slog.Logger
}

// NewIdentityProvider creates an IdentityProvider
func NewIdentityProvider(db *sqlx.DB, cfg OAuthConfig, logger *slog.Logger) *IdentityProvider {
	return &IdentityProvider{
		db: db,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     googleoauth.Endpoint,
		},
		logger: logger,
	}
}

// DefaultUser returns the first user with a connected Google account
func (p *IdentityProvider) DefaultUser(ctx context.Context) (string, error) {
	query := `
		SELECT user_id
		FROM accounts
		WHERE provider = $1
		ORDER BY created_at ASC
		LIMIT 1
	`

	var userID string
	if err := p.db.GetContext(ctx, &userID, query, ProviderName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoAccountConnected
		}
		return "", fmt.Errorf("failed to find default user: %w", err)
	}

	return userID, nil
}

// Token loads the stored token of userID
func (p *IdentityProvider) Token(ctx context.Context, userID string) (*oauth2.Token, error) {
	query := `
		SELECT user_id, access_token, refresh_token, token_type, expires_at
		FROM accounts
		WHERE user_id = $1 AND provider = $2
	`

	var row accountRow
	if err := p.db.GetContext(ctx, &row, query, userID, ProviderName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoAccountConnected
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if row.AccessToken == "" {
		return nil, ErrNoAccountConnected
	}

	token := &oauth2.Token{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		TokenType:    row.TokenType,
	}
	if row.ExpiresAt.Valid {
		token.Expiry = row.ExpiresAt.Time
	}

	return token, nil
}

// Client returns an HTTP client authorized as userID. Refreshed tokens are written back to the
// accounts table.
func (p *IdentityProvider) Client(ctx context.Context, userID string) (*http.Client, error) {
	token, err := p.Token(ctx, userID)
	if err != nil {
		return nil, err
	}

	source := &persistingTokenSource{
		base:     p.oauth.TokenSource(ctx, token),
		last:     token.AccessToken,
		userID:   userID,
		provider: p,
	}

	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, source)), nil
}

func (p *IdentityProvider) saveToken(ctx context.Context, userID string, token *oauth2.Token) error {
	query := `
		UPDATE accounts
		SET access_token = $1,
			refresh_token = COALESCE(NULLIF($2, ''), refresh_token),
			token_type = $3,
			expires_at = $4,
			updated_at = NOW()
		WHERE user_id = $5 AND provider = $6
	`

	var expiresAt sql.NullTime
	if !token.Expiry.IsZero() {
		expiresAt = sql.NullTime{Time: token.Expiry, Valid: true}
	}

	if _, err := p.db.ExecContext(ctx, query,
		token.AccessToken,
		token.RefreshToken,
		token.Type(),
		expiresAt,
		userID,
		ProviderName,
	); err != nil {
		return fmt.Errorf("failed to save refreshed token: %w", err)
	}

	return nil
}

// persistingTokenSource stores every newly minted access token
type persistingTokenSource struct {
	base     oauth2.TokenSource
	userID   string
	provider *IdentityProvider

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token.AccessToken == s.last {
		return token, nil
	}
	s.last = token.AccessToken

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.provider.saveToken(ctx, s.userID, token); err != nil {
		// the fresh token is still usable for this call
		s.provider.logger.Warn("Failed to persist refreshed Google token",
			slog.String("user_id", s.userID),
			slog.String("error", err.Error()),
		)
	} else {
		s.provider.logger.Info("Refreshed Google token persisted",
			slog.String("user_id", s.userID),
		)
	}

	return token, nil
}
