package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Scopes are the OAuth scopes the generators need on the connected account
var Scopes = []string{
	docs.DocumentsScope,
	drive.DriveFileScope,
	gmail.GmailComposeScope,
}

// ClientSource yields an authorized client for the account that owns generated documents
type ClientSource interface {
	DefaultUser(ctx context.Context) (string, error)
	Client(ctx context.Context, userID string) (*http.Client, error)
}

// DocumentRequest describes a document to create
type DocumentRequest struct {
	Title    string
	FolderID string
	Content  string
	// Public grants read access to anyone with the link
	Public bool
}

// Document is a created Google Doc
type Document struct {
	ID       string
	ShareURL string
}

// Draft is an email draft to create
type Draft struct {
	To      string
	Subject string
	Body    string
}

// DraftRef identifies a created Gmail draft
type DraftRef struct {
	DraftID   string
	MessageID string
}

// Workspace creates Docs and Gmail drafts on behalf of the default connected user
type Workspace struct {
	identity ClientSource
	logger   *slog.Logger
	// endpoint overrides the Google API root, used in tests
	endpoint string
}

// NewWorkspace creates a Workspace
func NewWorkspace(identity ClientSource, logger *slog.Logger) *Workspace {
	return &Workspace{identity: identity, logger: logger}
}

func (w *Workspace) clientOptions(ctx context.Context) ([]option.ClientOption, error) {
	userID, err := w.identity.DefaultUser(ctx)
	if err != nil {
		return nil, err
	}

	httpClient, err := w.identity.Client(ctx, userID)
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if w.endpoint != "" {
		opts = append(opts, option.WithEndpoint(w.endpoint))
	}
	return opts, nil
}

// CreateDocument creates a Google Doc with content, files it under FolderID and returns its link
func (w *Workspace) CreateDocument(ctx context.Context, req DocumentRequest) (*Document, error) {
	opts, err := w.clientOptions(ctx)
	if err != nil {
		return nil, err
	}

	docsSrv, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docs service: %w", err)
	}

	driveSrv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	doc, err := docsSrv.Documents.Create(&docs.Document{Title: req.Title}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	if req.FolderID != "" {
		if _, err := driveSrv.Files.Update(doc.DocumentId, &drive.File{}).
			AddParents(req.FolderID).
			Fields("id, parents").
			Context(ctx).
			Do(); err != nil {
			return nil, fmt.Errorf("failed to move document to folder: %w", err)
		}
	}

	if req.Content != "" {
		update := &docs.BatchUpdateDocumentRequest{
			Requests: []*docs.Request{{
				InsertText: &docs.InsertTextRequest{
					Location: &docs.Location{Index: 1},
					Text:     req.Content,
				},
			}},
		}
		if _, err := docsSrv.Documents.BatchUpdate(doc.DocumentId, update).Context(ctx).Do(); err != nil {
			return nil, fmt.Errorf("failed to write document content: %w", err)
		}
	}

	if req.Public {
		permission := &drive.Permission{Role: "reader", Type: "anyone"}
		if _, err := driveSrv.Permissions.Create(doc.DocumentId, permission).Context(ctx).Do(); err != nil {
			return nil, fmt.Errorf("failed to share document: %w", err)
		}
	}

	file, err := driveSrv.Files.Get(doc.DocumentId).Fields("webViewLink").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get document link: %w", err)
	}

	w.logger.Info("Google Doc created",
		slog.String("document_id", doc.DocumentId),
		slog.Bool("public", req.Public),
	)

	return &Document{ID: doc.DocumentId, ShareURL: file.WebViewLink}, nil
}

// CreateDraft stores an HTML email draft in the default user's mailbox
func (w *Workspace) CreateDraft(ctx context.Context, draft Draft) (*DraftRef, error) {
	opts, err := w.clientOptions(ctx)
	if err != nil {
		return nil, err
	}

	gmailSrv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	created, err := gmailSrv.Users.Drafts.Create("me", &gmail.Draft{
		Message: &gmail.Message{Raw: EncodeMessage(draft)},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail draft: %w", err)
	}

	ref := &DraftRef{DraftID: created.Id}
	if created.Message != nil {
		ref.MessageID = created.Message.Id
	}

	w.logger.Info("Gmail draft created",
		slog.String("draft_id", ref.DraftID),
	)

	return ref, nil
}

// EncodeMessage renders draft as an RFC 2822 message in unpadded base64url
func EncodeMessage(draft Draft) string {
	message := strings.Join([]string{
		"To: " + draft.To,
		"Subject: " + draft.Subject,
		"Content-Type: text/html; charset=utf-8",
		"",
		draft.Body,
	}, "\r\n")

	return base64.RawURLEncoding.EncodeToString([]byte(message))
}
