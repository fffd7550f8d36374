package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Archive stores fully loaded conversations in a local SQLite database
type Archive struct {
	db   *sql.DB
	path string
}

// ArchivedConversation is a row of the archive listing
type ArchivedConversation struct {
	ConversationSummary
	// Archived is the number of messages stored locally.
	Archived   int
	ArchivedAt time.Time
}

// OpenArchive opens the archive at path, creating it if needed
func OpenArchive(path string) (*Archive, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, &ArchiveError{Path: path, Op: "open", Err: err}
	}
	return &Archive{db: db, path: path}, nil
}

// NewArchive wraps an already open database, applying the schema
func NewArchive(db *sql.DB) (*Archive, error) {
	if err := migrate(db); err != nil {
		return nil, &ArchiveError{Path: "(db)", Op: "migrate", Err: err}
	}
	return &Archive{db: db, path: "(db)"}, nil
}

// Path returns the database path
func (a *Archive) Path() string {
	return a.path
}

// Close closes the database
func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveConversation stores a conversation and its messages. Messages already
// archived are left untouched, so saving a longer snapshot later only adds
// the new tail. It returns how many messages were inserted.
func (a *Archive) SaveConversation(ctx context.Context, detail *ConversationDetail) (int, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &ArchiveError{Path: a.path, Op: "save", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, title, user_id, created_at, updated_at, total, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			user_id = excluded.user_id,
			updated_at = excluded.updated_at,
			total = excluded.total,
			archived_at = excluded.archived_at`,
		detail.ID, detail.Title, detail.UserID,
		formatTime(detail.CreatedAt), formatTime(detail.UpdatedAt),
		detail.Total, formatTime(time.Now()))
	if err != nil {
		return 0, &ArchiveError{Path: a.path, Op: "save", Err: fmt.Errorf("conversation %s: %w", detail.ID, err)}
	}

	var nextSeq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM messages WHERE conversation_id = ?`, detail.ID).Scan(&nextSeq); err != nil {
		return 0, &ArchiveError{Path: a.path, Op: "save", Err: err}
	}

	inserted := 0
	for _, msg := range detail.Messages {
		var thinking sql.NullFloat64
		if msg.ThinkingSeconds != nil {
			thinking = sql.NullFloat64{Float64: *msg.ThinkingSeconds, Valid: true}
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO messages (conversation_id, id, seq, role, content, created_at, thinking_seconds)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			detail.ID, msg.ID, nextSeq, string(msg.Role), msg.Content, formatTime(msg.CreatedAt), thinking)
		if err != nil {
			return 0, &ArchiveError{Path: a.path, Op: "save", Err: fmt.Errorf("message %s: %w", msg.ID, err)}
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		nextSeq++
		inserted++

		for pos, img := range msg.Images {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO images (row_id, conversation_id, message_id, position, url, width, height, mime_type, prompt)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), detail.ID, msg.ID, pos, img.URL, img.Width, img.Height, img.MimeType, img.Prompt); err != nil {
				return 0, &ArchiveError{Path: a.path, Op: "save", Err: fmt.Errorf("image of %s: %w", msg.ID, err)}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &ArchiveError{Path: a.path, Op: "save", Err: err}
	}
	LogDebug("Archived %s: %d new messages", detail.ID, inserted)
	return inserted, nil
}

// LoadConversation reads a conversation back from the archive
func (a *Archive) LoadConversation(ctx context.Context, conversationID string) (*ConversationDetail, error) {
	var (
		detail               ConversationDetail
		createdAt, updatedAt string
	)
	err := a.db.QueryRowContext(ctx, `
		SELECT id, title, user_id, created_at, updated_at, total
		FROM conversations WHERE id = ?`, conversationID).
		Scan(&detail.ID, &detail.Title, &detail.UserID, &createdAt, &updatedAt, &detail.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ArchiveError{Path: a.path, Op: "load", Err: fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)}
	}
	if err != nil {
		return nil, &ArchiveError{Path: a.path, Op: "load", Err: err}
	}
	detail.CreatedAt = parseTime(createdAt)
	detail.UpdatedAt = parseTime(updatedAt)

	images, err := a.loadImages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, role, content, created_at, thinking_seconds
		FROM messages WHERE conversation_id = ? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, &ArchiveError{Path: a.path, Op: "load", Err: err}
	}
	defer rows.Close()

	detail.Messages = make([]Message, 0)
	for rows.Next() {
		var (
			msg      Message
			role     string
			created  string
			thinking sql.NullFloat64
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &created, &thinking); err != nil {
			return nil, &ArchiveError{Path: a.path, Op: "load", Err: err}
		}
		msg.Role = Role(role)
		msg.CreatedAt = parseTime(created)
		if thinking.Valid {
			secs := thinking.Float64
			msg.ThinkingSeconds = &secs
		}
		msg.Images = images[msg.ID]
		detail.Messages = append(detail.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, &ArchiveError{Path: a.path, Op: "load", Err: err}
	}

	detail.Page = 1
	return &detail, nil
}

func (a *Archive) loadImages(ctx context.Context, conversationID string) (map[string][]Image, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT message_id, url, width, height, mime_type, prompt
		FROM images WHERE conversation_id = ? ORDER BY message_id, position`, conversationID)
	if err != nil {
		return nil, &ArchiveError{Path: a.path, Op: "load", Err: err}
	}
	defer rows.Close()

	images := make(map[string][]Image)
	for rows.Next() {
		var (
			messageID string
			img       Image
		)
		if err := rows.Scan(&messageID, &img.URL, &img.Width, &img.Height, &img.MimeType, &img.Prompt); err != nil {
			return nil, &ArchiveError{Path: a.path, Op: "load", Err: err}
		}
		images[messageID] = append(images[messageID], img)
	}
	return images, rows.Err()
}

// ListConversations lists archived conversations, most recently archived first
func (a *Archive) ListConversations(ctx context.Context) ([]ArchivedConversation, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.user_id, c.created_at, c.updated_at, c.total, c.archived_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.archived_at DESC, c.id`)
	if err != nil {
		return nil, &ArchiveError{Path: a.path, Op: "load", Err: err}
	}
	defer rows.Close()

	var out []ArchivedConversation
	for rows.Next() {
		var (
			row                              ArchivedConversation
			createdAt, updatedAt, archivedAt string
		)
		if err := rows.Scan(&row.ID, &row.Title, &row.UserID, &createdAt, &updatedAt,
			&row.MessageCount, &archivedAt, &row.Archived); err != nil {
			return nil, &ArchiveError{Path: a.path, Op: "load", Err: err}
		}
		row.CreatedAt = parseTime(createdAt)
		row.UpdatedAt = parseTime(updatedAt)
		row.ArchivedAt = parseTime(archivedAt)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &ArchiveError{Path: a.path, Op: "load", Err: err}
	}
	return out, nil
}

// DeleteConversation removes a conversation and everything attached to it
func (a *Archive) DeleteConversation(ctx context.Context, conversationID string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conversationID)
	if err != nil {
		return &ArchiveError{Path: a.path, Op: "delete", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ArchiveError{Path: a.path, Op: "delete", Err: fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
