package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"github.com/halcyon-app/halcyon/internal/models"
)

var (
	// ErrConversationNotFound is returned when the conversation id does
	// not exist or belongs to a different owner.
	ErrConversationNotFound = errors.New("conversation not found")
)

const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);

CREATE TABLE IF NOT EXISTS knowledge (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    content TEXT NOT NULL,
    corpus TEXT NOT NULL,
    vector TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_knowledge_corpus ON knowledge(corpus);`

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, multierr.Append(fmt.Errorf("apply schema: %w", err), db.Close())
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// AppendExchange durably appends one user/assistant message pair. With an
// empty convID a new conversation is created first, titled from the user
// message. Both inserts ride one transaction: a conversation can never be
// left holding a user message without its reply because of a failure here.
func (d *Database) AppendExchange(ctx context.Context, convID, ownerID, userText, assistantText string) (string, time.Time, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", time.Time{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if convID == "" {
		convID = uuid.NewString()
		_, err = tx.ExecContext(ctx, `
            INSERT INTO conversations (id, owner_id, title, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?)`,
			convID, ownerID, deriveTitle(userText), now, now)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("create conversation: %w", err)
		}
	} else {
		var owner string
		err = tx.QueryRowContext(ctx,
			`SELECT owner_id FROM conversations WHERE id = ?`, convID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != ownerID) {
			return "", time.Time{}, ErrConversationNotFound
		}
		if err != nil {
			return "", time.Time{}, fmt.Errorf("look up conversation: %w", err)
		}
	}

	const insert = `
        INSERT INTO messages (conversation_id, role, content, created_at)
        VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert, convID, models.RoleUser, userText, now); err != nil {
		return "", time.Time{}, fmt.Errorf("append user message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insert, convID, models.RoleAssistant, assistantText, now); err != nil {
		return "", time.Time{}, fmt.Errorf("append assistant message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, convID); err != nil {
		return "", time.Time{}, fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", time.Time{}, fmt.Errorf("commit exchange: %w", err)
	}
	return convID, now, nil
}

func (d *Database) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	conv := &models.Conversation{ID: id}
	err := d.db.QueryRowContext(ctx, `
        SELECT owner_id, title, created_at, updated_at
        FROM conversations WHERE id = ?`, id).
		Scan(&conv.OwnerID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conv.Messages = make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConvID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, rows.Err()
}

// History returns up to limit most recent messages in chronological
// order. An unknown id or someone else's conversation reports not-found,
// so callers fail before spending provider calls on it.
func (d *Database) History(ctx context.Context, convID, ownerID string, limit int) ([]models.Message, error) {
	var owner string
	err := d.db.QueryRowContext(ctx,
		`SELECT owner_id FROM conversations WHERE id = ?`, convID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != ownerID) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY id DESC
        LIMIT ?`, convID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConvID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest-first from the query; readers want send order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (d *Database) ListConversations(ctx context.Context, ownerID string) ([]models.Conversation, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT id, owner_id, title, created_at, updated_at
        FROM conversations
        WHERE owner_id = ?
        ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.OwnerID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (d *Database) DeleteConversation(ctx context.Context, id, ownerID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrConversationNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *Database) RenameConversation(ctx context.Context, id, ownerID, title string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		title, time.Now().UTC(), id, ownerID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// deriveTitle builds a short title from the opening message, cut at a
// word boundary. The cut counts runes so a multi-byte character is never
// split.
func deriveTitle(text string) string {
	const max = 60
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := string(runes[:max])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
