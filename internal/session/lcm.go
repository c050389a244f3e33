package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrConversationNotFound is returned when no LCM conversation matches.
var ErrConversationNotFound = errors.New("lcm conversation not found")

func OpenLCMDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %q: %w", path, err)
	}
	return db, nil
}

// LookupConversationID resolves the newest LCM conversation of a session.
func LookupConversationID(ctx context.Context, db *sql.DB, sessionID string) (int64, error) {
	var conversationID int64
	err := db.QueryRowContext(ctx, `
		SELECT conversation_id
		FROM conversations
		WHERE session_id = ?
		ORDER BY updated_at DESC, conversation_id DESC
		LIMIT 1
	`, sessionID).Scan(&conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("session %q: %w", sessionID, ErrConversationNotFound)
		}
		return 0, fmt.Errorf("lookup conversation for session %q: %w", sessionID, err)
	}
	return conversationID, nil
}

// LoadConversation reads every stored message of an LCM conversation in seq order.
func LoadConversation(ctx context.Context, db *sql.DB, conversationID int64) ([]Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT message_id, COALESCE(role, ''), COALESCE(content, ''), COALESCE(created_at, '')
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq ASC, message_id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages for conversation %d: %w", conversationID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			messageID int64
			role      string
			content   string
			createdAt string
		)
		if err := rows.Scan(&messageID, &role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if strings.TrimSpace(role) == "" {
			role = "unknown"
		}
		messages = append(messages, Message{
			ID:        strconv.FormatInt(messageID, 10),
			Role:      role,
			Timestamp: createdAt,
			Content:   TextBlocks(content),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	if len(messages) == 0 {
		exists, err := conversationExists(ctx, db, conversationID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("conversation %d: %w", conversationID, ErrConversationNotFound)
		}
	}
	return messages, nil
}

func conversationExists(ctx context.Context, db *sql.DB, conversationID int64) (bool, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE conversation_id = ?`, conversationID).Scan(&count); err != nil {
		return false, fmt.Errorf("check conversation %d: %w", conversationID, err)
	}
	return count > 0, nil
}

// LoadConversationIDs resolves one conversation id per session for list display.
// Lookup failures yield an empty map; the DB is optional for browsing.
func LoadConversationIDs(ctx context.Context, dbPath string, sessionIDs []string) map[string]int64 {
	ids := make(map[string]int64, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return ids
	}
	db, err := OpenLCMDB(dbPath)
	if err != nil {
		return ids
	}
	defer db.Close()

	placeholders := make([]string, len(sessionIDs))
	args := make([]any, len(sessionIDs))
	for i, sessionID := range sessionIDs {
		placeholders[i] = "?"
		args[i] = sessionID
	}
	query := fmt.Sprintf(`
		SELECT session_id, MAX(conversation_id)
		FROM conversations
		WHERE session_id IN (%s)
		GROUP BY session_id
	`, strings.Join(placeholders, ","))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return ids
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID string
		var conversationID int64
		if err := rows.Scan(&sessionID, &conversationID); err != nil {
			continue
		}
		ids[sessionID] = conversationID
	}
	return ids
}
