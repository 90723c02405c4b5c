package store

import (
	"context"
	"database/sql"

	"github.com/lwhela12/the-hive-sub001/models"
)

// conversationScope builds the WHERE clause for the effective history scope:
// by conversation when an id is present, else by community and user.
func conversationWhere(conversationID string) string {
	if conversationID != "" {
		return `community_id=$1 AND user_id=$2 AND conversation_id=$3`
	}
	return `community_id=$1 AND user_id=$2 AND conversation_id IS NULL`
}

func conversationArgs(communityID, userID, conversationID string) []interface{} {
	if conversationID != "" {
		return []interface{}{communityID, userID, conversationID}
	}
	return []interface{}{communityID, userID}
}

// CountConversationMessages returns the total messages in the scope.
func (s *Store) CountConversationMessages(ctx context.Context, communityID, userID, conversationID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_messages WHERE `+conversationWhere(conversationID),
		conversationArgs(communityID, userID, conversationID)...,
	).Scan(&n)
	return n, err
}

// ListRecentConversationMessages returns the newest limit messages in
// chronological order.
func (s *Store) ListRecentConversationMessages(ctx context.Context, communityID, userID, conversationID string, limit int) ([]models.ConversationMessage, error) {
	args := append(conversationArgs(communityID, userID, conversationID), limit)
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, community_id, user_id, COALESCE(conversation_id, ''), role, content, created_at
FROM (
  SELECT * FROM conversation_messages
  WHERE `+conversationWhere(conversationID)+`
  ORDER BY created_at DESC
  LIMIT $`+lastPlaceholder(conversationID)+`
) recent
ORDER BY created_at ASC
`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConversationMessages(rows)
}

// ListOldestConversationMessages returns the oldest limit messages in
// chronological order. Feeds the conversation summarizer.
func (s *Store) ListOldestConversationMessages(ctx context.Context, communityID, userID, conversationID string, limit int) ([]models.ConversationMessage, error) {
	args := append(conversationArgs(communityID, userID, conversationID), limit)
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, community_id, user_id, COALESCE(conversation_id, ''), role, content, created_at
FROM conversation_messages
WHERE `+conversationWhere(conversationID)+`
ORDER BY created_at ASC
LIMIT $`+lastPlaceholder(conversationID), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConversationMessages(rows)
}

func lastPlaceholder(conversationID string) string {
	if conversationID != "" {
		return "4"
	}
	return "3"
}

func scanConversationMessages(rows *sql.Rows) ([]models.ConversationMessage, error) {
	var out []models.ConversationMessage
	for rows.Next() {
		var m models.ConversationMessage
		if err := rows.Scan(&m.ID, &m.CommunityID, &m.UserID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AppendConversationMessage stores one new conversation turn.
func (s *Store) AppendConversationMessage(ctx context.Context, m models.ConversationMessage) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO conversation_messages (community_id, user_id, conversation_id, role, content)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, m.CommunityID, m.UserID, nullableString(m.ConversationID), string(m.Role), m.Content).Scan(&id)
	return id, err
}
