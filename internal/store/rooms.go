package store

import (
	"context"
	"time"

	"github.com/lwhela12/the-hive-sub001/models"
)

// ListRecentRoomMessages returns raw messages since the given instant from
// rooms the user belongs to, oldest first so renderers keep conversation
// order. Room and author names come along for display.
func (s *Store) ListRecentRoomMessages(ctx context.Context, communityID, userID string, since time.Time, limit int) ([]models.RoomMessage, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT m.id, m.room_id, r.name, m.user_id, COALESCE(pr.display_name, ''), m.body, m.created_at
FROM room_messages m
JOIN rooms r ON r.id = m.room_id AND r.community_id = $1
JOIN room_members rm ON rm.room_id = m.room_id AND rm.user_id = $2
LEFT JOIN profiles pr ON pr.community_id = $1 AND pr.user_id = m.user_id
WHERE m.created_at >= $3
ORDER BY m.created_at DESC
LIMIT $4
`, communityID, userID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.RoomMessage
	for rows.Next() {
		var m models.RoomMessage
		if err := rows.Scan(&m.ID, &m.RoomID, &m.RoomName, &m.UserID, &m.AuthorName, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest-first query keeps the cap on recency; flip back to chronological.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
