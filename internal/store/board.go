package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lwhela12/the-hive-sub001/models"
)

// ListRecentBoardPosts returns recent posts, pinned first then newest, with
// author names and reply counts. Feeds the board index and the search tool.
func (s *Store) ListRecentBoardPosts(ctx context.Context, communityID string, since time.Time, limit int) ([]models.BoardPost, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT p.id, p.community_id, p.author_id, COALESCE(pr.display_name, ''), p.title, p.body, p.category, p.pinned,
       (SELECT COUNT(*) FROM board_replies r WHERE r.post_id = p.id) AS reply_count,
       p.created_at
FROM board_posts p
LEFT JOIN profiles pr ON pr.community_id = p.community_id AND pr.user_id = p.author_id
WHERE p.community_id=$1 AND p.created_at >= $2
ORDER BY p.pinned DESC, p.created_at DESC
LIMIT $3
`, communityID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.BoardPost
	for rows.Next() {
		var p models.BoardPost
		var body, category sql.NullString
		if err := rows.Scan(&p.ID, &p.CommunityID, &p.AuthorID, &p.AuthorName, &p.Title, &body, &category, &p.Pinned, &p.ReplyCount, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Body = body.String
		p.Category = category.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetBoardPost fetches one post scoped to the caller's community.
func (s *Store) GetBoardPost(ctx context.Context, communityID, postID string) (models.BoardPost, bool, error) {
	var p models.BoardPost
	var body, category sql.NullString
	err := s.DB.QueryRowContext(ctx, `
SELECT p.id, p.community_id, p.author_id, COALESCE(pr.display_name, ''), p.title, p.body, p.category, p.pinned,
       (SELECT COUNT(*) FROM board_replies r WHERE r.post_id = p.id) AS reply_count,
       p.created_at
FROM board_posts p
LEFT JOIN profiles pr ON pr.community_id = p.community_id AND pr.user_id = p.author_id
WHERE p.community_id=$1 AND p.id=$2
`, communityID, postID).Scan(&p.ID, &p.CommunityID, &p.AuthorID, &p.AuthorName, &p.Title, &body, &category, &p.Pinned, &p.ReplyCount, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return models.BoardPost{}, false, nil
	}
	if err != nil {
		return models.BoardPost{}, false, err
	}
	p.Body = body.String
	p.Category = category.String
	return p, true, nil
}
