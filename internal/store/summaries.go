package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lwhela12/the-hive-sub001/models"
)

// Cached summaries are keyed by (community, user, type, conversation). The
// user and conversation components are stored as empty strings when unused
// so the scope key can carry a plain UNIQUE constraint; concurrent
// regenerations therefore upsert onto a single row instead of duplicating.

// GetCachedSummary fetches the summary row for a scope key, regardless of
// expiry. Validity is the caller's concern (models.CachedSummary.Valid).
func (s *Store) GetCachedSummary(ctx context.Context, communityID, userID string, typ models.SummaryType, conversationID string) (models.CachedSummary, bool, error) {
	var cs models.CachedSummary
	err := s.DB.QueryRowContext(ctx, `
SELECT community_id, user_id, summary_type, conversation_id, content, source_count, last_source_at, estimated_tokens, expires_at
FROM cached_summaries
WHERE community_id=$1 AND user_id=$2 AND summary_type=$3 AND conversation_id=$4
`, communityID, userID, string(typ), conversationID).Scan(
		&cs.CommunityID, &cs.UserID, &cs.Type, &cs.ConversationID,
		&cs.Content, &cs.SourceCount, &cs.LastSourceAt, &cs.EstimatedTokens, &cs.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return models.CachedSummary{}, false, nil
	}
	if err != nil {
		return models.CachedSummary{}, false, err
	}
	return cs, true, nil
}

// UpsertCachedSummary writes a summary row, overwriting any previous row for
// the same scope key.
func (s *Store) UpsertCachedSummary(ctx context.Context, cs models.CachedSummary) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO cached_summaries (community_id, user_id, summary_type, conversation_id, content, source_count, last_source_at, estimated_tokens, expires_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (community_id, user_id, summary_type, conversation_id)
DO UPDATE SET content=EXCLUDED.content,
              source_count=EXCLUDED.source_count,
              last_source_at=EXCLUDED.last_source_at,
              estimated_tokens=EXCLUDED.estimated_tokens,
              expires_at=EXCLUDED.expires_at
`, cs.CommunityID, cs.UserID, string(cs.Type), cs.ConversationID,
		cs.Content, cs.SourceCount, cs.LastSourceAt, cs.EstimatedTokens, cs.ExpiresAt)
	return err
}

// DeleteExpiredSummaries removes rows past their expiry. Run by the sweeper.
func (s *Store) DeleteExpiredSummaries(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM cached_summaries WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
