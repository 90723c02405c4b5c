package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lwhela12/the-hive-sub001/models"
)

// GetFeaturedProject returns the community's current spotlight holder.
func (s *Store) GetFeaturedProject(ctx context.Context, communityID string) (models.FeaturedProject, bool, error) {
	var fp models.FeaturedProject
	var detail sql.NullString
	err := s.DB.QueryRowContext(ctx, `
SELECT community_id, user_id, title, detail, started_at
FROM featured_projects
WHERE community_id=$1
ORDER BY started_at DESC
LIMIT 1
`, communityID).Scan(&fp.CommunityID, &fp.UserID, &fp.Title, &detail, &fp.StartedAt)
	if err == sql.ErrNoRows {
		return models.FeaturedProject{}, false, nil
	}
	if err != nil {
		return models.FeaturedProject{}, false, err
	}
	fp.Detail = detail.String
	return fp, true, nil
}

// CommunityBalance sums the community's balance ledger.
func (s *Store) CommunityBalance(ctx context.Context, communityID string) (int64, error) {
	var balance int64
	err := s.DB.QueryRowContext(ctx, `
SELECT COALESCE(SUM(delta), 0) FROM balance_ledger WHERE community_id=$1
`, communityID).Scan(&balance)
	return balance, err
}

// ListUpcomingEvents returns near-term events, soonest first.
func (s *Store) ListUpcomingEvents(ctx context.Context, communityID string, until time.Time, limit int) ([]models.Event, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, community_id, title, location, starts_at
FROM events
WHERE community_id=$1 AND starts_at >= now() AND starts_at <= $2
ORDER BY starts_at ASC
LIMIT $3
`, communityID, until, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Event
	for rows.Next() {
		var e models.Event
		var loc sql.NullString
		if err := rows.Scan(&e.ID, &e.CommunityID, &e.Title, &loc, &e.StartsAt); err != nil {
			return nil, err
		}
		e.Location = loc.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListRecentMeetings returns meetings held since the given instant, newest
// first. Feeds the meetings summarizer.
func (s *Store) ListRecentMeetings(ctx context.Context, communityID string, since time.Time, limit int) ([]models.Meeting, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, community_id, title, notes, held_at
FROM meetings
WHERE community_id=$1 AND held_at >= $2
ORDER BY held_at DESC
LIMIT $3
`, communityID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Meeting
	for rows.Next() {
		var m models.Meeting
		if err := rows.Scan(&m.ID, &m.CommunityID, &m.Title, &m.Notes, &m.HeldAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
