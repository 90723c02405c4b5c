package store

import (
	"context"
	"database/sql"

	"github.com/lwhela12/the-hive-sub001/models"
)

// GetProfile fetches a member profile scoped to one community.
func (s *Store) GetProfile(ctx context.Context, communityID, userID string) (models.Profile, bool, error) {
	var p models.Profile
	var bio, notes sql.NullString
	err := s.DB.QueryRowContext(ctx, `
SELECT user_id, community_id, display_name, bio, notes, onboarding_complete, created_at, updated_at
FROM profiles
WHERE community_id=$1 AND user_id=$2
`, communityID, userID).Scan(&p.UserID, &p.CommunityID, &p.DisplayName, &bio, &notes, &p.OnboardingComplete, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Profile{}, false, nil
	}
	if err != nil {
		return models.Profile{}, false, err
	}
	p.Bio = bio.String
	p.Notes = notes.String
	return p, true, nil
}

// UpdateProfile updates display name and/or bio; nil fields are left alone.
func (s *Store) UpdateProfile(ctx context.Context, communityID, userID string, displayName, bio *string) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE profiles SET
  display_name = COALESCE($3, display_name),
  bio = COALESCE($4, bio),
  updated_at = now()
WHERE community_id=$1 AND user_id=$2
`, communityID, userID, displayName, bio)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetOnboardingComplete marks the caller's onboarding as finished.
func (s *Store) SetOnboardingComplete(ctx context.Context, communityID, userID string) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE profiles SET onboarding_complete=TRUE, updated_at=now()
WHERE community_id=$1 AND user_id=$2
`, communityID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpsertNotes replaces the caller's personal notes.
func (s *Store) UpsertNotes(ctx context.Context, communityID, userID, notes string) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE profiles SET notes=$3, updated_at=now()
WHERE community_id=$1 AND user_id=$2
`, communityID, userID, notes)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListSkills returns the caller's recorded skills, oldest first.
func (s *Store) ListSkills(ctx context.Context, communityID, userID string) ([]models.Skill, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, community_id, name, detail, created_at
FROM skills
WHERE community_id=$1 AND user_id=$2
ORDER BY created_at ASC
`, communityID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSkills(rows)
}

// ListPeerSkills returns skills of everyone in the community except the caller.
func (s *Store) ListPeerSkills(ctx context.Context, communityID, excludeUserID string) ([]models.Skill, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, community_id, name, detail, created_at
FROM skills
WHERE community_id=$1 AND user_id<>$2
ORDER BY created_at DESC
LIMIT 100
`, communityID, excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSkills(rows)
}

func scanSkills(rows *sql.Rows) ([]models.Skill, error) {
	var out []models.Skill
	for rows.Next() {
		var sk models.Skill
		var detail sql.NullString
		if err := rows.Scan(&sk.ID, &sk.UserID, &sk.CommunityID, &sk.Name, &detail, &sk.CreatedAt); err != nil {
			return nil, err
		}
		sk.Detail = detail.String
		out = append(out, sk)
	}
	return out, rows.Err()
}

// AddSkill records a new skill for the caller.
func (s *Store) AddSkill(ctx context.Context, communityID, userID, name, detail string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO skills (community_id, user_id, name, detail)
VALUES ($1,$2,$3,$4)
RETURNING id
`, communityID, userID, name, nullableString(detail)).Scan(&id)
	return id, err
}

// ListWishes returns the caller's own wishes, including private ones.
func (s *Store) ListWishes(ctx context.Context, communityID, userID string) ([]models.Wish, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, community_id, title, detail, visibility, status, created_at, updated_at
FROM wishes
WHERE community_id=$1 AND user_id=$2
ORDER BY created_at ASC
`, communityID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWishes(rows)
}

// ListOpenWishes returns published, unfulfilled wishes of everyone except
// the caller.
func (s *Store) ListOpenWishes(ctx context.Context, communityID, excludeUserID string) ([]models.Wish, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, community_id, title, detail, visibility, status, created_at, updated_at
FROM wishes
WHERE community_id=$1 AND user_id<>$2 AND visibility='open' AND status='open'
ORDER BY created_at DESC
LIMIT 100
`, communityID, excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWishes(rows)
}

func scanWishes(rows *sql.Rows) ([]models.Wish, error) {
	var out []models.Wish
	for rows.Next() {
		var w models.Wish
		var detail sql.NullString
		if err := rows.Scan(&w.ID, &w.UserID, &w.CommunityID, &w.Title, &detail, &w.Visibility, &w.Status, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		w.Detail = detail.String
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetWish fetches one of the caller's wishes.
func (s *Store) GetWish(ctx context.Context, communityID, userID, wishID string) (models.Wish, bool, error) {
	var w models.Wish
	var detail sql.NullString
	err := s.DB.QueryRowContext(ctx, `
SELECT id, user_id, community_id, title, detail, visibility, status, created_at, updated_at
FROM wishes
WHERE community_id=$1 AND user_id=$2 AND id=$3
`, communityID, userID, wishID).Scan(&w.ID, &w.UserID, &w.CommunityID, &w.Title, &detail, &w.Visibility, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Wish{}, false, nil
	}
	if err != nil {
		return models.Wish{}, false, err
	}
	w.Detail = detail.String
	return w, true, nil
}

// CreateWish records a new wish owned by the caller.
func (s *Store) CreateWish(ctx context.Context, communityID, userID, title, detail string, visibility models.WishVisibility) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO wishes (community_id, user_id, title, detail, visibility, status)
VALUES ($1,$2,$3,$4,$5,'open')
RETURNING id
`, communityID, userID, title, nullableString(detail), string(visibility)).Scan(&id)
	return id, err
}

// PublishWish flips one of the caller's private wishes to open visibility.
func (s *Store) PublishWish(ctx context.Context, communityID, userID, wishID string) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE wishes SET visibility='open', updated_at=now()
WHERE community_id=$1 AND user_id=$2 AND id=$3
`, communityID, userID, wishID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// FulfillWish marks one of the caller's wishes as fulfilled.
func (s *Store) FulfillWish(ctx context.Context, communityID, userID, wishID string) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE wishes SET status='fulfilled', updated_at=now()
WHERE community_id=$1 AND user_id=$2 AND id=$3
`, communityID, userID, wishID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListMembers returns the community member directory.
func (s *Store) ListMembers(ctx context.Context, communityID string) ([]models.Member, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT user_id, display_name, bio
FROM profiles
WHERE community_id=$1
ORDER BY display_name ASC
`, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Member
	for rows.Next() {
		var m models.Member
		var bio sql.NullString
		if err := rows.Scan(&m.UserID, &m.DisplayName, &bio); err != nil {
			return nil, err
		}
		m.Bio = bio.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListPendingActionItems returns the caller's unfinished action items.
func (s *Store) ListPendingActionItems(ctx context.Context, communityID, userID string) ([]models.ActionItem, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, community_id, user_id, description, done, created_at
FROM action_items
WHERE community_id=$1 AND user_id=$2 AND done=FALSE
ORDER BY created_at ASC
`, communityID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ActionItem
	for rows.Next() {
		var a models.ActionItem
		if err := rows.Scan(&a.ID, &a.CommunityID, &a.UserID, &a.Description, &a.Done, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
