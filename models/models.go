package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Profile is a member's presence inside one community.
type Profile struct {
	UserID             string    `json:"user_id"`
	CommunityID        string    `json:"community_id"`
	DisplayName        string    `json:"display_name"`
	Bio                string    `json:"bio"`
	Notes              string    `json:"notes"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Skill is something a member can offer to the community.
type Skill struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CommunityID string    `json:"community_id"`
	Name        string    `json:"name"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// WishVisibility controls whether a wish is visible to the community.
type WishVisibility string

const (
	WishVisibilityPrivate WishVisibility = "private"
	WishVisibilityOpen    WishVisibility = "open"
)

// WishStatus tracks the lifecycle of a wish.
type WishStatus string

const (
	WishStatusOpen      WishStatus = "open"
	WishStatusFulfilled WishStatus = "fulfilled"
)

// Wish is a member's goal or request, private until published.
type Wish struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	CommunityID string         `json:"community_id"`
	Title       string         `json:"title"`
	Detail      string         `json:"detail,omitempty"`
	Visibility  WishVisibility `json:"visibility"`
	Status      WishStatus     `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// FeaturedProject is the community's current spotlight holder.
type FeaturedProject struct {
	CommunityID string    `json:"community_id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Detail      string    `json:"detail,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// Event is an upcoming community gathering.
type Event struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	Title       string    `json:"title"`
	Location    string    `json:"location,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
}

// Meeting holds notes from a past community meeting.
type Meeting struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	Title       string    `json:"title"`
	Notes       string    `json:"notes"`
	HeldAt      time.Time `json:"held_at"`
}

// ActionItem is a follow-up assigned to a member, usually out of a meeting.
type ActionItem struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Done        bool      `json:"done"`
	CreatedAt   time.Time `json:"created_at"`
}

// BoardPost is a post on the community board.
type BoardPost struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	Category    string    `json:"category,omitempty"`
	Pinned      bool      `json:"pinned"`
	ReplyCount  int       `json:"reply_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// RoomMessage is a chat message inside a community room.
type RoomMessage struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	RoomName   string    `json:"room_name,omitempty"`
	UserID     string    `json:"user_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationRole identifies the speaker of a conversation message.
type ConversationRole string

const (
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
)

// ConversationMessage is one turn of an assistant conversation.
type ConversationMessage struct {
	ID             string           `json:"id"`
	CommunityID    string           `json:"community_id"`
	UserID         string           `json:"user_id"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Role           ConversationRole `json:"role"`
	Content        string           `json:"content"`
	CreatedAt      time.Time        `json:"created_at"`
}

// SummaryType selects the source query and expiry policy of a cached summary.
type SummaryType string

const (
	SummaryConversation  SummaryType = "conversation"
	SummaryBoardActivity SummaryType = "board_activity"
	SummaryRoomMessages  SummaryType = "room_messages"
	SummaryMeetings      SummaryType = "meetings"
)

// TTL returns the fallback expiry for a summary type.
func (t SummaryType) TTL() time.Duration {
	switch t {
	case SummaryBoardActivity, SummaryRoomMessages:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Scoped reports whether the summary is keyed to a single user. Room
// message digests depend on the caller's room memberships, so they are
// never shared across users.
func (t SummaryType) Scoped() bool {
	return t == SummaryConversation || t == SummaryRoomMessages
}

// CachedSummary is a persisted digest keyed by
// (community, user-or-null, type, conversation-or-null).
type CachedSummary struct {
	CommunityID     string      `json:"community_id"`
	UserID          string      `json:"user_id,omitempty"`
	Type            SummaryType `json:"summary_type"`
	ConversationID  string      `json:"conversation_id,omitempty"`
	Content         string      `json:"content"`
	SourceCount     int         `json:"source_count"`
	LastSourceAt    time.Time   `json:"last_source_at"`
	EstimatedTokens int         `json:"estimated_tokens"`
	ExpiresAt       time.Time   `json:"expires_at"`
}

// Valid reports whether the summary may still be served at the given instant.
// A summary whose expiry equals now is already stale.
func (s CachedSummary) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// Member is a lightweight directory entry for a community member.
type Member struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
}
