package assistant

import (
	"context"
	"time"

	"github.com/lwhela12/the-hive-sub001/internal/store"
	"github.com/lwhela12/the-hive-sub001/models"
)

// History is the resolved conversation window for one request: a verbatim
// recent tail plus, for long conversations, a cached digest of the rest.
type History struct {
	RecentMessages []models.ConversationMessage
	Summary        string
	SummaryHit     bool
	Summarized     bool
	TotalCount     int
}

// HistoryManager bounds the transcript tokens sent to the reasoning engine:
// conversations at or under Threshold travel verbatim; longer ones keep the
// last Tail messages and summarize everything older.
type HistoryManager struct {
	Store      *store.Store
	Cache      *SummaryCache
	Summarizer *Summarizer
	Threshold  int
	Tail       int
}

func NewHistoryManager(st *store.Store, cache *SummaryCache, sum *Summarizer, threshold, tail int) *HistoryManager {
	if threshold <= 0 {
		threshold = 20
	}
	if tail <= 0 {
		tail = 10
	}
	return &HistoryManager{Store: st, Cache: cache, Summarizer: sum, Threshold: threshold, Tail: tail}
}

// Resolve fetches the effective history for the scope. Summarization is only
// attempted above the threshold, and only when a conversation id pins the
// scope; community-wide history keeps just the verbatim tail.
func (h *HistoryManager) Resolve(ctx context.Context, communityID, userID, conversationID string) (History, error) {
	total, err := h.Store.CountConversationMessages(ctx, communityID, userID, conversationID)
	if err != nil {
		return History{}, err
	}
	if total == 0 {
		return History{TotalCount: 0}, nil
	}

	if total <= h.Threshold {
		msgs, err := h.Store.ListRecentConversationMessages(ctx, communityID, userID, conversationID, total)
		if err != nil {
			return History{}, err
		}
		return History{RecentMessages: msgs, TotalCount: total}, nil
	}

	recent, err := h.Store.ListRecentConversationMessages(ctx, communityID, userID, conversationID, h.Tail)
	if err != nil {
		return History{}, err
	}
	out := History{RecentMessages: recent, TotalCount: total}
	if conversationID == "" {
		return out, nil
	}

	older := total - h.Tail
	scope := Scope{CommunityID: communityID, UserID: userID, Type: models.SummaryConversation, ConversationID: conversationID}
	summary, hit, err := h.Cache.GetOrGenerate(ctx, scope, older, func(ctx context.Context) (string, int, time.Time, error) {
		msgs, err := h.Store.ListOldestConversationMessages(ctx, communityID, userID, conversationID, older)
		if err != nil {
			return "", 0, time.Time{}, err
		}
		content, err := h.Summarizer.SummarizeConversation(ctx, msgs)
		if err != nil {
			return "", 0, time.Time{}, err
		}
		var last time.Time
		if n := len(msgs); n > 0 {
			last = msgs[n-1].CreatedAt
		}
		return content, len(msgs), last, nil
	})
	if err != nil {
		return History{}, err
	}
	out.Summary = summary
	out.SummaryHit = hit
	out.Summarized = summary != ""
	return out, nil
}
