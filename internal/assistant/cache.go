package assistant

import (
	"context"
	"log"
	"time"

	"github.com/lwhela12/the-hive-sub001/internal/store"
	"github.com/lwhela12/the-hive-sub001/models"
)

// Scope is the cache key of one summary: community, optional user, type and
// optional conversation.
type Scope struct {
	CommunityID    string
	UserID         string
	Type           models.SummaryType
	ConversationID string
}

// Regenerator rebuilds a summary from its sources on a cache miss. It
// returns the digest text, the number of source records it covered and the
// timestamp of the newest source.
type Regenerator func(ctx context.Context) (content string, sourceCount int, lastSourceAt time.Time, err error)

// SummaryCache serves summaries through the persisted TTL cache. The only
// concurrency control is the storage-layer uniqueness of the scope key:
// simultaneous misses may both regenerate, but the upsert leaves one row.
type SummaryCache struct {
	Store  *store.Store
	Logger *log.Logger
	Now    func() time.Time
}

func NewSummaryCache(st *store.Store, logger *log.Logger) *SummaryCache {
	return &SummaryCache{Store: st, Logger: logger, Now: time.Now}
}

// GetOrGenerate returns the cached content for the scope, regenerating (and
// upserting) on a miss. expectedSourceCount > 0 additionally requires the
// cached row to cover exactly that many sources, which makes a conversation
// summary structurally stale the moment older messages accrue, independent
// of wall-clock expiry. Empty regenerated content is returned but never
// stored, so absent data stays a cheap retry rather than a cached void.
func (c *SummaryCache) GetOrGenerate(ctx context.Context, scope Scope, expectedSourceCount int, regenerate Regenerator) (string, bool, error) {
	now := c.Now()
	row, found, err := c.Store.GetCachedSummary(ctx, scope.CommunityID, scope.UserID, scope.Type, scope.ConversationID)
	if err != nil {
		return "", false, err
	}
	if found && row.Valid(now) && (expectedSourceCount <= 0 || row.SourceCount == expectedSourceCount) {
		recordCacheHit(ctx, string(scope.Type))
		return row.Content, true, nil
	}

	recordCacheMiss(ctx, string(scope.Type))
	content, sourceCount, lastSourceAt, err := regenerate(ctx)
	if err != nil {
		return "", false, err
	}
	if content == "" {
		return "", false, nil
	}

	cs := models.CachedSummary{
		CommunityID:     scope.CommunityID,
		UserID:          scope.UserID,
		Type:            scope.Type,
		ConversationID:  scope.ConversationID,
		Content:         content,
		SourceCount:     sourceCount,
		LastSourceAt:    lastSourceAt,
		EstimatedTokens: EstimateTokens(content),
		ExpiresAt:       now.Add(scope.Type.TTL()),
	}
	if err := c.Store.UpsertCachedSummary(ctx, cs); err != nil {
		// Serving the fresh content matters more than persisting it.
		c.Logger.Printf("summary cache upsert failed (%s): %v", scope.Type, err)
	}
	return content, false, nil
}
