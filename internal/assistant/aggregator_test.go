package assistant

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/lwhela12/the-hive-sub001/config"
	"github.com/lwhela12/the-hive-sub001/internal/store"
)

func testAssistantConfig() config.AssistantConfig {
	return config.AssistantConfig{
		MaxToolIterations: 8,
		HistoryThreshold:  20,
		RecentTail:        10,
		BoardWindowDays:   14,
		BoardIndexLimit:   15,
		RoomWindowDays:    3,
		RoomMessageLimit:  30,
	}
}

func newTestAggregator(t *testing.T, engine *fakeEngine) (*Aggregator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)

	st := &store.Store{DB: db}
	logger := log.New(io.Discard, "", 0)
	cache := NewSummaryCache(st, logger)
	summarizer := NewSummarizer(engine)
	history := NewHistoryManager(st, cache, summarizer, 20, 10)
	agg := NewAggregator(st, cache, summarizer, history, testAssistantConfig(), logger)
	return agg, mock
}

func expectPersonalContext(mock sqlmock.Sqlmock, now time.Time) {
	mock.ExpectQuery(`FROM profiles\s+WHERE community_id=\$1 AND user_id=\$2`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "community_id", "display_name", "bio", "notes", "onboarding_complete", "created_at", "updated_at"}).
			AddRow("user-1", "comm-1", "June", "I bake.", nil, false, now, now))
	mock.ExpectQuery(`FROM skills\s+WHERE community_id=\$1 AND user_id=\$2`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "community_id", "name", "detail", "created_at"}).
			AddRow("sk-1", "user-1", "comm-1", "baking", "sourdough", now))
	mock.ExpectQuery(`FROM wishes\s+WHERE community_id=\$1 AND user_id=\$2`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "community_id", "title", "detail", "visibility", "status", "created_at", "updated_at"}).
			AddRow("w-1", "user-1", "comm-1", "learn welding", nil, "private", "open", now, now))
	mock.ExpectQuery(`FROM action_items`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "community_id", "user_id", "description", "done", "created_at"}))
}

var communityHeaders = []string{
	sectionFeatured,
	sectionCommunity,
	sectionOpenWishes,
	sectionPeerSkills,
	sectionBoardIndex,
	sectionBoardSummary,
	sectionRoomSummary,
	sectionRoomMessages,
	sectionMeetingsSummary,
}

func TestAssembleOnboardingOmitsCommunitySections(t *testing.T) {
	engine := &fakeEngine{completeText: "must not be used"}
	agg, mock := newTestAggregator(t, engine)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	expectPersonalContext(mock, now)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM conversation_messages`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	snapshot, err := agg.Assemble(context.Background(), "user-1", "comm-1", "", ModeOnboarding)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	for _, header := range []string{sectionProfile, sectionSkills, sectionWishes} {
		if !strings.Contains(snapshot.Text, header) {
			t.Fatalf("onboarding context missing %q:\n%s", header, snapshot.Text)
		}
	}
	for _, header := range communityHeaders {
		if strings.Contains(snapshot.Text, header) {
			t.Fatalf("onboarding context leaked community section %q", header)
		}
	}
	if engine.completeCalls != 0 {
		t.Fatalf("summarizer must not run in onboarding mode")
	}
	if snapshot.Metadata.MessageCount != 0 {
		t.Fatalf("MessageCount = %d", snapshot.Metadata.MessageCount)
	}
	if got, want := snapshot.Metadata.TokensUsed, EstimateTokens(snapshot.Text); got != want {
		t.Fatalf("TokensUsed = %d, want %d", got, want)
	}
	if len(snapshot.Metadata.SummariesUsed) != 0 || len(snapshot.Metadata.CacheHits) != 0 {
		t.Fatalf("unexpected summary metadata: %+v", snapshot.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAssembleLongConversationReportsSummaryMetadata(t *testing.T) {
	engine := &fakeEngine{completeText: "early-days digest"}
	agg, mock := newTestAggregator(t, engine)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	expectPersonalContext(mock, now)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM conversation_messages`).
		WithArgs("comm-1", "user-1", "conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))

	base := now.Add(-25 * time.Minute)
	recent := sqlmock.NewRows(messageColumns)
	for i := 15; i < 25; i++ {
		recent.AddRow(fmt.Sprintf("m%d", i), "comm-1", "user-1", "conv-1", "user", fmt.Sprintf("message %d", i), base.Add(time.Duration(i)*time.Minute))
	}
	mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs("comm-1", "user-1", "conv-1", 10).
		WillReturnRows(recent)

	mock.ExpectQuery(regexp.QuoteMeta(summarySelect)).
		WithArgs("comm-1", "user-1", "conversation", "conv-1").
		WillReturnError(sql.ErrNoRows)

	oldest := sqlmock.NewRows(messageColumns)
	for i := 0; i < 15; i++ {
		oldest.AddRow(fmt.Sprintf("m%d", i), "comm-1", "user-1", "conv-1", "user", fmt.Sprintf("message %d", i), base.Add(time.Duration(i)*time.Minute))
	}
	mock.ExpectQuery(`ORDER BY created_at ASC`).
		WithArgs("comm-1", "user-1", "conv-1", 15).
		WillReturnRows(oldest)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cached_summaries`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	snapshot, err := agg.Assemble(context.Background(), "user-1", "comm-1", "conv-1", ModeOnboarding)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if snapshot.Metadata.MessageCount != 25 {
		t.Fatalf("MessageCount = %d, want 25", snapshot.Metadata.MessageCount)
	}
	if len(snapshot.Metadata.SummariesUsed) != 1 || snapshot.Metadata.SummariesUsed[0] != "conversation" {
		t.Fatalf("SummariesUsed = %v", snapshot.Metadata.SummariesUsed)
	}
	if len(snapshot.Metadata.CacheHits) != 0 {
		t.Fatalf("CacheHits = %v", snapshot.Metadata.CacheHits)
	}
	if !strings.Contains(snapshot.Text, sectionConversation) || !strings.Contains(snapshot.Text, "early-days digest") {
		t.Fatalf("conversation summary missing from context:\n%s", snapshot.Text)
	}
	if len(snapshot.RecentMessages) != 10 {
		t.Fatalf("RecentMessages = %d, want the last 10", len(snapshot.RecentMessages))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAssembleDefaultModeRecordsCacheHits(t *testing.T) {
	engine := &fakeEngine{completeText: "must not be used"}
	agg, mock := newTestAggregator(t, engine)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	agg.Now = func() time.Time { return now }
	agg.Cache.Now = func() time.Time { return now }

	expectPersonalContext(mock, now)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM conversation_messages`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs("comm-1", "user-1", 4).
		WillReturnRows(sqlmock.NewRows(messageColumns).
			AddRow("m1", "comm-1", "user-1", "", "user", "hello", now))

	mock.ExpectQuery(`FROM featured_projects`).
		WithArgs("comm-1").
		WillReturnRows(sqlmock.NewRows([]string{"community_id", "user_id", "title", "detail", "started_at"}).
			AddRow("comm-1", "user-2", "Tool library", nil, now.AddDate(0, 0, -7)))
	mock.ExpectQuery(`FROM balance_ledger`).
		WithArgs("comm-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(120))
	mock.ExpectQuery(`FROM events`).
		WithArgs("comm-1", sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "community_id", "title", "location", "starts_at"}))
	mock.ExpectQuery(`FROM wishes\s+WHERE community_id=\$1 AND user_id<>\$2`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "community_id", "title", "detail", "visibility", "status", "created_at", "updated_at"}))
	mock.ExpectQuery(`FROM skills\s+WHERE community_id=\$1 AND user_id<>\$2`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "community_id", "name", "detail", "created_at"}))
	mock.ExpectQuery(`FROM board_posts`).
		WithArgs("comm-1", sqlmock.AnyArg(), 15).
		WillReturnRows(sqlmock.NewRows([]string{"id", "community_id", "author_id", "display_name", "title", "body", "category", "pinned", "reply_count", "created_at"}))
	mock.ExpectQuery(`FROM room_messages`).
		WithArgs("comm-1", "user-1", sqlmock.AnyArg(), 30).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "name", "user_id", "display_name", "body", "created_at"}))

	// All three community summaries are valid cache rows.
	expires := now.Add(30 * time.Minute)
	mock.ExpectQuery(`FROM cached_summaries`).
		WithArgs("comm-1", "", "board_activity", "").
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow("comm-1", "", "board_activity", "", "board digest", 5, now.Add(-time.Hour), 3, expires))
	mock.ExpectQuery(`FROM cached_summaries`).
		WithArgs("comm-1", "user-1", "room_messages", "").
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow("comm-1", "user-1", "room_messages", "", "room digest", 12, now.Add(-time.Hour), 3, expires))
	mock.ExpectQuery(`FROM cached_summaries`).
		WithArgs("comm-1", "", "meetings", "").
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow("comm-1", "", "meetings", "", "meetings digest", 2, now.Add(-time.Hour), 3, expires))

	snapshot, err := agg.Assemble(context.Background(), "user-1", "comm-1", "", ModeDefault)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if engine.completeCalls != 0 {
		t.Fatalf("summarizer ran despite valid cache rows")
	}
	for _, want := range []string{sectionFeatured, sectionBoardSummary, sectionRoomSummary, sectionMeetingsSummary} {
		if !strings.Contains(snapshot.Text, want) {
			t.Fatalf("default context missing %q:\n%s", want, snapshot.Text)
		}
	}
	if snapshot.Metadata.MessageCount != 4 {
		t.Fatalf("MessageCount = %d", snapshot.Metadata.MessageCount)
	}
	wantHits := []string{"board_activity", "meetings", "room_messages"}
	if len(snapshot.Metadata.CacheHits) != len(wantHits) {
		t.Fatalf("CacheHits = %v", snapshot.Metadata.CacheHits)
	}
	for i, typ := range wantHits {
		if snapshot.Metadata.CacheHits[i] != typ {
			t.Fatalf("CacheHits = %v, want %v", snapshot.Metadata.CacheHits, wantHits)
		}
	}
	if len(snapshot.Metadata.SummariesUsed) != 0 {
		t.Fatalf("SummariesUsed = %v, cache hits must not double-count", snapshot.Metadata.SummariesUsed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// Default mode with a 25-message conversation: the conversation digest is
// regenerated (summariesUsed) while the community digests come from valid
// cache rows (cacheHits), and messageCount reports the full 25.
func TestAssembleDefaultModeLongConversation(t *testing.T) {
	engine := &fakeEngine{completeText: "conversation digest"}
	agg, mock := newTestAggregator(t, engine)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	agg.Now = func() time.Time { return now }
	agg.Cache.Now = func() time.Time { return now }

	expectPersonalContext(mock, now)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM conversation_messages`).
		WithArgs("comm-1", "user-1", "conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))

	base := now.Add(-25 * time.Minute)
	recent := sqlmock.NewRows(messageColumns)
	for i := 15; i < 25; i++ {
		recent.AddRow(fmt.Sprintf("m%d", i), "comm-1", "user-1", "conv-1", "user", fmt.Sprintf("message %d", i), base.Add(time.Duration(i)*time.Minute))
	}
	mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs("comm-1", "user-1", "conv-1", 10).
		WillReturnRows(recent)

	mock.ExpectQuery(regexp.QuoteMeta(summarySelect)).
		WithArgs("comm-1", "user-1", "conversation", "conv-1").
		WillReturnError(sql.ErrNoRows)
	oldest := sqlmock.NewRows(messageColumns)
	for i := 0; i < 15; i++ {
		oldest.AddRow(fmt.Sprintf("m%d", i), "comm-1", "user-1", "conv-1", "user", fmt.Sprintf("message %d", i), base.Add(time.Duration(i)*time.Minute))
	}
	mock.ExpectQuery(`ORDER BY created_at ASC`).
		WithArgs("comm-1", "user-1", "conv-1", 15).
		WillReturnRows(oldest)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cached_summaries`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(`FROM featured_projects`).
		WithArgs("comm-1").
		WillReturnRows(sqlmock.NewRows([]string{"community_id", "user_id", "title", "detail", "started_at"}))
	mock.ExpectQuery(`FROM balance_ledger`).
		WithArgs("comm-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(80))
	mock.ExpectQuery(`FROM events`).
		WithArgs("comm-1", sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "community_id", "title", "location", "starts_at"}))
	mock.ExpectQuery(`FROM wishes\s+WHERE community_id=\$1 AND user_id<>\$2`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "community_id", "title", "detail", "visibility", "status", "created_at", "updated_at"}))
	mock.ExpectQuery(`FROM skills\s+WHERE community_id=\$1 AND user_id<>\$2`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "community_id", "name", "detail", "created_at"}))
	mock.ExpectQuery(`FROM board_posts`).
		WithArgs("comm-1", sqlmock.AnyArg(), 15).
		WillReturnRows(sqlmock.NewRows([]string{"id", "community_id", "author_id", "display_name", "title", "body", "category", "pinned", "reply_count", "created_at"}))
	mock.ExpectQuery(`FROM room_messages`).
		WithArgs("comm-1", "user-1", sqlmock.AnyArg(), 30).
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "name", "user_id", "display_name", "body", "created_at"}))

	expires := now.Add(30 * time.Minute)
	mock.ExpectQuery(`FROM cached_summaries`).
		WithArgs("comm-1", "", "board_activity", "").
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow("comm-1", "", "board_activity", "", "board digest", 5, now.Add(-time.Hour), 3, expires))
	mock.ExpectQuery(`FROM cached_summaries`).
		WithArgs("comm-1", "user-1", "room_messages", "").
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow("comm-1", "user-1", "room_messages", "", "room digest", 12, now.Add(-time.Hour), 3, expires))
	mock.ExpectQuery(`FROM cached_summaries`).
		WithArgs("comm-1", "", "meetings", "").
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow("comm-1", "", "meetings", "", "meetings digest", 2, now.Add(-time.Hour), 3, expires))

	snapshot, err := agg.Assemble(context.Background(), "user-1", "comm-1", "conv-1", ModeDefault)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if snapshot.Metadata.MessageCount != 25 {
		t.Fatalf("MessageCount = %d, want 25", snapshot.Metadata.MessageCount)
	}
	if len(snapshot.Metadata.SummariesUsed) != 1 || snapshot.Metadata.SummariesUsed[0] != "conversation" {
		t.Fatalf("SummariesUsed = %v", snapshot.Metadata.SummariesUsed)
	}
	wantHits := []string{"board_activity", "meetings", "room_messages"}
	if len(snapshot.Metadata.CacheHits) != len(wantHits) {
		t.Fatalf("CacheHits = %v", snapshot.Metadata.CacheHits)
	}
	for i, typ := range wantHits {
		if snapshot.Metadata.CacheHits[i] != typ {
			t.Fatalf("CacheHits = %v, want %v", snapshot.Metadata.CacheHits, wantHits)
		}
	}
	if engine.completeCalls != 1 {
		t.Fatalf("summarizer ran %d times, want once for the conversation digest", engine.completeCalls)
	}
	if !strings.Contains(snapshot.Text, sectionConversation) || !strings.Contains(snapshot.Text, "conversation digest") {
		t.Fatalf("conversation summary missing from context:\n%s", snapshot.Text)
	}
	if len(snapshot.RecentMessages) != 10 {
		t.Fatalf("RecentMessages = %d, want the last 10", len(snapshot.RecentMessages))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
