package assistant

import (
	"context"
	"database/sql"
	"io"
	"log"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/lwhela12/the-hive-sub001/internal/store"
	"github.com/lwhela12/the-hive-sub001/models"
)

const summarySelect = `SELECT community_id, user_id, summary_type, conversation_id, content, source_count, last_source_at, estimated_tokens, expires_at`

var summaryColumns = []string{"community_id", "user_id", "summary_type", "conversation_id", "content", "source_count", "last_source_at", "estimated_tokens", "expires_at"}

func newTestCache(t *testing.T) (*SummaryCache, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	cache := NewSummaryCache(&store.Store{DB: db}, log.New(io.Discard, "", 0))
	return cache, mock
}

func TestSummaryCacheServesValidRow(t *testing.T) {
	cache, mock := newTestCache(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache.Now = func() time.Time { return now }

	mock.ExpectQuery(regexp.QuoteMeta(summarySelect)).
		WithArgs("comm-1", "", "board_activity", "").
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow("comm-1", "", "board_activity", "", "cached digest", 7, now.Add(-time.Hour), 3, now.Add(time.Minute)))

	content, hit, err := cache.GetOrGenerate(context.Background(),
		Scope{CommunityID: "comm-1", Type: models.SummaryBoardActivity}, 0,
		func(ctx context.Context) (string, int, time.Time, error) {
			t.Fatal("regenerator must not run on a valid row")
			return "", 0, time.Time{}, nil
		})
	if err != nil {
		t.Fatalf("GetOrGenerate: %v", err)
	}
	if !hit {
		t.Fatalf("expected cache hit")
	}
	if content != "cached digest" {
		t.Fatalf("content = %q", content)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSummaryCacheExpiryBoundaryIsStale(t *testing.T) {
	cache, mock := newTestCache(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache.Now = func() time.Time { return now }

	// expires_at == now must regenerate: validity is strict.
	mock.ExpectQuery(regexp.QuoteMeta(summarySelect)).
		WithArgs("comm-1", "", "board_activity", "").
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow("comm-1", "", "board_activity", "", "old digest", 7, now.Add(-2*time.Hour), 3, now))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cached_summaries`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	content, hit, err := cache.GetOrGenerate(context.Background(),
		Scope{CommunityID: "comm-1", Type: models.SummaryBoardActivity}, 0,
		func(ctx context.Context) (string, int, time.Time, error) {
			return "fresh digest", 9, now, nil
		})
	if err != nil {
		t.Fatalf("GetOrGenerate: %v", err)
	}
	if hit {
		t.Fatalf("row at the boundary instant must not count as a hit")
	}
	if content != "fresh digest" {
		t.Fatalf("content = %q", content)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSummaryCacheSourceCountMismatchRegenerates(t *testing.T) {
	cache, mock := newTestCache(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cache.Now = func() time.Time { return now }

	mock.ExpectQuery(regexp.QuoteMeta(summarySelect)).
		WithArgs("comm-1", "user-1", "conversation", "conv-1").
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow("comm-1", "user-1", "conversation", "conv-1", "stale digest", 11, now.Add(-time.Hour), 3, now.Add(23*time.Hour)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cached_summaries`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	scope := Scope{CommunityID: "comm-1", UserID: "user-1", Type: models.SummaryConversation, ConversationID: "conv-1"}
	content, hit, err := cache.GetOrGenerate(context.Background(), scope, 14,
		func(ctx context.Context) (string, int, time.Time, error) {
			return "regenerated digest", 14, now, nil
		})
	if err != nil {
		t.Fatalf("GetOrGenerate: %v", err)
	}
	if hit {
		t.Fatalf("source-count mismatch must not count as a hit")
	}
	if content != "regenerated digest" {
		t.Fatalf("content = %q", content)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSummaryCacheNeverStoresEmptyContent(t *testing.T) {
	cache, mock := newTestCache(t)

	mock.ExpectQuery(regexp.QuoteMeta(summarySelect)).
		WithArgs("comm-1", "", "meetings", "").
		WillReturnError(sql.ErrNoRows)

	content, hit, err := cache.GetOrGenerate(context.Background(),
		Scope{CommunityID: "comm-1", Type: models.SummaryMeetings}, 0,
		func(ctx context.Context) (string, int, time.Time, error) {
			return "", 0, time.Time{}, nil
		})
	if err != nil {
		t.Fatalf("GetOrGenerate: %v", err)
	}
	if hit || content != "" {
		t.Fatalf("expected empty miss, got content=%q hit=%v", content, hit)
	}
	// No upsert expectation registered: an insert would fail the mock.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
