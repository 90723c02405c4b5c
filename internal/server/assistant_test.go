package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/lwhela12/the-hive-sub001/config"
	"github.com/lwhela12/the-hive-sub001/internal/assistant"
	"github.com/lwhela12/the-hive-sub001/internal/assistant/emit"
	"github.com/lwhela12/the-hive-sub001/internal/assistant/tools"
	"github.com/lwhela12/the-hive-sub001/internal/store"
	"github.com/lwhela12/the-hive-sub001/models"
)

// scriptedEngine returns one final text and records what it was asked.
type scriptedEngine struct {
	finalText    string
	systemPrompt string
	transcript   []models.EngineMessage
}

func (s *scriptedEngine) Chat(ctx context.Context, systemPrompt string, defs []models.ToolDefinition, transcript []models.EngineMessage) (models.EngineResponse, error) {
	s.systemPrompt = systemPrompt
	s.transcript = append([]models.EngineMessage{}, transcript...)
	return models.EngineResponse{Text: s.finalText, StopReason: models.StopFinal}, nil
}

func (s *scriptedEngine) Complete(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

func testConfig() config.AssistantConfig {
	return config.AssistantConfig{
		MaxToolIterations: 8,
		HistoryThreshold:  20,
		RecentTail:        10,
		BoardWindowDays:   14,
		BoardIndexLimit:   15,
		RoomWindowDays:    3,
		RoomMessageLimit:  30,
		StreamChunkSize:   5,
	}
}

func newTestHandler(t *testing.T, engine *scriptedEngine) (*AssistantHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)

	st := &store.Store{DB: db}
	logger := log.New(io.Discard, "", 0)
	cache := assistant.NewSummaryCache(st, logger)
	summarizer := assistant.NewSummarizer(engine)
	history := assistant.NewHistoryManager(st, cache, summarizer, 20, 10)
	agg := assistant.NewAggregator(st, cache, summarizer, history, testConfig(), logger)
	registry := tools.NewRegistry(st, testConfig(), logger)
	loop := assistant.NewLoop(engine, registry, 8, logger)

	return &AssistantHandler{
		Store:      st,
		Aggregator: agg,
		Loop:       loop,
		Cfg:        testConfig(),
		Logger:     logger,
	}, mock
}

func postAssistant(t *testing.T, h *AssistantHandler, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/assistant", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "user-1")
	return rec, h.chat(c)
}

func TestChatRequiresMessage(t *testing.T) {
	h, _ := newTestHandler(t, &scriptedEngine{})
	_, err := postAssistant(t, h, `{"message":"   "}`)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestChatRejectsMalformedConversationID(t *testing.T) {
	h, _ := newTestHandler(t, &scriptedEngine{})
	_, err := postAssistant(t, h, `{"message":"hello","conversation_id":"not-a-uuid"}`)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if !strings.Contains(he.Message.(string), "conversation_id") {
		t.Fatalf("message = %v", he.Message)
	}
}

func TestChatRequiresCommunityMembership(t *testing.T) {
	h, mock := newTestHandler(t, &scriptedEngine{})
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT community_id FROM memberships`)).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)

	_, err := postAssistant(t, h, `{"message":"hello"}`)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if !strings.Contains(he.Message.(string), "community") {
		t.Fatalf("message = %v", he.Message)
	}
}

// expectOnboardingFetches covers the queries an onboarding-mode request runs:
// membership, the personal sections and the history count, plus the persisted
// request/reply pair.
func expectOnboardingFetches(mock sqlmock.Sqlmock, userText, assistantText string) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT community_id FROM memberships`)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"community_id"}).AddRow("comm-1"))
	mock.ExpectQuery(`FROM profiles\s+WHERE community_id=\$1 AND user_id=\$2`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "community_id", "display_name", "bio", "notes", "onboarding_complete", "created_at", "updated_at"}).
			AddRow("user-1", "comm-1", "June", nil, nil, false, now, now))
	mock.ExpectQuery(`FROM skills\s+WHERE community_id=\$1 AND user_id=\$2`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "community_id", "name", "detail", "created_at"}))
	mock.ExpectQuery(`FROM wishes\s+WHERE community_id=\$1 AND user_id=\$2`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "community_id", "title", "detail", "visibility", "status", "created_at", "updated_at"}))
	mock.ExpectQuery(`FROM action_items`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "community_id", "user_id", "description", "done", "created_at"}))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM conversation_messages`).
		WithArgs("comm-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO conversation_messages`)).
		WithArgs("comm-1", "user-1", nil, "user", userText).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("cm-1"))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO conversation_messages`)).
		WithArgs("comm-1", "user-1", nil, "assistant", assistantText).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("cm-2"))
}

func TestChatOnboardingJSONResponse(t *testing.T) {
	engine := &scriptedEngine{finalText: "Welcome to the hive!"}
	h, mock := newTestHandler(t, engine)
	expectOnboardingFetches(mock, "I want to set up my profile", "Welcome to the hive!")

	rec, err := postAssistant(t, h, `{"message":"I want to set up my profile","mode":"onboarding"}`)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var payload emit.Payload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Response != "Welcome to the hive!" {
		t.Fatalf("response = %q", payload.Response)
	}
	if payload.SkillsAdded != 0 || payload.OnboardingComplete {
		t.Fatalf("unexpected effects: %+v", payload)
	}
	if payload.ContextMetadata.MessageCount != 0 {
		t.Fatalf("messageCount = %d", payload.ContextMetadata.MessageCount)
	}

	if !strings.Contains(engine.systemPrompt, "first-time setup") {
		t.Fatalf("onboarding instructions missing from system prompt")
	}
	if strings.Contains(engine.systemPrompt, "## FEATURED PROJECT") {
		t.Fatalf("community context leaked into onboarding prompt")
	}
	last := engine.transcript[len(engine.transcript)-1]
	if last.Role != "user" || last.Content != "I want to set up my profile" {
		t.Fatalf("last turn = %+v", last)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestChatStreamEmitsEventSequence(t *testing.T) {
	engine := &scriptedEngine{finalText: "Welcome to the hive!"}
	h, mock := newTestHandler(t, engine)
	expectOnboardingFetches(mock, "I want to set up my profile", "Welcome to the hive!")

	rec, err := postAssistant(t, h, `{"message":"I want to set up my profile","mode":"onboarding","stream":true}`)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, event := range []string{"event: start", "event: content_start", "event: content_delta", "event: content_done", "event: metadata", "event: done"} {
		if !strings.Contains(body, event) {
			t.Fatalf("stream missing %q:\n%s", event, body)
		}
	}
	if !strings.Contains(body, `"fullText":"Welcome to the hive!"`) {
		t.Fatalf("content_done payload missing full text:\n%s", body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestChatImageAttachmentsRideOnUserTurn(t *testing.T) {
	engine := &scriptedEngine{finalText: "Nice photo!"}
	h, mock := newTestHandler(t, engine)
	expectOnboardingFetches(mock, "look at my garden", "Nice photo!")

	body := `{"message":"look at my garden","mode":"onboarding","attachments":[` +
		`{"mime_type":"image/jpeg","data_base64":"aGVsbG8="},` +
		`{"mime_type":"text/plain","data_base64":"aWdub3JlZA=="}]}`
	_, err := postAssistant(t, h, body)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	last := engine.transcript[len(engine.transcript)-1]
	if len(last.Images) != 1 {
		t.Fatalf("images on user turn = %d, want only the image attachment", len(last.Images))
	}
	if last.Images[0].MimeType != "image/jpeg" {
		t.Fatalf("image mime = %q", last.Images[0].MimeType)
	}
}
