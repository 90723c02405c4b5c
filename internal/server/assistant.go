package server

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lwhela12/the-hive-sub001/config"
	"github.com/lwhela12/the-hive-sub001/internal/assistant"
	"github.com/lwhela12/the-hive-sub001/internal/assistant/emit"
	"github.com/lwhela12/the-hive-sub001/internal/assistant/tools"
	"github.com/lwhela12/the-hive-sub001/internal/runtime"
	"github.com/lwhela12/the-hive-sub001/internal/store"
	"github.com/lwhela12/the-hive-sub001/models"
)

var serverTracer = otel.Tracer("hive/server")

// AssistantHandler serves the conversational endpoint.
type AssistantHandler struct {
	Store      *store.Store
	Aggregator *assistant.Aggregator
	Loop       *assistant.Loop
	Cfg        config.AssistantConfig
	Logger     *log.Logger
}

func (h *AssistantHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.POST("", h.chat)
}

func (h *AssistantHandler) chat(c echo.Context) error {
	var req AssistantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.ConversationID != "" {
		if _, err := uuid.Parse(req.ConversationID); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "conversation_id must be a UUID")
		}
	}
	userID, _ := c.Get("user_id").(string)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	ctx, span := serverTracer.Start(c.Request().Context(), "assistant.chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("mode", req.Mode),
		attribute.Bool("stream", req.Stream),
	)

	communityID, found, err := h.Store.CommunityForUser(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "community lookup failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "community lookup failed")
	}
	if !found {
		return echo.NewHTTPError(http.StatusBadRequest, "no community membership for user")
	}

	mode := assistant.ModeDefault
	if req.Mode == string(assistant.ModeOnboarding) {
		mode = assistant.ModeOnboarding
	}

	snapshot, err := h.Aggregator.Assemble(ctx, userID, communityID, req.ConversationID, mode)
	if err != nil {
		span.SetStatus(codes.Error, "context assembly failed")
		return h.fail(c, req.Stream, "context assembly failed", err)
	}

	systemPrompt := assistant.BuildSystemPrompt(mode, req.Context, req.RefineWish, snapshot.Text)
	transcript := buildTranscript(snapshot.RecentMessages, req)

	scope := tools.Scope{UserID: userID, CommunityID: communityID}
	result, err := h.Loop.Run(ctx, scope, systemPrompt, transcript)
	if err != nil {
		span.SetStatus(codes.Error, "tool loop failed")
		return h.fail(c, req.Stream, "assistant temporarily unavailable", err)
	}

	h.persistTurns(ctx, communityID, userID, req.ConversationID, req.Message, result.Text)

	payload := emit.Payload{
		Response:           result.Text,
		SkillsAdded:        result.SkillsAdded,
		OnboardingComplete: result.OnboardingComplete,
		ContextMetadata:    snapshot.Metadata,
	}
	if req.Stream {
		return h.stream(c, emit.OpenStream(payload, emit.StreamOptions{
			ChunkSize:  h.Cfg.StreamChunkSize,
			ChunkDelay: h.Cfg.StreamChunkDelay,
		}))
	}
	return c.JSON(http.StatusOK, payload)
}

// fail reports an internal failure in the shape the client asked for. Details
// stay in the log; the client gets the generic message.
func (h *AssistantHandler) fail(c echo.Context, streaming bool, msg string, err error) error {
	h.Logger.Printf("%s: %v", msg, err)
	if streaming {
		return h.stream(c, emit.OpenErrorStream(msg))
	}
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}

// stream copies SSE frames to the client, flushing per read. Closing the
// reader on the way out stops the producer goroutine.
func (h *AssistantHandler) stream(c echo.Context, reader io.ReadCloser) error {
	defer reader.Close()
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	buf := make([]byte, 4096)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if _, werr := resp.Write(buf[:n]); werr != nil {
				return nil
			}
			flusher.Flush()
		}
		if err != nil {
			return nil
		}
	}
}

// buildTranscript turns stored history plus the new message into engine
// turns. Image attachments ride on the new user turn, ahead of its text.
func buildTranscript(recent []models.ConversationMessage, req AssistantRequest) []models.EngineMessage {
	transcript := make([]models.EngineMessage, 0, len(recent)+1)
	for _, m := range recent {
		transcript = append(transcript, models.EngineMessage{Role: string(m.Role), Content: m.Content})
	}
	userTurn := models.EngineMessage{Role: "user", Content: req.Message}
	for _, att := range req.Attachments {
		if !strings.HasPrefix(att.MimeType, "image/") {
			continue
		}
		userTurn.Images = append(userTurn.Images, models.ImagePart{
			MimeType:   att.MimeType,
			DataBase64: att.DataBase64,
			URL:        att.URL,
		})
	}
	return append(transcript, userTurn)
}

// persistTurns appends the exchanged pair to conversation history. Failures
// are logged; the reply already exists and still goes out.
func (h *AssistantHandler) persistTurns(ctx context.Context, communityID, userID, conversationID, userText, assistantText string) {
	pairs := []models.ConversationMessage{
		{CommunityID: communityID, UserID: userID, ConversationID: conversationID, Role: models.RoleUser, Content: userText},
		{CommunityID: communityID, UserID: userID, ConversationID: conversationID, Role: models.RoleAssistant, Content: assistantText},
	}
	for _, m := range pairs {
		if _, err := h.Store.AppendConversationMessage(ctx, m); err != nil {
			h.Logger.Printf("persist %s turn failed: %v", m.Role, err)
			return
		}
	}
}
