package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lwhela12/the-hive-sub001/models"
	"github.com/lwhela12/the-hive-sub001/provider"
)

// Summarizer produces textual digests of raw records by delegating to the
// reasoning engine with task-specific single-shot prompts. Stateless; a
// provider failure is reported upward and treated as "nothing to summarize".
type Summarizer struct {
	LLM provider.Provider
}

func NewSummarizer(llm provider.Provider) *Summarizer {
	return &Summarizer{LLM: llm}
}

// SummarizeConversation digests older conversation turns that no longer fit
// the verbatim transcript window.
func (s *Summarizer) SummarizeConversation(ctx context.Context, msgs []models.ConversationMessage) (string, error) {
	if len(msgs) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	prompt := fmt.Sprintf(`Summarize the following conversation between a community member and their assistant.
Capture decisions, stated goals, preferences and unresolved questions. Keep it under 200 words, plain prose.

Conversation:
%s
Respond with the summary only.`, b.String())
	return s.LLM.Complete(ctx, prompt)
}

// SummarizeBoardPosts digests recent community board activity.
func (s *Summarizer) SummarizeBoardPosts(ctx context.Context, posts []models.BoardPost) (string, error) {
	if len(posts) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, p := range posts {
		fmt.Fprintf(&b, "Title: %s\nAuthor: %s\nCategory: %s\nReplies: %d\nPosted: %s\nBody: %s\n\n",
			p.Title, p.AuthorName, p.Category, p.ReplyCount, p.CreatedAt.Format(time.RFC1123), p.Body)
	}
	prompt := fmt.Sprintf(`Summarize the recent activity on a small community's message board.
Highlight active discussions, requests for help and anything time-sensitive. Keep it under 150 words.

Posts:
%s
Respond with the summary only.`, b.String())
	return s.LLM.Complete(ctx, prompt)
}

// SummarizeRoomMessages digests recent chat-room traffic.
func (s *Summarizer) SummarizeRoomMessages(ctx context.Context, msgs []models.RoomMessage) (string, error) {
	if len(msgs) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.RoomName, m.AuthorName, m.Body)
	}
	prompt := fmt.Sprintf(`Summarize the last few days of chat in a small community's rooms.
Group by room, note who needs what and any plans being made. Keep it under 150 words.

Messages:
%s
Respond with the summary only.`, b.String())
	return s.LLM.Complete(ctx, prompt)
}

// SummarizeMeetings digests recent meeting notes.
func (s *Summarizer) SummarizeMeetings(ctx context.Context, meetings []models.Meeting) (string, error) {
	if len(meetings) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, m := range meetings {
		fmt.Fprintf(&b, "Meeting: %s (%s)\nNotes: %s\n\n", m.Title, m.HeldAt.Format("2006-01-02"), m.Notes)
	}
	prompt := fmt.Sprintf(`Summarize these community meeting notes.
Keep decisions and follow-ups, drop the chatter. Keep it under 150 words.

Notes:
%s
Respond with the summary only.`, b.String())
	return s.LLM.Complete(ctx, prompt)
}
