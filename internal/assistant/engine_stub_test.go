package assistant

import (
	"context"

	"github.com/lwhela12/the-hive-sub001/models"
)

// fakeEngine scripts reasoning-engine behavior for tests.
type fakeEngine struct {
	chatResponses []models.EngineResponse
	chatErr       error
	chatCalls     int
	transcripts   [][]models.EngineMessage

	completeText  string
	completeErr   error
	completeCalls int
	prompts       []string
}

func (f *fakeEngine) Chat(ctx context.Context, systemPrompt string, tools []models.ToolDefinition, transcript []models.EngineMessage) (models.EngineResponse, error) {
	f.chatCalls++
	f.transcripts = append(f.transcripts, append([]models.EngineMessage{}, transcript...))
	if f.chatErr != nil {
		return models.EngineResponse{}, f.chatErr
	}
	i := f.chatCalls - 1
	if i >= len(f.chatResponses) {
		i = len(f.chatResponses) - 1
	}
	return f.chatResponses[i], nil
}

func (f *fakeEngine) Complete(ctx context.Context, prompt string) (string, error) {
	f.completeCalls++
	f.prompts = append(f.prompts, prompt)
	return f.completeText, f.completeErr
}
