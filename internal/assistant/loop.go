package assistant

import (
	"context"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lwhela12/the-hive-sub001/internal/assistant/tools"
	"github.com/lwhela12/the-hive-sub001/models"
	"github.com/lwhela12/the-hive-sub001/provider"
)

var loopTracer = otel.Tracer("hive/assistant/loop")

// Fallback replies when the engine gives us nothing usable.
const (
	emptyReplyFallback = "I wasn't able to put a reply together just now. Could you rephrase that for me?"
	loopCapFallback    = "I kept needing more lookups than I allow myself for one message. I've saved what I completed so far; could you ask again in smaller steps?"
)

// LoopResult is the terminal outcome of one tool-loop run.
type LoopResult struct {
	Text               string
	SkillsAdded        int
	OnboardingComplete bool
	Iterations         int
}

// Loop drives the reasoning engine until it yields a final answer, executing
// any tool calls it requests in between. Strictly sequential: each engine
// call depends on the previous iteration's tool results.
type Loop struct {
	LLM           provider.Provider
	Registry      *tools.Registry
	MaxIterations int
	Logger        *log.Logger
}

func NewLoop(llm provider.Provider, registry *tools.Registry, maxIterations int, logger *log.Logger) *Loop {
	if maxIterations <= 0 {
		maxIterations = 8
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[LOOP] ", log.LstdFlags)
	}
	return &Loop{LLM: llm, Registry: registry, MaxIterations: maxIterations, Logger: logger}
}

// Run executes the loop for one request. Engine transport errors abort the
// run; tool handler errors do not, they go back to the engine as
// error-bearing results.
func (l *Loop) Run(ctx context.Context, scope tools.Scope, systemPrompt string, initial []models.EngineMessage) (LoopResult, error) {
	ctx, span := loopTracer.Start(ctx, "Loop.Run")
	defer span.End()

	transcript := append([]models.EngineMessage{}, initial...)
	defs := l.Registry.Definitions()
	var effects tools.Effects

	for i := 1; i <= l.MaxIterations; i++ {
		resp, err := l.LLM.Chat(ctx, systemPrompt, defs, transcript)
		if err != nil {
			recordLoopIterations(ctx, i)
			return LoopResult{Iterations: i}, err
		}

		if resp.StopReason != models.StopToolUse || len(resp.ToolCalls) == 0 {
			text := strings.TrimSpace(resp.Text)
			if text == "" {
				text = emptyReplyFallback
			}
			recordLoopIterations(ctx, i)
			span.SetAttributes(attribute.Int("iterations", i))
			return LoopResult{
				Text:               text,
				SkillsAdded:        effects.SkillsAdded,
				OnboardingComplete: effects.OnboardingComplete,
				Iterations:         i,
			}, nil
		}

		transcript = append(transcript, models.EngineMessage{
			Role:      "assistant",
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result, eff := l.Registry.Execute(ctx, scope, call)
			effects.Add(eff)
			transcript = append(transcript, models.EngineMessage{
				Role:       "tool",
				Content:    result.Content,
				ToolCallID: result.ToolCallID,
			})
		}
	}

	l.Logger.Printf("tool loop hit iteration cap (%d) for user %s", l.MaxIterations, scope.UserID)
	recordLoopIterations(ctx, l.MaxIterations)
	span.SetAttributes(attribute.Int("iterations", l.MaxIterations), attribute.Bool("capped", true))
	return LoopResult{
		Text:               loopCapFallback,
		SkillsAdded:        effects.SkillsAdded,
		OnboardingComplete: effects.OnboardingComplete,
		Iterations:         l.MaxIterations,
	}, nil
}
