// Package tools is the typed tool surface exposed to the reasoning engine.
// Every handler validates its input against a JSON schema before decoding and
// scopes all reads and writes to the authenticated caller, regardless of any
// identifiers the engine supplies.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lwhela12/the-hive-sub001/config"
	"github.com/lwhela12/the-hive-sub001/internal/store"
	"github.com/lwhela12/the-hive-sub001/models"
)

// Scope pins tool execution to the authenticated caller.
type Scope struct {
	UserID      string
	CommunityID string
}

// Effects counts the side effects of tool execution that the response
// surface reports back to the client.
type Effects struct {
	SkillsAdded        int
	OnboardingComplete bool
}

// Add folds another execution's effects into this one.
func (e *Effects) Add(other Effects) {
	e.SkillsAdded += other.SkillsAdded
	e.OnboardingComplete = e.OnboardingComplete || other.OnboardingComplete
}

type handlerFunc func(ctx context.Context, scope Scope, input json.RawMessage) (string, Effects, error)

type tool struct {
	def    models.ToolDefinition
	schema *jsonschema.Schema
	run    handlerFunc
}

// Registry holds the tool set offered to the engine for one deployment.
type Registry struct {
	store  *store.Store
	cfg    config.AssistantConfig
	logger *log.Logger
	tools  map[string]tool
	order  []string
}

func NewRegistry(st *store.Store, cfg config.AssistantConfig, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(log.Writer(), "[TOOLS] ", log.LstdFlags)
	}
	r := &Registry{store: st, cfg: cfg, logger: logger, tools: map[string]tool{}}
	r.registerWriteTools()
	r.registerReadTools()
	r.registerSearchTools()
	return r
}

// register compiles the schema and adds the tool. Schemas are package
// constants, so a bad one is a programming error and panics at startup.
func (r *Registry) register(name, description, schemaJSON string, run handlerFunc) {
	compiled := jsonschema.MustCompileString(name+".json", schemaJSON)
	r.tools[name] = tool{
		def: models.ToolDefinition{
			Name:        name,
			Description: description,
			InputSchema: json.RawMessage(schemaJSON),
		},
		schema: compiled,
		run:    run,
	}
	r.order = append(r.order, name)
}

// Definitions lists the tool declarations in registration order.
func (r *Registry) Definitions() []models.ToolDefinition {
	defs := make([]models.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// Execute runs one tool call. Handler failures become error-bearing results
// so the engine can recover; they never abort the loop.
func (r *Registry) Execute(ctx context.Context, scope Scope, call models.ToolCall) (models.ToolResult, Effects) {
	t, ok := r.tools[call.Name]
	if !ok {
		return errorResult(call.ID, fmt.Sprintf("unknown tool %q", call.Name)), Effects{}
	}

	input := call.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	var doc interface{}
	if err := json.Unmarshal(input, &doc); err != nil {
		return errorResult(call.ID, fmt.Sprintf("input is not valid JSON: %v", err)), Effects{}
	}
	if err := t.schema.Validate(doc); err != nil {
		return errorResult(call.ID, fmt.Sprintf("input rejected by schema: %v", err)), Effects{}
	}

	content, effects, err := t.run(ctx, scope, input)
	if err != nil {
		r.logger.Printf("tool %s failed: %v", call.Name, err)
		return errorResult(call.ID, fmt.Sprintf("%s failed: %v", call.Name, err)), Effects{}
	}
	return models.ToolResult{ToolCallID: call.ID, Content: content}, effects
}

func errorResult(callID, msg string) models.ToolResult {
	return models.ToolResult{ToolCallID: callID, Content: msg, IsError: true}
}

// jsonContent renders a handler's payload for the engine.
func jsonContent(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(b), nil
}
