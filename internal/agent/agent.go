// Package agent implements the generic LLM agent abstraction: a model plus
// a prompt plus an expected output schema, layered under a resilience
// wrapper that adds caching and bounded retry.
package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/prospero-intel/prospero/models"
	"github.com/prospero-intel/prospero/provider"
)

// FewShot is one example input/output pair interleaved into the chat as a
// user/assistant turn before the real user content.
type FewShot struct {
	Input  string
	Output string
}

// Agent binds a model to a prompt contract and an expected output schema.
// SystemPrompt and PromptFunc are alternatives; PromptFunc wins when set so
// prompts can be tuned at runtime.
type Agent struct {
	Name         string
	Model        string
	SystemPrompt string
	PromptFunc   func() string
	FewShots     []FewShot
	Schema       string // JSON Schema source; empty disables validation

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// Result is the universal outcome shape across all agents. Err is set on
// any failure (upstream, malformed JSON, schema violation); callers must
// check it instead of expecting a thrown error.
type Result struct {
	Raw   string
	Usage provider.Usage
	Err   *models.AIError
}

// Execute sends system + few-shot turns + user turn, requests JSON output
// when a schema is present, and validates the raw response against it.
func (a *Agent) Execute(ctx context.Context, p provider.Provider, userContent string) Result {
	system := a.SystemPrompt
	if a.PromptFunc != nil {
		system = a.PromptFunc()
	}

	messages := make([]provider.Message, 0, 2+2*len(a.FewShots))
	if system != "" {
		messages = append(messages, provider.Message{Role: "system", Content: system})
	}
	for _, shot := range a.FewShots {
		messages = append(messages,
			provider.Message{Role: "user", Content: shot.Input},
			provider.Message{Role: "assistant", Content: shot.Output},
		)
	}
	messages = append(messages, provider.Message{Role: "user", Content: userContent})

	raw, usage, err := p.Chat(ctx, a.Model, messages, provider.ChatOptions{JSONMode: a.Schema != ""})
	if err != nil {
		return Result{Usage: usage, Err: &models.AIError{Agent: a.Name, Stage: "invoke", Err: err}}
	}
	raw = StripFences(raw)

	if a.Schema != "" {
		if aiErr := a.validate(raw); aiErr != nil {
			return Result{Raw: raw, Usage: usage, Err: aiErr}
		}
	}
	return Result{Raw: raw, Usage: usage}
}

func (a *Agent) validate(raw string) *models.AIError {
	schema, err := a.schema()
	if err != nil {
		return &models.AIError{Agent: a.Name, Stage: "schema-compile", Err: err}
	}
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return &models.AIError{Agent: a.Name, Stage: "parse", Err: err}
	}
	if err := schema.Validate(value); err != nil {
		diags := []string{err.Error()}
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			diags = flattenValidation(ve, nil)
		}
		return &models.AIError{Agent: a.Name, Stage: "validate", Diagnostics: diags, Err: err}
	}
	return nil
}

func (a *Agent) schema() (*jsonschema.Schema, error) {
	a.compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(a.Name+".json", strings.NewReader(a.Schema)); err != nil {
			a.compileErr = err
			return
		}
		a.compiled, a.compileErr = compiler.Compile(a.Name + ".json")
	})
	return a.compiled, a.compileErr
}

func flattenValidation(ve *jsonschema.ValidationError, acc []string) []string {
	if len(ve.Causes) == 0 {
		return append(acc, ve.Error())
	}
	for _, cause := range ve.Causes {
		acc = flattenValidation(cause, acc)
	}
	return acc
}

// StripFences removes a surrounding markdown code fence from model output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Decode unmarshals a successful result's raw JSON into T. A decode failure
// is reported in the same typed-error shape agents use.
func Decode[T any](agentName string, res Result) (T, *models.AIError) {
	var out T
	if res.Err != nil {
		return out, res.Err
	}
	if err := json.Unmarshal([]byte(res.Raw), &out); err != nil {
		return out, &models.AIError{Agent: agentName, Stage: "decode", Err: err}
	}
	return out, nil
}
