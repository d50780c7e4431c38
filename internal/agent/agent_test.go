package agent

import (
	"context"
	"testing"

	"github.com/prospero-intel/prospero/provider"
)

func TestExecuteValidatesSchema(t *testing.T) {
	fake := &fakeProvider{responses: []string{`{"score": "not a number"}`}}
	a := &Agent{Name: "bad-shape", Model: "m", Schema: scoreSchema}
	res := a.Execute(context.Background(), fake, "input")
	if res.Err == nil {
		t.Fatalf("expected schema validation error")
	}
	if res.Err.Stage != "validate" {
		t.Fatalf("stage = %q, want validate", res.Err.Stage)
	}
	if len(res.Err.Diagnostics) == 0 {
		t.Fatalf("expected validation diagnostics")
	}
}

func TestExecuteInterleavesFewShots(t *testing.T) {
	var captured []provider.Message
	fake := &capturingProvider{response: `{"score": 1}`, captured: &captured}
	a := &Agent{
		Name:         "shots",
		Model:        "m",
		SystemPrompt: "system",
		FewShots:     []FewShot{{Input: "ex-in", Output: "ex-out"}},
		Schema:       scoreSchema,
	}
	if res := a.Execute(context.Background(), fake, "real input"); res.Err != nil {
		t.Fatalf("execute: %v", res.Err)
	}
	roles := make([]string, len(captured))
	for i, m := range captured {
		roles[i] = m.Role
	}
	want := []string{"system", "user", "assistant", "user"}
	if len(roles) != len(want) {
		t.Fatalf("message roles = %v, want %v", roles, want)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("message roles = %v, want %v", roles, want)
		}
	}
	if captured[len(captured)-1].Content != "real input" {
		t.Fatalf("user turn not last")
	}
}

type capturingProvider struct {
	response string
	captured *[]provider.Message
}

func (c *capturingProvider) Chat(_ context.Context, _ string, messages []provider.Message, _ provider.ChatOptions) (string, provider.Usage, error) {
	*c.captured = append([]provider.Message(nil), messages...)
	return c.response, provider.Usage{}, nil
}
func (c *capturingProvider) Embed(context.Context, string, []string) ([][]float32, error) {
	return nil, nil
}
func (c *capturingProvider) Verify(context.Context) error                { return nil }
func (c *capturingProvider) CostEstimate(string, provider.Usage) float64 { return 0 }

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		`{"a":1}`:                 `{"a":1}`,
	}
	for in, want := range cases {
		if got := StripFences(in); got != want {
			t.Fatalf("StripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeReportsTypedError(t *testing.T) {
	_, aiErr := Decode[struct{ Score int }]("x", Result{Raw: "not json"})
	if aiErr == nil || aiErr.Stage != "decode" {
		t.Fatalf("expected decode-stage error, got %v", aiErr)
	}
}
