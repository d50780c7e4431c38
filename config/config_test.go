package config

import (
	"testing"
	"time"
)

func TestNormalizeDefaults(t *testing.T) {
	f := FunnelConfig{}.Normalize()
	if f.HeadlineThreshold != 40 || f.HighSignalThreshold != 75 || f.ArticleThreshold != 50 {
		t.Fatalf("funnel thresholds: %+v", f)
	}
	if f.BatchSize != 8 || f.MinWealthMM != 5 || f.MaxRetries != 1 {
		t.Fatalf("funnel defaults: %+v", f)
	}

	c := ChatConfig{}.Normalize()
	if c.TopK != 6 || c.SimilarityMin != 0.55 || c.ConfidenceShortcut != 0.85 || c.QueryExpansions != 3 {
		t.Fatalf("chat defaults: %+v", c)
	}

	a := AcquisitionConfig{}.Normalize()
	if a.Concurrency != 4 || a.FetchTimeout != 20*time.Second || a.MinContentChars != 400 {
		t.Fatalf("acquisition defaults: %+v", a)
	}

	cc := CacheConfig{TTL: -time.Hour}.Normalize()
	if cc.TTL != 24*time.Hour || cc.MemoryMax != 4096 {
		t.Fatalf("cache defaults: %+v", cc)
	}
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	f := FunnelConfig{HeadlineThreshold: 10, BatchSize: 3}.Normalize()
	if f.HeadlineThreshold != 10 || f.BatchSize != 3 {
		t.Fatalf("explicit values overridden: %+v", f)
	}
	b := BrowserConfig{UserAgent: "custom/1.0"}.Normalize()
	if b.UserAgent != "custom/1.0" {
		t.Fatalf("user agent overridden: %q", b.UserAgent)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{URL: "postgres://u:p@h/db"}
	if p.DSN() != "postgres://u:p@h/db" {
		t.Fatalf("explicit url not honored: %q", p.DSN())
	}
	p = PostgresConfig{Host: "localhost", User: "prospero", Pass: "s", DBName: "intel"}
	want := "postgres://prospero:s@localhost:5432/intel?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}

func TestPostgresValidate(t *testing.T) {
	if err := (PostgresConfig{URL: "postgres://x"}).Validate(); err != nil {
		t.Fatalf("url alone should validate: %v", err)
	}
	if err := (PostgresConfig{Host: "h"}).Validate(); err == nil {
		t.Fatalf("missing dbname must fail")
	}
	if err := (PostgresConfig{Host: "h", DBName: "d"}).Validate(); err != nil {
		t.Fatalf("host+dbname should validate: %v", err)
	}
}

func TestTelemetryValidate(t *testing.T) {
	if err := (TelemetryConfig{Enabled: true}).Validate(); err == nil {
		t.Fatalf("enabled telemetry without a port must fail")
	}
	if err := (TelemetryConfig{Enabled: true, MetricsPort: 9090}).Validate(); err != nil {
		t.Fatalf("valid telemetry rejected: %v", err)
	}
	if err := (TelemetryConfig{}).Validate(); err != nil {
		t.Fatalf("disabled telemetry must not require a port: %v", err)
	}
}

func TestLLMValidate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if err := (LLMConfig{}).Validate(); err == nil {
		t.Fatalf("missing api key must fail")
	}
	l := LLMConfig{APIKey: "k", Models: map[string]LLMModel{"gpt": {Name: "gpt"}}}
	if err := l.Validate(); err != nil {
		t.Fatalf("valid llm config rejected: %v", err)
	}
	if err := (LLMConfig{APIKey: "k"}).Validate(); err == nil {
		t.Fatalf("empty model map must fail")
	}
}
