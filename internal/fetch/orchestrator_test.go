package fetch

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/prospero-intel/prospero/models"
)

type stubStrategy struct {
	name  string
	res   Result
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Fetch(_ context.Context, _ *models.SourceDescriptor) Result {
	s.calls++
	return s.res
}

func TestAcquireDynamicSourceWithoutBrowserFailsHealth(t *testing.T) {
	static := &stubStrategy{name: "static"}
	a := &Acquirer{
		Static: static,
		Logger: log.New(io.Discard, "", 0),
	}
	sources := []models.SourceDescriptor{
		{ID: "js-only", Name: "JS Only Gazette", BaseURL: "https://jsonly.example", Dynamic: true},
	}

	res := a.Acquire(context.Background(), sources)
	if static.calls != 0 {
		t.Fatalf("static strategy must be skipped for a dynamic source")
	}
	if len(res.Health) != 1 {
		t.Fatalf("health records = %d", len(res.Health))
	}
	h := res.Health[0]
	if h.Success {
		t.Fatalf("unservable source reported success: %+v", h)
	}
	if h.Error == "" {
		t.Fatalf("failure not surfaced in health record")
	}
	if !res.Sources[0].LastSuccessAt.IsZero() {
		t.Fatalf("last_success_at stamped on a failed source")
	}
	if res.Sources[0].LastScrapedAt.IsZero() {
		t.Fatalf("last_scraped_at must still be stamped")
	}
}

func TestAcquireFallsBackFromStaticToBrowser(t *testing.T) {
	static := &stubStrategy{name: "static", res: Result{Method: "static", Err: &models.FetchError{Source: "g", URL: "https://g", Err: context.DeadlineExceeded}}}
	browser := &stubStrategy{name: "browser", res: Result{
		Method:   "browser",
		Articles: []models.CandidateArticle{{Headline: "H", Link: "https://g/a"}},
	}}
	a := &Acquirer{
		Static:  static,
		Browser: browser,
		Logger:  log.New(io.Discard, "", 0),
	}
	sources := []models.SourceDescriptor{{ID: "g", Name: "Gazette", BaseURL: "https://g"}}

	res := a.Acquire(context.Background(), sources)
	if static.calls != 1 || browser.calls != 1 {
		t.Fatalf("strategy calls static=%d browser=%d", static.calls, browser.calls)
	}
	if len(res.Articles) != 1 {
		t.Fatalf("articles = %+v", res.Articles)
	}
	if !res.Health[0].Success || res.Health[0].Method != "browser" {
		t.Fatalf("health = %+v", res.Health[0])
	}
	if res.Sources[0].LastSuccessAt.IsZero() {
		t.Fatalf("success timestamp missing")
	}
}

func TestAcquireSkipsDisabledSources(t *testing.T) {
	static := &stubStrategy{name: "static"}
	a := &Acquirer{Static: static, Logger: log.New(io.Discard, "", 0)}
	res := a.Acquire(context.Background(), []models.SourceDescriptor{
		{ID: "off", Name: "Off", BaseURL: "https://off.example", Disabled: true},
	})
	if static.calls != 0 {
		t.Fatalf("disabled source was fetched")
	}
	if len(res.Health) != 0 {
		t.Fatalf("disabled source produced a health record: %+v", res.Health)
	}
	if len(res.Sources) != 1 {
		t.Fatalf("disabled source dropped from registry writeback")
	}
}
