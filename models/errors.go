package models

import (
	"errors"
	"fmt"
)

// FetchError covers network failures, timeouts and suspected bot challenges
// while retrieving a page or feed.
type FetchError struct {
	Source      string
	URL         string
	BotSuspect  bool
	Err         error
}

func (e *FetchError) Error() string {
	if e.BotSuspect {
		return fmt.Sprintf("fetch %s (%s): suspected bot challenge: %v", e.URL, e.Source, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError covers selector mismatches and below-minimum content.
type ExtractionError struct {
	Source   string
	Selector string
	Reason   string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (selector %q): %s", e.Source, e.Selector, e.Reason)
}

// AIError covers upstream model failures, malformed JSON and schema
// validation failures. Agents return it inside their result shape instead
// of aborting the item.
type AIError struct {
	Agent       string
	Stage       string
	Diagnostics []string
	Err         error
}

func (e *AIError) Error() string {
	if len(e.Diagnostics) > 0 {
		return fmt.Sprintf("agent %s (%s): %v: %v", e.Agent, e.Stage, e.Err, e.Diagnostics)
	}
	return fmt.Sprintf("agent %s (%s): %v", e.Agent, e.Stage, e.Err)
}

func (e *AIError) Unwrap() error { return e.Err }

// CacheError signals an unreachable or misbehaving cache backend. Callers
// log it and fall through to live invocation.
type CacheError struct {
	Backend string
	Op      string
	Err     error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// ErrNotGrounded is returned by the chat orchestrator when the groundedness
// validator rejects a generated answer.
var ErrNotGrounded = errors.New("answer not grounded in retrieved context")
