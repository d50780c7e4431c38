package fetch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DebugSink receives raw HTML from structural failures (selector matched
// nothing, timeout, suspected bot challenge) together with the attempted
// selector and source metadata, for offline selector repair.
type DebugSink interface {
	Dump(sourceName, selector, reason, html string)
}

// FileDebugSink writes one HTML file plus a JSON metadata sidecar per dump.
type FileDebugSink struct {
	Dir string
}

type debugMeta struct {
	Source    string    `json:"source"`
	Selector  string    `json:"selector"`
	Reason    string    `json:"reason"`
	DumpedAt  time.Time `json:"dumped_at"`
	HTMLBytes int       `json:"html_bytes"`
}

// Dump persists the failure context; errors are swallowed because the sink
// is purely diagnostic.
func (s *FileDebugSink) Dump(sourceName, selector, reason, html string) {
	if s.Dir == "" {
		return
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return
	}
	stamp := time.Now().UTC().Format("20060102T150405")
	base := filepath.Join(s.Dir, fmt.Sprintf("%s-%s", sanitizeName(sourceName), stamp))
	_ = os.WriteFile(base+".html", []byte(html), 0o644)
	meta, err := json.MarshalIndent(debugMeta{
		Source:    sourceName,
		Selector:  selector,
		Reason:    reason,
		DumpedAt:  time.Now().UTC(),
		HTMLBytes: len(html),
	}, "", "  ")
	if err == nil {
		_ = os.WriteFile(base+".json", meta, 0o644)
	}
}

// NopDebugSink discards all dumps.
type NopDebugSink struct{}

func (NopDebugSink) Dump(string, string, string, string) {}

func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
