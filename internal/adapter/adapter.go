// Package adapter implements the BoundaryAdapter: the thin translation
// layer between an agent host's lifecycle events and the core's
// operations. It owns no state of its own beyond the progressive-index
// cache already held by the retrieval Pipeline; it only wires
// before_agent_start to Recall and agent_end to FactStore.Store,
// grounded in the teacher's boundary between transport handlers and
// internal/core (handlers translate, core.Engine decides).
package adapter

import (
	"context"
	"strings"

	"github.com/openclaw/hybridmem/internal/factstore"
	"github.com/openclaw/hybridmem/internal/logging"
	"github.com/openclaw/hybridmem/internal/retrieval"
	"github.com/openclaw/hybridmem/internal/store"
)

// maxCaptureSpans bounds how many text spans agent_end will store per call,
// per spec.md's "pick up to three" rule.
const maxCaptureSpans = 3

// Role identifies which side of a conversation a Message came from.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation the host hands to agent_end.
type Message struct {
	Role Role
	Text string
}

// captureTriggers are fixed English phrases that mark a span as worth
// remembering: the first-person declarative language a user states a
// durable fact or preference with. Text in other languages does not match.
var captureTriggers = []string{
	"i prefer", "i like", "i always", "i never", "i use", "i work",
	"i'm using", "i am using", "remember that", "remember this",
	"from now on", "my favorite", "my preference", "please remember",
	"note that", "for future reference",
}

// Adapter wires lifecycle events from an agent host to the retrieval
// pipeline and the fact store.
type Adapter struct {
	recall *retrieval.Pipeline
	facts  *factstore.FactStore

	autoCapture     bool
	captureMaxChars int
}

// Deps configures an Adapter.
type Deps struct {
	Recall *retrieval.Pipeline
	Facts  *factstore.FactStore

	AutoCapture     bool
	CaptureMaxChars int
}

// New constructs an Adapter from its dependencies.
func New(deps Deps) *Adapter {
	maxChars := deps.CaptureMaxChars
	if maxChars <= 0 {
		maxChars = 2000
	}
	return &Adapter{
		recall:          deps.Recall,
		facts:           deps.Facts,
		autoCapture:     deps.AutoCapture,
		captureMaxChars: maxChars,
	}
}

// BeforeAgentStart runs the retrieval pipeline against prompt and returns
// the formatted recall block the host should prepend to the agent's
// context. An empty prompt or a Recall error yields an empty block rather
// than blocking the agent from starting.
func (a *Adapter) BeforeAgentStart(ctx context.Context, prompt string) (string, error) {
	if a.recall == nil || strings.TrimSpace(prompt) == "" {
		return "", nil
	}
	block, err := a.recall.Recall(ctx, retrieval.Options{Query: prompt})
	if err != nil {
		logging.RetrievalWarn("before_agent_start recall failed: %v", err)
		return "", nil
	}
	return block, nil
}

// AgentEnd runs the auto-capture pass: on a successful turn, with
// auto-capture enabled, it picks up to three message spans matching a
// capture trigger and not flagged sensitive, and stores each via the
// FactStore.
func (a *Adapter) AgentEnd(ctx context.Context, success bool, messages []Message) error {
	if !success || !a.autoCapture || a.facts == nil {
		return nil
	}

	var stored int
	for _, m := range messages {
		if stored >= maxCaptureSpans {
			break
		}
		span, ok := capturableSpan(m.Text, a.captureMaxChars)
		if !ok {
			continue
		}

		_, err := a.facts.Store(ctx, factstore.StoreArgs{
			Text:       span,
			Category:   store.CategoryFact,
			Discovered: true,
			Source:     "auto_capture",
			Importance: 0.5,
			Confidence: 0.6,
		})
		if err != nil {
			logging.RetrievalWarn("agent_end auto-capture failed: %v", err)
			continue
		}
		stored++
	}
	return nil
}

// capturableSpan reports whether text matches a capture trigger and is not
// sensitive, returning the (possibly truncated) span to store.
func capturableSpan(text string, maxChars int) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	if factstore.IsSensitiveText(trimmed) {
		return "", false
	}
	if !matchesCaptureTrigger(trimmed) {
		return "", false
	}
	if maxChars > 0 && len(trimmed) > maxChars {
		trimmed = trimmed[:maxChars]
	}
	return trimmed, true
}

func matchesCaptureTrigger(text string) bool {
	lower := strings.ToLower(text)
	for _, trigger := range captureTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}
