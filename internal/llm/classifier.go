package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openclaw/hybridmem/internal/logging"
)

// ChatClassifier implements Classifier on top of a Chat backend with a
// constrained JSON-producing prompt, the same way a shard wraps a chat
// client for structured decisions.
type ChatClassifier struct {
	chat  Chat
	model string
}

// NewChatClassifier builds a Classifier backed by the given Chat model.
func NewChatClassifier(chat Chat, model string) *ChatClassifier {
	return &ChatClassifier{chat: chat, model: model}
}

type classifyResponse struct {
	Action   string `json:"action"`
	TargetID string `json:"target_id"`
	Reason   string `json:"reason"`
}

// Classify asks the chat model which of ADD/UPDATE/DELETE/NOOP applies to a
// candidate fact given its nearest stored neighbours. Any failure (timeout,
// malformed JSON, unknown action) falls back to ActionAdd per spec's
// conservative-default policy.
func (c *ChatClassifier) Classify(ctx context.Context, candidate string, neighbours []Neighbour) (ClassifyResult, error) {
	timer := logging.StartTimer(logging.CategoryLLM, "Classify")
	defer timer.Stop()

	if len(neighbours) == 0 {
		return ClassifyResult{Action: ActionAdd, Reason: "no neighbours to compare against"}, nil
	}

	prompt := buildClassifyPrompt(candidate, neighbours)

	raw, err := c.chat.Complete(ctx, c.model, prompt, 0.0, 256)
	if err != nil {
		logging.LLMWarn("classify call failed, defaulting to ADD: %v", err)
		return ClassifyResult{Action: ActionAdd, Reason: "classifier unavailable"}, nil
	}

	result, err := parseClassifyResponse(raw)
	if err != nil {
		logging.LLMWarn("classify response unparsable, defaulting to ADD: %v", err)
		return ClassifyResult{Action: ActionAdd, Reason: "unparsable classifier response"}, nil
	}

	return result, nil
}

func buildClassifyPrompt(candidate string, neighbours []Neighbour) string {
	var b strings.Builder
	b.WriteString("You are deciding how a new memory relates to existing memories.\n")
	b.WriteString("Respond with strict JSON only: {\"action\": \"ADD|UPDATE|DELETE|NOOP\", \"target_id\": \"<id or empty>\", \"reason\": \"<short reason>\"}\n\n")
	fmt.Fprintf(&b, "Candidate: %s\n\n", candidate)
	b.WriteString("Existing nearby memories:\n")
	for _, n := range neighbours {
		fmt.Fprintf(&b, "- id=%s score=%.3f text=%s\n", n.ID, n.Score, n.Text)
	}
	return b.String()
}

func parseClassifyResponse(raw string) (ClassifyResult, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return ClassifyResult{}, fmt.Errorf("no JSON object found in response")
	}

	var parsed classifyResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return ClassifyResult{}, fmt.Errorf("unmarshal classify response: %w", err)
	}

	action := ClassifyAction(strings.ToUpper(strings.TrimSpace(parsed.Action)))
	switch action {
	case ActionAdd, ActionUpdate, ActionDelete, ActionNoop:
	default:
		return ClassifyResult{}, fmt.Errorf("unknown action %q", parsed.Action)
	}

	return ClassifyResult{Action: action, TargetID: parsed.TargetID, Reason: parsed.Reason}, nil
}
