package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/openclaw/hybridmem/internal/store"
)

// pack renders candidates into one of the five injection formats, applying
// the token budget and, when the budget is exceeded and summarisation is
// enabled, replacing the dropped tail with an LLM-produced summary.
func (p *Pipeline) pack(cands []*candidate, format string) string {
	budget := p.recallCfg.MaxTokens
	if budget <= 0 {
		budget = 4000
	}

	switch format {
	case "short":
		return p.packLines(cands, budget, func(c *candidate) string {
			return fmt.Sprintf("- %s: %s", c.fact.Category, displayText(c.fact, p.recallCfg.MaxPerMemoryChars))
		})
	case "minimal":
		return p.packLines(cands, budget, func(c *candidate) string {
			return fmt.Sprintf("- %s", displayText(c.fact, p.recallCfg.MaxPerMemoryChars))
		})
	case "progressive":
		return p.packProgressive(cands)
	case "progressive_hybrid":
		return p.packProgressiveHybrid(cands, budget)
	default: // "full"
		return p.packLines(cands, budget, func(c *candidate) string {
			return fmt.Sprintf("- [%s/%s] %s", c.source, c.fact.Category, displayText(c.fact, p.recallCfg.MaxPerMemoryChars))
		})
	}
}

// packLines renders one line per candidate within budget tokens; when the
// budget is exceeded, either truncates or (if summarize_when_over_budget is
// set) replaces the dropped tail with a best-effort LLM summary.
func (p *Pipeline) packLines(cands []*candidate, budget int, render func(*candidate) string) string {
	var sb strings.Builder
	tokens := 0
	kept := 0
	for _, c := range cands {
		line := render(c) + "\n"
		cost := estimateTokens(line)
		if tokens+cost > budget {
			break
		}
		sb.WriteString(line)
		tokens += cost
		kept++
	}

	if kept < len(cands) && p.recallCfg.SummarizeWhenOverBudget && p.chat != nil {
		if summary := p.summarizeDropped(cands[kept:]); summary != "" {
			sb.WriteString(summary)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// summarizeDropped asks Chat for a 2-3 sentence summary of the facts that
// didn't fit the budget; best-effort, falls back to silence on failure.
func (p *Pipeline) summarizeDropped(dropped []*candidate) string {
	var bullets strings.Builder
	for _, c := range dropped {
		bullets.WriteString("- ")
		bullets.WriteString(displayText(c.fact, p.recallCfg.SummaryMaxChars))
		bullets.WriteString("\n")
	}

	prompt := fmt.Sprintf(
		"Summarize the following facts in 2-3 sentences, preserving the most important details:\n%s",
		bullets.String(),
	)
	summary, err := p.chat.Complete(context.Background(), "", prompt, 0.2, 200)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(summary)
}

// packProgressive renders a numbered index of candidates, caching
// position -> id for later resolution.
func (p *Pipeline) packProgressive(cands []*candidate) string {
	budget := p.recallCfg.ProgressiveIndexMaxTokens
	if budget <= 0 {
		budget = 1500
	}
	maxCandidates := p.recallCfg.ProgressiveMaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 50
	}

	index := make(map[int]string, len(cands))
	var sb strings.Builder
	tokens := 0

	for i, c := range cands {
		if i >= maxCandidates {
			break
		}
		title := progressiveTitle(c.fact)
		line := fmt.Sprintf("%d. [%s] %s (~%d tok)\n", i+1, c.fact.Category, title, estimateTokens(c.fact.Text))
		cost := estimateTokens(line)
		if tokens+cost > budget {
			break
		}
		sb.WriteString(line)
		tokens += cost
		index[i+1] = c.fact.ID
	}

	p.mu.Lock()
	p.lastIndex = index
	p.mu.Unlock()

	return sb.String()
}

// packProgressiveHybrid packs permanent or highly-recalled facts in full (up
// to ~60% of the budget), rendering the rest as a progressive index.
func (p *Pipeline) packProgressiveHybrid(cands []*candidate, budget int) string {
	pinned := p.recallCfg.ProgressivePinnedRecallCount

	var full, rest []*candidate
	for _, c := range cands {
		if c.fact.DecayClass == store.DecayPermanent || c.fact.RecallCount >= pinned {
			full = append(full, c)
		} else {
			rest = append(rest, c)
		}
	}

	fullBudget := int(float64(budget) * 0.6)
	fullBlock := p.packLines(full, fullBudget, func(c *candidate) string {
		return fmt.Sprintf("- [%s/%s] %s", c.source, c.fact.Category, displayText(c.fact, p.recallCfg.MaxPerMemoryChars))
	})

	progressiveBlock := p.packProgressive(rest)

	var sb strings.Builder
	sb.WriteString(fullBlock)
	sb.WriteString(progressiveBlock)
	return sb.String()
}

func progressiveTitle(f *store.Fact) string {
	if f.Key != "" {
		return f.Key
	}
	text := f.Text
	const maxTitleChars = 60
	if len(text) > maxTitleChars {
		text = text[:maxTitleChars] + "…"
	}
	return text
}

// ResolvePosition resolves a progressive-index position to the id it
// referred to in the most recent Recall call.
func (p *Pipeline) ResolvePosition(position int) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.lastIndex[position]
	return id, ok
}
