package factstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/hybridmem/internal/llm"
	"github.com/openclaw/hybridmem/internal/logging"
	"github.com/openclaw/hybridmem/internal/store"
)

// ClassifyOtherFacts reclassifies up to batchSize current facts labelled
// CategoryOther, the daily task named in §9. A nil chat backend disables
// the task entirely (left uncategorised rather than guessed blind).
func (fs *FactStore) ClassifyOtherFacts(ctx context.Context, batchSize int) error {
	if fs.chat == nil {
		logging.LifecycleDebug("auto-classify: no chat backend configured, skipping")
		return nil
	}

	known, err := fs.idx.KnownCategories()
	if err != nil {
		return fmt.Errorf("auto-classify: list known categories: %w", err)
	}

	var candidates []*store.Fact
	err = fs.idx.ForEachCurrent(func(f *store.Fact) error {
		if f.Category == store.CategoryOther && len(candidates) < batchSize {
			candidates = append(candidates, f)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("auto-classify: scan other-labelled facts: %w", err)
	}

	for _, f := range candidates {
		category, err := classifyCategory(ctx, fs.chat, f.Text, known)
		if err != nil {
			logging.LifecycleWarn("auto-classify: classify %s failed: %v", f.ID, err)
			continue
		}
		if category == "" || category == store.CategoryOther {
			continue
		}

		cat := category
		if err := fs.idx.Update(f.ID, store.FactPatch{Category: &cat}); err != nil {
			logging.LifecycleWarn("auto-classify: update %s failed: %v", f.ID, err)
			continue
		}
		if err := fs.registerCategoryIfNew(cat, time.Now()); err != nil {
			logging.LifecycleWarn("auto-classify: register category %q failed: %v", cat, err)
		}
		logging.Lifecycle("auto-classified fact %s as %s", f.ID, cat)
	}
	return nil
}

// classifyCategory asks chat which of the known categories best fits text,
// defaulting to "" (leave uncategorised) on any failure or an answer
// outside the known set.
func classifyCategory(ctx context.Context, chat llm.Chat, text string, known []string) (string, error) {
	if len(known) == 0 {
		return "", nil
	}

	raw, err := chat.Complete(ctx, "", buildCategorizePrompt(text, known), 0.0, 16)
	if err != nil {
		return "", fmt.Errorf("categorize call: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(raw))
	for _, c := range known {
		if answer == c {
			return c, nil
		}
	}
	logging.StoreDebug("categorize: response %q not in known set, leaving uncategorised", answer)
	return "", nil
}

func buildCategorizePrompt(text string, known []string) string {
	var b strings.Builder
	b.WriteString("Pick exactly one category from this list that best matches the memory text. Respond with only the category name, nothing else.\n")
	fmt.Fprintf(&b, "Categories: %s\n\n", strings.Join(known, ", "))
	fmt.Fprintf(&b, "Memory: %s\n", text)
	return b.String()
}
