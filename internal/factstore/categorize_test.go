package factstore

import (
	"context"
	"testing"

	"github.com/openclaw/hybridmem/internal/store"
)

// fakeChat always returns a fixed completion, settable per test.
type fakeChat struct{ reply string }

func (f fakeChat) Complete(ctx context.Context, model, prompt string, temperature float64, maxTokens int) (string, error) {
	return f.reply, nil
}

func TestClassifyOtherFactsReclassifiesMatchingCategory(t *testing.T) {
	fs := newTestStore(t, Deps{Chat: fakeChat{reply: "decision"}})

	f, err := fs.Store(context.Background(), StoreArgs{Text: "we decided to ship on fridays", Category: store.CategoryOther})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := fs.ClassifyOtherFacts(context.Background(), 10); err != nil {
		t.Fatalf("classify other facts: %v", err)
	}

	got, err := fs.idx.Get(f.ID, store.GetOptions{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Category != "decision" {
		t.Errorf("category = %q, want %q", got.Category, "decision")
	}
}

func TestClassifyOtherFactsSkipsWithoutChatBackend(t *testing.T) {
	fs := newTestStore(t, Deps{})

	f, err := fs.Store(context.Background(), StoreArgs{Text: "something uncategorised", Category: store.CategoryOther})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := fs.ClassifyOtherFacts(context.Background(), 10); err != nil {
		t.Fatalf("classify other facts: %v", err)
	}

	got, err := fs.idx.Get(f.ID, store.GetOptions{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Category != store.CategoryOther {
		t.Errorf("category = %q, want unchanged %q", got.Category, store.CategoryOther)
	}
}

func TestClassifyOtherFactsIgnoresUnknownAnswer(t *testing.T) {
	fs := newTestStore(t, Deps{Chat: fakeChat{reply: "not-a-real-category"}})

	f, err := fs.Store(context.Background(), StoreArgs{Text: "ambiguous memory", Category: store.CategoryOther})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := fs.ClassifyOtherFacts(context.Background(), 10); err != nil {
		t.Fatalf("classify other facts: %v", err)
	}

	got, err := fs.idx.Get(f.ID, store.GetOptions{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Category != store.CategoryOther {
		t.Errorf("category = %q, want unchanged %q", got.Category, store.CategoryOther)
	}
}
