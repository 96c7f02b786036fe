package factstore

import (
	"testing"
	"time"

	"github.com/openclaw/hybridmem/internal/store"
)

func TestSweepExpiredProposalsRemovesExpired(t *testing.T) {
	fs := newTestStore(t, Deps{})

	if err := fs.idx.InsertProposal(&store.Proposal{
		ID:        "p1",
		Kind:      "new_category",
		Payload:   `{"name":"hobby"}`,
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("insert proposal: %v", err)
	}
	if err := fs.idx.InsertProposal(&store.Proposal{
		ID:        "p2",
		Kind:      "new_category",
		Payload:   `{"name":"widgets"}`,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("insert proposal: %v", err)
	}

	n, err := fs.SweepExpiredProposals(time.Now())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}

	// A second sweep at the same instant should find nothing left expired.
	n, err = fs.SweepExpiredProposals(time.Now())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep removed %d, want 0", n)
	}
}
