package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"mercator-hq/callisto/pkg/evidence"
	"mercator-hq/callisto/pkg/guardrail"
)

func record(requestID string, createdAt time.Time) evidence.Record {
	return evidence.Record{
		ID:         uuid.NewString(),
		RequestID:  requestID,
		Phase:      guardrail.FlavorOutput,
		PolicyName: "pii",
		Severity:   guardrail.SeverityHigh,
		Message:    "found something",
		Attempt:    1,
		CreatedAt:  createdAt,
	}
}

// stores under test share one behavioral contract.
func runStoreContract(t *testing.T, store evidence.Store) {
	ctx := context.Background()
	now := time.Now()

	old := record("req-old", now.Add(-2*time.Hour))
	recent := record("req-new", now)

	if err := store.Save(ctx, old); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, recent); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.ByRequest(ctx, "req-new")
	if err != nil {
		t.Fatalf("ByRequest failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(got))
	}
	if got[0].PolicyName != "pii" || got[0].Severity != guardrail.SeverityHigh {
		t.Errorf("Record round trip lost fields: %+v", got[0])
	}
	if got[0].Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", got[0].Attempt)
	}

	removed, err := store.Prune(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 pruned record, got %d", removed)
	}

	remaining, err := store.ByRequest(ctx, "req-old")
	if err != nil {
		t.Fatalf("ByRequest failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("Pruned record still present: %d", len(remaining))
	}
}

func TestMemory_Contract(t *testing.T) {
	store := NewMemory()
	defer store.Close()
	runStoreContract(t, store)
}

func TestSQLite_Contract(t *testing.T) {
	store, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer store.Close()
	runStoreContract(t, store)
}

func TestSQLite_OrdersByCreation(t *testing.T) {
	store, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Now()
	for i := 3; i >= 1; i-- {
		rec := record("req-1", base.Add(time.Duration(i)*time.Second))
		rec.Message = string(rune('0' + i))
		if err := store.Save(ctx, rec); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	got, err := store.ByRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("ByRequest failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
			t.Error("Records not ordered oldest first")
		}
	}
}
