//go:build integration

package trust

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sentinel-labs/sentinelx/internal/pagination"
	"github.com/sentinel-labs/sentinelx/internal/testutil"
)

func TestPostgresSaveGetRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	state := &TrustState{
		Identity:      "pg-agent-1",
		TrustScore:    72.5,
		Status:        StatusStepUpRequired,
		Reason:        "trust reduced by login risk",
		LastEvaluated: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "pg-agent-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("state not found after save")
	}
	if got.TrustScore != 72.5 || got.Status != StatusStepUpRequired {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.LockedUntil.IsZero() {
		t.Errorf("unexpected lock expiry: %v", got.LockedUntil)
	}

	// Upsert on the same identity.
	state.Status = StatusLocked
	state.LockedUntil = time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("re-save: %v", err)
	}
	got, err = store.Get(ctx, "pg-agent-1")
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if got.Status != StatusLocked || got.LockedUntil.IsZero() {
		t.Errorf("upsert did not apply: %+v", got)
	}
}

func TestPostgresGetUnknown(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	got, err := store.Get(context.Background(), "pg-nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestPostgresListCursorPagination(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 7; i++ {
		err := store.Save(ctx, &TrustState{
			Identity:      fmt.Sprintf("pg-agent-%02d", i),
			TrustScore:    100,
			Status:        StatusActive,
			LastEvaluated: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	var seen []string
	var cursor *pagination.Cursor
	for {
		states, err := store.List(ctx, cursor, 3)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(states) == 0 {
			break
		}
		for _, s := range states {
			seen = append(seen, s.Identity)
		}
		last := states[len(states)-1]
		cursor = &pagination.Cursor{CreatedAt: last.LastEvaluated, ID: last.Identity}
	}

	if len(seen) != 7 {
		t.Fatalf("cursor walk returned %d states: %v", len(seen), seen)
	}
	if seen[0] != "pg-agent-06" || seen[6] != "pg-agent-00" {
		t.Errorf("not most recent first: %v", seen)
	}
}
