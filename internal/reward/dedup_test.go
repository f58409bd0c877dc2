package reward

import (
	"context"
	"testing"
	"time"
)

func TestMemoryDedupReserveOnce(t *testing.T) {
	d := NewMemoryDedup(time.Hour)
	ctx := context.Background()

	ok, err := d.Reserve(ctx, "session-1", "contrib-1", 5*time.Minute)
	if err != nil || !ok {
		t.Fatalf("first reserve: ok=%v err=%v", ok, err)
	}

	ok, err = d.Reserve(ctx, "session-1", "contrib-1", 5*time.Minute)
	if err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if ok {
		t.Fatalf("duplicate reserve must be rejected within the TTL")
	}

	// Different contribution or session is an independent claim.
	if ok, _ := d.Reserve(ctx, "session-1", "contrib-2", 5*time.Minute); !ok {
		t.Fatalf("distinct contribution must be reservable")
	}
	if ok, _ := d.Reserve(ctx, "session-2", "contrib-1", 5*time.Minute); !ok {
		t.Fatalf("distinct session must be reservable")
	}
}

func TestMemoryDedupExpiredClaimIsReusable(t *testing.T) {
	d := NewMemoryDedup(time.Hour)
	ctx := context.Background()

	if ok, _ := d.Reserve(ctx, "session-1", "contrib-1", 10*time.Millisecond); !ok {
		t.Fatalf("first reserve rejected")
	}

	time.Sleep(20 * time.Millisecond)

	ok, err := d.Reserve(ctx, "session-1", "contrib-1", 5*time.Minute)
	if err != nil || !ok {
		t.Fatalf("expired claim should be reusable: ok=%v err=%v", ok, err)
	}
}

func TestMemoryDedupReleaseFreesClaim(t *testing.T) {
	d := NewMemoryDedup(time.Hour)
	ctx := context.Background()

	if ok, _ := d.Reserve(ctx, "session-1", "contrib-1", 5*time.Minute); !ok {
		t.Fatalf("first reserve rejected")
	}
	if err := d.Release(ctx, "session-1", "contrib-1"); err != nil {
		t.Fatalf("release: %v", err)
	}

	ok, err := d.Reserve(ctx, "session-1", "contrib-1", 5*time.Minute)
	if err != nil || !ok {
		t.Fatalf("released claim should be reservable again: ok=%v err=%v", ok, err)
	}

	// Releasing a claim that was never reserved is a no-op.
	if err := d.Release(ctx, "session-9", "contrib-9"); err != nil {
		t.Fatalf("release of unknown claim: %v", err)
	}
}

func TestDedupKeyShape(t *testing.T) {
	if got := DedupKey("s1", "c1"); got != "reward:s1:c1" {
		t.Fatalf("unexpected key %q", got)
	}
}
