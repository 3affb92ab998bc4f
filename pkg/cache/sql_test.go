package cache

import (
	"context"
	"testing"
	"time"
)

func TestSQLiteCacheFlow(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQL(ctx, "sqlite:file:cachetest?mode=memory&cache=shared&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if string(v) != "v" {
		t.Fatalf("v=%q", v)
	}

	// Upsert.
	if err := s.Set(ctx, "k", []byte("v2"), 0); err != nil {
		t.Fatal(err)
	}
	v, _, _ = s.Get(ctx, "k")
	if string(v) != "v2" {
		t.Fatalf("upsert lost: %q", v)
	}

	// Expiry reads as a miss.
	if err := s.Set(ctx, "tmp", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(25 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "tmp"); ok {
		t.Fatalf("expected miss after expiry")
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestSQLiteSweep(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQL(ctx, "sqlite:file:sweeptest?mode=memory&cache=shared&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	_ = s.Set(ctx, "keep", []byte("1"), 0)
	_ = s.Set(ctx, "drop", []byte("2"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	n, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("swept=%d want 1", n)
	}
	if _, ok, _ := s.Get(ctx, "keep"); !ok {
		t.Fatalf("unexpired row swept")
	}
}

func TestOpenSQLRejectsBadDSN(t *testing.T) {
	ctx := context.Background()
	if _, err := OpenSQL(ctx, ""); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
	if _, err := OpenSQL(ctx, "mysql://nope"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}
