package cache

import (
	"context"
	"testing"
	"time"
)

func newTestFile(t *testing.T) *File {
	t.Helper()
	f, err := NewFile(FileOptions{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFileSetGetDelete(t *testing.T) {
	ctx := context.Background()
	f := newTestFile(t)

	if err := f.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	v, ok, err := f.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if string(v) != "v" {
		t.Fatalf("v=%q", v)
	}

	if err := f.Set(ctx, "k", []byte("v2"), 0); err != nil {
		t.Fatal(err)
	}
	v, _, _ = f.Get(ctx, "k")
	if string(v) != "v2" {
		t.Fatalf("overwrite lost: %q", v)
	}

	if err := f.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := f.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after delete")
	}
	// Deleting an absent key is not an error.
	if err := f.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
}

func TestFileExpiry(t *testing.T) {
	ctx := context.Background()
	f := newTestFile(t)

	if err := f.Set(ctx, "k", []byte("v"), 15*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := f.Get(ctx, "k"); !ok {
		t.Fatalf("expected hit before expiry")
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok, _ := f.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after expiry")
	}
}

func TestFileSweep(t *testing.T) {
	ctx := context.Background()
	f := newTestFile(t)

	_ = f.Set(ctx, "keep", []byte("1"), 0)
	_ = f.Set(ctx, "drop1", []byte("2"), time.Millisecond)
	_ = f.Set(ctx, "drop2", []byte("3"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	n, err := f.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("swept=%d want 2", n)
	}
	if _, ok, _ := f.Get(ctx, "keep"); !ok {
		t.Fatalf("unexpired entry swept")
	}
}
