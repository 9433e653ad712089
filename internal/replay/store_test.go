package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStoreConsumeOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ok, err := store.Consume(ctx, "pay-1", "user-1")
	if err != nil || !ok {
		t.Fatalf("first consume: ok=%v err=%v", ok, err)
	}

	ok, err = store.Consume(ctx, "pay-1", "user-2")
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if ok {
		t.Fatal("payment consumed twice")
	}

	if err := store.Complete(ctx, "pay-1", "mint-sig"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.Complete(ctx, "pay-missing", "mint-sig"); err == nil {
		t.Fatal("completing an unclaimed payment should fail")
	}
}

func TestMemoryStoreRelease(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if ok, _ := store.Consume(ctx, "pay-1", "user-1"); !ok {
		t.Fatal("consume failed")
	}
	if err := store.Release(ctx, "pay-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := store.Consume(ctx, "pay-1", "user-1"); !ok {
		t.Fatal("released payment should be consumable again")
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.json")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	ctx := context.Background()
	if ok, err := store.Consume(ctx, "pay-1", "user-1"); err != nil || !ok {
		t.Fatalf("consume: ok=%v err=%v", ok, err)
	}
	if err := store.Complete(ctx, "pay-1", "mint-sig"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}

	store2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("re-open store: %v", err)
	}
	if ok, _ := store2.Consume(ctx, "pay-1", "user-1"); ok {
		t.Fatal("claim must survive a restart")
	}
}
