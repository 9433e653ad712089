package replay

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestPostgresStoreLifecycle(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	txID := "test-pay-" + time.Now().Format("20060102150405.000")

	ok, err := store.Consume(ctx, txID, "user-1")
	if err != nil || !ok {
		t.Fatalf("consume: ok=%v err=%v", ok, err)
	}

	ok, err = store.Consume(ctx, txID, "user-1")
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if ok {
		t.Fatal("payment consumed twice")
	}

	if err := store.Complete(ctx, txID, "mint-sig"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := store.Release(ctx, txID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := store.Consume(ctx, txID, "user-1"); !ok {
		t.Fatal("released payment should be consumable again")
	}
	_ = store.Release(ctx, txID)
}
