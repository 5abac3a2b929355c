package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client for testing.
// Unit tests talk to a local Redis on DB 15; integration tests use
// testcontainers-go with a real Redis instance (see tests/integration).
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

// seedItem writes an item hash directly to the store.
func seedItem(t *testing.T, client *redis.Client, item Item) {
	t.Helper()
	if err := client.HSet(context.Background(), item.Key(), item.Fields()).Err(); err != nil {
		t.Fatalf("Failed to seed item %s: %v", item.ID, err)
	}
}

func TestRestockAndInfo(t *testing.T) {
	client := setupTestRedis(t)
	ledger := NewLedger(client, Config{})
	ctx := context.Background()

	if err := ledger.Restock(ctx, 5); err != nil {
		t.Fatalf("Restock failed: %v", err)
	}

	items, err := ledger.Info(ctx)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("Expected 5 items, got %d", len(items))
	}

	for _, item := range items {
		if item.Price < 1 || item.Price > 100 {
			t.Errorf("Item %s price %d outside [1,100]", item.ID, item.Price)
		}
		if item.Quantity < 20 || item.Quantity > 50 {
			t.Errorf("Item %s quantity %d outside [20,50]", item.ID, item.Quantity)
		}
		if item.Purchased != 0 {
			t.Errorf("Item %s purchased %d, want 0", item.ID, item.Purchased)
		}
		if item.Designer == "" || item.Date == "" {
			t.Errorf("Item %s missing designer or date", item.ID)
		}
	}
}

func TestRestock_Zero(t *testing.T) {
	client := setupTestRedis(t)
	ledger := NewLedger(client, Config{})

	if err := ledger.Restock(context.Background(), 0); err != nil {
		t.Fatalf("Restock(0) failed: %v", err)
	}

	items, err := ledger.Info(context.Background())
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items, got %d", len(items))
	}
}

func TestRestock_Negative(t *testing.T) {
	client := setupTestRedis(t)
	ledger := NewLedger(client, Config{})

	if err := ledger.Restock(context.Background(), -1); err == nil {
		t.Error("Expected error for negative count")
	}
}

func TestSell_Success(t *testing.T) {
	client := setupTestRedis(t)
	ledger := NewLedger(client, Config{})
	ctx := context.Background()

	item := Item{ID: "sell-ok", Designer: "Klara Falk", Date: "2019-03-11", Price: 40, Quantity: 10, Purchased: 2}
	seedItem(t, client, item)

	receipt, err := ledger.Sell(ctx, item.ID, 3)
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	if receipt.ItemID != item.ID {
		t.Errorf("Receipt item %s, want %s", receipt.ItemID, item.ID)
	}
	if receipt.Quantity != 3 {
		t.Errorf("Receipt quantity %d, want 3", receipt.Quantity)
	}
	if receipt.Revenue != 120 {
		t.Errorf("Receipt revenue %d, want 120", receipt.Revenue)
	}
	if receipt.Retries != 0 {
		t.Errorf("Receipt retries %d, want 0 without contention", receipt.Retries)
	}

	fields, err := client.HGetAll(ctx, item.Key()).Result()
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	got, err := ItemFromFields(item.ID, fields)
	if err != nil {
		t.Fatalf("ItemFromFields failed: %v", err)
	}

	if got.Quantity != 7 {
		t.Errorf("Quantity %d, want 7", got.Quantity)
	}
	if got.Purchased != 5 {
		t.Errorf("Purchased %d, want 5", got.Purchased)
	}
	// quantity + purchased is preserved across sells
	if got.Quantity+got.Purchased != item.Quantity+item.Purchased {
		t.Errorf("Conservation violated: %d+%d != %d+%d",
			got.Quantity, got.Purchased, item.Quantity, item.Purchased)
	}
}

func TestSell_NotEnoughStock(t *testing.T) {
	client := setupTestRedis(t)
	ledger := NewLedger(client, Config{})
	ctx := context.Background()

	item := Item{ID: "sell-short", Designer: "Paul Adler", Date: "2021-07-02", Price: 10, Quantity: 2, Purchased: 0}
	seedItem(t, client, item)

	_, err := ledger.Sell(ctx, item.ID, 5)
	if err == nil {
		t.Fatal("Expected error when requesting more than available")
	}

	var nes *NotEnoughStockError
	if !errors.As(err, &nes) {
		t.Fatalf("Expected *NotEnoughStockError, got %v", err)
	}
	if nes.Available != 2 {
		t.Errorf("Reported available %d, want 2", nes.Available)
	}
	if nes.Requested != 5 {
		t.Errorf("Reported requested %d, want 5", nes.Requested)
	}

	// Record must be unchanged after the aborted sell
	quantity, _ := client.HGet(ctx, item.Key(), FieldQuantity).Int64()
	purchased, _ := client.HGet(ctx, item.Key(), FieldPurchased).Int64()
	if quantity != 2 || purchased != 0 {
		t.Errorf("Record mutated by failed sell: quantity=%d purchased=%d", quantity, purchased)
	}
}

func TestSell_OutOfStock(t *testing.T) {
	client := setupTestRedis(t)
	ledger := NewLedger(client, Config{})

	item := Item{ID: "sell-empty", Designer: "Mira Lindt", Date: "2018-01-30", Price: 55, Quantity: 0, Purchased: 31}
	seedItem(t, client, item)

	_, err := ledger.Sell(context.Background(), item.ID, 1)
	if !errors.Is(err, ErrOutOfStock) {
		t.Errorf("Expected ErrOutOfStock, got %v", err)
	}
}

func TestSell_ItemNotFound(t *testing.T) {
	client := setupTestRedis(t)
	ledger := NewLedger(client, Config{})

	_, err := ledger.Sell(context.Background(), "ghost", 1)
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}
}

func TestSell_InvalidQuantity(t *testing.T) {
	client := setupTestRedis(t)
	ledger := NewLedger(client, Config{})

	for _, quantity := range []int64{0, -3} {
		if _, err := ledger.Sell(context.Background(), "any", quantity); err == nil {
			t.Errorf("Expected error for quantity %d", quantity)
		}
	}
}

// TestSell_Concurrent drives many concurrent sellers against one item and
// checks that the watch/retry protocol never oversells.
func TestSell_Concurrent(t *testing.T) {
	client := setupTestRedis(t)
	ledger := NewLedger(client, Config{})
	ctx := context.Background()

	const initialStock = 30
	const sellers = 50

	item := Item{ID: "contended", Designer: "Hugo Brandt", Date: "2020-11-09", Price: 7, Quantity: initialStock, Purchased: 0}
	seedItem(t, client, item)

	var sold atomic.Int64
	var rejected atomic.Int64
	var retries atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < sellers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			receipt, err := ledger.Sell(ctx, item.ID, 1)
			switch {
			case err == nil:
				sold.Add(receipt.Quantity)
				retries.Add(int64(receipt.Retries))
			case IsBusinessError(err):
				rejected.Add(1)
			default:
				t.Errorf("Unexpected sell error: %v", err)
			}
		}()
	}
	wg.Wait()

	if sold.Load() != initialStock {
		t.Errorf("Sold %d units, want exactly %d", sold.Load(), initialStock)
	}
	if rejected.Load() != sellers-initialStock {
		t.Errorf("Rejected %d sellers, want %d", rejected.Load(), sellers-initialStock)
	}

	quantity, _ := client.HGet(ctx, item.Key(), FieldQuantity).Int64()
	purchased, _ := client.HGet(ctx, item.Key(), FieldPurchased).Int64()

	if quantity != 0 {
		t.Errorf("Final quantity %d, want 0", quantity)
	}
	if purchased != initialStock {
		t.Errorf("Final purchased %d, want %d", purchased, initialStock)
	}
	if quantity+purchased != initialStock {
		t.Errorf("Conservation violated: %d+%d != %d", quantity, purchased, initialStock)
	}

	t.Logf("Absorbed %d watch conflicts across %d sellers", retries.Load(), sellers)
}

func TestRefresh(t *testing.T) {
	client := setupTestRedis(t)
	ledger := NewLedger(client, Config{})
	ctx := context.Background()

	seedItem(t, client, Item{ID: "gone-1", Designer: "Olga Ebner", Date: "2017-05-21", Price: 12, Quantity: 0, Purchased: 44})
	seedItem(t, client, Item{ID: "gone-2", Designer: "Lars Keller", Date: "2022-09-14", Price: 80, Quantity: 0, Purchased: 25})
	seedItem(t, client, Item{ID: "alive", Designer: "Elena Gruber", Date: "2023-02-08", Price: 33, Quantity: 15, Purchased: 10})

	report, err := ledger.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if report.Deleted != 2 {
		t.Errorf("Deleted %d items, want 2", report.Deleted)
	}

	items, err := ledger.Info(ctx)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "alive" {
		t.Errorf("Expected only the in-stock item to survive, got %v", items)
	}

	// A second sweep with nothing to reclaim reports zero deletions
	report, err = ledger.Refresh(ctx)
	if err != nil {
		t.Fatalf("Second refresh failed: %v", err)
	}
	if report.Deleted != 0 {
		t.Errorf("Second sweep deleted %d items, want 0", report.Deleted)
	}
}

func TestNewLedger_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewLedger should panic with nil redis client")
		}
	}()
	NewLedger(nil, Config{})
}
