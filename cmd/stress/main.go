// Command stress drives many concurrent sellers against a single item and
// verifies that the optimistic watch/retry protocol never oversells.
package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/retail-proxy/pkg/inventory"
)

const (
	redisAddr     = "localhost:6379"
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr, DB: 4})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Seed one contended item with a known stock level
	item := inventory.NewItem()
	item.Quantity = initialStock
	if err := rdb.HSet(ctx, item.Key(), item.Fields()).Err(); err != nil {
		log.Fatalf("failed to seed item: %v", err)
	}
	defer rdb.Del(ctx, item.Key())

	ledger := inventory.NewLedger(rdb, inventory.Config{})

	var successCount atomic.Int32
	var failCount atomic.Int32
	var conflictCount atomic.Int64
	var revenue atomic.Int64

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			receipt, err := ledger.Sell(ctx, item.ID, 1)
			if err == nil {
				successCount.Add(1)
				conflictCount.Add(int64(receipt.Retries))
				revenue.Add(receipt.Revenue)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Watch Conflicts:  %d\n", conflictCount.Load())
	fmt.Printf("Revenue:          %d\n", revenue.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && fail == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d sells succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	// Verify the final record in Redis
	quantity, _ := rdb.HGet(ctx, item.Key(), inventory.FieldQuantity).Int64()
	purchased, _ := rdb.HGet(ctx, item.Key(), inventory.FieldPurchased).Int64()
	fmt.Printf("Final Quantity:   %d\n", quantity)
	fmt.Printf("Final Purchased:  %d\n", purchased)

	if quantity == 0 && purchased == initialStock {
		fmt.Println("PASS: Stock depleted, quantity+purchased conserved")
	} else {
		fmt.Printf("FAIL: Expected quantity 0 / purchased %d\n", initialStock)
	}

	if revenue.Load() != int64(initialStock)*item.Price {
		fmt.Printf("FAIL: Revenue %d, expected %d\n", revenue.Load(), int64(initialStock)*item.Price)
	}
}
