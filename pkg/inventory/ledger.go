package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/retail-proxy/pkg/logging"
)

// Ledger owns the item records in the shared store. It holds no authoritative
// copies: every operation is a live store round-trip, so independent processes
// may operate on the same inventory concurrently.
type Ledger struct {
	redis  *redis.Client
	logger zerolog.Logger
	config Config
}

// Config holds the ledger configuration.
type Config struct {
	// MaxRetries bounds the watch/retry loop in Sell.
	// 0 means unbounded, matching the store's serialization guarantee.
	MaxRetries int
}

// Receipt is the result of a successful sell.
type Receipt struct {
	ItemID   string
	Quantity int64
	Revenue  int64

	// Retries is the number of watch conflicts absorbed before commit.
	Retries int
}

// RefreshReport summarizes a reclamation sweep.
type RefreshReport struct {
	Deleted int
}

// NewLedger creates a ledger over the given Redis client.
func NewLedger(redisClient *redis.Client, cfg Config) *Ledger {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Ledger{
		redis:  redisClient,
		logger: logging.NewLogger("inventory"),
		config: cfg,
	}
}

// Restock generates count new items and writes them as one pipelined batch.
// Existing items are never restocked in place; a restock only adds records.
func (l *Ledger) Restock(ctx context.Context, count int) error {
	if count < 0 {
		return fmt.Errorf("restock count must be >= 0, got %d", count)
	}
	if count == 0 {
		return nil
	}

	items := Produce(count)

	pipe := l.redis.Pipeline()
	for _, item := range items {
		pipe.HSet(ctx, item.Key(), item.Fields())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("restock batch of %d: %w", count, err)
	}

	restockedItemsTotal.Add(float64(count))
	l.logger.Info().Int("count", count).Msg("Restocked inventory")

	return nil
}

// Sell decrements an item's quantity and increments its purchased count in
// one optimistic transaction. When the watched item is modified by a
// concurrent seller between read and commit, the whole read-decide-commit
// cycle is retried. Business-rule failures (ErrOutOfStock,
// *NotEnoughStockError) are terminal and never retried.
func (l *Ledger) Sell(ctx context.Context, itemID string, quantity int64) (*Receipt, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("sell quantity must be positive, got %d", quantity)
	}

	key := KeyPrefix + itemID
	retries := 0

	for {
		var receipt *Receipt

		err := l.redis.Watch(ctx, func(tx *redis.Tx) error {
			available, err := tx.HGet(ctx, key, FieldQuantity).Int64()
			if err == redis.Nil {
				return ErrItemNotFound
			}
			if err != nil {
				return fmt.Errorf("read quantity of %q: %w", itemID, err)
			}

			if available == 0 {
				return ErrOutOfStock
			}
			if available < quantity {
				return &NotEnoughStockError{
					ItemID:    itemID,
					Requested: quantity,
					Available: available,
				}
			}

			// Price is immutable post-creation, safe to capture before commit
			price, err := tx.HGet(ctx, key, FieldPrice).Int64()
			if err != nil {
				return fmt.Errorf("read price of %q: %w", itemID, err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HIncrBy(ctx, key, FieldQuantity, -quantity)
				pipe.HIncrBy(ctx, key, FieldPurchased, quantity)
				return nil
			})
			if err != nil {
				return err
			}

			receipt = &Receipt{
				ItemID:   itemID,
				Quantity: quantity,
				Revenue:  quantity * price,
			}
			return nil
		}, key)

		if err == nil {
			receipt.Retries = retries
			sellsTotal.WithLabelValues("sold").Inc()
			sellRetriesPerSale.Observe(float64(retries))

			l.logger.Debug().
				Str("item_id", itemID).
				Int64("quantity", quantity).
				Int64("revenue", receipt.Revenue).
				Int("retries", retries).
				Msg("Sold")

			return receipt, nil
		}

		if errors.Is(err, redis.TxFailedErr) {
			// Concurrent seller mutated the watched item, retry from the top
			retries++
			sellConflictsTotal.Inc()

			l.logger.Debug().
				Str("item_id", itemID).
				Int("retries", retries).
				Msg("Sell transaction aborted by conflict, retrying")

			if l.config.MaxRetries > 0 && retries >= l.config.MaxRetries {
				sellsTotal.WithLabelValues("error").Inc()
				return nil, fmt.Errorf("%w: %d conflicts on %q",
					ErrConflictExhausted, retries, itemID)
			}
			continue
		}

		switch {
		case errors.Is(err, ErrOutOfStock):
			sellsTotal.WithLabelValues("out_of_stock").Inc()
		case errors.Is(err, ErrItemNotFound):
			sellsTotal.WithLabelValues("not_found").Inc()
		case IsBusinessError(err):
			sellsTotal.WithLabelValues("not_enough").Inc()
		default:
			sellsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("sell %q: %w", itemID, err)
		}

		return nil, err
	}
}

// Info enumerates all items and reads each record. Ordering follows store
// enumeration order and is not stable across calls.
func (l *Ledger) Info(ctx context.Context) ([]Item, error) {
	keys, err := l.redis.Keys(ctx, KeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("enumerate items: %w", err)
	}

	items := make([]Item, 0, len(keys))
	for _, key := range keys {
		fields, err := l.redis.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("read item %q: %w", key, err)
		}
		if len(fields) == 0 {
			// Deleted between enumeration and read
			continue
		}

		item, err := ItemFromFields(key[len(KeyPrefix):], fields)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

// Refresh reclaims items whose quantity has reached zero and reports how many
// were deleted. A store failure mid-scan ends the sweep; deletions already
// committed remain valid and are included in the report.
func (l *Ledger) Refresh(ctx context.Context) (RefreshReport, error) {
	report := RefreshReport{}

	keys, err := l.redis.Keys(ctx, KeyPrefix+"*").Result()
	if err != nil {
		return report, fmt.Errorf("enumerate items: %w", err)
	}

	for _, key := range keys {
		quantity, err := l.redis.HGet(ctx, key, FieldQuantity).Int64()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("read quantity of %q: %w", key, err)
		}

		if quantity <= 0 {
			if err := l.redis.Del(ctx, key).Err(); err != nil {
				return report, fmt.Errorf("delete %q: %w", key, err)
			}
			report.Deleted++
			refreshDeletionsTotal.Inc()
		}
	}

	l.logger.Info().Int("deleted", report.Deleted).Msg("Refresh sweep complete")

	return report, nil
}
