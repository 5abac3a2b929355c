// Package inventory implements the shared retail stock ledger on top of
// Redis. Each item is a Redis hash; all quantity mutation goes through the
// optimistic watch/retry transaction in Ledger.Sell.
package inventory

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix namespaces item hashes in the shared store.
const KeyPrefix = "item:"

// Hash field names of an item record.
const (
	FieldDesigner  = "designer"
	FieldDate      = "date"
	FieldPrice     = "price"
	FieldQuantity  = "quantity"
	FieldPurchased = "purchased"
)

// Item is one stock record. Price, designer and date are immutable after
// creation; quantity and purchased change only through Ledger.Sell.
type Item struct {
	ID        string
	Designer  string
	Date      string
	Price     int64
	Quantity  int64
	Purchased int64
}

// Key returns the Redis key for the item's hash.
func (i Item) Key() string {
	return KeyPrefix + i.ID
}

// Fields returns the hash-field representation for HSet.
func (i Item) Fields() map[string]interface{} {
	return map[string]interface{}{
		FieldDesigner:  i.Designer,
		FieldDate:      i.Date,
		FieldPrice:     i.Price,
		FieldQuantity:  i.Quantity,
		FieldPurchased: i.Purchased,
	}
}

// ItemFromFields reconstructs an Item from a Redis hash read.
func ItemFromFields(id string, fields map[string]string) (Item, error) {
	item := Item{
		ID:       id,
		Designer: fields[FieldDesigner],
		Date:     fields[FieldDate],
	}

	var err error
	if item.Price, err = strconv.ParseInt(fields[FieldPrice], 10, 64); err != nil {
		return Item{}, fmt.Errorf("parse price of %q: %w", id, err)
	}
	if item.Quantity, err = strconv.ParseInt(fields[FieldQuantity], 10, 64); err != nil {
		return Item{}, fmt.Errorf("parse quantity of %q: %w", id, err)
	}
	if item.Purchased, err = strconv.ParseInt(fields[FieldPurchased], 10, 64); err != nil {
		return Item{}, fmt.Errorf("parse purchased of %q: %w", id, err)
	}

	return item, nil
}

var designerFirstNames = []string{
	"Anna", "Bruno", "Carla", "Dieter", "Elena", "Franz", "Greta", "Hugo",
	"Ines", "Jonas", "Klara", "Lars", "Mira", "Nico", "Olga", "Paul",
}

var designerLastNames = []string{
	"Adler", "Brandt", "Claes", "Dreyer", "Ebner", "Falk", "Gruber", "Hartmann",
	"Ilg", "Junker", "Keller", "Lindt", "Maurer", "Neumann", "Oswald", "Pfeifer",
}

// NewItem generates one item with randomized demo attributes:
// price in [1,100], quantity in [20,50], purchased 0.
func NewItem() Item {
	designer := designerFirstNames[rand.Intn(len(designerFirstNames))] + " " +
		designerLastNames[rand.Intn(len(designerLastNames))]

	// Random day within roughly the last 30 years
	date := time.Now().AddDate(0, 0, -rand.Intn(30*365)).Format("2006-01-02")

	return Item{
		ID:        uuid.NewString(),
		Designer:  designer,
		Date:      date,
		Price:     int64(rand.Intn(100) + 1),
		Quantity:  int64(rand.Intn(31) + 20),
		Purchased: 0,
	}
}

// Produce generates count fresh items for a restock batch.
func Produce(count int) []Item {
	items := make([]Item, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, NewItem())
	}
	return items
}
