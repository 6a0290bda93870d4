package redisx

import (
	"fmt"
	"time"
)

// Cached entries are read-through snapshots, not the source of truth; the
// database always wins. TTLs are short so a sweep-expired order is never
// stale for long.
const (
	keyOrder   = "order:%s"
	keyProduct = "product:%s"
)

var (
	TTLOrder   = 30 * time.Second
	TTLProduct = 5 * time.Minute
)

func OrderKey(orderID string) string     { return fmt.Sprintf(keyOrder, orderID) }
func ProductKey(productID string) string { return fmt.Sprintf(keyProduct, productID) }
