package redisx

import "time"

const (
	// Кэш статуса заказа по номеру: checkout:order_status:{number} -> {"status": "..."}
	KeyOrderStatus = "checkout:order_status:%s"
)

var (
	// TTLStatusCache — кэш короткий: источником истины остаётся хранилище заказов.
	TTLStatusCache = 5 * time.Minute
)
