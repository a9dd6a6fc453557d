package domain

import "time"

// InventoryVariant — вариант товара из каталога.
// Settlement-сервис читает варианты при расчёте цены и выполняет
// единственную запись — защищённое списание остатка при подтверждении оплаты.
type InventoryVariant struct {
	ID         string
	ProductID  string
	CategoryID string
	Name       string
	PriceMinor int64
	Stock      int32
	Active     bool
	UpdatedAt  time.Time
}

// Available сообщает, можно ли заказать qty единиц этого варианта.
func (v *InventoryVariant) Available(qty int32) bool {
	return v.Active && v.Stock >= qty
}
