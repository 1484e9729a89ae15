// Package model содержит доменные сущности сервиса проката электротранспорта.
package model

import "time"

// VehicleType описывает тип электротранспорта.
type VehicleType string

const (
	VehicleTypeBike    VehicleType = "electric_bike"
	VehicleTypeScooter VehicleType = "electric_scooter"
)

// Tier описывает тарифную категорию транспорта.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// RentalPeriod описывает срок аренды.
type RentalPeriod string

const (
	PeriodDay  RentalPeriod = "day"
	PeriodWeek RentalPeriod = "week"
)

// OrderStatus описывает статус заказа аренды.
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"
	OrderStatusReturned  OrderStatus = "returned"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Vehicle описывает модель транспорта в парке проката.
// Поле Available изменяется только хранилищем и не бывает отрицательным.
type Vehicle struct {
	ID        int64
	Type      VehicleType
	Model     string
	PowerW    int
	RangeKm   int
	Capacity  int
	Available int
}

// Order описывает заказ аренды. Заказы не удаляются: возврат и отмена
// переводят заказ в терминальный статус, история сохраняется.
type Order struct {
	ID        int64
	VehicleID int64
	UserID    int64
	Username  string
	Period    RentalPeriod
	StartDate string // дата начала в формате DD.MM.YYYY
	Status    OrderStatus
	Code      string
	CreatedAt time.Time
}
