// Package model содержит доменные сущности сервиса ресторатор.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Restaurant представляет ресторан сети.
type Restaurant struct {
	ID           int64
	Name         string
	Address      string
	ContactPhone string
}

// Product описывает товар каталога. Price — текущая цена каталога;
// в позициях заказа хранится цена на момент оформления.
type Product struct {
	ID          int64
	Name        string
	CategoryID  *int64
	Price       decimal.Decimal
	Special     bool
	Description string
}

// ProductCategory описывает категорию товаров.
type ProductCategory struct {
	ID   int64
	Name string
}

// MenuItem описывает пункт меню: пара (ресторан, товар) с признаком доступности.
// Ресторан может приготовить товар, только если пара существует и Availability = true.
type MenuItem struct {
	RestaurantID int64
	ProductID    int64
	Availability bool
}

// OrderStatus описывает статус обработки заказа.
type OrderStatus int16

const (
	OrderStatusNew OrderStatus = iota
	OrderStatusPreparing
	OrderStatusDelivering
	OrderStatusCompleted
)

// String возвращает отображаемое название статуса.
func (s OrderStatus) String() string {
	switch s {
	case OrderStatusNew:
		return "Новый"
	case OrderStatusPreparing:
		return "Собирается"
	case OrderStatusDelivering:
		return "Доставляется"
	case OrderStatusCompleted:
		return "Выполнен"
	}
	return "Неизвестен"
}

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod int16

const (
	PaymentCash PaymentMethod = iota
	PaymentElectronic
)

// String возвращает отображаемое название способа оплаты.
func (p PaymentMethod) String() string {
	switch p {
	case PaymentCash:
		return "Наличные"
	case PaymentElectronic:
		return "Электронно"
	}
	return "Неизвестен"
}

// Order описывает заказ покупателя.
type Order struct {
	ID           int64
	Firstname    string
	Lastname     string
	Phonenumber  string
	Address      string
	Status       OrderStatus
	Comment      string
	RegisteredAt time.Time
	CalledAt     *time.Time
	DeliveredAt  *time.Time
	Payment      PaymentMethod
	// ProviderID — ресторан, назначенный исполнителем заказа.
	// Пока исполнитель не назначен, подбор ресторанов выполняется вручную.
	ProviderID *int64
	Items      []OrderItem
	// Cost — суммарная стоимость позиций, вычисляется хранилищем.
	Cost decimal.Decimal
}

// OrderItem описывает позицию заказа. Цена фиксируется на момент оформления
// и не зависит от дальнейших изменений каталога.
type OrderItem struct {
	ProductID int64
	Price     decimal.Decimal
	Quantity  int32
}

// GeoPoint — закешированный результат геокодирования, ключом служит исходная
// строка адреса. Calculated = true означает, что повторное обращение к
// провайдеру не требуется, даже если координаты определить не удалось.
type GeoPoint struct {
	Address           string
	NormalizedAddress string
	Latitude          *float64
	Longitude         *float64
	Calculated        bool
	Timestamp         time.Time
}

// Coordinates возвращает координаты точки и признак их наличия.
func (p *GeoPoint) Coordinates() (lat, lon float64, ok bool) {
	if p == nil || p.Latitude == nil || p.Longitude == nil {
		return 0, 0, false
	}
	return *p.Latitude, *p.Longitude, true
}
