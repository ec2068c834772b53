// Package service реализует бизнес-логику сервиса ресторатор:
// подбор ресторанов под заказ и ранжирование их по удалённости.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mmeshcher/restaurateur-system/internal/geo"
	"github.com/mmeshcher/restaurateur-system/internal/model"
)

// ErrInvalidOrder возвращается при попытке зарегистрировать некорректный заказ.
var ErrInvalidOrder = errors.New("invalid order")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetRestaurants(ctx context.Context) ([]model.Restaurant, error)
	GetProducts(ctx context.Context) ([]model.Product, error)
	GetMenuItems(ctx context.Context) ([]model.MenuItem, error)
	GetActiveOrders(ctx context.Context) ([]model.Order, error)
	CreateOrder(ctx context.Context, order *model.Order) (int64, error)
}

// Resolver описывает контракт кеша геокодирования.
type Resolver interface {
	Resolve(ctx context.Context, address string) (*model.GeoPoint, error)
}

// RankedRestaurant — ресторан с расстоянием до адреса доставки.
// DistanceKm == nil означает, что расстояние определить не удалось.
type RankedRestaurant struct {
	Restaurant model.Restaurant
	DistanceKm *float64
}

// OrderWithRestaurants — заказ и подходящие рестораны, упорядоченные по удалённости.
type OrderWithRestaurants struct {
	Order       model.Order
	Restaurants []RankedRestaurant
}

// ProductAvailability — товар с вектором доступности по ресторанам.
// Порядок значений совпадает с порядком списка ресторанов.
type ProductAvailability struct {
	Product      model.Product
	Availability []bool
}

// Service содержит бизнес-логику сервиса ресторатор.
type Service struct {
	repo     Repository
	resolver Resolver
}

// NewService создаёт новый сервис с указанным репозиторием и резолвером координат.
func NewService(repo Repository, resolver Resolver) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// SuitableRestaurants возвращает рестораны, у которых в продаже есть каждый
// товар заказа. Для каждого ресторана считается число доступных пунктов
// меню, попавших в набор товаров заказа: ресторан подходит, если это число
// равно числу различных товаров. Заказ без позиций подходит всем ресторанам.
// Порядок входного списка ресторанов сохраняется.
func SuitableRestaurants(order model.Order, restaurants []model.Restaurant, menu []model.MenuItem) []model.Restaurant {
	ordered := make(map[int64]struct{}, len(order.Items))
	for _, item := range order.Items {
		ordered[item.ProductID] = struct{}{}
	}

	counts := make(map[int64]int, len(restaurants))
	for _, item := range menu {
		if !item.Availability {
			continue
		}
		if _, ok := ordered[item.ProductID]; !ok {
			continue
		}
		counts[item.RestaurantID]++
	}

	suitable := make([]model.Restaurant, 0, len(restaurants))
	for _, rest := range restaurants {
		if counts[rest.ID] == len(ordered) {
			suitable = append(suitable, rest)
		}
	}

	return suitable
}

// RankByDistance возвращает кандидатов, упорядоченных по возрастанию
// расстояния до адреса доставки. Рестораны, адрес которых не удалось
// геокодировать, идут после всех остальных, сохраняя исходный порядок.
// Если не геокодируется сам адрес заказа, все кандидаты возвращаются
// без расстояний в исходном порядке.
func (s *Service) RankByDistance(ctx context.Context, order model.Order, candidates []model.Restaurant) ([]RankedRestaurant, error) {
	ranked := make([]RankedRestaurant, 0, len(candidates))

	orderPoint, err := s.resolver.Resolve(ctx, order.Address)
	if err != nil {
		return nil, fmt.Errorf("resolve order address: %w", err)
	}

	orderLat, orderLon, ok := orderPoint.Coordinates()
	if !ok {
		for _, rest := range candidates {
			ranked = append(ranked, RankedRestaurant{Restaurant: rest})
		}
		return ranked, nil
	}

	for _, rest := range candidates {
		point, err := s.resolver.Resolve(ctx, rest.Address)
		if err != nil {
			return nil, fmt.Errorf("resolve restaurant address: %w", err)
		}

		entry := RankedRestaurant{Restaurant: rest}
		if lat, lon, ok := point.Coordinates(); ok {
			distance := geo.DistanceKm(orderLat, orderLon, lat, lon)
			entry.DistanceKm = &distance
		}

		ranked = append(ranked, entry)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].DistanceKm, ranked[j].DistanceKm
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return *a < *b
	})

	return ranked, nil
}

// OrderBoard собирает сводку по активным заказам: для каждого заказа без
// назначенного исполнителя — подходящие рестораны по возрастанию
// расстояния. Для заказов с исполнителем подбор не выполняется.
func (s *Service) OrderBoard(ctx context.Context) ([]OrderWithRestaurants, error) {
	orders, err := s.repo.GetActiveOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active orders: %w", err)
	}

	restaurants, err := s.repo.GetRestaurants(ctx)
	if err != nil {
		return nil, fmt.Errorf("get restaurants: %w", err)
	}

	menu, err := s.repo.GetMenuItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("get menu items: %w", err)
	}

	board := make([]OrderWithRestaurants, 0, len(orders))
	for _, order := range orders {
		if order.ProviderID != nil {
			board = append(board, OrderWithRestaurants{
				Order:       order,
				Restaurants: []RankedRestaurant{},
			})
			continue
		}

		suitable := SuitableRestaurants(order, restaurants, menu)

		ranked, err := s.RankByDistance(ctx, order, suitable)
		if err != nil {
			return nil, err
		}

		board = append(board, OrderWithRestaurants{
			Order:       order,
			Restaurants: ranked,
		})
	}

	return board, nil
}

// GetRestaurants возвращает список ресторанов, упорядоченный по названию.
func (s *Service) GetRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	return s.repo.GetRestaurants(ctx)
}

// ProductsWithAvailability возвращает рестораны и товары с векторами
// доступности: для каждого товара — признак наличия в каждом ресторане
// в порядке списка ресторанов.
func (s *Service) ProductsWithAvailability(ctx context.Context) ([]model.Restaurant, []ProductAvailability, error) {
	restaurants, err := s.repo.GetRestaurants(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get restaurants: %w", err)
	}

	products, err := s.repo.GetProducts(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get products: %w", err)
	}

	menu, err := s.repo.GetMenuItems(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get menu items: %w", err)
	}

	available := make(map[[2]int64]bool, len(menu))
	for _, item := range menu {
		available[[2]int64{item.RestaurantID, item.ProductID}] = item.Availability
	}

	result := make([]ProductAvailability, 0, len(products))
	for _, product := range products {
		row := ProductAvailability{
			Product:      product,
			Availability: make([]bool, 0, len(restaurants)),
		}
		for _, rest := range restaurants {
			row.Availability = append(row.Availability, available[[2]int64{rest.ID, product.ID}])
		}
		result = append(result, row)
	}

	return restaurants, result, nil
}

// RegisterOrder проверяет и регистрирует новый заказ, возвращая его идентификатор.
// Цены позиций фиксируются из каталога на момент оформления.
func (s *Service) RegisterOrder(ctx context.Context, order *model.Order) (int64, error) {
	if order.Firstname == "" || order.Lastname == "" || order.Phonenumber == "" || order.Address == "" {
		return 0, fmt.Errorf("%w: contact fields must be filled", ErrInvalidOrder)
	}

	if len(order.Items) == 0 {
		return 0, fmt.Errorf("%w: order has no items", ErrInvalidOrder)
	}

	for _, item := range order.Items {
		if item.Quantity < 1 {
			return 0, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
		}
	}

	order.Status = model.OrderStatusNew

	return s.repo.CreateOrder(ctx, order)
}
