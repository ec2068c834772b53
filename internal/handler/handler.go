// Package handler содержит HTTP-обработчики API сервиса ресторатор.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/restaurateur-system/internal/geo"
	"github.com/mmeshcher/restaurateur-system/internal/model"
	"github.com/mmeshcher/restaurateur-system/internal/repository"
	"github.com/mmeshcher/restaurateur-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	OrderBoard(ctx context.Context) ([]service.OrderWithRestaurants, error)
	GetRestaurants(ctx context.Context) ([]model.Restaurant, error)
	ProductsWithAvailability(ctx context.Context) ([]model.Restaurant, []service.ProductAvailability, error)
	RegisterOrder(ctx context.Context, order *model.Order) (int64, error)
}

// Handler реализует HTTP-обработчики API сервиса ресторатор.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type rankedRestaurantResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Distance string `json:"distance"`
}

type orderBoardItemResponse struct {
	ID           int64                      `json:"id"`
	Firstname    string                     `json:"firstname"`
	Lastname     string                     `json:"lastname"`
	Phonenumber  string                     `json:"phonenumber"`
	Address      string                     `json:"address"`
	Status       string                     `json:"status"`
	Payment      string                     `json:"payment"`
	Comment      string                     `json:"comment,omitempty"`
	Cost         string                     `json:"cost"`
	RegisteredAt string                     `json:"registered_at"`
	Restaurants  []rankedRestaurantResponse `json:"restaurants"`
}

// formatDistance переводит расстояние во внешний вид, принятый
// презентационным слоем: "3.42 км." либо "нет данных".
func formatDistance(km *float64) string {
	if km == nil {
		return geo.NoData
	}
	return fmt.Sprintf("%.2f км.", *km)
}

// GetOrderBoard возвращает активные заказы с подходящими ресторанами,
// упорядоченными по удалённости от адреса доставки.
func (h *Handler) GetOrderBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.OrderBoard(r.Context())
	if err != nil {
		h.logger.Error("order board error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]orderBoardItemResponse, 0, len(board))
	for _, entry := range board {
		item := orderBoardItemResponse{
			ID:           entry.Order.ID,
			Firstname:    entry.Order.Firstname,
			Lastname:     entry.Order.Lastname,
			Phonenumber:  entry.Order.Phonenumber,
			Address:      entry.Order.Address,
			Status:       entry.Order.Status.String(),
			Payment:      entry.Order.Payment.String(),
			Comment:      entry.Order.Comment,
			Cost:         entry.Order.Cost.StringFixed(2),
			RegisteredAt: entry.Order.RegisteredAt.Format(time.RFC3339),
			Restaurants:  make([]rankedRestaurantResponse, 0, len(entry.Restaurants)),
		}

		for _, ranked := range entry.Restaurants {
			item.Restaurants = append(item.Restaurants, rankedRestaurantResponse{
				ID:       ranked.Restaurant.ID,
				Name:     ranked.Restaurant.Name,
				Address:  ranked.Restaurant.Address,
				Distance: formatDistance(ranked.DistanceKm),
			})
		}

		resp = append(resp, item)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type restaurantResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

// GetRestaurants возвращает список ресторанов.
func (h *Handler) GetRestaurants(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.service.GetRestaurants(r.Context())
	if err != nil {
		h.logger.Error("get restaurants error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]restaurantResponse, 0, len(restaurants))
	for _, rest := range restaurants {
		resp = append(resp, restaurantResponse{
			ID:           rest.ID,
			Name:         rest.Name,
			Address:      rest.Address,
			ContactPhone: rest.ContactPhone,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type productAvailabilityResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	Special      bool   `json:"special"`
	Availability []bool `json:"availability"`
}

type productsResponse struct {
	Restaurants []restaurantResponse          `json:"restaurants"`
	Products    []productAvailabilityResponse `json:"products"`
}

// GetProducts возвращает товары с матрицей доступности по ресторанам.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	restaurants, products, err := h.service.ProductsWithAvailability(r.Context())
	if err != nil {
		h.logger.Error("get products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := productsResponse{
		Restaurants: make([]restaurantResponse, 0, len(restaurants)),
		Products:    make([]productAvailabilityResponse, 0, len(products)),
	}

	for _, rest := range restaurants {
		resp.Restaurants = append(resp.Restaurants, restaurantResponse{
			ID:      rest.ID,
			Name:    rest.Name,
			Address: rest.Address,
		})
	}

	for _, p := range products {
		resp.Products = append(resp.Products, productAvailabilityResponse{
			ID:           p.Product.ID,
			Name:         p.Product.Name,
			Price:        p.Product.Price.StringFixed(2),
			Special:      p.Product.Special,
			Availability: p.Availability,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type orderItemRequest struct {
	Product  int64 `json:"product"`
	Quantity int32 `json:"quantity"`
}

type createOrderRequest struct {
	Firstname   string             `json:"firstname"`
	Lastname    string             `json:"lastname"`
	Phonenumber string             `json:"phonenumber"`
	Address     string             `json:"address"`
	Comment     string             `json:"comment"`
	Payment     int16              `json:"payment"`
	Products    []orderItemRequest `json:"products"`
}

type createOrderResponse struct {
	ID int64 `json:"id"`
}

// CreateOrder регистрирует новый заказ.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order := &model.Order{
		Firstname:   req.Firstname,
		Lastname:    req.Lastname,
		Phonenumber: req.Phonenumber,
		Address:     req.Address,
		Comment:     req.Comment,
		Payment:     model.PaymentMethod(req.Payment),
	}

	for _, item := range req.Products {
		order.Items = append(order.Items, model.OrderItem{
			ProductID: item.Product,
			Quantity:  item.Quantity,
		})
	}

	orderID, err := h.service.RegisterOrder(r.Context(), order)
	if err != nil {
		if errors.Is(err, service.ErrInvalidOrder) || errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("create order error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(createOrderResponse{ID: orderID}); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}
