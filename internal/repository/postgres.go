// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/restaurateur-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrProductNotFound возвращается, если товар из позиции заказа отсутствует в каталоге.
var (
	ErrProductNotFound = errors.New("product not found")
	// ErrRestaurantNotFound возвращается, если указанный ресторан не существует.
	ErrRestaurantNotFound = errors.New("restaurant not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при сериализационных и сетевых сбоях.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
			return err
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetRestaurants возвращает все рестораны, упорядоченные по названию.
func (r *PostgresRepository) GetRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, address, contact_phone
		 FROM restaurants
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []model.Restaurant
	for rows.Next() {
		var rest model.Restaurant
		if err := rows.Scan(&rest.ID, &rest.Name, &rest.Address, &rest.ContactPhone); err != nil {
			return nil, fmt.Errorf("scan restaurant: %w", err)
		}
		restaurants = append(restaurants, rest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return restaurants, nil
}

// GetProducts возвращает все товары каталога.
func (r *PostgresRepository) GetProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, category_id, price, special, description
		 FROM products
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID, &p.Price, &p.Special, &p.Description); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// GetMenuItems возвращает все пункты меню всех ресторанов.
func (r *PostgresRepository) GetMenuItems(ctx context.Context) ([]model.MenuItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT restaurant_id, product_id, availability FROM menu_items`,
	)
	if err != nil {
		return nil, fmt.Errorf("select menu items: %w", err)
	}
	defer rows.Close()

	var items []model.MenuItem
	for rows.Next() {
		var item model.MenuItem
		if err := rows.Scan(&item.RestaurantID, &item.ProductID, &item.Availability); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// GetActiveOrders возвращает незавершённые заказы с позициями и суммарной
// стоимостью, упорядоченные по времени регистрации.
func (r *PostgresRepository) GetActiveOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.firstname, o.lastname, o.phonenumber, o.address, o.status,
		        o.comment, o.registered_at, o.called_at, o.delivered_at, o.payment, o.provider_id,
		        COALESCE((SELECT SUM(i.price * i.quantity) FROM order_items i WHERE i.order_id = o.id), 0)
		 FROM orders o
		 WHERE o.status < $1
		 ORDER BY o.registered_at`,
		int16(model.OrderStatusCompleted),
	)
	if err != nil {
		return nil, fmt.Errorf("select active orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	byID := make(map[int64]int)
	for rows.Next() {
		var o model.Order
		var status, payment int16
		err := rows.Scan(
			&o.ID, &o.Firstname, &o.Lastname, &o.Phonenumber, &o.Address, &status,
			&o.Comment, &o.RegisteredAt, &o.CalledAt, &o.DeliveredAt, &payment, &o.ProviderID,
			&o.Cost,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		o.Status = model.OrderStatus(status)
		o.Payment = model.PaymentMethod(payment)

		byID[o.ID] = len(orders)
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	itemRows, err := r.pool.Query(ctx,
		`SELECT i.order_id, i.product_id, i.price, i.quantity
		 FROM order_items i
		 JOIN orders o ON o.id = i.order_id
		 WHERE o.status < $1
		 ORDER BY i.id`,
		int16(model.OrderStatusCompleted),
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID int64
		var item model.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}

		if idx, ok := byID[orderID]; ok {
			orders[idx].Items = append(orders[idx].Items, item)
		}
	}

	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// CreateOrder регистрирует заказ с позициями. Цена каждой позиции
// фиксируется из каталога на момент оформления.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *model.Order) (int64, error) {
	var orderID int64

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (firstname, lastname, phonenumber, address, status, comment, payment, provider_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id`,
			order.Firstname, order.Lastname, order.Phonenumber, order.Address,
			int16(order.Status), order.Comment, int16(order.Payment), order.ProviderID,
		).Scan(&orderID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return ErrRestaurantNotFound
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for _, item := range order.Items {
			var price decimal.Decimal
			err := tx.QueryRow(ctx,
				`SELECT price FROM products WHERE id = $1`,
				item.ProductID,
			).Scan(&price)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("%w: id %d", ErrProductNotFound, item.ProductID)
				}
				return fmt.Errorf("select product price: %w", err)
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO order_items (order_id, product_id, price, quantity)
				 VALUES ($1, $2, $3, $4)`,
				orderID, item.ProductID, price, item.Quantity,
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return orderID, nil
}

// GetOrCreateGeoPoint возвращает геоточку по адресу, создавая при
// отсутствии необработанную запись.
func (r *PostgresRepository) GetOrCreateGeoPoint(ctx context.Context, address string) (*model.GeoPoint, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO geo_points (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`,
		address,
	)
	if err != nil {
		return nil, fmt.Errorf("insert geo point: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`SELECT address, normalized_address, latitude, longitude, calculated, updated_at
		 FROM geo_points
		 WHERE address = $1`,
		address,
	)

	var p model.GeoPoint
	if err := row.Scan(&p.Address, &p.NormalizedAddress, &p.Latitude, &p.Longitude, &p.Calculated, &p.Timestamp); err != nil {
		return nil, fmt.Errorf("select geo point: %w", err)
	}

	return &p, nil
}

// UpdateGeoPoint сохраняет результат попытки геокодирования.
func (r *PostgresRepository) UpdateGeoPoint(ctx context.Context, point *model.GeoPoint) error {
	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE geo_points
			 SET normalized_address = $2, latitude = $3, longitude = $4, calculated = $5, updated_at = $6
			 WHERE address = $1`,
			point.Address, point.NormalizedAddress, point.Latitude, point.Longitude,
			point.Calculated, point.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("update geo point: %w", err)
		}
		return nil
	})
}
