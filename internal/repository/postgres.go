// Package repository содержит реализацию доступа к данным парка и заказов.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/akushch/rentbot/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrVehicleNotFound возвращается, если транспорт с указанным ID не существует.
var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	// ErrOutOfStock возвращается при попытке зарезервировать транспорт без свободных единиц.
	ErrOutOfStock = errors.New("vehicle out of stock")
	// ErrOrderNotFound возвращается, если подходящий активный заказ не найден.
	ErrOrderNotFound = errors.New("active order not found")
	// ErrCodeTaken возвращается при коллизии кода аренды с уже сохранённым заказом.
	ErrCodeTaken = errors.New("order code already taken")
)

// ActiveOrder описывает активный заказ вместе с текущими данными транспорта.
type ActiveOrder struct {
	Order   model.Order
	Vehicle model.Vehicle
}

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

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// ListAvailableByType возвращает транспорт указанного типа с ненулевым остатком.
func (r *PostgresRepository) ListAvailableByType(ctx context.Context, t model.VehicleType) ([]model.Vehicle, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, type, model, power_w, range_km, capacity, available
		 FROM vehicles
		 WHERE type = $1 AND available > 0
		 ORDER BY id`,
		string(t),
	)
	if err != nil {
		return nil, fmt.Errorf("select vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.Type, &v.Model, &v.PowerW, &v.RangeKm, &v.Capacity, &v.Available); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return vehicles, nil
}

// GetVehicle возвращает транспорт по идентификатору.
func (r *PostgresRepository) GetVehicle(ctx context.Context, id int64) (*model.Vehicle, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, type, model, power_w, range_km, capacity, available
		 FROM vehicles
		 WHERE id = $1`,
		id,
	)

	var v model.Vehicle
	err := row.Scan(&v.ID, &v.Type, &v.Model, &v.PowerW, &v.RangeKm, &v.Capacity, &v.Available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVehicleNotFound
		}
		return nil, fmt.Errorf("get vehicle: %w", err)
	}

	return &v, nil
}

// ReserveVehicle атомарно уменьшает остаток транспорта на единицу.
// Строка транспорта блокируется, чтобы два конкурентных резерва не могли
// оба пройти при одной оставшейся единице.
func (r *PostgresRepository) ReserveVehicle(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var available int
	err = tx.QueryRow(ctx, `SELECT available FROM vehicles WHERE id = $1 FOR UPDATE`, id).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVehicleNotFound
		}
		return fmt.Errorf("lock vehicle: %w", err)
	}

	if available <= 0 {
		return ErrOutOfStock
	}

	if _, err := tx.Exec(ctx, `UPDATE vehicles SET available = available - 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("decrement available: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// ReleaseVehicle возвращает единицу транспорта в остаток. Остаток никогда не
// превышает вместимость: вызывающая сторона гарантирует парность с резервом
// через статусы заказов.
func (r *PostgresRepository) ReleaseVehicle(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var available, capacity int
	err = tx.QueryRow(ctx, `SELECT available, capacity FROM vehicles WHERE id = $1 FOR UPDATE`, id).Scan(&available, &capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVehicleNotFound
		}
		return fmt.Errorf("lock vehicle: %w", err)
	}

	if available < capacity {
		if _, err := tx.Exec(ctx, `UPDATE vehicles SET available = available + 1 WHERE id = $1`, id); err != nil {
			return fmt.Errorf("increment available: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// CreateOrder сохраняет новый заказ и заполняет ID и время создания.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO orders (vehicle_id, user_id, username, period, start_date, status, code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		o.VehicleID, o.UserID, o.Username, string(o.Period), o.StartDate, string(o.Status), o.Code,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrCodeTaken, o.Code)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetActiveOrder возвращает активный заказ пользователя на указанный транспорт.
func (r *PostgresRepository) GetActiveOrder(ctx context.Context, userID, vehicleID int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, vehicle_id, user_id, username, period, start_date, status, code, created_at
		 FROM orders
		 WHERE user_id = $1 AND vehicle_id = $2 AND status = $3
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID, vehicleID, string(model.OrderStatusActive),
	)
	return scanOrder(row)
}

// LatestActiveOrderByVehicle возвращает самый свежий активный заказ на транспорт.
func (r *PostgresRepository) LatestActiveOrderByVehicle(ctx context.Context, vehicleID int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, vehicle_id, user_id, username, period, start_date, status, code, created_at
		 FROM orders
		 WHERE vehicle_id = $1 AND status = $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		vehicleID, string(model.OrderStatusActive),
	)
	return scanOrder(row)
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.VehicleID, &o.UserID, &o.Username, &o.Period, &o.StartDate, &o.Status, &o.Code, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

// SetOrderStatus переводит заказ в указанный статус.
func (r *PostgresRepository) SetOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`,
		orderID, string(status),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ActiveOrdersByUser возвращает активные заказы пользователя в порядке создания.
func (r *PostgresRepository) ActiveOrdersByUser(ctx context.Context, userID int64) ([]ActiveOrder, error) {
	return r.selectActiveOrders(ctx,
		`SELECT o.id, o.vehicle_id, o.user_id, o.username, o.period, o.start_date, o.status, o.code, o.created_at,
		        v.id, v.type, v.model, v.power_w, v.range_km, v.capacity, v.available
		 FROM orders o
		 JOIN vehicles v ON v.id = o.vehicle_id
		 WHERE o.user_id = $1 AND o.status = $2
		 ORDER BY o.created_at`,
		userID, string(model.OrderStatusActive),
	)
}

// ActiveOrders возвращает все активные заказы в порядке создания.
func (r *PostgresRepository) ActiveOrders(ctx context.Context) ([]ActiveOrder, error) {
	return r.selectActiveOrders(ctx,
		`SELECT o.id, o.vehicle_id, o.user_id, o.username, o.period, o.start_date, o.status, o.code, o.created_at,
		        v.id, v.type, v.model, v.power_w, v.range_km, v.capacity, v.available
		 FROM orders o
		 JOIN vehicles v ON v.id = o.vehicle_id
		 WHERE o.status = $1
		 ORDER BY o.created_at`,
		string(model.OrderStatusActive),
	)
}

func (r *PostgresRepository) selectActiveOrders(ctx context.Context, query string, args ...any) ([]ActiveOrder, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select active orders: %w", err)
	}
	defer rows.Close()

	var res []ActiveOrder
	for rows.Next() {
		var a ActiveOrder
		err := rows.Scan(
			&a.Order.ID, &a.Order.VehicleID, &a.Order.UserID, &a.Order.Username,
			&a.Order.Period, &a.Order.StartDate, &a.Order.Status, &a.Order.Code, &a.Order.CreatedAt,
			&a.Vehicle.ID, &a.Vehicle.Type, &a.Vehicle.Model, &a.Vehicle.PowerW,
			&a.Vehicle.RangeKm, &a.Vehicle.Capacity, &a.Vehicle.Available,
		)
		if err != nil {
			return nil, fmt.Errorf("scan active order: %w", err)
		}
		res = append(res, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
