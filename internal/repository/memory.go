package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akushch/rentbot/internal/model"
)

// MemoryRepository хранит парк и заказы в памяти процесса. Семантика операций
// совпадает с PostgresRepository; используется в тестах и при локальном
// запуске без DATABASE_URI.
type MemoryRepository struct {
	mu       sync.Mutex
	vehicles map[int64]*model.Vehicle
	ids      []int64
	orders   []*model.Order
	codes    map[string]struct{}
	nextID   int64
}

// NewMemoryRepository создаёт репозиторий с указанным парком транспорта.
func NewMemoryRepository(vehicles []model.Vehicle) *MemoryRepository {
	r := &MemoryRepository{
		vehicles: make(map[int64]*model.Vehicle, len(vehicles)),
		codes:    make(map[string]struct{}),
		nextID:   1,
	}
	for _, v := range vehicles {
		if v.Capacity == 0 {
			v.Capacity = v.Available
		}
		cp := v
		r.vehicles[v.ID] = &cp
		r.ids = append(r.ids, v.ID)
	}
	return r
}

// SeedFleet возвращает стартовый парк, совпадающий с сид-миграцией БД.
func SeedFleet() []model.Vehicle {
	return []model.Vehicle{
		{ID: 1, Type: model.VehicleTypeBike, Model: "Eleek Atlas", PowerW: 750, RangeKm: 90, Capacity: 3, Available: 3},
		{ID: 2, Type: model.VehicleTypeBike, Model: "Like.Bike One", PowerW: 350, RangeKm: 60, Capacity: 5, Available: 5},
		{ID: 3, Type: model.VehicleTypeBike, Model: "Forte GS-01", PowerW: 500, RangeKm: 55, Capacity: 2, Available: 2},
		{ID: 4, Type: model.VehicleTypeScooter, Model: "Ninebot Max G30", PowerW: 350, RangeKm: 65, Capacity: 6, Available: 6},
		{ID: 5, Type: model.VehicleTypeScooter, Model: "Kugoo M4 Pro", PowerW: 600, RangeKm: 75, Capacity: 2, Available: 2},
		{ID: 6, Type: model.VehicleTypeScooter, Model: "Xiaomi Pro 4", PowerW: 350, RangeKm: 80, Capacity: 4, Available: 4},
	}
}

// Close освобождает ресурсы репозитория.
func (r *MemoryRepository) Close() error {
	return nil
}

// ListAvailableByType возвращает транспорт указанного типа с ненулевым остатком.
func (r *MemoryRepository) ListAvailableByType(_ context.Context, t model.VehicleType) ([]model.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Vehicle
	for _, id := range r.ids {
		v := r.vehicles[id]
		if v.Type == t && v.Available > 0 {
			res = append(res, *v)
		}
	}
	return res, nil
}

// GetVehicle возвращает транспорт по идентификатору.
func (r *MemoryRepository) GetVehicle(_ context.Context, id int64) (*model.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.vehicles[id]
	if !ok {
		return nil, ErrVehicleNotFound
	}
	cp := *v
	return &cp, nil
}

// ReserveVehicle атомарно уменьшает остаток транспорта на единицу.
func (r *MemoryRepository) ReserveVehicle(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.vehicles[id]
	if !ok {
		return ErrVehicleNotFound
	}
	if v.Available <= 0 {
		return ErrOutOfStock
	}
	v.Available--
	return nil
}

// ReleaseVehicle возвращает единицу транспорта в остаток, не превышая вместимость.
func (r *MemoryRepository) ReleaseVehicle(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.vehicles[id]
	if !ok {
		return ErrVehicleNotFound
	}
	if v.Available < v.Capacity {
		v.Available++
	}
	return nil
}

// CreateOrder сохраняет новый заказ и заполняет ID и время создания.
func (r *MemoryRepository) CreateOrder(_ context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.codes[o.Code]; taken {
		return fmt.Errorf("%w: %s", ErrCodeTaken, o.Code)
	}

	o.ID = r.nextID
	r.nextID++
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	cp := *o
	r.orders = append(r.orders, &cp)
	r.codes[o.Code] = struct{}{}
	return nil
}

// GetActiveOrder возвращает активный заказ пользователя на указанный транспорт.
func (r *MemoryRepository) GetActiveOrder(_ context.Context, userID, vehicleID int64) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.orders) - 1; i >= 0; i-- {
		o := r.orders[i]
		if o.UserID == userID && o.VehicleID == vehicleID && o.Status == model.OrderStatusActive {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrOrderNotFound
}

// LatestActiveOrderByVehicle возвращает самый свежий активный заказ на транспорт.
func (r *MemoryRepository) LatestActiveOrderByVehicle(_ context.Context, vehicleID int64) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.orders) - 1; i >= 0; i-- {
		o := r.orders[i]
		if o.VehicleID == vehicleID && o.Status == model.OrderStatusActive {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrOrderNotFound
}

// SetOrderStatus переводит заказ в указанный статус.
func (r *MemoryRepository) SetOrderStatus(_ context.Context, orderID int64, status model.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.orders {
		if o.ID == orderID {
			o.Status = status
			return nil
		}
	}
	return ErrOrderNotFound
}

// ActiveOrdersByUser возвращает активные заказы пользователя в порядке создания.
func (r *MemoryRepository) ActiveOrdersByUser(_ context.Context, userID int64) ([]ActiveOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []ActiveOrder
	for _, o := range r.orders {
		if o.UserID == userID && o.Status == model.OrderStatusActive {
			res = append(res, r.activeOrderLocked(o))
		}
	}
	return res, nil
}

// ActiveOrders возвращает все активные заказы в порядке создания.
func (r *MemoryRepository) ActiveOrders(_ context.Context) ([]ActiveOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []ActiveOrder
	for _, o := range r.orders {
		if o.Status == model.OrderStatusActive {
			res = append(res, r.activeOrderLocked(o))
		}
	}
	return res, nil
}

func (r *MemoryRepository) activeOrderLocked(o *model.Order) ActiveOrder {
	a := ActiveOrder{Order: *o}
	if v, ok := r.vehicles[o.VehicleID]; ok {
		a.Vehicle = *v
	}
	return a
}
