package rent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/akushch/rentbot/internal/model"
	"github.com/akushch/rentbot/internal/repository"
)

func newTestRepo() *repository.MemoryRepository {
	return repository.NewMemoryRepository([]model.Vehicle{
		{ID: 1, Type: model.VehicleTypeBike, Model: "Eleek Atlas", PowerW: 750, RangeKm: 90, Capacity: 3, Available: 3},
		{ID: 2, Type: model.VehicleTypeScooter, Model: "Ninebot Max G30", PowerW: 350, RangeKm: 65, Capacity: 1, Available: 1},
	})
}

func TestCreateOrder_NeverOversells(t *testing.T) {
	svc := NewService(newTestRepo())
	ctx := context.Background()

	const attempts = 10

	var wg sync.WaitGroup
	results := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CreateOrder(ctx, int64(100+i), 1, "user", model.PeriodDay, "15.03.2025")
			results[i] = err
		}(i)
	}
	wg.Wait()

	var ok, outOfStock int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if ok != 3 {
		t.Fatalf("expected exactly 3 successful orders for capacity 3, got %d", ok)
	}
	if outOfStock != attempts-3 {
		t.Fatalf("expected %d out-of-stock errors, got %d", attempts-3, outOfStock)
	}
}

func TestCreateOrder_Confirmation(t *testing.T) {
	svc := NewService(newTestRepo())
	ctx := context.Background()

	conf, err := svc.CreateOrder(ctx, 7, 2, "petro", model.PeriodWeek, "15.03.2025")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if conf.Period != model.PeriodWeek {
		t.Fatalf("expected period week, got %s", conf.Period)
	}
	if conf.Price != 1500 {
		t.Fatalf("expected standard week price 1500, got %d", conf.Price)
	}
	if conf.Code == "" {
		t.Fatalf("expected non-empty order code")
	}

	orders, err := svc.UserOrders(ctx, 7)
	if err != nil {
		t.Fatalf("UserOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 active order, got %d", len(orders))
	}
	if orders[0].Code != conf.Code || orders[0].StartDate != "15.03.2025" {
		t.Fatalf("order view mismatch: %+v", orders[0])
	}
}

func TestReturnRestoresInventory(t *testing.T) {
	svc := NewService(newTestRepo())
	ctx := context.Background()

	if _, err := svc.CreateOrder(ctx, 1, 2, "a", model.PeriodDay, "15.03.2025"); err != nil {
		t.Fatalf("first order: %v", err)
	}

	if _, err := svc.CreateOrder(ctx, 2, 2, "b", model.PeriodDay, "15.03.2025"); !errors.Is(err, repository.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock for exhausted vehicle, got %v", err)
	}

	if _, err := svc.ReturnVehicle(ctx, 1, 2); err != nil {
		t.Fatalf("ReturnVehicle: %v", err)
	}

	if _, err := svc.CreateOrder(ctx, 2, 2, "b", model.PeriodDay, "15.03.2025"); err != nil {
		t.Fatalf("expected order to succeed after return, got %v", err)
	}
}

func TestReturnVehicle_RejectsForeignOrder(t *testing.T) {
	svc := NewService(newTestRepo())
	ctx := context.Background()

	if _, err := svc.CreateOrder(ctx, 1, 2, "owner", model.PeriodDay, "15.03.2025"); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if _, err := svc.ReturnVehicle(ctx, 42, 2); !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign order, got %v", err)
	}

	orders, err := svc.UserOrders(ctx, 1)
	if err != nil {
		t.Fatalf("UserOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("owner's order must stay active, got %d orders", len(orders))
	}

	foreign, err := svc.UserOrders(ctx, 42)
	if err != nil {
		t.Fatalf("UserOrders: %v", err)
	}
	if len(foreign) != 0 {
		t.Fatalf("foreign user must not see the order, got %d", len(foreign))
	}
}

func TestAdminCancel(t *testing.T) {
	svc := NewService(newTestRepo())
	ctx := context.Background()

	if _, err := svc.AdminCancel(ctx, 2); !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound without active orders, got %v", err)
	}

	if _, err := svc.CreateOrder(ctx, 1, 2, "a", model.PeriodDay, "15.03.2025"); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	o, err := svc.AdminCancel(ctx, 2)
	if err != nil {
		t.Fatalf("AdminCancel: %v", err)
	}
	if o.Status != model.OrderStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", o.Status)
	}

	// Инвентарь восстановлен: новая аренда проходит.
	if _, err := svc.CreateOrder(ctx, 3, 2, "c", model.PeriodDay, "15.03.2025"); err != nil {
		t.Fatalf("expected order to succeed after admin cancel, got %v", err)
	}
}

type failingRepo struct {
	*repository.MemoryRepository
}

func (r *failingRepo) CreateOrder(ctx context.Context, o *model.Order) error {
	return errors.New("storage unavailable")
}

func TestCreateOrder_CompensatesOnPersistFailure(t *testing.T) {
	repo := &failingRepo{MemoryRepository: newTestRepo()}
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.CreateOrder(ctx, 1, 2, "a", model.PeriodDay, "15.03.2025"); err == nil {
		t.Fatalf("expected error when persistence fails")
	}

	// Резерв снят: единица транспорта снова доступна.
	vehicles, err := repo.ListAvailableByType(ctx, model.VehicleTypeScooter)
	if err != nil {
		t.Fatalf("ListAvailableByType: %v", err)
	}
	if len(vehicles) != 1 || vehicles[0].Available != 1 {
		t.Fatalf("expected reservation to be rolled back, got %+v", vehicles)
	}
}

func TestCreateOrder_UnknownVehicle(t *testing.T) {
	svc := NewService(newTestRepo())

	_, err := svc.CreateOrder(context.Background(), 1, 99, "a", model.PeriodDay, "15.03.2025")
	if !errors.Is(err, repository.ErrVehicleNotFound) {
		t.Fatalf("expected ErrVehicleNotFound, got %v", err)
	}
}
