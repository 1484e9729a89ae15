// Package rent реализует жизненный цикл заказов аренды.
package rent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/akushch/rentbot/internal/model"
	"github.com/akushch/rentbot/internal/pricing"
	"github.com/akushch/rentbot/internal/repository"
)

// Число попыток сохранить заказ при коллизии кода аренды.
const codeAttempts = 3

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	ListAvailableByType(ctx context.Context, t model.VehicleType) ([]model.Vehicle, error)
	GetVehicle(ctx context.Context, id int64) (*model.Vehicle, error)
	ReserveVehicle(ctx context.Context, id int64) error
	ReleaseVehicle(ctx context.Context, id int64) error
	CreateOrder(ctx context.Context, o *model.Order) error
	GetActiveOrder(ctx context.Context, userID, vehicleID int64) (*model.Order, error)
	LatestActiveOrderByVehicle(ctx context.Context, vehicleID int64) (*model.Order, error)
	SetOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	ActiveOrdersByUser(ctx context.Context, userID int64) ([]repository.ActiveOrder, error)
	ActiveOrders(ctx context.Context) ([]repository.ActiveOrder, error)
}

// Service содержит бизнес-логику проката.
type Service struct {
	repo Repository
}

// NewService создаёт новый сервис проката с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Confirmation содержит данные оформленной аренды для показа пользователю.
type Confirmation struct {
	Vehicle   model.Vehicle
	Period    model.RentalPeriod
	Price     int
	StartDate string
	Code      string
}

// OrderView описывает активный заказ с данными транспорта для отображения.
// Цена вычисляется по текущим характеристикам транспорта.
type OrderView struct {
	OrderID   int64
	UserID    int64
	VehicleID int64
	Model     string
	Period    model.RentalPeriod
	Price     int
	StartDate string
	Code      string
}

// ListAvailable возвращает доступный транспорт указанного типа.
func (s *Service) ListAvailable(ctx context.Context, t model.VehicleType) ([]model.Vehicle, error) {
	return s.repo.ListAvailableByType(ctx, t)
}

// CreateOrder резервирует транспорт и сохраняет заказ со сгенерированным
// кодом аренды. Если сохранить заказ не удалось, резерв снимается, чтобы
// единица транспорта не застряла недоступной без заказа.
func (s *Service) CreateOrder(ctx context.Context, userID, vehicleID int64, username string, period model.RentalPeriod, startDate string) (*Confirmation, error) {
	v, err := s.repo.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ReserveVehicle(ctx, vehicleID); err != nil {
		return nil, err
	}

	o := &model.Order{
		VehicleID: vehicleID,
		UserID:    userID,
		Username:  username,
		Period:    period,
		StartDate: startDate,
		Status:    model.OrderStatusActive,
	}

	var createErr error
	for i := 0; i < codeAttempts; i++ {
		o.Code = newOrderCode()
		createErr = s.repo.CreateOrder(ctx, o)
		if createErr == nil || !errors.Is(createErr, repository.ErrCodeTaken) {
			break
		}
	}
	if createErr != nil {
		if releaseErr := s.repo.ReleaseVehicle(ctx, vehicleID); releaseErr != nil {
			return nil, fmt.Errorf("create order: %w (release failed: %v)", createErr, releaseErr)
		}
		return nil, fmt.Errorf("create order: %w", createErr)
	}

	return &Confirmation{
		Vehicle:   *v,
		Period:    period,
		Price:     pricing.PriceFor(*v, period),
		StartDate: startDate,
		Code:      o.Code,
	}, nil
}

// ReturnVehicle завершает активную аренду пользователя на указанный транспорт.
// Чужие и несуществующие заказы отклоняются с repository.ErrOrderNotFound.
func (s *Service) ReturnVehicle(ctx context.Context, userID, vehicleID int64) (*model.Order, error) {
	o, err := s.repo.GetActiveOrder(ctx, userID, vehicleID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetOrderStatus(ctx, o.ID, model.OrderStatusReturned); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatusReturned

	if err := s.repo.ReleaseVehicle(ctx, o.VehicleID); err != nil {
		return nil, fmt.Errorf("release vehicle: %w", err)
	}

	return o, nil
}

// AdminCancel отменяет самый свежий активный заказ на транспорт без проверки
// владельца. Права администратора проверяет вызывающая сторона.
func (s *Service) AdminCancel(ctx context.Context, vehicleID int64) (*model.Order, error) {
	o, err := s.repo.LatestActiveOrderByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetOrderStatus(ctx, o.ID, model.OrderStatusCancelled); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatusCancelled

	if err := s.repo.ReleaseVehicle(ctx, o.VehicleID); err != nil {
		return nil, fmt.Errorf("release vehicle: %w", err)
	}

	return o, nil
}

// UserOrders возвращает активные аренды пользователя в порядке создания.
func (s *Service) UserOrders(ctx context.Context, userID int64) ([]OrderView, error) {
	rows, err := s.repo.ActiveOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return orderViews(rows), nil
}

// AllActiveOrders возвращает все активные аренды в порядке создания.
func (s *Service) AllActiveOrders(ctx context.Context) ([]OrderView, error) {
	rows, err := s.repo.ActiveOrders(ctx)
	if err != nil {
		return nil, err
	}
	return orderViews(rows), nil
}

func orderViews(rows []repository.ActiveOrder) []OrderView {
	views := make([]OrderView, 0, len(rows))
	for _, row := range rows {
		views = append(views, OrderView{
			OrderID:   row.Order.ID,
			UserID:    row.Order.UserID,
			VehicleID: row.Order.VehicleID,
			Model:     row.Vehicle.Model,
			Period:    row.Order.Period,
			Price:     pricing.PriceFor(row.Vehicle, row.Order.Period),
			StartDate: row.Order.StartDate,
			Code:      row.Order.Code,
		})
	}
	return views
}

// newOrderCode генерирует короткий код аренды. Глобальная уникальность
// гарантируется уникальным индексом в хранилище и повторной генерацией
// при коллизии.
func newOrderCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}
