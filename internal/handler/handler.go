// Package handler содержит HTTP-обработчики сервисного API проката.
// API предназначено для операторов парка: проверка живости и просмотр
// текущего состояния парка и активных аренд.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/akushch/rentbot/internal/model"
	"github.com/akushch/rentbot/internal/rent"
)

// Service определяет контракт бизнес-логики, используемый HTTP-обработчиками.
type Service interface {
	ListAvailable(ctx context.Context, t model.VehicleType) ([]model.Vehicle, error)
	AllActiveOrders(ctx context.Context) ([]rent.OrderView, error)
}

// Handler реализует HTTP-обработчики сервисного API.
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

// Healthz отвечает признаком живости процесса.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type vehicleResponse struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Model     string `json:"model"`
	PowerW    int    `json:"power_w"`
	RangeKm   int    `json:"range_km"`
	Capacity  int    `json:"capacity"`
	Available int    `json:"available"`
}

// ListVehicles возвращает доступный транспорт запрошенного типа.
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	var t model.VehicleType
	switch r.URL.Query().Get("type") {
	case "bike":
		t = model.VehicleTypeBike
	case "scooter":
		t = model.VehicleTypeScooter
	default:
		http.Error(w, "type must be bike or scooter", http.StatusBadRequest)
		return
	}

	vehicles, err := h.service.ListAvailable(r.Context(), t)
	if err != nil {
		h.logger.Error("list vehicles error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]vehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		resp = append(resp, vehicleResponse{
			ID:        v.ID,
			Type:      string(v.Type),
			Model:     v.Model,
			PowerW:    v.PowerW,
			RangeKm:   v.RangeKm,
			Capacity:  v.Capacity,
			Available: v.Available,
		})
	}

	h.writeJSON(w, resp)
}

type orderResponse struct {
	OrderID   int64  `json:"order_id"`
	UserID    int64  `json:"user_id"`
	VehicleID int64  `json:"vehicle_id"`
	Model     string `json:"model"`
	Period    string `json:"period"`
	Price     int    `json:"price"`
	StartDate string `json:"start_date"`
	Code      string `json:"code"`
}

// ActiveOrders возвращает все активные аренды.
func (h *Handler) ActiveOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.AllActiveOrders(r.Context())
	if err != nil {
		h.logger.Error("list active orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orderResponse{
			OrderID:   o.OrderID,
			UserID:    o.UserID,
			VehicleID: o.VehicleID,
			Model:     o.Model,
			Period:    string(o.Period),
			Price:     o.Price,
			StartDate: o.StartDate,
			Code:      o.Code,
		})
	}

	h.writeJSON(w, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}
