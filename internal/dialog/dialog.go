// Package dialog реализует конечный автомат диалога проката: классификацию
// входящих сообщений с учётом состояния сессии, переходы между шагами и
// формирование ответов. Все тексты — на украинском, как в интерфейсе бота.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/akushch/rentbot/internal/model"
	"github.com/akushch/rentbot/internal/pricing"
	"github.com/akushch/rentbot/internal/repository"
	"github.com/akushch/rentbot/internal/rent"
	"github.com/akushch/rentbot/internal/session"
)

// Тексты кнопок меню.
const (
	BtnAvailable = "🚲 Доступний транспорт"
	BtnMyRentals = "📋 Мої оренди"
	BtnCancel    = "↩️ Скасувати оренду"
	BtnBack      = "🔙 Назад"
	BtnBikes     = "🚲 Електровелосипеди"
	BtnScooters  = "🛴 Електросамокати"
)

// Формат дат во внешнем интерфейсе.
const dateLayout = "02.01.2006"

// Service описывает контракт бизнес-логики, используемый диалогом.
type Service interface {
	ListAvailable(ctx context.Context, t model.VehicleType) ([]model.Vehicle, error)
	CreateOrder(ctx context.Context, userID, vehicleID int64, username string, period model.RentalPeriod, startDate string) (*rent.Confirmation, error)
	ReturnVehicle(ctx context.Context, userID, vehicleID int64) (*model.Order, error)
	AdminCancel(ctx context.Context, vehicleID int64) (*model.Order, error)
	UserOrders(ctx context.Context, userID int64) ([]rent.OrderView, error)
}

// Incoming описывает входящее сообщение пользователя.
type Incoming struct {
	UserID   int64
	ChatID   int64
	Username string
	Text     string
}

// Reply описывает ответ бота. Menu означает, что ответ заменяет предыдущее
// показанное меню (редактирование сообщения на стороне транспорта).
type Reply struct {
	Text     string
	Keyboard [][]string
	HTML     bool
	Menu     bool
}

// Dialog связывает хранилище сессий с бизнес-логикой проката.
type Dialog struct {
	svc      Service
	sessions *session.Store
	admins   map[int64]struct{}
	logger   *zap.Logger
	now      func() time.Time
}

// New создаёт диалог с указанным набором администраторов.
func New(svc Service, sessions *session.Store, adminIDs []int64, logger *zap.Logger) *Dialog {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Dialog{
		svc:      svc,
		sessions: sessions,
		admins:   admins,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle обрабатывает сообщение и возвращает ответ. Сообщения одного
// пользователя обрабатываются строго последовательно под блокировкой сессии.
func (d *Dialog) Handle(ctx context.Context, in Incoming) Reply {
	var reply Reply
	d.sessions.With(in.UserID, func(s *session.Session) {
		reply = d.handle(ctx, in, s)
	})
	return reply
}

func (d *Dialog) handle(ctx context.Context, in Incoming, s *session.Session) Reply {
	text := strings.TrimSpace(in.Text)

	switch {
	case text == "/start":
		s.ResetSelection()
		s.State = session.StateIdle
		return Reply{Text: "Вітаємо! Оберіть дію:", Keyboard: mainKeyboard(), Menu: true}

	case text == "/refresh":
		return Reply{Text: "Меню оновлено", Keyboard: mainKeyboard(), Menu: true}

	case strings.HasPrefix(text, "/cancel"):
		return d.adminCancel(ctx, in.UserID, text)

	case text == BtnBack:
		s.ResetSelection()
		s.State = session.StateIdle
		return Reply{Text: "Оберіть дію:", Keyboard: mainKeyboard(), Menu: true}

	case text == BtnAvailable:
		s.ResetSelection()
		s.State = session.StateTransportMenu
		return Reply{Text: "Оберіть тип транспорту:", Keyboard: transportKeyboard(), Menu: true}

	case text == BtnBikes:
		return d.showVehicles(ctx, s, model.VehicleTypeBike)

	case text == BtnScooters:
		return d.showVehicles(ctx, s, model.VehicleTypeScooter)

	case text == BtnMyRentals:
		return d.myRentals(ctx, in.UserID)

	case text == BtnCancel:
		return d.startReturn(ctx, in.UserID, s)

	default:
		if period, ok := periodFromText(text); ok {
			return d.selectPeriod(s, period)
		}
		if id, ok := numericToken(text); ok {
			return d.selectNumber(ctx, in, s, id)
		}
		if isDate(text) {
			return d.selectDate(ctx, in, s, text)
		}
		return d.unrecognized(s)
	}
}

// showVehicles фиксирует выбранный тип и показывает живой список доступного
// транспорта этого типа.
func (d *Dialog) showVehicles(ctx context.Context, s *session.Session, t model.VehicleType) Reply {
	vehicles, err := d.svc.ListAvailable(ctx, t)
	if err != nil {
		d.logger.Error("list available vehicles", zap.Error(err), zap.String("type", string(t)))
		return Reply{Text: "Сталася помилка. Спробуйте пізніше.", Keyboard: transportKeyboard(), Menu: true}
	}

	s.ResetSelection()
	s.VehicleType = t
	s.State = session.StateVehicleList

	if len(vehicles) == 0 {
		return Reply{Text: "Немає доступних моделей.", Keyboard: transportKeyboard(), Menu: true}
	}

	name := "електровелосипеди"
	if t == model.VehicleTypeScooter {
		name = "електросамокати"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Доступні %s:\n\n", name)
	for _, v := range vehicles {
		fmt.Fprintf(&b, "ID: %d\nМодель: %s\nПотужність: %d Вт\nЗапас ходу: %d км\nЗалишилось: %d шт.\n\n",
			v.ID, v.Model, v.PowerW, v.RangeKm, v.Available)
	}
	b.WriteString("\nДля оренди введіть ID бажаної моделі")

	return Reply{Text: b.String(), Keyboard: transportKeyboard(), Menu: true}
}

// selectNumber интерпретирует числовой токен в зависимости от состояния:
// в режиме возврата это ID транспорта из списка аренд, при выбранном типе —
// ID модели для аренды.
func (d *Dialog) selectNumber(ctx context.Context, in Incoming, s *session.Session, id int64) Reply {
	switch s.State {
	case session.StateAwaitingReturnID:
		return d.returnVehicle(ctx, in.UserID, s, id)
	case session.StateVehicleList:
		return d.selectVehicle(ctx, s, id)
	case session.StateAwaitingPeriod, session.StateAwaitingStartDate:
		return d.unrecognized(s)
	default:
		return Reply{Text: "Спочатку оберіть тип транспорту.", Keyboard: mainKeyboard()}
	}
}

func (d *Dialog) selectVehicle(ctx context.Context, s *session.Session, id int64) Reply {
	vehicles, err := d.svc.ListAvailable(ctx, s.VehicleType)
	if err != nil {
		d.logger.Error("list available vehicles", zap.Error(err), zap.String("type", string(s.VehicleType)))
		return Reply{Text: "Сталася помилка. Спробуйте пізніше."}
	}

	for _, v := range vehicles {
		if v.ID == id {
			s.VehicleID = v.ID
			s.PowerW = v.PowerW
			s.RangeKm = v.RangeKm
			s.State = session.StateAwaitingPeriod
			tier := pricing.Tier(v.PowerW, v.RangeKm)
			return Reply{Text: "Оберіть термін оренди:", Keyboard: periodKeyboard(tier)}
		}
	}

	return Reply{Text: "Цей транспорт недоступний. Оберіть інший ID."}
}

// selectPeriod принимает срок аренды, только когда транспорт уже выбран.
func (d *Dialog) selectPeriod(s *session.Session, period model.RentalPeriod) Reply {
	if s.State != session.StateAwaitingPeriod || s.VehicleID == 0 {
		return d.unrecognized(s)
	}

	s.Period = period
	s.State = session.StateAwaitingStartDate
	return Reply{Text: "Оберіть дату початку оренди:", Keyboard: dateKeyboard(d.now())}
}

// selectDate завершает оформление аренды. Сессия очищается независимо от
// результата, чтобы не зависнуть с устаревшим выбором.
func (d *Dialog) selectDate(ctx context.Context, in Incoming, s *session.Session, date string) Reply {
	if s.State != session.StateAwaitingStartDate || s.Period == "" {
		return d.unrecognized(s)
	}

	vehicleID := s.VehicleID
	period := s.Period
	s.ResetSelection()
	s.State = session.StateIdle

	conf, err := d.svc.CreateOrder(ctx, in.UserID, vehicleID, in.Username, period, date)
	if err != nil {
		if errors.Is(err, repository.ErrOutOfStock) || errors.Is(err, repository.ErrVehicleNotFound) {
			return Reply{Text: "На жаль, цей транспорт вже недоступний. Оберіть іншу модель.", Keyboard: mainKeyboard()}
		}
		d.logger.Error("create order", zap.Error(err), zap.Int64("user_id", in.UserID), zap.Int64("vehicle_id", vehicleID))
		return Reply{Text: "Помилка при оформленні оренди. Спробуйте пізніше.", Keyboard: mainKeyboard()}
	}

	text := fmt.Sprintf("Оренду успішно оформлено!\nТермін: %s\nЦіна: %d грн\nПочаток: %s\nВаш код оренди: <code>%s</code>",
		periodText(conf.Period), conf.Price, conf.StartDate, conf.Code)
	return Reply{Text: text, Keyboard: mainKeyboard(), HTML: true}
}

// startReturn показывает активные аренды пользователя и переводит диалог в
// режим возврата. Без активных аренд режим возврата не включается.
func (d *Dialog) startReturn(ctx context.Context, userID int64, s *session.Session) Reply {
	orders, err := d.svc.UserOrders(ctx, userID)
	if err != nil {
		d.logger.Error("list user orders", zap.Error(err), zap.Int64("user_id", userID))
		return Reply{Text: "Сталася помилка. Спробуйте пізніше."}
	}
	if len(orders) == 0 {
		return Reply{Text: "У вас немає активних оренд."}
	}

	s.ResetSelection()
	s.State = session.StateAwaitingReturnID

	var b strings.Builder
	b.WriteString("Введіть ID транспорту для скасування оренди:\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "%d. %s — %s, %d грн, початок: %s, код: %s\n",
			o.VehicleID, o.Model, periodText(o.Period), o.Price, o.StartDate, o.Code)
	}
	return Reply{Text: b.String()}
}

// returnVehicle обрабатывает ID в режиме возврата: чужой или неизвестный
// заказ оставляет диалог в режиме возврата, успешный или сломавшийся возврат
// выводит в главное меню.
func (d *Dialog) returnVehicle(ctx context.Context, userID int64, s *session.Session, vehicleID int64) Reply {
	o, err := d.svc.ReturnVehicle(ctx, userID, vehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return Reply{Text: "Активну оренду з таким ID не знайдено. Введіть ID зі списку."}
		}
		d.logger.Error("return vehicle", zap.Error(err), zap.Int64("user_id", userID), zap.Int64("vehicle_id", vehicleID))
		s.State = session.StateIdle
		return Reply{Text: "Сталася помилка. Спробуйте пізніше.", Keyboard: mainKeyboard(), Menu: true}
	}

	s.State = session.StateIdle
	text := fmt.Sprintf("Оренду скасовано. Код %s більше не дійсний.", o.Code)
	return Reply{Text: text, Keyboard: mainKeyboard(), Menu: true}
}

// myRentals показывает активные аренды пользователя, не меняя состояние.
func (d *Dialog) myRentals(ctx context.Context, userID int64) Reply {
	orders, err := d.svc.UserOrders(ctx, userID)
	if err != nil {
		d.logger.Error("list user orders", zap.Error(err), zap.Int64("user_id", userID))
		return Reply{Text: "Сталася помилка. Спробуйте пізніше."}
	}
	if len(orders) == 0 {
		return Reply{Text: "У вас немає активних оренд."}
	}

	var b strings.Builder
	b.WriteString("Ваші активні оренди:\n\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "ID: %d\nМодель: %s\nТермін: %s\nЦіна: %d грн\nПочаток: %s\nКод оренди: %s\n\n",
			o.VehicleID, o.Model, periodText(o.Period), o.Price, o.StartDate, o.Code)
	}
	return Reply{Text: b.String()}
}

// adminCancel обрабатывает команду /cancel <id транспорту>.
func (d *Dialog) adminCancel(ctx context.Context, userID int64, text string) Reply {
	if _, ok := d.admins[userID]; !ok {
		return Reply{Text: "Немає прав."}
	}

	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Reply{Text: "Формат: /cancel <id>"}
	}
	vehicleID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Reply{Text: "Формат: /cancel <id>"}
	}

	o, err := d.svc.AdminCancel(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return Reply{Text: "Активних оренд на цей транспорт немає."}
		}
		d.logger.Error("admin cancel", zap.Error(err), zap.Int64("vehicle_id", vehicleID))
		return Reply{Text: "Сталася помилка. Спробуйте пізніше."}
	}

	return Reply{Text: fmt.Sprintf("Оренду %s на транспорт %d скасовано.", o.Code, o.VehicleID)}
}

// unrecognized подсказывает ожидаемый на текущем шаге ввод, не меняя состояние.
func (d *Dialog) unrecognized(s *session.Session) Reply {
	switch s.State {
	case session.StateVehicleList:
		return Reply{Text: "Введіть числовий ID моделі зі списку."}
	case session.StateAwaitingPeriod:
		// Клавиатуру с ценами пересобираем из сохранённых характеристик модели.
		tier := pricing.Tier(s.PowerW, s.RangeKm)
		return Reply{Text: "Оберіть термін оренди кнопкою на клавіатурі.", Keyboard: periodKeyboard(tier)}
	case session.StateAwaitingStartDate:
		return Reply{Text: "Введіть дату початку у форматі ДД.ММ.РРРР.", Keyboard: dateKeyboard(d.now())}
	case session.StateAwaitingReturnID:
		return Reply{Text: "Введіть числовий ID транспорту з переліку оренд."}
	default:
		return Reply{Text: "Не розумію. Скористайтесь кнопками меню.", Keyboard: mainKeyboard()}
	}
}

func periodText(p model.RentalPeriod) string {
	if p == model.PeriodWeek {
		return "1 тиждень"
	}
	return "1 день"
}

// periodFromText сопоставляет текст кнопки срока аренды. Цена в подписи
// зависит от тарифа выбранного транспорта, поэтому сравнение по префиксу.
func periodFromText(text string) (model.RentalPeriod, bool) {
	switch {
	case strings.HasPrefix(text, "1 день"):
		return model.PeriodDay, true
	case strings.HasPrefix(text, "1 тиждень"):
		return model.PeriodWeek, true
	default:
		return "", false
	}
}

func numericToken(text string) (int64, bool) {
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// isDate принимает только полную дату в формате DD.MM.YYYY.
func isDate(text string) bool {
	if len(text) != len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, text)
	return err == nil
}
