// Package session хранит состояние диалога для каждого пользователя.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/akushch/rentbot/internal/model"
)

// State описывает текущий шаг диалога пользователя.
type State int

const (
	// StateIdle — главное меню, выбор не начат.
	StateIdle State = iota
	// StateTransportMenu — показано меню выбора типа транспорта.
	StateTransportMenu
	// StateVehicleList — показан список транспорта выбранного типа,
	// ожидается числовой ID модели.
	StateVehicleList
	// StateAwaitingPeriod — транспорт выбран, ожидается срок аренды.
	StateAwaitingPeriod
	// StateAwaitingStartDate — срок выбран, ожидается дата начала.
	StateAwaitingStartDate
	// StateAwaitingReturnID — ожидается ID транспорта для возврата.
	StateAwaitingReturnID
)

// Session содержит состояние диалога одного пользователя. Поля выбора
// заполнены только на тех шагах, которым они нужны.
type Session struct {
	UserID      int64
	State       State
	VehicleType model.VehicleType
	VehicleID   int64
	PowerW      int
	RangeKm     int
	Period      model.RentalPeriod
	UpdatedAt   time.Time
}

// ResetSelection сбрасывает незавершённый выбор, не меняя состояние.
func (s *Session) ResetSelection() {
	s.VehicleType = ""
	s.VehicleID = 0
	s.PowerW = 0
	s.RangeKm = 0
	s.Period = ""
}

type entry struct {
	mu   sync.Mutex
	sess *Session
}

// Store — потокобезопасное хранилище сессий. Обработка сообщений одного
// пользователя сериализуется блокировкой его сессии.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*entry
}

// NewStore создаёт пустое хранилище сессий.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*entry)}
}

// With выполняет fn под блокировкой сессии пользователя, создавая сессию
// при первом обращении. Переходы состояний некоммутативны, поэтому два
// сообщения одного пользователя никогда не обрабатываются одновременно.
func (st *Store) With(userID int64, fn func(*Session)) {
	e := st.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	fn(e.sess)
	e.sess.UpdatedAt = time.Now()
}

func (st *Store) entryFor(userID int64) *entry {
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.sessions[userID]
	if !ok {
		e = &entry{sess: &Session{
			UserID:    userID,
			State:     StateIdle,
			UpdatedAt: time.Now(),
		}}
		st.sessions[userID] = e
	}
	return e
}

// Len возвращает число хранимых сессий.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// StartCleanup запускает фоновую очистку сессий, простаивающих дольше ttl.
// Брошенный на полпути диалог после очистки эквивалентен главному меню.
func (st *Store) StartCleanup(ctx context.Context, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.sweep(time.Now().Add(-ttl))
			}
		}
	}()
}

// sweep удаляет сессии, не обновлявшиеся с момента cutoff. Сессии, занятые
// обработкой сообщения, пропускаются до следующего прохода.
func (st *Store) sweep(cutoff time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for id, e := range st.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.sess.UpdatedAt.Before(cutoff) {
			delete(st.sessions, id)
		}
		e.mu.Unlock()
	}
}
