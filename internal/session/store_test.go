package session

import (
	"sync"
	"testing"
	"time"

	"github.com/akushch/rentbot/internal/model"
)

func TestWithCreatesAndKeepsSession(t *testing.T) {
	st := NewStore()

	st.With(1, func(s *Session) {
		if s.State != StateIdle {
			t.Fatalf("new session must start idle, got %d", s.State)
		}
		s.State = StateAwaitingPeriod
		s.VehicleID = 5
	})

	st.With(1, func(s *Session) {
		if s.State != StateAwaitingPeriod || s.VehicleID != 5 {
			t.Fatalf("session state lost: %+v", s)
		}
	})

	if st.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", st.Len())
	}
}

func TestSessionsAreIsolatedBetweenUsers(t *testing.T) {
	st := NewStore()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			st.With(1, func(s *Session) {
				s.State = StateAwaitingPeriod
				s.VehicleID = 1
				s.VehicleType = model.VehicleTypeBike
			})
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			st.With(2, func(s *Session) {
				s.State = StateAwaitingStartDate
				s.VehicleID = 2
				s.Period = model.PeriodWeek
			})
		}
	}()

	wg.Wait()

	st.With(1, func(s *Session) {
		if s.State != StateAwaitingPeriod || s.VehicleID != 1 || s.Period != "" {
			t.Fatalf("user 1 session corrupted: %+v", s)
		}
	})
	st.With(2, func(s *Session) {
		if s.State != StateAwaitingStartDate || s.VehicleID != 2 || s.Period != model.PeriodWeek {
			t.Fatalf("user 2 session corrupted: %+v", s)
		}
	})
}

func TestWithSerializesSameUser(t *testing.T) {
	st := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.With(1, func(s *Session) {
				s.VehicleID++
			})
		}()
	}
	wg.Wait()

	st.With(1, func(s *Session) {
		if s.VehicleID != 200 {
			t.Fatalf("expected 200 serialized increments, got %d", s.VehicleID)
		}
	})
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	st := NewStore()

	st.With(1, func(s *Session) {})
	st.With(2, func(s *Session) {})

	// Срез в прошлом никого не задевает.
	st.sweep(time.Now().Add(-time.Hour))
	if st.Len() != 2 {
		t.Fatalf("expected 2 sessions after no-op sweep, got %d", st.Len())
	}

	// Срез в будущем удаляет все простаивающие сессии.
	st.sweep(time.Now().Add(time.Hour))
	if st.Len() != 0 {
		t.Fatalf("expected 0 sessions after sweep, got %d", st.Len())
	}
}

func TestResetSelection(t *testing.T) {
	s := &Session{
		State:       StateAwaitingStartDate,
		VehicleType: model.VehicleTypeBike,
		VehicleID:   3,
		PowerW:      500,
		RangeKm:     80,
		Period:      model.PeriodDay,
	}

	s.ResetSelection()

	if s.VehicleType != "" || s.VehicleID != 0 || s.PowerW != 0 || s.RangeKm != 0 || s.Period != "" {
		t.Fatalf("selection not cleared: %+v", s)
	}
	if s.State != StateAwaitingStartDate {
		t.Fatalf("ResetSelection must not change state")
	}
}
