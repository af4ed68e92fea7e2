package wizard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hackgods/dental-booking/internal/booking"
)

var (
	testNow   = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	testToday = booking.DateOf(testNow)
	testDate  = booking.NewDate(2026, time.March, 9)

	testSpecialties = []booking.Specialty{
		{ID: 1, Name: "General dentistry"},
		{ID: 2, Name: "Orthodontics"},
	}
	testServices = map[int64][]booking.ServiceType{
		1: {
			{ID: 2, SpecialtyID: 1, Name: "Cleaning", DurationMinutes: 30},
			{ID: 3, SpecialtyID: 1, Name: "Filling", DurationMinutes: 45},
		},
		2: {
			{ID: 20, SpecialtyID: 2, Name: "Braces consult", DurationMinutes: 60},
		},
	}
	testSlots = []booking.AvailabilitySlot{
		{ID: 7, Date: testDate, StartTime: booking.NewClockTime(9, 0), EndTime: booking.NewClockTime(9, 30)},
		{ID: 8, Date: testDate, StartTime: booking.NewClockTime(10, 0), EndTime: booking.NewClockTime(10, 30)},
	}
	laterDate  = booking.NewDate(2026, time.March, 10)
	laterSlots = []booking.AvailabilitySlot{
		{ID: 9, Date: laterDate, StartTime: booking.NewClockTime(15, 0), EndTime: booking.NewClockTime(15, 30)},
	}
	testMember = &booking.Identity{ID: 11, Name: "Laura Diaz", Email: "laura@example.com", Phone: "3009876543", Role: "patient"}
	testGuest  = booking.PatientContact{Name: "Ana Gomez", Phone: "3001234567"}
)

// loaded returns a fresh state with the specialty collection in place.
func loaded(identity *booking.Identity) State {
	s := NewState(identity, testToday)
	s = Reduce(s, LoadSpecialties{})
	return Reduce(s, SpecialtiesLoaded{Seq: s.specialtiesSeq, Items: testSpecialties})
}

// atConfirm drives the reducer to the confirmation step with specialty 1,
// service 2 and slot 7 selected.
func atConfirm(t *testing.T, identity *booking.Identity) State {
	t.Helper()
	s := loaded(identity)

	s = Reduce(s, SpecialtySelected{ID: 1})
	s = Reduce(s, ServiceTypesLoaded{Seq: s.serviceTypesSeq, Items: testServices[1]})
	s = Reduce(s, ServiceSelected{ID: 2})
	s = Reduce(s, NextRequested{})
	require.Equal(t, KindSchedule, s.Kind())

	s = Reduce(s, DateSelected{Date: testDate})
	s = Reduce(s, AvailabilitiesLoaded{Seq: s.availabilitiesSeq, Items: testSlots})
	s = Reduce(s, AvailabilitySelected{ID: 7})
	s = Reduce(s, NextRequested{})

	if identity == nil {
		require.Equal(t, KindContact, s.Kind())
		s = Reduce(s, ContactUpdated{Contact: testGuest})
		s = Reduce(s, NextRequested{})
	}
	require.Equal(t, KindNotes, s.Kind())
	s = Reduce(s, NextRequested{})
	require.Equal(t, KindConfirm, s.Kind())
	require.Empty(t, s.FieldErrors)
	return s
}

// fakeCatalog serves the fixtures above. A gate registered for a specialty
// or a date holds the matching fetch until the gate is closed.
type fakeCatalog struct {
	mu        sync.Mutex
	gates     map[int64]chan struct{}
	slotGates map[string]chan struct{}
	slotErr   error
	slotHits  int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		gates:     make(map[int64]chan struct{}),
		slotGates: make(map[string]chan struct{}),
	}
}

func (c *fakeCatalog) gateDate(date booking.Date) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan struct{})
	c.slotGates[date.String()] = ch
	return ch
}

func (c *fakeCatalog) gate(specialtyID int64) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan struct{})
	c.gates[specialtyID] = ch
	return ch
}

func (c *fakeCatalog) GetSpecialties(ctx context.Context) ([]booking.Specialty, error) {
	return testSpecialties, nil
}

func (c *fakeCatalog) GetServiceTypes(ctx context.Context, specialtyID int64) ([]booking.ServiceType, error) {
	c.mu.Lock()
	gate := c.gates[specialtyID]
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return testServices[specialtyID], nil
}

func (c *fakeCatalog) GetAvailabilities(ctx context.Context, specialtyID int64, date booking.Date) ([]booking.AvailabilitySlot, error) {
	c.mu.Lock()
	c.slotHits++
	gate := c.slotGates[date.String()]
	err := c.slotErr
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if date.Equal(laterDate) {
		return laterSlots, nil
	}
	return testSlots, nil
}

func (c *fakeCatalog) hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slotHits
}

type stubSubmitter struct {
	result *booking.BookingResult
	err    error
	calls  int
}

func (s *stubSubmitter) Submit(ctx context.Context, sel booking.Selections, contact booking.PatientContact, isGuest bool) (*booking.BookingResult, error) {
	s.calls++
	return s.result, s.err
}

func waitIdle(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, o.Wait(ctx))
}
