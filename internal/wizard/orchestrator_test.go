package wizard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/gateway"
	"github.com/hackgods/dental-booking/internal/metrics"
	"github.com/hackgods/dental-booking/pkg/logging"
)

func newTestOrchestrator(t *testing.T, identity *booking.Identity, catalog Catalog, submitter Submitter, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{
		WithLogger(logging.Discard()),
		WithClock(func() time.Time { return testNow }),
	}, opts...)
	o := New(context.Background(), identity, catalog, submitter, opts...)
	t.Cleanup(o.Close)
	return o
}

// driveToConfirm walks an orchestrator to the confirmation step.
func driveToConfirm(t *testing.T, o *Orchestrator, guest bool) {
	t.Helper()
	o.Start()
	waitIdle(t, o)
	o.SelectSpecialty(1)
	waitIdle(t, o)
	o.SelectService(2)
	o.Next()
	o.SelectDate(testDate)
	waitIdle(t, o)
	o.SelectAvailability(7)
	o.Next()
	if guest {
		o.UpdateContact(testGuest)
		o.Next()
	}
	o.UpdateNotes("first visit")
	s := o.Next()
	require.Equal(t, KindConfirm, s.Kind(), "field errors: %v", s.FieldErrors)
}

func TestOrchestratorStartLoadsSpecialties(t *testing.T) {
	o := newTestOrchestrator(t, nil, newFakeCatalog(), &stubSubmitter{})
	s := o.Start()
	assert.True(t, s.Loading.Specialties)

	waitIdle(t, o)
	s = o.State()
	assert.Equal(t, testSpecialties, s.Specialties)
	assert.False(t, s.Loading.Specialties)
	assert.Equal(t, testToday, s.Today)
}

func TestOrchestratorDiscardsStaleServiceTypes(t *testing.T) {
	catalog := newFakeCatalog()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	o := newTestOrchestrator(t, nil, catalog, &stubSubmitter{}, WithMetrics(m))

	o.Start()
	waitIdle(t, o)

	gateA := catalog.gate(1)
	gateB := catalog.gate(2)

	o.SelectSpecialty(1)
	o.SelectSpecialty(2)

	close(gateB)
	require.Eventually(t, func() bool {
		return !o.State().Loading.ServiceTypes
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, testServices[2], o.State().ServiceTypes)

	close(gateA)
	waitIdle(t, o)

	s := o.State()
	assert.Equal(t, testServices[2], s.ServiceTypes)
	assert.Equal(t, int64(2), *s.Selections.SpecialtyID)

	families, err := reg.Gather()
	require.NoError(t, err)
	var discarded float64
	for _, f := range families {
		if f.GetName() == "booking_wizard_stale_responses_total" {
			for _, metric := range f.GetMetric() {
				discarded += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), discarded)
}

func TestOrchestratorDiscardsLateSlotsForPreviousDate(t *testing.T) {
	catalog := newFakeCatalog()
	o := newTestOrchestrator(t, nil, catalog, &stubSubmitter{})

	o.Start()
	waitIdle(t, o)
	o.SelectSpecialty(1)
	waitIdle(t, o)

	gate := catalog.gateDate(testDate)
	o.SelectDate(testDate)
	o.SelectDate(laterDate)

	require.Eventually(t, func() bool {
		return !o.State().Loading.Availabilities
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, laterSlots, o.State().Availabilities)

	close(gate)
	waitIdle(t, o)

	s := o.State()
	assert.Equal(t, laterSlots, s.Availabilities)
	assert.Equal(t, laterDate, s.Date)
}

func TestOrchestratorSubmitSuccess(t *testing.T) {
	var navigated atomic.Int64
	submitter := &stubSubmitter{result: &booking.BookingResult{AppointmentID: 42}}
	o := newTestOrchestrator(t, testMember, newFakeCatalog(), submitter,
		WithSuccessHandler(func(r booking.BookingResult) { navigated.Store(r.AppointmentID) }))

	driveToConfirm(t, o, false)

	s, err := o.Submit()
	require.NoError(t, err)
	assert.True(t, s.Loading.Submitting)

	waitIdle(t, o)
	s = o.State()
	assert.True(t, s.Done())
	assert.Equal(t, int64(42), navigated.Load())
	assert.Equal(t, 1, submitter.calls)

	_, err = o.Submit()
	assert.ErrorIs(t, err, ErrCompleted)
}

func TestOrchestratorSubmitOutsideConfirm(t *testing.T) {
	o := newTestOrchestrator(t, nil, newFakeCatalog(), &stubSubmitter{})
	_, err := o.Submit()
	assert.ErrorIs(t, err, ErrNotAtConfirmation)
}

func TestOrchestratorRetryAfterFetchFailure(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.slotErr = apiError(http.StatusBadGateway)
	o := newTestOrchestrator(t, nil, catalog, &stubSubmitter{})

	o.Start()
	waitIdle(t, o)
	o.SelectSpecialty(1)
	o.SelectDate(testDate)
	waitIdle(t, o)

	s := o.State()
	assert.Equal(t, msgAvailabilitiesFailed, s.Error)
	assert.Equal(t, testDate, s.Date, "selection is kept after a failed fetch")

	catalog.mu.Lock()
	catalog.slotErr = nil
	catalog.mu.Unlock()

	o.Retry()
	waitIdle(t, o)
	s = o.State()
	assert.Empty(t, s.Error)
	assert.Equal(t, testSlots, s.Availabilities)
}

func TestOrchestratorCloseStopsEffects(t *testing.T) {
	catalog := newFakeCatalog()
	o := newTestOrchestrator(t, nil, catalog, &stubSubmitter{})
	o.Start()
	waitIdle(t, o)

	catalog.gate(1)
	o.SelectSpecialty(1)
	o.Close()
	waitIdle(t, o)

	s := o.State()
	assert.False(t, s.Loading.ServiceTypes)
	assert.NotEmpty(t, s.Error)
}

// clinicUpstream fakes the clinic API for end-to-end submission tests.
func clinicUpstream(t *testing.T, createStatus int, createBody string, slotHits *atomic.Int32) *gateway.Client {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/specialties", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"General dentistry"}]`))
	})
	r.Get("/service-types/specialty/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":2,"name":"Cleaning","duration_minutes":30}]}`))
	})
	r.Get("/availabilities", func(w http.ResponseWriter, r *http.Request) {
		slotHits.Add(1)
		_, _ = w.Write([]byte(`{"data":[{"id":7,"date":"2026-03-09","start_time":"09:00:00","end_time":"09:30:00"}]}`))
	})
	create := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(createStatus)
		_, _ = w.Write([]byte(createBody))
	}
	r.Post("/appointments", create)
	r.Post("/appointments/guest", create)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return gateway.NewClient(ts.URL, logging.Discard())
}

func TestConflictRecoveryEndToEnd(t *testing.T) {
	var slotHits atomic.Int32
	client := clinicUpstream(t, http.StatusConflict, `{"message":"Slot already booked"}`, &slotHits)
	o := newTestOrchestrator(t, nil, client, NewSubmissionController(client, logging.Discard()))

	driveToConfirm(t, o, true)
	require.Equal(t, int64(7), *o.State().Selections.AvailabilityID)

	_, err := o.Submit()
	require.NoError(t, err)
	waitIdle(t, o)

	s := o.State()
	assert.Equal(t, KindSchedule, s.Kind())
	assert.Nil(t, s.Selections.AvailabilityID)
	assert.NotEmpty(t, s.Error)
	assert.Equal(t, int32(2), slotHits.Load(), "slots are fetched again after a conflict")
	assert.Len(t, s.Availabilities, 1)
}

func TestRateLimitEndToEnd(t *testing.T) {
	var slotHits atomic.Int32
	client := clinicUpstream(t, http.StatusTooManyRequests, `{"message":"Too many pending appointments"}`, &slotHits)
	o := newTestOrchestrator(t, testMember, client, NewSubmissionController(client.WithToken("tok"), logging.Discard()))

	driveToConfirm(t, o, false)
	before := o.State().Selections

	_, err := o.Submit()
	require.NoError(t, err)
	waitIdle(t, o)

	s := o.State()
	assert.Equal(t, KindConfirm, s.Kind())
	assert.Equal(t, before, s.Selections)
	assert.Equal(t, msgRateLimited, s.Error)
	assert.Equal(t, int32(1), slotHits.Load())
}
