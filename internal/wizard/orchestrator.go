package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/metrics"
	"github.com/hackgods/dental-booking/pkg/logging"
)

// Catalog is the read side of the gateway the wizard depends on.
type Catalog interface {
	GetSpecialties(ctx context.Context) ([]booking.Specialty, error)
	GetServiceTypes(ctx context.Context, specialtyID int64) ([]booking.ServiceType, error)
	GetAvailabilities(ctx context.Context, specialtyID int64, date booking.Date) ([]booking.AvailabilitySlot, error)
}

// Submitter sends a completed booking. *SubmissionController implements it.
type Submitter interface {
	Submit(ctx context.Context, sel booking.Selections, contact booking.PatientContact, isGuest bool) (*booking.BookingResult, error)
}

// Orchestrator owns one booking attempt. Events are reduced one at a time
// under mu; the calls they imply run on their own goroutines and come back
// through Dispatch as result events.
type Orchestrator struct {
	mu    sync.Mutex
	state State

	catalog   Catalog
	submitter Submitter
	logger    *logging.Logger
	metrics   *metrics.Metrics
	onSuccess func(booking.BookingResult)
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	inflight int
	idle     chan struct{}
}

type Option func(*Orchestrator)

func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithSuccessHandler registers the navigation hook fired once a booking
// goes through.
func WithSuccessHandler(fn func(booking.BookingResult)) Option {
	return func(o *Orchestrator) { o.onSuccess = fn }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator for identity; nil identity means a guest
// session. Effects stop being issued once ctx is done or Close is called.
func New(ctx context.Context, identity *booking.Identity, catalog Catalog, submitter Submitter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:   catalog,
		submitter: submitter,
		now:       time.Now,
		idle:      make(chan struct{}),
	}
	close(o.idle)
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.state = NewState(identity, booking.DateOf(o.now()))
	return o
}

// Dispatch reduces one event and starts the calls the transition implies.
func (o *Orchestrator) Dispatch(ev Event) State {
	o.mu.Lock()
	prev := o.state
	if c, stale := Stale(prev, ev); stale {
		o.mu.Unlock()
		o.metrics.ObserveStaleDiscard(string(c))
		o.logger.Debug("discarded stale result", "collection", c)
		return prev
	}

	next := Reduce(prev, ev)
	o.state = next

	if o.ctx.Err() == nil {
		for _, eff := range diffEffects(prev, next) {
			o.begin()
			go o.run(eff)
		}
	}
	o.mu.Unlock()

	if !prev.Done() && next.Done() && next.Result != nil && o.onSuccess != nil {
		o.onSuccess(*next.Result)
	}
	return next
}

// begin and finish track running effects; mu must be held for begin.
func (o *Orchestrator) begin() {
	if o.inflight == 0 {
		o.idle = make(chan struct{})
	}
	o.inflight++
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight--
	if o.inflight == 0 {
		close(o.idle)
	}
}

func (o *Orchestrator) run(eff effect) {
	// The result is dispatched before finish so that follow-up effects are
	// counted before this one is released.
	defer o.finish()
	o.Dispatch(o.perform(eff))
}

func (o *Orchestrator) perform(eff effect) Event {
	ctx := o.ctx

	switch e := eff.(type) {
	case fetchSpecialties:
		items, err := o.catalog.GetSpecialties(ctx)
		if err != nil {
			return o.fetchFailed(CollectionSpecialties, e.seq, err)
		}
		return SpecialtiesLoaded{Seq: e.seq, Items: items}

	case fetchServiceTypes:
		items, err := o.catalog.GetServiceTypes(ctx, e.specialtyID)
		if err != nil {
			return o.fetchFailed(CollectionServiceTypes, e.seq, err)
		}
		return ServiceTypesLoaded{Seq: e.seq, Items: items}

	case fetchAvailabilities:
		items, err := o.catalog.GetAvailabilities(ctx, e.specialtyID, e.date)
		if err != nil {
			return o.fetchFailed(CollectionAvailabilities, e.seq, err)
		}
		return AvailabilitiesLoaded{Seq: e.seq, Items: items}

	case submitBooking:
		result, err := o.submitter.Submit(ctx, e.selections, e.contact, e.guest)
		if err != nil {
			return SubmitFailed{Seq: e.seq, Outcome: outcomeOf(err)}
		}
		if result == nil {
			result = &booking.BookingResult{}
		}
		return SubmitSucceeded{Seq: e.seq, Result: *result}
	}

	return nil
}

func (o *Orchestrator) fetchFailed(c Collection, seq uint64, err error) Event {
	o.logger.Warn("dependent fetch failed", "collection", c, "error", err)
	return FetchFailed{Collection: c, Seq: seq}
}

func outcomeOf(err error) Outcome {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Outcome
	}
	return Classify(err)
}

// Start loads the specialty collection.
func (o *Orchestrator) Start() State { return o.Dispatch(LoadSpecialties{}) }

func (o *Orchestrator) SelectSpecialty(id int64) State {
	return o.Dispatch(SpecialtySelected{ID: id})
}

func (o *Orchestrator) SelectService(id int64) State {
	return o.Dispatch(ServiceSelected{ID: id})
}

func (o *Orchestrator) SelectDate(date booking.Date) State {
	return o.Dispatch(DateSelected{Date: date})
}

func (o *Orchestrator) SelectAvailability(id int64) State {
	return o.Dispatch(AvailabilitySelected{ID: id})
}

func (o *Orchestrator) UpdateContact(c booking.PatientContact) State {
	return o.Dispatch(ContactUpdated{Contact: c})
}

func (o *Orchestrator) UpdateNotes(notes string) State {
	return o.Dispatch(NotesUpdated{Notes: notes})
}

func (o *Orchestrator) Next() State { return o.Dispatch(NextRequested{}) }

func (o *Orchestrator) Previous() State { return o.Dispatch(PreviousRequested{}) }

// Submit starts the submission. It only reports why a submission could not
// start; the outcome arrives asynchronously in the state.
func (o *Orchestrator) Submit() (State, error) {
	s := o.State()
	switch {
	case s.Done():
		return s, ErrCompleted
	case s.Loading.Submitting:
		return s, ErrSubmissionInProgress
	case s.Kind() != KindConfirm:
		return s, ErrNotAtConfirmation
	}
	return o.Dispatch(SubmitRequested{}), nil
}

func (o *Orchestrator) Reset() State { return o.Dispatch(ResetRequested{}) }

func (o *Orchestrator) Retry() State { return o.Dispatch(RetryRequested{}) }

// State returns a snapshot of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Wait blocks until no effect is running or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	idle := o.idle
	o.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels running effects and stops new ones from being issued.
func (o *Orchestrator) Close() {
	o.cancel()
}
