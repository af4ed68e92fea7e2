package wizard

import (
	"github.com/hackgods/dental-booking/internal/booking"
)

// Collection identifies one of the dependent collections the wizard loads.
type Collection string

const (
	CollectionSpecialties    Collection = "specialties"
	CollectionServiceTypes   Collection = "service_types"
	CollectionAvailabilities Collection = "availabilities"
	CollectionSubmission     Collection = "submission"
)

type Loading struct {
	Specialties    bool `json:"specialties"`
	ServiceTypes   bool `json:"serviceTypes"`
	Availabilities bool `json:"availabilities"`
	Submitting     bool `json:"submitting"`
}

// Any reports whether anything is in flight.
func (l Loading) Any() bool {
	return l.Specialties || l.ServiceTypes || l.Availabilities || l.Submitting
}

type failedFetches struct {
	specialties    bool
	serviceTypes   bool
	availabilities bool
}

func (f failedFetches) any() bool {
	return f.specialties || f.serviceTypes || f.availabilities
}

// State is one booking attempt. It is a value: Reduce returns a new State and
// never mutates the slices or maps of its input.
type State struct {
	Mode     Mode              `json:"-"`
	Step     int               `json:"step"`
	Identity *booking.Identity `json:"-"`
	Today    booking.Date      `json:"-"`

	Specialties    []booking.Specialty        `json:"specialties"`
	ServiceTypes   []booking.ServiceType      `json:"serviceTypes"`
	Availabilities []booking.AvailabilitySlot `json:"availabilities"`

	Selections booking.Selections     `json:"selections"`
	Date       booking.Date           `json:"date"`
	Contact    booking.PatientContact `json:"contact"`

	Loading     Loading                `json:"loading"`
	FieldErrors map[string]string      `json:"fieldErrors,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Result      *booking.BookingResult `json:"result,omitempty"`

	// Every dependent fetch is stamped with the sequence current when it was
	// issued; a result carrying any other sequence is stale.
	specialtiesSeq    uint64
	serviceTypesSeq   uint64
	availabilitiesSeq uint64
	submitSeq         uint64

	failed         failedFetches
	errorFromFetch bool
}

// NewState builds the initial state of a booking attempt.
func NewState(identity *booking.Identity, today booking.Date) State {
	s := State{
		Mode:     ModeFor(identity),
		Step:     1,
		Identity: identity,
		Today:    today,
	}
	s.Contact = prefilledContact(identity)
	return s
}

func prefilledContact(identity *booking.Identity) booking.PatientContact {
	if identity == nil {
		return booking.PatientContact{}
	}
	return booking.PatientContact{
		Name:  identity.Name,
		Email: identity.Email,
		Phone: identity.Phone,
	}
}

func (s State) Kind() StepKind { return s.Mode.KindAt(s.Step) }

func (s State) StepCount() int { return s.Mode.StepCount() }

// Done reports whether the booking went through. Only Reset leaves this state.
func (s State) Done() bool { return s.Kind() == KindSuccess }

func (s State) IsGuest() bool { return s.Mode == ModeGuest }

// SelectedService returns the loaded service type matching the selection.
func (s State) SelectedService() (booking.ServiceType, bool) {
	if s.Selections.ServiceID == nil {
		return booking.ServiceType{}, false
	}
	return findService(s.ServiceTypes, *s.Selections.ServiceID)
}

// SelectedSlot returns the loaded availability slot matching the selection.
func (s State) SelectedSlot() (booking.AvailabilitySlot, bool) {
	if s.Selections.AvailabilityID == nil {
		return booking.AvailabilitySlot{}, false
	}
	return findSlot(s.Availabilities, *s.Selections.AvailabilityID)
}

func hasSpecialty(items []booking.Specialty, id int64) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func findService(items []booking.ServiceType, id int64) (booking.ServiceType, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return booking.ServiceType{}, false
}

func findSlot(items []booking.AvailabilitySlot, id int64) (booking.AvailabilitySlot, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return booking.AvailabilitySlot{}, false
}

func sameID(a *int64, b int64) bool {
	return a != nil && *a == b
}
