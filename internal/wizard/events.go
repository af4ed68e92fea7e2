package wizard

import "github.com/hackgods/dental-booking/internal/booking"

// Event is anything Reduce understands: user intents and fetch/submit results.
type Event interface {
	isEvent()
}

type LoadSpecialties struct{}

type SpecialtySelected struct{ ID int64 }

type ServiceSelected struct{ ID int64 }

type DateSelected struct{ Date booking.Date }

type AvailabilitySelected struct{ ID int64 }

// ContactUpdated replaces the editable contact fields. Signed-in users can
// only change notes; their other fields come from the identity.
type ContactUpdated struct{ Contact booking.PatientContact }

type NotesUpdated struct{ Notes string }

type NextRequested struct{}

type PreviousRequested struct{}

type SubmitRequested struct{}

type ResetRequested struct{}

// RetryRequested reissues the dependent fetches that failed.
type RetryRequested struct{}

type SpecialtiesLoaded struct {
	Seq   uint64
	Items []booking.Specialty
}

type ServiceTypesLoaded struct {
	Seq   uint64
	Items []booking.ServiceType
}

type AvailabilitiesLoaded struct {
	Seq   uint64
	Items []booking.AvailabilitySlot
}

type FetchFailed struct {
	Collection Collection
	Seq        uint64
	Message    string
}

type SubmitSucceeded struct {
	Seq    uint64
	Result booking.BookingResult
}

type SubmitFailed struct {
	Seq     uint64
	Outcome Outcome
}

func (LoadSpecialties) isEvent()      {}
func (SpecialtySelected) isEvent()    {}
func (ServiceSelected) isEvent()      {}
func (DateSelected) isEvent()         {}
func (AvailabilitySelected) isEvent() {}
func (ContactUpdated) isEvent()       {}
func (NotesUpdated) isEvent()         {}
func (NextRequested) isEvent()        {}
func (PreviousRequested) isEvent()    {}
func (SubmitRequested) isEvent()      {}
func (ResetRequested) isEvent()       {}
func (RetryRequested) isEvent()       {}
func (SpecialtiesLoaded) isEvent()    {}
func (ServiceTypesLoaded) isEvent()   {}
func (AvailabilitiesLoaded) isEvent() {}
func (FetchFailed) isEvent()          {}
func (SubmitSucceeded) isEvent()      {}
func (SubmitFailed) isEvent()         {}

// Stale reports whether ev is a result that no longer belongs to s: its
// sequence was superseded or nothing of its kind is in flight.
func Stale(s State, ev Event) (Collection, bool) {
	switch e := ev.(type) {
	case SpecialtiesLoaded:
		return CollectionSpecialties, e.Seq != s.specialtiesSeq || !s.Loading.Specialties
	case ServiceTypesLoaded:
		return CollectionServiceTypes, e.Seq != s.serviceTypesSeq || !s.Loading.ServiceTypes
	case AvailabilitiesLoaded:
		return CollectionAvailabilities, e.Seq != s.availabilitiesSeq || !s.Loading.Availabilities
	case FetchFailed:
		return e.Collection, e.Seq != s.seqOf(e.Collection) || !s.loadingOf(e.Collection)
	case SubmitSucceeded:
		return CollectionSubmission, e.Seq != s.submitSeq || !s.Loading.Submitting
	case SubmitFailed:
		return CollectionSubmission, e.Seq != s.submitSeq || !s.Loading.Submitting
	}
	return "", false
}

func (s State) seqOf(c Collection) uint64 {
	switch c {
	case CollectionSpecialties:
		return s.specialtiesSeq
	case CollectionServiceTypes:
		return s.serviceTypesSeq
	case CollectionAvailabilities:
		return s.availabilitiesSeq
	}
	return 0
}

func (s State) loadingOf(c Collection) bool {
	switch c {
	case CollectionSpecialties:
		return s.Loading.Specialties
	case CollectionServiceTypes:
		return s.Loading.ServiceTypes
	case CollectionAvailabilities:
		return s.Loading.Availabilities
	}
	return false
}
