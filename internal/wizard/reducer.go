package wizard

import (
	"github.com/hackgods/dental-booking/internal/booking"
)

const (
	msgSpecialtiesFailed    = "We could not load the specialties. Please try again."
	msgServiceTypesFailed   = "We could not load the services for this specialty. Please try again."
	msgAvailabilitiesFailed = "We could not load the available times for this date. Please try again."
	msgBooked               = "Your appointment request was received."
)

// Reduce is the wizard's transition function. It is pure: the I/O implied by
// a transition is derived afterwards by diffing prev and next states.
func Reduce(s State, ev Event) State {
	if _, stale := Stale(s, ev); stale {
		return s
	}
	if s.Done() {
		if _, ok := ev.(ResetRequested); ok {
			return reset(s)
		}
		return s
	}

	switch e := ev.(type) {
	case LoadSpecialties:
		return loadSpecialties(s)
	case SpecialtySelected:
		return selectSpecialty(s, e.ID)
	case ServiceSelected:
		return selectService(s, e.ID)
	case DateSelected:
		return selectDate(s, e.Date)
	case AvailabilitySelected:
		return selectAvailability(s, e.ID)
	case ContactUpdated:
		return updateContact(s, e.Contact)
	case NotesUpdated:
		if s.Loading.Submitting {
			return s
		}
		s.Contact.Notes = e.Notes
		s.FieldErrors = without(s.FieldErrors, FieldNotes)
		return s
	case NextRequested:
		return next(s)
	case PreviousRequested:
		return previous(s)
	case SubmitRequested:
		return requestSubmit(s)
	case ResetRequested:
		return reset(s)
	case RetryRequested:
		return retry(s)
	case SpecialtiesLoaded:
		s.Specialties = e.Items
		s.Loading.Specialties = false
		s.failed.specialties = false
		return clearFetchError(s)
	case ServiceTypesLoaded:
		s.ServiceTypes = e.Items
		s.Loading.ServiceTypes = false
		s.failed.serviceTypes = false
		return clearFetchError(s)
	case AvailabilitiesLoaded:
		s.Availabilities = e.Items
		s.Loading.Availabilities = false
		s.failed.availabilities = false
		return clearFetchError(s)
	case FetchFailed:
		return fetchFailed(s, e)
	case SubmitSucceeded:
		result := e.Result
		s.Loading.Submitting = false
		s.Result = &result
		s.Step = s.Mode.StepOf(KindSuccess)
		s.FieldErrors = nil
		s.Error = ""
		s.Message = msgBooked
		return s
	case SubmitFailed:
		return submitFailed(s, e.Outcome)
	}
	return s
}

func loadSpecialties(s State) State {
	if s.Loading.Specialties {
		return s
	}
	s.specialtiesSeq++
	s.Loading.Specialties = true
	s.failed.specialties = false
	return s
}

func selectSpecialty(s State, id int64) State {
	if s.Loading.Submitting {
		return s
	}
	if !hasSpecialty(s.Specialties, id) {
		s.FieldErrors = with(s.FieldErrors, FieldSpecialty, "Select a specialty from the list.")
		return s
	}
	if sameID(s.Selections.SpecialtyID, id) && !s.failed.serviceTypes {
		s.FieldErrors = without(s.FieldErrors, FieldSpecialty)
		return s
	}

	s.Selections = booking.Selections{SpecialtyID: booking.IDPtr(id)}
	s.ServiceTypes = nil
	s.Availabilities = nil

	s.serviceTypesSeq++
	s.Loading.ServiceTypes = true
	s.failed.serviceTypes = false

	s.availabilitiesSeq++
	s.Loading.Availabilities = !s.Date.IsZero()
	s.failed.availabilities = false

	s.FieldErrors = without(s.FieldErrors, FieldSpecialty, FieldService, FieldAvailability)
	return clearFetchError(s)
}

func selectService(s State, id int64) State {
	if s.Loading.Submitting {
		return s
	}
	svc, ok := findService(s.ServiceTypes, id)
	if !ok || s.Selections.SpecialtyID == nil || svc.SpecialtyID != *s.Selections.SpecialtyID {
		s.FieldErrors = with(s.FieldErrors, FieldService, "Select a service from the list.")
		return s
	}
	if !sameID(s.Selections.ServiceID, id) {
		s.Selections = booking.Selections{
			SpecialtyID: s.Selections.SpecialtyID,
			ServiceID:   booking.IDPtr(id),
		}
	}
	s.FieldErrors = without(s.FieldErrors, FieldService, FieldAvailability)
	return s
}

func selectDate(s State, date booking.Date) State {
	if s.Loading.Submitting {
		return s
	}
	if date.IsZero() {
		s.FieldErrors = with(s.FieldErrors, FieldDate, "Select a date.")
		return s
	}
	if !s.Today.IsZero() && date.Before(s.Today) {
		s.FieldErrors = with(s.FieldErrors, FieldDate, "Select today or a future date.")
		return s
	}

	s.Date = date
	s.Selections.AvailabilityID = nil
	s.Availabilities = nil
	s.availabilitiesSeq++
	s.Loading.Availabilities = s.Selections.SpecialtyID != nil
	s.failed.availabilities = false

	s.FieldErrors = without(s.FieldErrors, FieldDate, FieldAvailability)
	return clearFetchError(s)
}

func selectAvailability(s State, id int64) State {
	if s.Loading.Submitting {
		return s
	}
	if s.Selections.ServiceID == nil {
		s.FieldErrors = with(s.FieldErrors, FieldService, "Select a service first.")
		return s
	}
	if s.Loading.Availabilities {
		s.FieldErrors = with(s.FieldErrors, FieldAvailability, "Available times are still loading.")
		return s
	}
	if _, ok := findSlot(s.Availabilities, id); !ok {
		s.FieldErrors = with(s.FieldErrors, FieldAvailability, "Select one of the available times.")
		return s
	}
	s.Selections.AvailabilityID = booking.IDPtr(id)
	s.FieldErrors = without(s.FieldErrors, FieldAvailability)
	return s
}

func updateContact(s State, c booking.PatientContact) State {
	if s.Loading.Submitting {
		return s
	}
	if s.Mode == ModeAuthenticated {
		s.Contact.Notes = c.Notes
		s.FieldErrors = without(s.FieldErrors, FieldNotes)
		return s
	}
	s.Contact = c
	s.FieldErrors = without(s.FieldErrors, FieldName, FieldEmail, FieldPhone, FieldNotes)
	return s
}

func next(s State) State {
	if s.Loading.Submitting {
		return s
	}
	kind := s.Kind()
	if errs := Validate(kind, s); len(errs) > 0 {
		s.FieldErrors = errs
		return s
	}
	if kind == KindConfirm {
		return requestSubmit(s)
	}
	s.Step++
	s.FieldErrors = nil
	s.Error = ""
	s.Message = ""
	s.errorFromFetch = false
	return s
}

func previous(s State) State {
	if s.Loading.Submitting {
		return s
	}
	if s.Step > 1 {
		s.Step--
	}
	s.FieldErrors = nil
	s.Error = ""
	s.Message = ""
	s.errorFromFetch = false
	return s
}

func requestSubmit(s State) State {
	if s.Kind() != KindConfirm || s.Loading.Submitting {
		return s
	}
	s.submitSeq++
	s.Loading.Submitting = true
	s.FieldErrors = nil
	s.Error = ""
	s.Message = ""
	s.errorFromFetch = false
	return s
}

// reset starts a fresh attempt. The specialty collection is kept; in-flight
// fetches and submissions are invalidated by bumping their sequences.
func reset(s State) State {
	out := NewState(s.Identity, s.Today)
	out.Specialties = s.Specialties
	out.Loading.Specialties = s.Loading.Specialties
	out.specialtiesSeq = s.specialtiesSeq
	out.serviceTypesSeq = s.serviceTypesSeq + 1
	out.availabilitiesSeq = s.availabilitiesSeq + 1
	out.submitSeq = s.submitSeq + 1

	if len(out.Specialties) == 0 && !out.Loading.Specialties {
		return loadSpecialties(out)
	}
	return out
}

func retry(s State) State {
	if s.failed.specialties {
		s = loadSpecialties(s)
	}
	if s.failed.serviceTypes && s.Selections.SpecialtyID != nil {
		s.serviceTypesSeq++
		s.Loading.ServiceTypes = true
		s.failed.serviceTypes = false
	}
	if s.failed.availabilities && s.Selections.SpecialtyID != nil && !s.Date.IsZero() {
		s.availabilitiesSeq++
		s.Loading.Availabilities = true
		s.failed.availabilities = false
	}
	return clearFetchError(s)
}

func fetchFailed(s State, e FetchFailed) State {
	msg := e.Message
	switch e.Collection {
	case CollectionSpecialties:
		s.Loading.Specialties = false
		s.failed.specialties = true
		if msg == "" {
			msg = msgSpecialtiesFailed
		}
	case CollectionServiceTypes:
		s.Loading.ServiceTypes = false
		s.failed.serviceTypes = true
		if msg == "" {
			msg = msgServiceTypesFailed
		}
	case CollectionAvailabilities:
		s.Loading.Availabilities = false
		s.failed.availabilities = true
		if msg == "" {
			msg = msgAvailabilitiesFailed
		}
	default:
		return s
	}
	s.Error = msg
	s.errorFromFetch = true
	return s
}

func clearFetchError(s State) State {
	if s.errorFromFetch && !s.failed.any() {
		s.Error = ""
		s.errorFromFetch = false
	}
	return s
}

// submitFailed applies the controller's recommendation. The wizard owns the
// navigation; the outcome only names the step kind to land on.
func submitFailed(s State, o Outcome) State {
	s.Loading.Submitting = false

	target := s.Mode.StepOf(o.Step)
	if target == 0 || target > s.StepCount() {
		target = s.Mode.StepOf(KindConfirm)
	}
	s.Step = target
	s.Error = o.Message
	s.errorFromFetch = false
	s.Message = ""
	s.FieldErrors = copyErrors(o.FieldErrors)

	if o.ClearAvailability {
		s.Selections.AvailabilityID = nil
	}
	if o.RefetchAvailability {
		s.Availabilities = nil
		s.availabilitiesSeq++
		s.Loading.Availabilities = s.Selections.SpecialtyID != nil && !s.Date.IsZero()
		s.failed.availabilities = false
	}
	return s
}

func with(m map[string]string, field, msg string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[field] = msg
	return out
}

func without(m map[string]string, fields ...string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func copyErrors(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
