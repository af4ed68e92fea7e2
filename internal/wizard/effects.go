package wizard

import "github.com/hackgods/dental-booking/internal/booking"

// effect is I/O implied by a state transition. Each carries the sequence it
// was issued under so its result can be recognized as stale.
type effect interface {
	sequence() uint64
}

type fetchSpecialties struct {
	seq uint64
}

type fetchServiceTypes struct {
	seq         uint64
	specialtyID int64
}

type fetchAvailabilities struct {
	seq         uint64
	specialtyID int64
	date        booking.Date
}

type submitBooking struct {
	seq        uint64
	selections booking.Selections
	contact    booking.PatientContact
	guest      bool
}

func (e fetchSpecialties) sequence() uint64    { return e.seq }
func (e fetchServiceTypes) sequence() uint64   { return e.seq }
func (e fetchAvailabilities) sequence() uint64 { return e.seq }
func (e submitBooking) sequence() uint64       { return e.seq }

// diffEffects compares two consecutive states and returns the calls next needs.
// A call is implied when its sequence moved and the matching loading flag is
// up; a bumped sequence with the flag down only invalidates older results.
func diffEffects(prev, next State) []effect {
	var out []effect

	if next.specialtiesSeq != prev.specialtiesSeq && next.Loading.Specialties {
		out = append(out, fetchSpecialties{seq: next.specialtiesSeq})
	}
	if next.serviceTypesSeq != prev.serviceTypesSeq && next.Loading.ServiceTypes && next.Selections.SpecialtyID != nil {
		out = append(out, fetchServiceTypes{
			seq:         next.serviceTypesSeq,
			specialtyID: *next.Selections.SpecialtyID,
		})
	}
	if next.availabilitiesSeq != prev.availabilitiesSeq && next.Loading.Availabilities &&
		next.Selections.SpecialtyID != nil && !next.Date.IsZero() {
		out = append(out, fetchAvailabilities{
			seq:         next.availabilitiesSeq,
			specialtyID: *next.Selections.SpecialtyID,
			date:        next.Date,
		})
	}
	if next.submitSeq != prev.submitSeq && next.Loading.Submitting {
		out = append(out, submitBooking{
			seq:        next.submitSeq,
			selections: next.Selections,
			contact:    next.Contact,
			guest:      next.IsGuest(),
		})
	}
	return out
}
