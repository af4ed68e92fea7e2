package wizard

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Field names shared by local validation and mapped server errors.
const (
	FieldSpecialty    = "specialtyId"
	FieldService      = "serviceId"
	FieldDate         = "date"
	FieldAvailability = "availabilityId"
	FieldName         = "name"
	FieldEmail        = "email"
	FieldPhone        = "phone"
	FieldNotes        = "notes"
)

const (
	minNameLength  = 2
	minPhoneDigits = 10
	maxNotesLength = 500
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate runs the rule set of one step kind against s. An empty map means
// the step is valid. It has no side effects and never panics.
func Validate(kind StepKind, s State) map[string]string {
	errs := make(map[string]string)

	switch kind {
	case KindService:
		validateService(s, errs)
	case KindSchedule:
		validateSchedule(s, errs)
	case KindContact:
		validateContact(s, errs)
		validateNotes(s.Contact.Notes, errs)
	case KindNotes:
		validateNotes(s.Contact.Notes, errs)
	}

	return errs
}

// ValidateAll checks every step of the session's mode in order.
func ValidateAll(s State) map[string]string {
	errs := make(map[string]string)
	for _, kind := range s.Mode.Steps() {
		for k, v := range Validate(kind, s) {
			if _, ok := errs[k]; !ok {
				errs[k] = v
			}
		}
	}
	return errs
}

func validateService(s State, errs map[string]string) {
	switch {
	case s.Selections.SpecialtyID == nil:
		errs[FieldSpecialty] = "Select a specialty."
	case !hasSpecialty(s.Specialties, *s.Selections.SpecialtyID):
		errs[FieldSpecialty] = "Select a specialty from the list."
	}

	switch {
	case s.Selections.ServiceID == nil:
		errs[FieldService] = "Select a service."
	case !serviceBelongs(s):
		errs[FieldService] = "Select a service from the list."
	}
}

func serviceBelongs(s State) bool {
	svc, ok := s.SelectedService()
	return ok && s.Selections.SpecialtyID != nil && svc.SpecialtyID == *s.Selections.SpecialtyID
}

func validateSchedule(s State, errs map[string]string) {
	switch {
	case s.Date.IsZero():
		errs[FieldDate] = "Select a date."
	case !s.Today.IsZero() && s.Date.Before(s.Today):
		errs[FieldDate] = "Select today or a future date."
	}

	switch {
	case s.Selections.AvailabilityID == nil:
		errs[FieldAvailability] = "Select an available time."
	case s.Loading.Availabilities:
		errs[FieldAvailability] = "Available times are still loading."
	default:
		if _, ok := s.SelectedSlot(); !ok {
			errs[FieldAvailability] = "Select one of the available times."
		}
	}
}

func validateContact(s State, errs map[string]string) {
	c := s.Contact

	if utf8.RuneCountInString(strings.TrimSpace(c.Name)) < minNameLength {
		errs[FieldName] = "Enter your full name."
	}
	if len(PhoneDigits(c.Phone)) < minPhoneDigits {
		errs[FieldPhone] = "Enter a phone number with at least 10 digits."
	}
	if email := strings.TrimSpace(c.Email); email != "" && !emailPattern.MatchString(email) {
		errs[FieldEmail] = "Enter a valid email address."
	}
}

func validateNotes(notes string, errs map[string]string) {
	if utf8.RuneCountInString(notes) > maxNotesLength {
		errs[FieldNotes] = "Notes must be 500 characters or fewer."
	}
}

// PhoneDigits strips everything but digits from a phone number.
func PhoneDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
