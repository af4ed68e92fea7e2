package wizard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/dental-booking/internal/booking"
)

func TestValidateContact(t *testing.T) {
	tests := []struct {
		name    string
		contact booking.PatientContact
		want    []string
	}{
		{"valid without email", booking.PatientContact{Name: "Ana", Phone: "300 123 4567"}, nil},
		{"valid with email", booking.PatientContact{Name: "Ana", Phone: "+57 (300) 123-4567", Email: "ana@example.co"}, nil},
		{"empty", booking.PatientContact{}, []string{FieldName, FieldPhone}},
		{"short name", booking.PatientContact{Name: " A ", Phone: "3001234567"}, []string{FieldName}},
		{"short phone", booking.PatientContact{Name: "Ana", Phone: "300-123-45"}, []string{FieldPhone}},
		{"bad email", booking.PatientContact{Name: "Ana", Phone: "3001234567", Email: "ana@example"}, []string{FieldEmail}},
		{"long notes", booking.PatientContact{Name: "Ana", Phone: "3001234567", Notes: strings.Repeat("a", 501)}, []string{FieldNotes}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(nil, testToday)
			s.Contact = tt.contact

			errs := Validate(KindContact, s)
			assert.Len(t, errs, len(tt.want))
			for _, f := range tt.want {
				assert.Contains(t, errs, f)
			}
		})
	}
}

func TestValidateNotesCountsRunes(t *testing.T) {
	s := NewState(testMember, testToday)
	s.Contact.Notes = strings.Repeat("ñ", 500)
	assert.Empty(t, Validate(KindNotes, s))

	s.Contact.Notes += "ñ"
	assert.Contains(t, Validate(KindNotes, s), FieldNotes)
}

func TestValidateConfirmAlwaysPasses(t *testing.T) {
	assert.Empty(t, Validate(KindConfirm, State{}))
	assert.Empty(t, Validate(KindSuccess, State{}))
}

func TestValidateIsTotal(t *testing.T) {
	kinds := []StepKind{0, KindService, KindSchedule, KindContact, KindNotes, KindConfirm, KindSuccess, 42}
	for _, k := range kinds {
		assert.NotPanics(t, func() { Validate(k, State{}) })
	}
}

func TestValidateAllCollectsEveryStep(t *testing.T) {
	errs := ValidateAll(NewState(nil, testToday))
	for _, f := range []string{FieldSpecialty, FieldService, FieldDate, FieldAvailability, FieldName, FieldPhone} {
		assert.Contains(t, errs, f)
	}
	assert.Empty(t, ValidateAll(atConfirm(t, nil)))
}
