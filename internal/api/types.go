package api

import (
	"encoding/json"
	"net/http"

	"github.com/hackgods/dental-booking/internal/appointments"
	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/wizard"
)

// Event types accepted by POST /wizard/sessions/{id}/events.
const (
	EventSelectSpecialty    = "select_specialty"
	EventSelectService      = "select_service"
	EventSelectDate         = "select_date"
	EventSelectAvailability = "select_availability"
	EventUpdateContact      = "update_contact"
	EventUpdateNotes        = "update_notes"
	EventNext               = "next"
	EventPrevious           = "previous"
	EventSubmit             = "submit"
	EventReset              = "reset"
	EventRetry              = "retry"
)

type WizardEventRequest struct {
	Type    string                  `json:"type"`
	ID      *int64                  `json:"id,omitempty"`
	Date    *booking.Date           `json:"date,omitempty"`
	Contact *booking.PatientContact `json:"contact,omitempty"`
	Notes   *string                 `json:"notes,omitempty"`
}

type StatusUpdateRequest struct {
	Status booking.AppointmentStatus `json:"status"`
}

// SessionResponse is a session id plus the state the UI renders from.
type SessionResponse struct {
	SessionID string    `json:"sessionId"`
	State     StateView `json:"state"`
}

type StateView struct {
	Mode      string `json:"mode"`
	Step      int    `json:"step"`
	StepCount int    `json:"stepCount"`
	StepKind  string `json:"stepKind"`
	Done      bool   `json:"done"`

	Specialties    []booking.Specialty        `json:"specialties"`
	ServiceTypes   []booking.ServiceType      `json:"serviceTypes"`
	Availabilities []booking.AvailabilitySlot `json:"availabilities"`

	Selections booking.Selections     `json:"selections"`
	Date       booking.Date           `json:"date"`
	Contact    booking.PatientContact `json:"contact"`

	Loading     wizard.Loading         `json:"loading"`
	FieldErrors map[string]string      `json:"fieldErrors"`
	Error       string                 `json:"error,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Result      *booking.BookingResult `json:"result,omitempty"`
}

func newStateView(s wizard.State) StateView {
	fieldErrors := s.FieldErrors
	if fieldErrors == nil {
		fieldErrors = map[string]string{}
	}
	return StateView{
		Mode:           s.Mode.String(),
		Step:           s.Step,
		StepCount:      s.StepCount(),
		StepKind:       s.Kind().String(),
		Done:           s.Done(),
		Specialties:    nonNil(s.Specialties),
		ServiceTypes:   nonNil(s.ServiceTypes),
		Availabilities: nonNil(s.Availabilities),
		Selections:     s.Selections,
		Date:           s.Date,
		Contact:        s.Contact,
		Loading:        s.Loading,
		FieldErrors:    fieldErrors,
		Error:          s.Error,
		Message:        s.Message,
		Result:         s.Result,
	}
}

// AppointmentView carries the transitions the UI may offer for an item.
type AppointmentView struct {
	booking.Appointment
	Transitions []booking.AppointmentStatus `json:"transitions"`
}

type AppointmentPageResponse struct {
	Items      []AppointmentView  `json:"items"`
	Pagination booking.Pagination `json:"pagination"`
}

func newAppointmentView(a booking.Appointment) AppointmentView {
	return AppointmentView{Appointment: a, Transitions: appointments.Transitions(a)}
}

func newAppointmentPage(p *booking.AppointmentPage) AppointmentPageResponse {
	items := make([]AppointmentView, 0, len(p.Items))
	for _, a := range p.Items {
		items = append(items, newAppointmentView(a))
	}
	return AppointmentPageResponse{Items: items, Pagination: p.Pagination}
}

type ErrorResponse struct {
	Error       string            `json:"error"`
	Details     string            `json:"details,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
