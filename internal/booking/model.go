package booking

import (
	"encoding/json"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Valid reports whether s is one of the known appointment statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type Specialty struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ServiceType struct {
	ID              int64  `json:"id"`
	SpecialtyID     int64  `json:"specialty_id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
}

type Dentist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type AvailabilitySlot struct {
	ID        int64     `json:"id"`
	Date      Date      `json:"date"`
	StartTime ClockTime `json:"start_time"`
	EndTime   ClockTime `json:"end_time"`
	Dentist   *Dentist  `json:"dentist,omitempty"`
}

// DentistName returns the dentist's name when the upstream sent one.
func (s AvailabilitySlot) DentistName() (string, bool) {
	if s.Dentist == nil || s.Dentist.Name == "" {
		return "", false
	}
	return s.Dentist.Name, true
}

// Selections is the ordered chain specialty -> service -> availability.
// A nil field means "not selected".
type Selections struct {
	SpecialtyID    *int64 `json:"specialtyId"`
	ServiceID      *int64 `json:"serviceId"`
	AvailabilityID *int64 `json:"availabilityId"`
}

// Complete reports whether every link of the chain is set.
func (s Selections) Complete() bool {
	return s.SpecialtyID != nil && s.ServiceID != nil && s.AvailabilityID != nil
}

type PatientContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

type GuestContact struct {
	Name  string
	Email string
	Phone string
}

// BookingRequest is the create-appointment payload. Guest is set only for
// guest sessions.
type BookingRequest struct {
	AvailabilityID int64
	ServiceTypeID  int64
	Notes          *string
	Guest          *GuestContact
}

type bookingRequestJSON struct {
	AvailabilityID int64   `json:"availability_id"`
	ServiceTypeID  int64   `json:"service_type_id"`
	Notes          *string `json:"notes"`
	Name           string  `json:"name,omitempty"`
	Email          string  `json:"email,omitempty"`
	Phone          string  `json:"phone,omitempty"`
}

func (r BookingRequest) MarshalJSON() ([]byte, error) {
	out := bookingRequestJSON{
		AvailabilityID: r.AvailabilityID,
		ServiceTypeID:  r.ServiceTypeID,
		Notes:          r.Notes,
	}
	if r.Guest != nil {
		out.Name = r.Guest.Name
		out.Email = r.Guest.Email
		out.Phone = r.Guest.Phone
	}
	return json.Marshal(out)
}

// BookingResult is the server's success payload. Only the identifier is
// interpreted; the rest is kept verbatim.
type BookingResult struct {
	AppointmentID int64           `json:"appointmentId,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

type Appointment struct {
	ID           int64             `json:"id"`
	Status       AppointmentStatus `json:"status"`
	ServiceType  *ServiceType      `json:"service_type,omitempty"`
	Availability *AvailabilitySlot `json:"availability,omitempty"`
	Notes        *string           `json:"notes,omitempty"`
}

type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalItems  int `json:"totalItems"`
	Limit       int `json:"limit"`
}

type AppointmentPage struct {
	Items      []Appointment `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// Identity is the signed-in user as seen by the booking flow.
type Identity struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

// IDPtr is a small helper for building optional ids.
func IDPtr(id int64) *int64 {
	return &id
}
