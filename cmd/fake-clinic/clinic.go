package main

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/wizard"
)

var (
	errSlotTaken       = errors.New("This time slot is no longer available")
	errSlotNotFound    = errors.New("Availability not found")
	errServiceNotFound = errors.New("Service type not found")
	errTooManyPending  = errors.New("Too many pending appointments")
	errNotFound        = errors.New("Appointment not found")
	errBadTransition   = errors.New("Invalid status transition")
)

var specialtyNames = []string{
	"General Dentistry",
	"Orthodontics",
	"Endodontics",
	"Periodontics",
	"Pediatric Dentistry",
}

var serviceNames = []string{
	"Consultation",
	"Cleaning",
	"Filling",
	"X-Ray",
	"Follow-up",
}

var transitions = map[booking.AppointmentStatus][]booking.AppointmentStatus{
	booking.StatusPending:   {booking.StatusConfirmed, booking.StatusCancelled},
	booking.StatusConfirmed: {booking.StatusCancelled, booking.StatusCompleted},
}

type appointment struct {
	booking.Appointment
	owner string // bearer token, or "guest:<phone digits>"
}

// clinic is an in-memory stand-in for the clinic API.
type clinic struct {
	mu sync.Mutex

	specialties []booking.Specialty
	services    []booking.ServiceType
	slots       []booking.AvailabilitySlot
	specialtyOf map[int64]int64 // slot id -> specialty id
	booked      map[int64]bool

	appointments []*appointment
	nextID       int64
	maxPending   int
}

// seedClinic generates specialties, service types, dentists and half-hour
// slots on weekdays for the next days.
func seedClinic(now time.Time, days, maxPending int) *clinic {
	c := &clinic{
		specialtyOf: make(map[int64]int64),
		booked:      make(map[int64]bool),
		nextID:      1,
		maxPending:  maxPending,
	}

	var serviceID, slotID, dentistID int64
	for i, name := range specialtyNames {
		specialtyID := int64(i + 1)
		c.specialties = append(c.specialties, booking.Specialty{
			ID:          specialtyID,
			Name:        name,
			Description: gofakeit.RandomString(serviceNames) + " and related care",
		})

		for _, svc := range serviceNames[:gofakeit.Number(2, len(serviceNames))] {
			serviceID++
			c.services = append(c.services, booking.ServiceType{
				ID:              serviceID,
				SpecialtyID:     specialtyID,
				Name:            svc,
				DurationMinutes: 30,
			})
		}

		dentistID++
		dentist := &booking.Dentist{ID: dentistID, Name: "Dr. " + gofakeit.Name()}
		for d := 1; d <= days; d++ {
			day := now.AddDate(0, 0, d)
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				continue
			}
			for hour := 8; hour < 12; hour++ {
				for _, minute := range []int{0, 30} {
					slotID++
					c.slots = append(c.slots, booking.AvailabilitySlot{
						ID:        slotID,
						Date:      booking.DateOf(day),
						StartTime: booking.NewClockTime(hour, minute),
						EndTime:   booking.NewClockTime(hour+(minute+30)/60, (minute+30)%60),
						Dentist:   dentist,
					})
					c.specialtyOf[slotID] = specialtyID
				}
			}
		}
	}
	return c
}

func (c *clinic) serviceTypes(specialtyID int64) []booking.ServiceType {
	out := []booking.ServiceType{}
	for _, s := range c.services {
		if s.SpecialtyID == specialtyID {
			out = append(out, s)
		}
	}
	return out
}

func (c *clinic) availabilities(specialtyID int64, date booking.Date) []booking.AvailabilitySlot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := []booking.AvailabilitySlot{}
	for _, s := range c.slots {
		if c.specialtyOf[s.ID] == specialtyID && s.Date.Equal(date) && !c.booked[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

type createRequest struct {
	AvailabilityID int64   `json:"availability_id"`
	ServiceTypeID  int64   `json:"service_type_id"`
	Notes          *string `json:"notes"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
}

// create books a slot. A slot is booked at most once, and an owner may hold at
// most maxPending pending appointments.
func (c *clinic) create(owner string, req createRequest) (*booking.Appointment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.slot(req.AvailabilityID)
	if !ok {
		return nil, errSlotNotFound
	}
	service, ok := c.service(req.ServiceTypeID)
	if !ok {
		return nil, errServiceNotFound
	}
	if c.booked[slot.ID] {
		return nil, errSlotTaken
	}
	if c.pendingFor(owner) >= c.maxPending {
		return nil, errTooManyPending
	}

	c.booked[slot.ID] = true
	a := &appointment{
		Appointment: booking.Appointment{
			ID:           c.nextID,
			Status:       booking.StatusPending,
			ServiceType:  &service,
			Availability: &slot,
			Notes:        req.Notes,
		},
		owner: owner,
	}
	c.nextID++
	c.appointments = append(c.appointments, a)
	return &a.Appointment, nil
}

func (c *clinic) mine(owner string, page, limit int) booking.AppointmentPage {
	c.mu.Lock()
	defer c.mu.Unlock()

	var items []booking.Appointment
	for i := len(c.appointments) - 1; i >= 0; i-- {
		if c.appointments[i].owner == owner {
			items = append(items, c.appointments[i].Appointment)
		}
	}

	total := len(items)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	return booking.AppointmentPage{
		Items: append([]booking.Appointment{}, items[start:end]...),
		Pagination: booking.Pagination{
			CurrentPage: page,
			TotalPages:  max(1, (total+limit-1)/limit),
			TotalItems:  total,
			Limit:       limit,
		},
	}
}

func (c *clinic) updateStatus(owner string, id int64, status booking.AppointmentStatus) (*booking.Appointment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range c.appointments {
		if a.ID != id || a.owner != owner {
			continue
		}
		for _, next := range transitions[a.Status] {
			if next == status {
				a.Status = status
				if status == booking.StatusCancelled && a.Availability != nil {
					delete(c.booked, a.Availability.ID)
				}
				return &a.Appointment, nil
			}
		}
		return nil, fmt.Errorf("%w from %s to %s", errBadTransition, a.Status, status)
	}
	return nil, errNotFound
}

func (c *clinic) slot(id int64) (booking.AvailabilitySlot, bool) {
	for _, s := range c.slots {
		if s.ID == id {
			return s, true
		}
	}
	return booking.AvailabilitySlot{}, false
}

func (c *clinic) service(id int64) (booking.ServiceType, bool) {
	for _, s := range c.services {
		if s.ID == id {
			return s, true
		}
	}
	return booking.ServiceType{}, false
}

func (c *clinic) pendingFor(owner string) int {
	n := 0
	for _, a := range c.appointments {
		if a.owner == owner && a.Status == booking.StatusPending {
			n++
		}
	}
	return n
}

func guestOwner(phone string) string {
	return "guest:" + wizard.PhoneDigits(phone)
}
