package wizard

import "github.com/hackgods/dental-booking/internal/booking"

// Mode is decided once, from the identity the session was created with.
type Mode int

const (
	ModeGuest Mode = iota
	ModeAuthenticated
)

func ModeFor(identity *booking.Identity) Mode {
	if identity == nil {
		return ModeGuest
	}
	return ModeAuthenticated
}

func (m Mode) String() string {
	if m == ModeAuthenticated {
		return "authenticated"
	}
	return "guest"
}

// StepKind names the rule set a step number maps to.
type StepKind int

const (
	KindService StepKind = iota + 1
	KindSchedule
	KindContact
	KindNotes
	KindConfirm
	KindSuccess
)

var stepKindNames = map[StepKind]string{
	KindService:  "service",
	KindSchedule: "schedule",
	KindContact:  "contact",
	KindNotes:    "notes",
	KindConfirm:  "confirm",
	KindSuccess:  "success",
}

func (k StepKind) String() string {
	if name, ok := stepKindNames[k]; ok {
		return name
	}
	return "unknown"
}

var (
	guestSteps  = []StepKind{KindService, KindSchedule, KindContact, KindNotes, KindConfirm}
	memberSteps = []StepKind{KindService, KindSchedule, KindNotes, KindConfirm}
)

// Steps returns the ordered step kinds of the mode, success excluded.
func (m Mode) Steps() []StepKind {
	if m == ModeAuthenticated {
		return memberSteps
	}
	return guestSteps
}

// StepCount is N: 5 for guests, 4 for signed-in users.
func (m Mode) StepCount() int {
	return len(m.Steps())
}

// KindAt maps a step number to its kind. Numbers past N are the success state.
func (m Mode) KindAt(step int) StepKind {
	steps := m.Steps()
	switch {
	case step > len(steps):
		return KindSuccess
	case step < 1:
		return steps[0]
	default:
		return steps[step-1]
	}
}

// StepOf returns the step number of kind, or 0 when the mode has no such step.
func (m Mode) StepOf(kind StepKind) int {
	if kind == KindSuccess {
		return m.StepCount() + 1
	}
	for i, k := range m.Steps() {
		if k == kind {
			return i + 1
		}
	}
	return 0
}
