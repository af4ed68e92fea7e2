package wizard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/gateway"
	"github.com/hackgods/dental-booking/internal/metrics"
	"github.com/hackgods/dental-booking/pkg/logging"
)

const (
	EventBookingSubmitted = "BOOKING_SUBMITTED"
	EventBookingCreated   = "BOOKING_CREATED"
	EventBookingRejected  = "BOOKING_REJECTED"
)

var (
	ErrNotAtConfirmation    = errors.New("booking can only be submitted from the confirmation step")
	ErrIncompleteSelection  = errors.New("specialty, service and time must all be selected")
	ErrSubmissionInProgress = errors.New("a submission for this slot is already in progress")
	ErrCompleted            = errors.New("booking already completed")
)

// Outcome kinds, also used as the metrics label.
const (
	OutcomeCreated          = "created"
	OutcomeValidation       = "validation"
	OutcomeServerValidation = "server_validation"
	OutcomeConflict         = "conflict"
	OutcomeRateLimited      = "rate_limited"
	OutcomeUnauthorized     = "unauthorized"
	OutcomeInProgress       = "in_progress"
	OutcomeNetwork          = "network"
	OutcomeFailed           = "failed"
)

const (
	msgConflict     = "That time was just taken. Please choose another available time."
	msgRateLimited  = "You have too many pending requests. Please wait a moment or manage your existing appointments."
	msgUnauthorized = "Your session has expired. Please sign in again to book."
	msgInProgress   = "This booking is already being processed. Please wait a moment."
	msgIncomplete   = "Please complete the previous steps before confirming."
	msgFixFields    = "Please review the highlighted fields."
)

// Outcome is the controller's recommendation after a failed submission. It
// names the step kind to return to; applying it is the wizard's job.
type Outcome struct {
	Kind                string
	Step                StepKind
	Message             string
	FieldErrors         map[string]string
	ClearAvailability   bool
	RefetchAvailability bool
}

// SubmitError carries the classified outcome of a failed submission.
type SubmitError struct {
	Outcome Outcome
	Err     error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit booking (%s): %v", e.Outcome.Kind, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Creator is the write side of the gateway used for bookings.
type Creator interface {
	CreateAppointment(ctx context.Context, req booking.BookingRequest, isGuest bool) (*booking.BookingResult, error)
}

// Guard serializes submissions for the same identity and slot. release is
// nil when ok is false.
type Guard interface {
	Acquire(ctx context.Context, key string) (ok bool, release func(), err error)
}

// EventRecorder persists audit events. Failures are the recorder's to log.
type EventRecorder interface {
	RecordEvent(ctx context.Context, eventType string, payload map[string]any)
}

type SubmissionController struct {
	creator  Creator
	guard    Guard
	recorder EventRecorder
	metrics  *metrics.Metrics
	logger   *logging.Logger
	ownerID  int64
}

type SubmitOption func(*SubmissionController)

func WithGuard(g Guard) SubmitOption {
	return func(c *SubmissionController) { c.guard = g }
}

// WithOwner keys the submit guard on the signed-in identity instead of the
// contact email.
func WithOwner(id int64) SubmitOption {
	return func(c *SubmissionController) { c.ownerID = id }
}

func WithRecorder(r EventRecorder) SubmitOption {
	return func(c *SubmissionController) { c.recorder = r }
}

func WithSubmitMetrics(m *metrics.Metrics) SubmitOption {
	return func(c *SubmissionController) { c.metrics = m }
}

func NewSubmissionController(creator Creator, logger *logging.Logger, opts ...SubmitOption) *SubmissionController {
	if logger == nil {
		logger = logging.Default()
	}
	c := &SubmissionController{creator: creator, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit assembles the booking request and sends it upstream. Every failure
// is returned as a *SubmitError with a recommended recovery.
func (c *SubmissionController) Submit(ctx context.Context, sel booking.Selections, contact booking.PatientContact, isGuest bool) (*booking.BookingResult, error) {
	if !sel.Complete() {
		return nil, c.fail(ctx, sel, isGuest, ErrIncompleteSelection)
	}

	req := BuildRequest(sel, contact, isGuest)

	if c.guard != nil {
		ok, release, err := c.guard.Acquire(ctx, guardKey(c.ownerID, req, contact, isGuest))
		switch {
		case err != nil:
			// The guard is best effort; the upstream still rejects double bookings.
			c.logger.Warn("submit guard unavailable", "error", err)
		case !ok:
			return nil, c.fail(ctx, sel, isGuest, ErrSubmissionInProgress)
		default:
			defer release()
		}
	}

	c.record(ctx, EventBookingSubmitted, map[string]any{
		"availability_id": req.AvailabilityID,
		"service_type_id": req.ServiceTypeID,
		"guest":           isGuest,
	})

	result, err := c.creator.CreateAppointment(ctx, req, isGuest)
	if err != nil {
		return nil, c.fail(ctx, sel, isGuest, err)
	}

	c.metrics.ObserveSubmission(OutcomeCreated, isGuest)
	c.record(ctx, EventBookingCreated, map[string]any{
		"appointment_id":  result.AppointmentID,
		"availability_id": req.AvailabilityID,
		"guest":           isGuest,
	})
	c.logger.Info("booking created",
		"appointment_id", result.AppointmentID,
		"availability_id", req.AvailabilityID,
		"guest", isGuest,
	)
	return result, nil
}

func (c *SubmissionController) fail(ctx context.Context, sel booking.Selections, isGuest bool, err error) error {
	outcome := Classify(err)
	c.metrics.ObserveSubmission(outcome.Kind, isGuest)

	payload := map[string]any{
		"outcome": outcome.Kind,
		"guest":   isGuest,
	}
	if sel.AvailabilityID != nil {
		payload["availability_id"] = *sel.AvailabilityID
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		payload["status_code"] = apiErr.StatusCode
	}
	c.record(ctx, EventBookingRejected, payload)

	c.logger.Warn("booking rejected", "outcome", outcome.Kind, "guest", isGuest, "error", err)
	return &SubmitError{Outcome: outcome, Err: err}
}

func (c *SubmissionController) record(ctx context.Context, eventType string, payload map[string]any) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordEvent(ctx, eventType, payload)
}

// BuildRequest assembles the create payload. Strings are trimmed; empty notes
// are sent as null and an empty email is left out.
func BuildRequest(sel booking.Selections, contact booking.PatientContact, isGuest bool) booking.BookingRequest {
	req := booking.BookingRequest{}
	if sel.AvailabilityID != nil {
		req.AvailabilityID = *sel.AvailabilityID
	}
	if sel.ServiceID != nil {
		req.ServiceTypeID = *sel.ServiceID
	}
	if notes := strings.TrimSpace(contact.Notes); notes != "" {
		req.Notes = &notes
	}
	if isGuest {
		req.Guest = &booking.GuestContact{
			Name:  strings.TrimSpace(contact.Name),
			Email: strings.TrimSpace(contact.Email),
			Phone: strings.TrimSpace(contact.Phone),
		}
	}
	return req
}

func guardKey(owner int64, req booking.BookingRequest, contact booking.PatientContact, isGuest bool) string {
	var who string
	switch {
	case isGuest:
		who = "guest:" + PhoneDigits(contact.Phone)
	case owner != 0:
		who = "member:" + strconv.FormatInt(owner, 10)
	default:
		who = "member:" + strings.ToLower(strings.TrimSpace(contact.Email))
	}
	return fmt.Sprintf("%s:slot:%d", who, req.AvailabilityID)
}

// Classify maps a submission error onto the recovery the wizard should take.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: OutcomeCreated, Step: KindSuccess}
	case errors.Is(err, ErrIncompleteSelection):
		return Outcome{Kind: OutcomeValidation, Step: KindService, Message: msgIncomplete}
	case errors.Is(err, ErrSubmissionInProgress):
		return Outcome{Kind: OutcomeInProgress, Step: KindConfirm, Message: msgInProgress}
	}

	apiErr := gateway.AsAPIError(err)
	switch {
	case apiErr.StatusCode == http.StatusConflict, apiErr.StatusCode == http.StatusNotFound:
		return Outcome{
			Kind:                OutcomeConflict,
			Step:                KindSchedule,
			Message:             msgConflict,
			FieldErrors:         map[string]string{FieldAvailability: msgConflict},
			ClearAvailability:   true,
			RefetchAvailability: true,
		}
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return Outcome{Kind: OutcomeRateLimited, Step: KindConfirm, Message: msgRateLimited}
	case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
		return Outcome{Kind: OutcomeUnauthorized, Step: KindConfirm, Message: msgUnauthorized}
	case apiErr.StatusCode == http.StatusBadRequest && len(apiErr.Details) > 0:
		fields := mapServerFields(apiErr.Details)
		return Outcome{
			Kind:        OutcomeServerValidation,
			Step:        earliestStep(fields),
			Message:     msgFixFields,
			FieldErrors: fields,
		}
	case apiErr.Retryable():
		return Outcome{Kind: OutcomeNetwork, Step: KindConfirm, Message: apiErr.Message}
	}
	return Outcome{Kind: OutcomeFailed, Step: KindConfirm, Message: apiErr.Message}
}

var serverFieldNames = map[string]string{
	"specialty_id":    FieldSpecialty,
	"specialtyId":     FieldSpecialty,
	"service_type_id": FieldService,
	"serviceTypeId":   FieldService,
	"service_id":      FieldService,
	"date":            FieldDate,
	"availability_id": FieldAvailability,
	"availabilityId":  FieldAvailability,
	"name":            FieldName,
	"email":           FieldEmail,
	"phone":           FieldPhone,
	"notes":           FieldNotes,
}

func mapServerFields(details map[string]string) map[string]string {
	out := make(map[string]string, len(details))
	for k, v := range details {
		name, ok := serverFieldNames[k]
		if !ok {
			name = k
		}
		out[name] = v
	}
	return out
}

// fieldOwners lists, in wizard order, the step kind each field is edited on.
var fieldOwners = []struct {
	kind   StepKind
	fields []string
}{
	{KindService, []string{FieldSpecialty, FieldService}},
	{KindSchedule, []string{FieldDate, FieldAvailability}},
	{KindContact, []string{FieldName, FieldEmail, FieldPhone}},
	{KindNotes, []string{FieldNotes}},
}

// earliestStep returns the first step owning a failed field. Notes also live
// on the guest contact step; Mode.StepOf resolves kinds the mode lacks to 0,
// which the reducer treats as the confirmation step.
func earliestStep(fields map[string]string) StepKind {
	for _, owner := range fieldOwners {
		for _, f := range owner.fields {
			if _, ok := fields[f]; ok {
				return owner.kind
			}
		}
	}
	return KindConfirm
}
