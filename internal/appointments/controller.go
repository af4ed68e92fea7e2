package appointments

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/pkg/logging"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50

	EventStatusChanged = "APPOINTMENT_STATUS_CHANGED"
)

var (
	ErrTerminalStatus    = errors.New("appointment is already in a terminal status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Client is the part of the gateway the list needs.
type Client interface {
	GetMyAppointments(ctx context.Context, page, limit int) (*booking.AppointmentPage, error)
	UpdateAppointmentStatus(ctx context.Context, id int64, status booking.AppointmentStatus) (*booking.Appointment, error)
}

// EventRecorder persists audit events.
type EventRecorder interface {
	RecordEvent(ctx context.Context, eventType string, payload map[string]any)
}

var transitions = map[booking.AppointmentStatus][]booking.AppointmentStatus{
	booking.StatusPending:   {booking.StatusConfirmed, booking.StatusCancelled},
	booking.StatusConfirmed: {booking.StatusCancelled, booking.StatusCompleted},
}

// Transitions returns the statuses an appointment may move to next. Terminal
// appointments get none, so no affordance is offered for them.
func Transitions(a booking.Appointment) []booking.AppointmentStatus {
	next := transitions[a.Status]
	out := make([]booking.AppointmentStatus, len(next))
	copy(out, next)
	return out
}

// ListController holds one user's page of appointments. The server is the
// authority on transitions; the controller only refuses terminal items.
type ListController struct {
	mu         sync.Mutex
	client     Client
	recorder   EventRecorder
	logger     *logging.Logger
	items      []booking.Appointment
	pagination booking.Pagination
	stale      bool
}

type Option func(*ListController)

func WithRecorder(r EventRecorder) Option {
	return func(c *ListController) { c.recorder = r }
}

func NewListController(client Client, logger *logging.Logger, opts ...Option) *ListController {
	if logger == nil {
		logger = logging.Default()
	}
	c := &ListController{
		client: client,
		logger: logger,
		stale:  true,
		pagination: booking.Pagination{
			CurrentPage: 1,
			Limit:       DefaultLimit,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadPage fetches one page, replacing the held snapshot on success.
func (c *ListController) LoadPage(ctx context.Context, page, limit int) (*booking.AppointmentPage, error) {
	page, limit = clampPage(page, limit)

	result, err := c.upstream().GetMyAppointments(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("load appointments page %d: %w", page, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]booking.Appointment(nil), result.Items...)
	c.pagination = result.Pagination
	c.stale = false
	return c.snapshotLocked(), nil
}

// Rebind swaps the upstream client, e.g. after the user's token was renewed.
// The held snapshot is kept.
func (c *ListController) Rebind(client Client) {
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
}

func (c *ListController) upstream() Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// Refresh reloads the current page.
func (c *ListController) Refresh(ctx context.Context) (*booking.AppointmentPage, error) {
	c.mu.Lock()
	page, limit := c.pagination.CurrentPage, c.pagination.Limit
	c.mu.Unlock()
	return c.LoadPage(ctx, page, limit)
}

// Page returns the held snapshot, reloading it first when it was invalidated.
func (c *ListController) Page(ctx context.Context) (*booking.AppointmentPage, error) {
	c.mu.Lock()
	stale := c.stale
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if stale {
		return c.Refresh(ctx)
	}
	return snap, nil
}

// Invalidate marks the snapshot out of date, e.g. after a booking was created.
func (c *ListController) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

func (c *ListController) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

func (c *ListController) Items() []booking.Appointment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]booking.Appointment(nil), c.items...)
}

func (c *ListController) Pagination() booking.Pagination {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pagination
}

// UpdateStatus asks the server for a transition and, on success, patches the
// matching item in place. On failure the list is left exactly as it was.
func (c *ListController) UpdateStatus(ctx context.Context, id int64, status booking.AppointmentStatus) (*booking.Appointment, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	c.mu.Lock()
	current, idx := c.findLocked(id)
	c.mu.Unlock()

	if idx >= 0 && current.Status.Terminal() {
		return nil, fmt.Errorf("appointment %d is %s: %w", id, current.Status, ErrTerminalStatus)
	}

	updated, err := c.upstream().UpdateAppointmentStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("update appointment %d status: %w", id, err)
	}
	if updated == nil {
		updated = &booking.Appointment{ID: id, Status: status}
	}

	c.mu.Lock()
	current, idx = c.findLocked(id)
	merged := *updated
	if idx >= 0 {
		merged = merge(current, *updated)
		items := append([]booking.Appointment(nil), c.items...)
		items[idx] = merged
		c.items = items
	}
	c.mu.Unlock()

	if c.recorder != nil {
		payload := map[string]any{
			"appointment_id": id,
			"status":         string(merged.Status),
		}
		if idx >= 0 {
			payload["previous_status"] = string(current.Status)
		}
		c.recorder.RecordEvent(ctx, EventStatusChanged, payload)
	}
	c.logger.Info("appointment status updated", "appointment_id", id, "status", merged.Status)

	return &merged, nil
}

func (c *ListController) findLocked(id int64) (booking.Appointment, int) {
	for i, a := range c.items {
		if a.ID == id {
			return a, i
		}
	}
	return booking.Appointment{}, -1
}

func (c *ListController) snapshotLocked() *booking.AppointmentPage {
	return &booking.AppointmentPage{
		Items:      append([]booking.Appointment(nil), c.items...),
		Pagination: c.pagination,
	}
}

// merge keeps nested fields the server left out of its response.
func merge(prev, next booking.Appointment) booking.Appointment {
	if next.ServiceType == nil {
		next.ServiceType = prev.ServiceType
	}
	if next.Availability == nil {
		next.Availability = prev.Availability
	}
	if next.Notes == nil {
		next.Notes = prev.Notes
	}
	if next.Status == "" {
		next.Status = prev.Status
	}
	if next.ID == 0 {
		next.ID = prev.ID
	}
	return next
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return page, limit
}
