package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/metrics"
	"github.com/hackgods/dental-booking/pkg/logging"
)

const defaultTimeout = 10 * time.Second

const (
	opGetSpecialties    = "get_specialties"
	opGetServiceTypes   = "get_service_types"
	opGetAvailabilities = "get_availabilities"
	opCreateAppointment = "create_appointment"
	opCreateGuest       = "create_guest_appointment"
	opGetMyAppointments = "get_my_appointments"
	opUpdateStatus      = "update_appointment_status"
)

// Client wraps the clinic REST API used by the booking flow.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every call made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient constructs a clinic API client rooted at baseURL.
func NewClient(baseURL string, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of the client that sends the bearer token on every
// call. The receiver is left unchanged.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = strings.TrimSpace(token)
	return &cp
}

// GetSpecialties lists every specialty offered by the clinic.
func (c *Client) GetSpecialties(ctx context.Context) ([]booking.Specialty, error) {
	var out []booking.Specialty
	if err := c.doJSON(ctx, opGetSpecialties, http.MethodGet, "/specialties", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetServiceTypes lists the services of one specialty.
func (c *Client) GetServiceTypes(ctx context.Context, specialtyID int64) ([]booking.ServiceType, error) {
	path := fmt.Sprintf("/service-types/specialty/%d", specialtyID)

	var out []booking.ServiceType
	if err := c.doJSON(ctx, opGetServiceTypes, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].SpecialtyID == 0 {
			out[i].SpecialtyID = specialtyID
		}
	}
	return out, nil
}

// GetAvailabilities lists the open slots of a specialty on one date.
func (c *Client) GetAvailabilities(ctx context.Context, specialtyID int64, date booking.Date) ([]booking.AvailabilitySlot, error) {
	q := url.Values{}
	q.Set("specialty_id", strconv.FormatInt(specialtyID, 10))
	q.Set("date", date.String())

	var out []booking.AvailabilitySlot
	if err := c.doJSON(ctx, opGetAvailabilities, http.MethodGet, "/availabilities?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAppointment books a slot. Guest requests go to the unauthenticated
// guest endpoint; everything else needs the bearer token.
func (c *Client) CreateAppointment(ctx context.Context, req booking.BookingRequest, isGuest bool) (*booking.BookingResult, error) {
	op, path := opCreateAppointment, "/appointments"
	if isGuest {
		op, path = opCreateGuest, "/appointments/guest"
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, op, http.MethodPost, path, req, &raw); err != nil {
		return nil, err
	}

	result := &booking.BookingResult{Raw: raw}
	var ident struct {
		ID int64 `json:"id"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &ident) == nil {
		result.AppointmentID = ident.ID
	}
	return result, nil
}

// GetMyAppointments returns one page of the signed-in user's appointments.
func (c *Client) GetMyAppointments(ctx context.Context, page, limit int) (*booking.AppointmentPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var body struct {
		Data         []booking.Appointment `json:"data"`
		Appointments []booking.Appointment `json:"appointments"`
		Pagination   *booking.Pagination   `json:"pagination"`
		Meta         *booking.Pagination   `json:"meta"`
	}
	if err := c.doRaw(ctx, opGetMyAppointments, http.MethodGet, "/appointments/my?"+q.Encode(), nil, &body); err != nil {
		return nil, err
	}

	items := body.Data
	if len(items) == 0 {
		items = body.Appointments
	}
	if items == nil {
		items = []booking.Appointment{}
	}

	var pg booking.Pagination
	switch {
	case body.Pagination != nil:
		pg = *body.Pagination
	case body.Meta != nil:
		pg = *body.Meta
	default:
		pg = booking.Pagination{CurrentPage: page, TotalPages: 1, TotalItems: len(items), Limit: limit}
	}
	if pg.CurrentPage == 0 {
		pg.CurrentPage = page
	}
	if pg.Limit == 0 {
		pg.Limit = limit
	}

	return &booking.AppointmentPage{Items: items, Pagination: pg}, nil
}

// UpdateAppointmentStatus asks the clinic to move an appointment to status and
// returns the server's view of it.
func (c *Client) UpdateAppointmentStatus(ctx context.Context, id int64, status booking.AppointmentStatus) (*booking.Appointment, error) {
	path := fmt.Sprintf("/appointments/%d/status", id)
	body := map[string]string{"status": string(status)}

	var out booking.Appointment
	if err := c.doJSON(ctx, opUpdateStatus, http.MethodPatch, path, body, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		out.ID = id
	}
	if out.Status == "" {
		out.Status = status
	}
	return &out, nil
}

// doJSON performs the call and decodes the payload, unwrapping a top-level
// {"data": ...} envelope when present.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	var raw json.RawMessage
	if err := c.doRaw(ctx, op, method, path, body, &raw); err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapData(raw), out); err != nil {
		c.logger.Warn("clinic API payload did not decode", "operation", op, "path", path, "error", err)
		return &APIError{StatusCode: http.StatusBadGateway, Message: badResponseMessage}
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, op, method, path string, body, out any) error {
	endpoint := c.baseURL + path
	start := time.Now()

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &APIError{StatusCode: http.StatusBadRequest, Message: "request could not be encoded"}
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		c.logger.Error("build clinic API request", "operation", op, "error", err)
		return transportError()
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(op, statusTransportError, time.Since(start))
		c.logger.Warn("clinic API unreachable", "operation", op, "path", path, "error", err)
		return transportError()
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	c.metrics.ObserveUpstream(op, resp.StatusCode, time.Since(start))
	if err != nil {
		c.logger.Warn("read clinic API response", "operation", op, "error", err)
		return transportError()
	}
	if len(respBody) > maxResponseBytes {
		c.logger.Warn("clinic API response too large", "operation", op, "path", path, "limit", maxResponseBytes)
		return &APIError{StatusCode: http.StatusBadGateway, Message: badResponseMessage}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("clinic API non-2xx response", "operation", op, "status", resp.StatusCode, "path", path, "body", truncate(respBody))
		return normalizeError(resp.StatusCode, respBody)
	}

	if len(bytes.TrimSpace(respBody)) == 0 || out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], respBody...)
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		c.logger.Warn("clinic API payload did not decode", "operation", op, "path", path, "error", err)
		return &APIError{StatusCode: http.StatusBadGateway, Message: badResponseMessage}
	}
	return nil
}

func unwrapData(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return trimmed
	}
	if data, ok := env["data"]; ok && len(data) > 0 && string(data) != "null" {
		return data
	}
	return trimmed
}
