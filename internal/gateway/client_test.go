package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/metrics"
	"github.com/hackgods/dental-booking/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	opts = append([]Option{WithMetrics(metrics.New(prometheus.NewRegistry()))}, opts...)
	return NewClient(ts.URL, logging.Discard(), opts...)
}

func TestGetSpecialties_BareArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/specialties", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":1,"name":"Orthodontics","description":"Braces"}]`))
	})

	got, err := client.GetSpecialties(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Orthodontics", got[0].Name)
}

func TestGetServiceTypes_Envelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/service-types/specialty/3", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":10,"name":"Cleaning","duration_minutes":30}]}`))
	})

	got, err := client.GetServiceTypes(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].SpecialtyID)
	assert.Equal(t, 30, got[0].DurationMinutes)
}

func TestGetAvailabilities_Query(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/availabilities", r.URL.Path)
		assert.Equal(t, "4", r.URL.Query().Get("specialty_id"))
		assert.Equal(t, "2026-03-09", r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(`{"data":[{"id":7,"date":"2026-03-09","start_time":"09:00","end_time":"09:30","dentist":{"id":2,"name":"Dr. Vega"}}]}`))
	})

	got, err := client.GetAvailabilities(context.Background(), 4, booking.NewDate(2026, time.March, 9))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, "09:00", got[0].StartTime.String())
}

func TestCreateAppointment_RoutesByMode(t *testing.T) {
	var paths []string
	var auth []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		auth = append(auth, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":55,"status":"pending"}}`))
	}).WithToken("tok-123")

	req := booking.BookingRequest{AvailabilityID: 7, ServiceTypeID: 2}

	res, err := client.CreateAppointment(context.Background(), req, true)
	require.NoError(t, err)
	assert.Equal(t, int64(55), res.AppointmentID)

	_, err = client.CreateAppointment(context.Background(), req, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"/appointments/guest", "/appointments"}, paths)
	assert.Equal(t, "Bearer tok-123", auth[1])
}

func TestCreateAppointment_GuestPayload(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	})

	_, err := client.CreateAppointment(context.Background(), booking.BookingRequest{
		AvailabilityID: 7,
		ServiceTypeID:  2,
		Guest:          &booking.GuestContact{Name: "Ana Gomez", Phone: "3001234567"},
	}, true)
	require.NoError(t, err)

	assert.EqualValues(t, 7, got["availability_id"])
	assert.Equal(t, "Ana Gomez", got["name"])
	assert.NotContains(t, got, "email")
}

func TestErrorNormalization(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantDetails map[string]string
	}{
		{"string message", http.StatusConflict, `{"message":"Slot already booked"}`, "Slot already booked", nil},
		{"message list", http.StatusBadRequest, `{"message":["notes too long","phone invalid"]}`, "notes too long; phone invalid", nil},
		{"field map", http.StatusBadRequest, `{"message":"Validation failed","errors":{"phone":"too short"}}`, "Validation failed", map[string]string{"phone": "too short"}},
		{"field list", http.StatusBadRequest, `{"errors":[{"path":"email","msg":"invalid email"}]}`, "Bad Request", map[string]string{"email": "invalid email"}},
		{"multi map", http.StatusBadRequest, `{"error":"bad","details":{"name":["required","short"]}}`, "bad", map[string]string{"name": "required"}},
		{"plain text", http.StatusTooManyRequests, `slow down`, "Too Many Requests", nil},
		{"server error", http.StatusBadGateway, ``, networkErrorMessage, nil},
		{"server message hidden", http.StatusInternalServerError, `{"message":"pq: deadlock detected"}`, networkErrorMessage, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.GetSpecialties(context.Background())
			require.Error(t, err)

			apiErr := AsAPIError(err)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.wantDetails, apiErr.Details)
		})
	}
}

func TestTimeoutIsTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}, WithTimeout(20*time.Millisecond))

	_, err := client.GetSpecialties(context.Background())
	require.Error(t, err)

	apiErr := AsAPIError(err)
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.Equal(t, networkErrorMessage, apiErr.Message)
	assert.True(t, apiErr.Retryable())
}

func TestUndecodablePayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":`))
	})

	_, err := client.GetSpecialties(context.Background())
	apiErr := AsAPIError(err)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.True(t, apiErr.Retryable())
}

func TestOversizedResponseRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"`))
		_, _ = w.Write(bytes.Repeat([]byte("a"), maxResponseBytes))
		_, _ = w.Write([]byte(`"}]`))
	})

	_, err := client.GetSpecialties(context.Background())
	require.Error(t, err)
	apiErr := AsAPIError(err)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, badResponseMessage, apiErr.Message)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	body := []byte("x" + strings.Repeat("é", maxLoggedBodyLength))

	got := truncate(body)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxLoggedBodyLength)
	assert.Equal(t, "short", truncate([]byte("short")))
}

func TestGetMyAppointments_Pagination(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appointments/my", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":[{"id":5,"status":"pending"}],"pagination":{"currentPage":2,"totalPages":3,"totalItems":11,"limit":5}}`))
	}).WithToken("tok")

	page, err := client.GetMyAppointments(context.Background(), 2, 5)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, booking.StatusPending, page.Items[0].Status)
	assert.Equal(t, booking.Pagination{CurrentPage: 2, TotalPages: 3, TotalItems: 11, Limit: 5}, page.Pagination)
}

func TestGetMyAppointments_MissingPagination(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"appointments":[]}`))
	})

	page, err := client.GetMyAppointments(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.Pagination.CurrentPage)
	assert.Equal(t, 10, page.Pagination.Limit)
}

func TestUpdateAppointmentStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/appointments/5/status", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cancelled", body["status"])
		_, _ = w.Write([]byte(`{"data":{"id":5,"status":"cancelled"}}`))
	})

	appt, err := client.UpdateAppointmentStatus(context.Background(), 5, booking.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, int64(5), appt.ID)
	assert.Equal(t, booking.StatusCancelled, appt.Status)
}

func TestWithTokenLeavesReceiverUntouched(t *testing.T) {
	base := NewClient("http://example.test", logging.Discard())
	authed := base.WithToken(" abc ")
	assert.Empty(t, base.token)
	assert.Equal(t, "abc", authed.token)
}
