package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hackgods/dental-booking/pkg/logging"
)

const defaultInsertTimeout = 2 * time.Second

type Inserter interface {
	InsertEvent(ctx context.Context, ev EventLog) error
}

type sessionKey struct{}

// WithSessionID tags audit events recorded under ctx with a wizard session.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

func sessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// Recorder writes audit events. A failed write is logged and swallowed so
// that auditing never fails a booking.
type Recorder struct {
	repo    Inserter
	logger  *logging.Logger
	now     func() time.Time
	timeout time.Duration
}

type Option func(*Recorder)

// WithInsertTimeout bounds each audit write.
func WithInsertTimeout(d time.Duration) Option {
	return func(r *Recorder) { r.timeout = d }
}

func NewRecorder(repo Inserter, logger *logging.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Recorder{repo: repo, logger: logger, now: time.Now, timeout: defaultInsertTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) RecordEvent(ctx context.Context, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("marshal audit payload", "event_type", eventType, "error", err)
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		SessionID:     sessionIDFrom(ctx),
		AppointmentID: appointmentID(payload),
		Payload:       data,
		CreatedAt:     r.now(),
	}

	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.repo.InsertEvent(insertCtx, ev); err != nil {
		r.logger.Error("insert audit event", "event_type", eventType, "error", err)
	}
}

func appointmentID(payload map[string]any) *int64 {
	switch v := payload["appointment_id"].(type) {
	case int64:
		if v != 0 {
			return &v
		}
	case int:
		if v != 0 {
			id := int64(v)
			return &id
		}
	}
	return nil
}

// Nop discards every event. It stands in when no database is configured.
type Nop struct{}

func (Nop) RecordEvent(context.Context, string, map[string]any) {}
