package session

import (
	"context"

	"github.com/hackgods/dental-booking/internal/appointments"
	"github.com/hackgods/dental-booking/internal/audit"
	"github.com/hackgods/dental-booking/internal/gateway"
	"github.com/hackgods/dental-booking/internal/identity"
	"github.com/hackgods/dental-booking/internal/metrics"
	"github.com/hackgods/dental-booking/internal/wizard"
	"github.com/hackgods/dental-booking/pkg/logging"
)

// Recorder persists audit events for both the wizard and the list.
type Recorder interface {
	RecordEvent(ctx context.Context, eventType string, payload map[string]any)
}

// Factory builds wizards and lists on top of one shared gateway client. The
// caller's bearer token is attached per principal.
type Factory struct {
	Gateway  *gateway.Client
	Catalog  wizard.Catalog // defaults to Gateway
	Guard    wizard.Guard   // optional
	Recorder Recorder       // defaults to audit.Nop
	Metrics  *metrics.Metrics
	Logger   *logging.Logger
}

func (f *Factory) Wizard(ctx context.Context, p identity.Principal, opts ...wizard.Option) *wizard.Orchestrator {
	client := f.client(p)

	var catalog wizard.Catalog = client
	if f.Catalog != nil {
		catalog = f.Catalog
	}

	submitOpts := []wizard.SubmitOption{
		wizard.WithRecorder(f.recorder()),
		wizard.WithSubmitMetrics(f.Metrics),
	}
	if !p.Guest() {
		submitOpts = append(submitOpts, wizard.WithOwner(p.Identity.ID))
	}
	if f.Guard != nil {
		submitOpts = append(submitOpts, wizard.WithGuard(f.Guard))
	}
	submitter := wizard.NewSubmissionController(client, f.logger(), submitOpts...)

	opts = append([]wizard.Option{
		wizard.WithLogger(f.logger()),
		wizard.WithMetrics(f.Metrics),
	}, opts...)
	return wizard.New(ctx, p.Identity, catalog, submitter, opts...)
}

func (f *Factory) List(p identity.Principal) *appointments.ListController {
	return appointments.NewListController(f.client(p), f.logger(), appointments.WithRecorder(f.recorder()))
}

// ListClient is the upstream client a cached list should use for p's
// current token.
func (f *Factory) ListClient(p identity.Principal) appointments.Client {
	return f.client(p)
}

func (f *Factory) client(p identity.Principal) *gateway.Client {
	if p.Token == "" {
		return f.Gateway
	}
	return f.Gateway.WithToken(p.Token)
}

func (f *Factory) recorder() Recorder {
	if f.Recorder == nil {
		return audit.Nop{}
	}
	return f.Recorder
}

func (f *Factory) logger() *logging.Logger {
	if f.Logger == nil {
		return logging.Default()
	}
	return f.Logger
}
