package orchestrator

import (
	"time"

	"github.com/ShayCichocki/majordomo/internal/llm"
	"github.com/ShayCichocki/majordomo/internal/zone"
)

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	sink              EventSink
	completer         llm.Completer
	zones             zone.Provisioner
	logger            *DebugLogger
	permissionTimeout time.Duration
	cooModel          string
	now               func() time.Time
}

// WithEventSink sets the sink that receives orchestrator events.
// Defaults to NopSink.
func WithEventSink(s EventSink) Option {
	return func(o *orchestratorOptions) { o.sink = s }
}

// WithCompleter sets the LLM completer used for COO replies.
// If unset, chat messages are stored and broadcast but no reply is generated.
func WithCompleter(c llm.Completer) Option {
	return func(o *orchestratorOptions) { o.completer = c }
}

// WithZoneProvisioner sets the workspace zone provisioner.
func WithZoneProvisioner(p zone.Provisioner) Option {
	return func(o *orchestratorOptions) { o.zones = p }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithPermissionTimeout sets the timeout for pending permission requests.
func WithPermissionTimeout(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.permissionTimeout = d }
}

// WithCOOModel sets the model used by the COO agent.
func WithCOOModel(model string) Option {
	return func(o *orchestratorOptions) { o.cooModel = model }
}

// WithClock sets the time source (mainly for testing).
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) { o.now = now }
}
