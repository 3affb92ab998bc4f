package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/conduit/pkg/errmodel"
)

// DispatchResult reports what one dispatch did.
type DispatchResult struct {
	// Handled is false when no action accepted the message.
	Handled bool

	// Action names the action that ran, when Handled.
	Action string

	// Plugin names the plugin the action came from, when Handled.
	Plugin string

	// Result is the last handler result emitted through the callback.
	Result HandlerResult

	// Assembly summarizes the context composition for this dispatch.
	Assembly AssemblyLog
}

// Dispatcher routes inbound messages across a fixed set of plugins:
// compose provider context, pick the first action whose Validate accepts,
// run it, then run evaluators.
type Dispatcher struct {
	plugins  []*Plugin
	composer *Composer
	validate ValidateFunc
	log      *slog.Logger
}

// DispatcherOption configures the Dispatcher at construction time.
type DispatcherOption func(*Dispatcher)

// WithComposer overrides the context composer.
func WithComposer(c *Composer) DispatcherOption {
	return func(d *Dispatcher) {
		if c != nil {
			d.composer = c
		}
	}
}

// WithValidator overrides the input schema validator.
func WithValidator(v ValidateFunc) DispatcherOption {
	return func(d *Dispatcher) {
		if v != nil {
			d.validate = v
		}
	}
}

// WithLogger sets the dispatcher logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDispatcher constructs a Dispatcher over the given plugins.
func NewDispatcher(ps []*Plugin, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		plugins:  ps,
		composer: NewComposer(),
		validate: JSONSchemaValidator,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch routes one message. opts carries pre-extracted action parameters
// when the caller has them and is validated against the chosen action's
// input schema; nil opts leaves extraction to the handler.
//
// No matching action is not an error: the result reports Handled=false and
// the caller may fall back to plain generation.
func (d *Dispatcher) Dispatch(ctx context.Context, rt Runtime, msg Message, opts map[string]any, cb Callback) (DispatchResult, error) {
	tr := otel.Tracer("agent/dispatcher")
	ctx, span := tr.Start(ctx, "Dispatcher.Dispatch", trace.WithAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.source", msg.Source),
	))
	defer span.End()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	// 1) Compose provider context.
	st, alog := d.composer.Compose(ctx, rt, msg, d.providers())
	for _, name := range alog.Failed {
		d.log.Warn("provider failed", "provider", name, "message_id", msg.ID)
	}
	res := DispatchResult{Assembly: alog}

	// 2) Pick the first action that accepts the message.
	action, owner := d.selectAction(ctx, rt, msg)
	if action == nil {
		d.runEvaluators(ctx, rt, msg, HandlerResult{}, false)
		return res, nil
	}
	desc := action.Describe()
	span.SetAttributes(attribute.String("action.name", desc.Name))
	res.Handled = true
	res.Action = desc.Name
	res.Plugin = owner.Name

	// 3) Validate pre-extracted parameters when present.
	if opts != nil && len(desc.InputSchema) > 0 {
		if err := d.validate(desc.InputSchema, opts); err != nil {
			verr := errmodel.Validation("invalid_input", "action input validation failed",
				map[string]any{"action": desc.Name, "error": err.Error()})
			span.RecordError(verr)
			return res, verr
		}
	}

	// 4) Run the handler, capturing the last callback result for evaluators.
	capture := &res.Result
	wrapped := func(cctx context.Context, hr HandlerResult) error {
		*capture = hr
		if cb == nil {
			return nil
		}
		return cb(cctx, hr)
	}
	if err := action.Handle(ctx, rt, msg, st, opts, wrapped); err != nil {
		span.RecordError(err)
		res.Result.Err = errors.Join(res.Result.Err, err)
		d.runEvaluators(ctx, rt, msg, res.Result, false)
		return res, err
	}

	// 5) Evaluators observe the outcome.
	d.runEvaluators(ctx, rt, msg, res.Result, true)
	return res, nil
}

func (d *Dispatcher) providers() []Provider {
	var out []Provider
	for _, p := range d.plugins {
		out = append(out, p.Providers...)
	}
	return out
}

func (d *Dispatcher) selectAction(ctx context.Context, rt Runtime, msg Message) (Action, *Plugin) {
	for _, p := range d.plugins {
		for _, a := range p.Actions {
			ok, err := a.Validate(ctx, rt, msg)
			if err != nil {
				d.log.Warn("action validate failed", "action", a.Describe().Name, "err", err)
				continue
			}
			if ok {
				return a, p
			}
		}
	}
	return nil, nil
}

// runEvaluators fires evaluators after a dispatch. succeeded=false limits
// the pass to AlwaysRun evaluators.
func (d *Dispatcher) runEvaluators(ctx context.Context, rt Runtime, msg Message, hr HandlerResult, succeeded bool) {
	for _, p := range d.plugins {
		for _, e := range p.Evaluators {
			desc := e.Describe()
			if !succeeded && !desc.AlwaysRun {
				continue
			}
			if err := e.Evaluate(ctx, rt, msg, hr); err != nil {
				d.log.Warn("evaluator failed", "evaluator", desc.Name, "err", err)
			}
		}
	}
}
