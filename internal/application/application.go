package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

const SpanPrefix = "UC."

// ErrValidation marks malformed commands. The HTTP edge maps it to 400.
var ErrValidation = errors.New("validation")

func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Instruments bundles the tracer, base logger and RED metrics a use case reports through.
type Instruments struct {
	tracer      observability.Tracer
	log         observability.Logger
	requests    observability.Counter   // usecase_requests_total{use_case,outcome}
	duration    observability.Histogram // usecase_duration_seconds{use_case}
	extRequests observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extDuration observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return Instruments{
		tracer:      tel.Tracer(),
		log:         tel.Logger().With(observability.F("service", service)),
		requests:    m.Counter(observability.MUsecaseRequests),
		duration:    m.Histogram(observability.MUsecaseDuration),
		extRequests: m.Counter(observability.MExternalRequests),
		extDuration: m.Histogram(observability.MExternalRequestDuration),
	}
}

func (in Instruments) Logger() observability.Logger { return in.log }

// External records one call to a collaborator outside the process.
func (in Instruments) External(peer, endpoint, outcome string, started time.Time) {
	in.extRequests.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	in.extDuration.Observe(time.Since(started).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}

// Run tracks a single use case execution. End must be called exactly once.
type Run struct {
	ctx     context.Context
	in      Instruments
	span    trace.Span
	logger  observability.Logger
	useCase string
	start   time.Time
	outcome string
	status  string
	fields  []observability.Field
}

func (in Instruments) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	logger := logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase))
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.tracer.Start(ctx, SpanPrefix+spanName, attrs...)
	ctx = logctx.With(ctx, logger)

	return ctx, &Run{
		ctx:     ctx,
		in:      in,
		span:    span,
		logger:  logger,
		useCase: useCase,
		start:   time.Now(),
		outcome: "success",
		status:  "OK",
	}
}

func (r *Run) Span() trace.Span             { return r.span }
func (r *Run) Logger() observability.Logger { return r.logger }

// Fail marks the run as failed with a stable status code such as OUT_OF_STOCK.
func (r *Run) Fail(status string) {
	r.outcome, r.status = "error", status
}

// Status overrides the status text while keeping the outcome.
func (r *Run) Status(status string) {
	r.status = status
}

// Annotate adds fields to the final use_case_done line.
func (r *Run) Annotate(fields ...observability.Field) {
	r.fields = append(r.fields, fields...)
}

func (r *Run) End(err error) {
	lat := time.Since(r.start).Seconds()
	if err != nil && r.outcome == "success" {
		r.Fail("INTERNAL")
	}

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.status)
		} else {
			r.span.SetStatus(codes.Ok, r.status)
		}
		r.span.End()
	}

	r.in.requests.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.outcome),
	)
	r.in.duration.Observe(lat, observability.L("use_case", r.useCase))

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(r.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, r.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}

	r.logger.Info("use_case_done", fields...)
}
