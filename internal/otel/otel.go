// Package otel exports client lifecycle events as OpenTelemetry traces.
// It attaches to the eventbus so the core stays free of tracing concerns.
package otel

import (
	"context"
	"sync"

	"github.com/hanpama/graphclient/internal/eventbus"
	"github.com/hanpama/graphclient/internal/events"
	"github.com/hanpama/graphclient/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// Setup configures the OTLP trace exporter and attaches the eventbus
// subscribers. An empty endpoint disables telemetry.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	sub := &subscriber{tracer: otel.Tracer("graphclient")}
	sub.register()

	return tp.Shutdown, nil
}

type subscriber struct {
	tracer     trace.Tracer
	sendSpans  sync.Map // send id -> trace.Span
	fetchSpans sync.Map // send id -> trace.Span
}

func (s *subscriber) register() {
	eventbus.Subscribe(func(ctx context.Context, e events.SendStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "client.send")
		span.SetAttributes(
			attribute.String("graphql.document", e.Artifact),
			attribute.String("graphql.operation.type", e.Kind),
			attribute.Int64("graphql.send.generation", int64(e.Generation)),
		)
		s.sendSpans.Store(rid, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.SendFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.sendSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(
			attribute.Bool("graphql.send.committed", e.Committed),
			attribute.Bool("graphql.send.discarded", e.Discarded),
		)
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.FetchStart) {
		rid, _ := reqid.FromContext(ctx)
		parent := ctx
		if v, ok := s.sendSpans.Load(rid); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "http.fetch")
		span.SetAttributes(
			semconv.HTTPMethodKey.String("POST"),
			attribute.String("http.url", e.URL),
		)
		s.fetchSpans.Store(rid, span)
	})

	eventbus.Subscribe(func(ctx context.Context, e events.FetchFinish) {
		rid, _ := reqid.FromContext(ctx)
		v, ok := s.fetchSpans.LoadAndDelete(rid)
		if !ok {
			return
		}
		span := v.(trace.Span)
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})

	eventbus.Subscribe(func(ctx context.Context, e events.PageLoad) {
		_, span := s.tracer.Start(ctx, "page.load")
		span.SetAttributes(
			attribute.String("graphql.document", e.Artifact),
			attribute.String("graphql.page.direction", e.Direction),
		)
		if e.Err != nil {
			span.RecordError(e.Err)
		}
		span.End()
	})
}
