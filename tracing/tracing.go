// Package tracing wraps a nutcache.Pool so every operation runs inside an
// OpenTelemetry span. Tracing is optional; an unwrapped pool carries no otel
// overhead.
package tracing

import (
	"context"

	"github.com/Keksclan/nutcache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Keksclan/nutcache/tracing"

// Span attribute keys.
const (
	AttrKey  = attribute.Key("nutcache.key")
	AttrHit  = attribute.Key("nutcache.hit")
	AttrPool = attribute.Key("nutcache.pool")
)

// Config holds the OpenTelemetry settings used by Wrap.
type Config struct {
	// TracerProvider supplies the Tracer used to create spans. When nil the
	// global otel.GetTracerProvider() is used.
	TracerProvider trace.TracerProvider

	// PoolName is recorded on every span as nutcache.pool when non-empty.
	PoolName string
}

func (c *Config) tracer() trace.Tracer {
	tp := c.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentationName)
}

// Wrap returns a Pool that traces p. If cfg is nil p is returned unchanged.
func Wrap(p nutcache.Pool, cfg *Config) nutcache.Pool {
	if cfg == nil {
		return p
	}
	return &pool{next: p, tracer: cfg.tracer(), name: cfg.PoolName}
}

type pool struct {
	next   nutcache.Pool
	tracer trace.Tracer
	name   string
}

func (p *pool) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if p.name != "" {
		attrs = append(attrs, AttrPool.String(p.name))
	}
	return p.tracer.Start(ctx, "nutcache."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// computeSpan starts a child span around Compute so misses show up in the
// trace with their own duration.
type computeSpan struct {
	nutcache.Filler
	tracer   trace.Tracer
	computed bool
}

func (f *computeSpan) Compute(ctx context.Context) ([]byte, nutcache.Expiry, error) {
	f.computed = true
	ctx, span := f.tracer.Start(ctx, "nutcache.compute")
	data, exp, err := f.Filler.Compute(ctx)
	if err == nil {
		span.SetAttributes(attribute.String("nutcache.expiry", exp.String()))
	}
	finish(span, err)
	return data, exp, err
}

func (p *pool) Get(ctx context.Context, key string, f nutcache.Filler) error {
	ctx, span := p.start(ctx, "Get", AttrKey.String(key))
	cf := &computeSpan{Filler: f, tracer: p.tracer}
	err := p.next.Get(ctx, key, cf)
	if err == nil {
		span.SetAttributes(AttrHit.Bool(!cf.computed))
	}
	finish(span, err)
	return err
}

func (p *pool) Delete(ctx context.Context, key string) error {
	ctx, span := p.start(ctx, "Delete", AttrKey.String(key))
	err := p.next.Delete(ctx, key)
	finish(span, err)
	return err
}

func (p *pool) Has(ctx context.Context, key string) (bool, error) {
	ctx, span := p.start(ctx, "Has", AttrKey.String(key))
	ok, err := p.next.Has(ctx, key)
	span.SetAttributes(attribute.Bool("nutcache.present", ok))
	finish(span, err)
	return ok, err
}

func (p *pool) Clear(ctx context.Context) error {
	ctx, span := p.start(ctx, "Clear")
	err := p.next.Clear(ctx)
	finish(span, err)
	return err
}
