package tracing

import (
	"context"
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"

	"github.com/creativeops/thumbselect/internal/config"
)

// Init initializes the Jaeger tracer and installs it as the global
// opentracing tracer. The returned closer flushes buffered spans.
func Init(cfg config.TracingConfig) (opentracing.Tracer, io.Closer, error) {
	jcfg := &jaegercfg.Configuration{
		ServiceName: cfg.ServiceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans:          false,
			CollectorEndpoint: cfg.Endpoint,
		},
	}

	tracer, closer, err := jcfg.NewTracer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}

// StartSpan starts a new span as a child of any span already in ctx.
func StartSpan(ctx context.Context, operationName string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, operationName)
}

// SetError marks a span as failed and records the error message.
func SetError(span opentracing.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.SetTag("error", true)
	span.LogKV("error", err.Error())
}

// SetTag sets a tag on the span if it exists.
func SetTag(span opentracing.Span, key string, value interface{}) {
	if span != nil {
		span.SetTag(key, value)
	}
}
