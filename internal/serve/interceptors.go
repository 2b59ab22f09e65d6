package serve

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalsfoundry/transport-simulator/internal/logging"
	"github.com/signalsfoundry/transport-simulator/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	tracerName           = "github.com/signalsfoundry/transport-simulator/internal/serve"
	requestIDMetadataKey = "x-request-id"
)

// LoggerUnaryServerInterceptor attaches a per-call logger annotated with the
// method and, when the caller sent one, its x-request-id.
func LoggerUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		fields := []logging.Field{logging.String("method", info.FullMethod)}
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if id := firstHeader(md, requestIDMetadataKey); id != "" {
				fields = append(fields, logging.String("request_id", id))
			}
		}
		ctx = logging.ContextWithLogger(ctx, base.With(fields...))
		return handler(ctx, req)
	}
}

// TracingUnaryServerInterceptor names and annotates the server span. The
// otelgrpc stats handler normally creates the span; one is started here only
// when it did not.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		name := fmt.Sprintf("pathsim/%s/%s", service, method)

		span := trace.SpanFromContext(ctx)
		created := false
		if !span.SpanContext().IsValid() {
			ctx, span = tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
			created = true
		} else {
			span.SetName(name)
		}

		attrs := []attribute.KeyValue{
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
			attribute.String("rpc.full_method", strings.TrimPrefix(info.FullMethod, "/")),
		}
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if id := firstHeader(md, requestIDMetadataKey); id != "" {
				attrs = append(attrs, attribute.String("request_id", id))
			}
		}
		span.SetAttributes(attrs...)

		resp, err := handler(ctx, req)
		if err != nil {
			span.RecordError(err)
		}
		if created {
			span.End()
		}
		return resp, err
	}
}

func firstHeader(md metadata.MD, key string) string {
	if md == nil {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
